package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rtemka/newsroom/domain"
	"github.com/rtemka/newsroom/pkg/access"
	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/metrics"
	"github.com/rtemka/newsroom/pkg/moderation"
)

// commentPage - страница редактирования или удаления комментария.
type commentPage struct {
	Comment domain.Comment `json:"comment"`
	Form    *Form          `json:"form,omitempty"`
}

// handleCommentEdit показывает форму редактирования (GET)
// и заменяет текст комментария (POST). Доступно только автору,
// остальные получают 404.
func (api *API) handleCommentEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		id, err := pathID(r)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		c, err := api.guard.Comment(ctx, auth.FromContext(r.Context()), id, access.Edit)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				api.count(metrics.OutcomeNotFound)
			}
			api.writeError(w, r, err)
			return
		}

		if r.Method == http.MethodGet {
			form := newForm(moderation.Field)
			form.Fields[moderation.Field] = c.Text
			api.WriteJSON(w, commentPage{Comment: c, Form: form}, http.StatusOK)
			return
		}

		form, err := parseForm(r, moderation.Field)
		if err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}

		text, ok := api.validate(form)
		if !ok {
			api.WriteJSON(w, commentPage{Comment: c, Form: form}, http.StatusOK)
			return
		}

		if err := api.repo.UpdateComment(ctx, c.ID, text); err != nil {
			api.writeError(w, r, err)
			return
		}
		api.count(metrics.OutcomeUpdated)

		api.redirect(w, r, commentsURL(c.ArticleID))
	}
}

// handleCommentDelete показывает подтверждение удаления (GET)
// и удаляет комментарий (POST, DELETE).
func (api *API) handleCommentDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		id, err := pathID(r)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		c, err := api.guard.Comment(ctx, auth.FromContext(r.Context()), id, access.Delete)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				api.count(metrics.OutcomeNotFound)
			}
			api.writeError(w, r, err)
			return
		}

		if r.Method == http.MethodGet {
			api.WriteJSON(w, commentPage{Comment: c}, http.StatusOK)
			return
		}

		if err := api.repo.DeleteComment(ctx, c.ID); err != nil {
			api.writeError(w, r, err)
			return
		}
		api.count(metrics.OutcomeDeleted)

		api.redirect(w, r, commentsURL(c.ArticleID))
	}
}

// handleCommentCheck проверяет входящий комментарий на
// содержание запрещенных слов.
func (api *API) handleCommentCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		var c domain.Comment
		err := json.NewDecoder(r.Body).Decode(&c)
		if err != nil {
			api.WriteJSONError(w, ErrBadInput, http.StatusBadRequest)
			return
		}

		if api.filter.Banned(c.Text) {
			api.WriteJSON(w, map[string]string{"response": "banned"}, http.StatusBadRequest)
		} else {
			api.WriteJSON(w, map[string]string{"response": "allowed"}, http.StatusOK)
		}
	}
}
