package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rtemka/newsroom/domain"
	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/listing"
	"github.com/rtemka/newsroom/pkg/metrics"
	"github.com/rtemka/newsroom/pkg/moderation"
)

// параметр запроса.
const pageQP = "page"

// detailPage - страница новости. Форма комментария есть
// только у вошедших пользователей.
type detailPage struct {
	listing.Detail
	Form *Form `json:"form,omitempty"`
}

// handleNewsList возвращает новости главной страницы.
func (api *API) handleNewsList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		page := 1
		if qp := r.URL.Query().Get(pageQP); qp != "" {
			var err error
			page, err = strconv.Atoi(qp)
			if err != nil || page < 1 {
				api.WriteJSONError(w, fmt.Errorf("%w: bad %q parameter: must be: page=NUM", ErrBadInput, pageQP), http.StatusBadRequest)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		p, err := api.list.Page(ctx, page)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		api.WriteJSON(w, p, http.StatusOK)
	}
}

// handleNewsDetail возвращает новость с комментариями.
func (api *API) handleNewsDetail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		id, err := pathID(r)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		d, err := api.list.Detail(ctx, id)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		page := detailPage{Detail: d}
		if !auth.FromContext(r.Context()).Anonymous() {
			page.Form = newForm(moderation.Field)
		}

		api.WriteJSON(w, page, http.StatusOK)
	}
}

// handleCommentCreate создает комментарий к новости.
// Если текст не прошел проверку, возвращается страница
// новости с ошибками формы, комментарий не сохраняется.
func (api *API) handleCommentCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		id, err := pathID(r)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		form, err := parseForm(r, moderation.Field)
		if err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		d, err := api.list.Detail(ctx, id)
		if err != nil {
			api.writeError(w, r, err)
			return
		}

		text, ok := api.validate(form)
		if !ok {
			api.WriteJSON(w, detailPage{Detail: d, Form: form}, http.StatusOK)
			return
		}

		who := auth.FromContext(r.Context())
		c := domain.Comment{
			ArticleID: d.Article.ID,
			Text:      text,
			Author:    domain.Author{ID: who.ID, Name: who.Username},
		}
		if _, err := api.repo.CreateComment(ctx, &c); err != nil {
			api.writeError(w, r, err)
			return
		}
		api.count(metrics.OutcomeCreated)

		api.redirect(w, r, commentsURL(d.Article.ID))
	}
}

// validate проверяет текст комментария в форме.
// При ошибке добавляет ее к полю формы.
func (api *API) validate(form *Form) (string, bool) {
	text, err := api.filter.Validate(form.Fields[moderation.Field])
	if err == nil {
		return text, true
	}

	var ve *moderation.ValidationError
	if errors.As(err, &ve) {
		form.AddError(ve.Field, ve.Message)
	} else {
		form.AddError(NonFieldErrors, err.Error())
	}
	api.count(metrics.OutcomeRejected)
	return "", false
}

func (api *API) count(outcome string) {
	if api.metrics != nil {
		api.metrics.Comment(outcome)
	}
}
