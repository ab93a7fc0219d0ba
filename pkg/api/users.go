package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rtemka/newsroom/domain"
	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/moderation"
)

// поля форм входа и регистрации.
const (
	usernameField = "username"
	passwordField = "password"
)

// сообщения форм входа и регистрации.
const (
	msgInvalidLogin = "Пожалуйста, введите правильные имя пользователя и пароль."
	msgUserExists   = "Пользователь с таким именем уже существует."
	msgTooLong      = "Пароль слишком длинный."
)

type authPage struct {
	Form *Form  `json:"form"`
	Next string `json:"next,omitempty"`
}

// handleLogin показывает форму входа (GET) и выполняет вход (POST).
// После входа перенаправляет на next или на главную.
func (api *API) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		next := r.URL.Query().Get(auth.NextParam)

		if r.Method == http.MethodGet {
			api.WriteJSON(w, authPage{Form: newForm(usernameField, passwordField), Next: next}, http.StatusOK)
			return
		}

		form, err := parseForm(r, usernameField, passwordField, auth.NextParam)
		if err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}
		if v := form.Fields[auth.NextParam]; v != "" {
			next = v
		}
		delete(form.Fields, auth.NextParam)

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		u, err := api.sessions.Authenticate(ctx, form.Fields[usernameField], form.Fields[passwordField])
		api.countLogin(err == nil)
		switch {
		case errors.Is(err, auth.ErrEmptyCredentials):
			requireFields(form, usernameField, passwordField)
		case errors.Is(err, auth.ErrInvalidCredentials):
			form.AddError(NonFieldErrors, msgInvalidLogin)
		case err != nil:
			api.writeError(w, r, err)
			return
		}
		if !form.Valid() {
			form.Fields[passwordField] = ""
			api.WriteJSON(w, authPage{Form: form, Next: next}, http.StatusOK)
			return
		}

		if err := api.sessions.Login(w, u); err != nil {
			api.writeError(w, r, err)
			return
		}

		api.redirect(w, r, auth.SafeNext(next, HomePath))
	}
}

// handleLogout завершает сессию.
func (api *API) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.sessions.Logout(w)
		api.WriteJSON(w, map[string]string{"response": "logged out"}, http.StatusOK)
	}
}

// handleSignup показывает форму регистрации (GET) и регистрирует
// пользователя (POST). Новый пользователь сразу входит в систему.
func (api *API) handleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		if r.Method == http.MethodGet {
			api.WriteJSON(w, authPage{Form: newForm(usernameField, passwordField)}, http.StatusOK)
			return
		}

		form, err := parseForm(r, usernameField, passwordField)
		if err != nil {
			api.WriteJSONError(w, err, http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		u, err := api.sessions.Signup(ctx, form.Fields[usernameField], form.Fields[passwordField])
		switch {
		case errors.Is(err, auth.ErrEmptyCredentials):
			requireFields(form, usernameField, passwordField)
		case errors.Is(err, domain.ErrConflict):
			form.AddError(usernameField, msgUserExists)
		case errors.Is(err, auth.ErrPasswordTooLong):
			form.AddError(passwordField, msgTooLong)
		case err != nil:
			api.writeError(w, r, err)
			return
		}
		if !form.Valid() {
			form.Fields[passwordField] = ""
			api.WriteJSON(w, authPage{Form: form}, http.StatusOK)
			return
		}

		if err := api.sessions.Login(w, u); err != nil {
			api.writeError(w, r, err)
			return
		}

		api.redirect(w, r, HomePath)
	}
}

// requireFields отмечает пустые поля формы.
func requireFields(form *Form, fields ...string) {
	for _, name := range fields {
		if form.Fields[name] == "" {
			form.AddError(name, moderation.Required)
		}
	}
	if form.Valid() {
		form.AddError(NonFieldErrors, moderation.Required)
	}
}

func (api *API) countLogin(ok bool) {
	if api.metrics != nil {
		api.metrics.Login(ok)
	}
}
