package auth

import (
	"net/http"
	"net/url"
	"strings"
)

// NextParam - параметр запроса с адресом возврата после входа.
const NextParam = "next"

// LoginURL возвращает адрес страницы входа
// с адресом возврата path.
func LoginURL(loginPath, path string) string {
	// слеши оставляем как есть: /auth/login/?next=/edit_comment/1/
	next := strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
	return loginPath + "?" + NextParam + "=" + next
}

// LoginRequired перенаправляет анонимных пользователей
// на страницу входа. Должен стоять после [Sessions.Middleware].
func LoginRequired(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()).Anonymous() {
				RedirectToLogin(w, r, loginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectToLogin отвечает 302 на страницу входа.
func RedirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	http.Redirect(w, r, LoginURL(loginPath, r.URL.RequestURI()), http.StatusFound)
}

// SafeNext возвращает next, если это локальный путь,
// иначе fallback. Защищает от перенаправления на чужой сайт.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
