// пакет api предоставляет маршрутизатор REST API
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rtemka/newsroom/domain"
	"github.com/rtemka/newsroom/pkg/access"
	"github.com/rtemka/newsroom/pkg/auth"
	"github.com/rtemka/newsroom/pkg/listing"
	"github.com/rtemka/newsroom/pkg/metrics"
	"github.com/rtemka/newsroom/pkg/moderation"

	"go.uber.org/zap"
)

var (
	ErrInternal = errors.New("internal server error")
	ErrBadInput = errors.New("invalid input")

	ErrMethodNotAllowed = errors.New("method not allowed")
)

// адреса страниц.
const (
	LoginPath  = "/auth/login/"
	LogoutPath = "/auth/logout/"
	SignupPath = "/auth/signup/"
	HomePath   = "/"
)

// время на обработку запроса к БД.
const requestTimeout = 5 * time.Second

type ctxKey int

const (
	requestID ctxKey = iota
)

type wideResponseWriter struct {
	http.ResponseWriter
	length, status int
	internalErr    error
}

func (w *wideResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *wideResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return n, err
}

// REST API.
type API struct {
	router   *mux.Router
	repo     domain.Repository
	list     *listing.Service
	guard    *access.Guard
	filter   *moderation.Filter
	sessions *auth.Sessions
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option настраивает [*API].
type Option func(*API)

// WithFilter задает список запрещенных слов.
func WithFilter(f *moderation.Filter) Option {
	return func(api *API) { api.filter = f }
}

// WithMetrics включает учет метрик и маршрут /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(api *API) { api.metrics = m }
}

// WithPageSize задает количество новостей на странице.
func WithPageSize(n int) Option {
	return func(api *API) { api.list = listing.New(api.repo, n) }
}

// New возвращает [*API].
func New(db domain.Repository, sessions *auth.Sessions, logger *zap.Logger, opts ...Option) *API {
	api := API{
		router:   mux.NewRouter(),
		repo:     db,
		list:     listing.New(db, domain.PageSize),
		guard:    access.New(db),
		filter:   moderation.New(),
		sessions: sessions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(&api)
	}
	api.endpoints()
	return &api
}

// ServeHTTP - таким образом, мы можем использовать
// сам [*API] в качестве мультиплексора на сервере.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func (api *API) endpoints() {
	middlewares := []mux.MiddlewareFunc{
		api.requestIDMiddleware,
		api.wideEventLogMiddleware,
		api.closerMiddleware,
		api.headersMiddleware,
		api.secHeadersMiddleware,
		api.sessions.Middleware,
	}
	api.router.Use(middlewares...)

	// mux не применяет Use к этим обработчикам,
	// поэтому оборачиваем их той же цепочкой.
	api.router.NotFoundHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONError(w, domain.ErrNotFound, http.StatusNotFound)
	}), middlewares...)
	api.router.MethodNotAllowedHandler = chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONError(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
	}), middlewares...)

	loginRequired := auth.LoginRequired(LoginPath)

	// новости
	api.router.HandleFunc(HomePath, api.handleNewsList()).Methods(http.MethodGet)
	api.router.HandleFunc("/news/{id:[0-9]+}/", api.handleNewsDetail()).Methods(http.MethodGet)
	api.router.Handle("/news/{id:[0-9]+}/", loginRequired(api.handleCommentCreate())).Methods(http.MethodPost)

	// комментарии
	api.router.Handle("/edit_comment/{id:[0-9]+}/", loginRequired(api.handleCommentEdit())).
		Methods(http.MethodGet, http.MethodPost)
	api.router.Handle("/delete_comment/{id:[0-9]+}/", loginRequired(api.handleCommentDelete())).
		Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	api.router.HandleFunc("/api/comments/check", api.handleCommentCheck()).Methods(http.MethodPost)

	// пользователи
	api.router.HandleFunc(LoginPath, api.handleLogin()).Methods(http.MethodGet, http.MethodPost)
	api.router.HandleFunc(LogoutPath, api.handleLogout()).Methods(http.MethodGet, http.MethodPost)
	api.router.HandleFunc(SignupPath, api.handleSignup()).Methods(http.MethodGet, http.MethodPost)

	if api.metrics != nil {
		api.router.Handle("/metrics", api.metrics.Handler()).Methods(http.MethodGet)
	}
}

// chain оборачивает h в middlewares так же, как это делает
// [mux.Router.Use]: первый в списке выполняется первым.
func chain(h http.Handler, middlewares ...mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// closerMiddleware считывает и закрывает тело запроса
// для повторного использования TCP-соединения.
func (api *API) closerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	})
}

// requestIDMiddleware извлекает id запроса из параметров запроса.
// В случае если id запроса отсутствует, id генерируется.
// Далее id добавляется в контекст запроса.
func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.URL.Query().Get("request-id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		ctxWithID := context.WithValue(r.Context(), requestID, rid)
		rWithID := r.WithContext(ctxWithID)
		next.ServeHTTP(w, rWithID)
	})
}

// wideEventLogMiddleware собирает и регистрирует информацию о полученном запросе.
func (api *API) wideEventLogMiddleware(next http.Handler) http.Handler {

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {

			wideWriter := &wideResponseWriter{ResponseWriter: w}

			next.ServeHTTP(wideWriter, r)

			if wideWriter.status == 0 {
				wideWriter.status = http.StatusOK
			}
			if api.metrics != nil {
				api.metrics.Request(r.Method, wideWriter.status)
			}

			addr, _, _ := net.SplitHostPort(r.RemoteAddr)
			api.logger.Info("request received",
				zap.Any("request_id", r.Context().Value(requestID)),
				zap.Int("status_code", wideWriter.status),
				zap.Int("response_length", wideWriter.length),
				zap.Int64("content_length", r.ContentLength),
				zap.String("method", r.Method),
				zap.String("proto", r.Proto),
				zap.String("remote_addr", addr),
				zap.String("uri", r.RequestURI),
				zap.String("user_agent", r.UserAgent()),
				zap.Error(wideWriter.internalErr),
			)
		},
	)
}

// headersMiddleware задает обычные заголовки для всех ответов.
func (api *API) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// secHeadersMiddleware устанавливает строгие заголовки безопасности для всех ответов.
func (api *API) secHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; sandbox")
		next.ServeHTTP(w, r)
	})
}

func (api *API) WriteJSONError(w http.ResponseWriter, err error, code int) {
	w.WriteHeader(code)
	if wrw, ok := w.(*wideResponseWriter); ok {
		wrw.internalErr = err
	}
	if code == http.StatusInternalServerError {
		err = ErrInternal
	}
	msg := map[string]string{"error": err.Error()}
	_ = json.NewEncoder(w).Encode(&msg)
}

func (api *API) WriteJSON(w http.ResponseWriter, data any, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError выбирает код ответа по ошибке.
func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrLoginRequired):
		auth.RedirectToLogin(w, r, LoginPath)
	case errors.Is(err, domain.ErrNotFound):
		api.WriteJSONError(w, domain.ErrNotFound, http.StatusNotFound)
	default:
		api.WriteJSONError(w, err, http.StatusInternalServerError)
	}
}

// redirect отвечает 302 на адрес location.
func (api *API) redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusFound)
}

// commentsURL - адрес блока комментариев на странице новости.
func commentsURL(articleID int64) string {
	return newsURL(articleID) + "#comments"
}

func newsURL(articleID int64) string {
	return "/news/" + strconv.FormatInt(articleID, 10) + "/"
}

// pathID извлекает id из пути запроса.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}
