// пакет auth реализует регистрацию, вход и выход пользователей.
// Сессия хранится в cookie в виде подписанного JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rtemka/newsroom/domain"
	"golang.org/x/crypto/bcrypt"
)

// CookieName - имя cookie сессии.
const CookieName = "sessionid"

// DefaultTTL - время жизни сессии по умолчанию.
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrPasswordTooLong    = errors.New("password is too long")
	ErrInvalidSession     = errors.New("invalid session")
)

type ctxKey int

const identityKey ctxKey = iota

// claims - содержимое токена сессии.
type claims struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Sessions выдает и проверяет сессии пользователей.
type Sessions struct {
	users  domain.UserRepository
	secret []byte
	ttl    time.Duration
	// Cost - сложность bcrypt, в тестах можно уменьшить.
	Cost int
	// Secure выставляет флаг Secure у cookie.
	Secure bool
	now    func() time.Time
}

// New возвращает [*Sessions]. Если ttl <= 0, используется [DefaultTTL].
func New(users domain.UserRepository, secret []byte, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sessions{
		users:  users,
		secret: secret,
		ttl:    ttl,
		Cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Signup регистрирует пользователя. Если имя занято,
// возвращается ошибка, обернутая вокруг [domain.ErrConflict].
func (s *Sessions) Signup(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrEmptyCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return domain.User{}, ErrPasswordTooLong
		}
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{Username: username, PasswordHash: string(hash)}
	if _, err := s.users.CreateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}

	return u, nil
}

// Authenticate проверяет имя пользователя и пароль.
// Имя сравнивается без пробелов по краям, как при регистрации.
func (s *Sessions) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrEmptyCredentials
	}

	u, err := s.users.UserByName(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	return u, nil
}

// Token подписывает токен сессии пользователя.
func (s *Sessions) Token(u domain.User) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  u.Username,
		Admin: u.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return tok.SignedString(s.secret)
}

// Parse проверяет токен сессии и возвращает пользователя.
func (s *Sessions) Parse(token string) (domain.Identity, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return domain.Identity{}, ErrInvalidSession
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Identity{}, ErrInvalidSession
	}

	return domain.Identity{ID: id, Username: c.Name, Admin: c.Admin}, nil
}

// Login выставляет cookie сессии.
func (s *Sessions) Login(w http.ResponseWriter, u domain.User) error {
	token, err := s.Token(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout удаляет cookie сессии.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Identify определяет пользователя по cookie запроса.
// Без cookie или с недействительным токеном пользователь анонимный.
func (s *Sessions) Identify(r *http.Request) domain.Identity {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return domain.Identity{}
	}
	id, err := s.Parse(c.Value)
	if err != nil {
		return domain.Identity{}
	}
	return id
}

// Middleware добавляет пользователя в контекст запроса.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithIdentity(r.Context(), s.Identify(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithIdentity возвращает контекст с пользователем.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext возвращает пользователя из контекста.
// Если пользователя нет, он анонимный.
func FromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}
