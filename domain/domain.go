// пакет domain содержит модели данных и контракты хранилища.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound когда запрошенная запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrConflict когда запись нарушает ограничение уникальности.
	ErrConflict = errors.New("already exists")
)

// PageSize - количество новостей на главной странице.
const PageSize = 10

// Article - модель данных новости.
type Article struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	PubDate int64  `json:"date"`
}

// Comment - модель данных комментария к новости.
type Comment struct {
	ID        int64  `json:"id"`
	ArticleID int64  `json:"news_id"`
	Text      string `json:"text"`
	Created   int64  `json:"created"`
	Author
}

// Author - автор комментария к новости.
type Author struct {
	ID   int64  `json:"author_id"`
	Name string `json:"author"`
}

// User - зарегистрированный пользователь.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Admin        bool   `json:"-"`
}

// Identity - тот, кто выполняет запрос.
// Нулевое значение соответствует анонимному пользователю.
type Identity struct {
	ID       int64
	Username string
	Admin    bool
}

// Anonymous сообщает, что пользователь не вошел в систему.
func (i Identity) Anonymous() bool { return i.ID == 0 }

// Owns сообщает, является ли i автором комментария.
func (i Identity) Owns(c Comment) bool {
	return !i.Anonymous() && c.Author.ID == i.ID
}

// Stamp заполняет дату публикации текущим временем,
// если она не задана.
func (a *Article) Stamp(now time.Time) {
	if a.PubDate == 0 {
		a.PubDate = now.Unix()
	}
}

// Stamp заполняет время создания комментария.
func (c *Comment) Stamp(now time.Time) {
	if c.Created == 0 {
		c.Created = now.Unix()
	}
}

// ArticleRepository - контракт на работу с новостями.
type ArticleRepository interface {
	Articles(ctx context.Context, limit, offset int) ([]Article, error) // новости, свежие первыми
	CountArticles(ctx context.Context) (int, error)                     // общее количество новостей
	Article(ctx context.Context, id int64) (Article, error)             // новость по id
	AddArticles(ctx context.Context, articles []Article) error          // добавить новости списком
	DeleteArticle(ctx context.Context, id int64) error                  // удалить новость вместе с комментариями
}

// CommentRepository - контракт на работу с комментариями.
type CommentRepository interface {
	Comments(ctx context.Context, articleID int64) ([]Comment, error) // комментарии к новости, старые первыми
	Comment(ctx context.Context, id int64) (Comment, error)
	CountComments(ctx context.Context) (int, error)
	CreateComment(ctx context.Context, c *Comment) (int64, error)
	UpdateComment(ctx context.Context, id int64, text string) error
	DeleteComment(ctx context.Context, id int64) error
}

// UserRepository - контракт на работу с пользователями.
type UserRepository interface {
	CreateUser(ctx context.Context, u *User) (int64, error)
	User(ctx context.Context, id int64) (User, error)
	UserByName(ctx context.Context, username string) (User, error)
}

// Repository объединяет все контракты хранилища.
type Repository interface {
	ArticleRepository
	CommentRepository
	UserRepository
	Close() error // закрыть соединение с БД.
}
