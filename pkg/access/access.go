// пакет access решает, кто может изменять комментарии.
package access

import (
	"context"
	"errors"
	"strconv"

	"github.com/rtemka/newsroom/domain"
)

// ErrLoginRequired когда действие пытается выполнить
// анонимный пользователь.
var ErrLoginRequired = errors.New("login required")

// Action - действие над комментарием.
type Action int

const (
	Edit Action = iota
	Delete
)

func (a Action) String() string {
	switch a {
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	default:
		return "Action(" + strconv.Itoa(int(a)) + ")"
	}
}

// Comments - источник комментариев.
type Comments interface {
	Comment(ctx context.Context, id int64) (domain.Comment, error)
}

// Guard проверяет права на комментарии.
type Guard struct {
	comments Comments
}

// New возвращает [*Guard].
func New(comments Comments) *Guard {
	return &Guard{comments: comments}
}

// Allowed сообщает, может ли who выполнить действие над комментарием.
// Редактировать может только автор, удалять - автор или администратор.
func Allowed(who domain.Identity, c domain.Comment, act Action) bool {
	if who.Owns(c) {
		return true
	}
	return act == Delete && who.Admin && !who.Anonymous()
}

// Comment возвращает комментарий, если who может выполнить над ним действие.
// Чужой комментарий неотличим от несуществующего: в обоих
// случаях возвращается [domain.ErrNotFound].
func (g *Guard) Comment(ctx context.Context, who domain.Identity, id int64, act Action) (domain.Comment, error) {
	if who.Anonymous() {
		return domain.Comment{}, ErrLoginRequired
	}

	c, err := g.comments.Comment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}

	if !Allowed(who, c, act) {
		return domain.Comment{}, domain.ErrNotFound
	}

	return c, nil
}
