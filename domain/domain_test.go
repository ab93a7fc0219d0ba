package domain

import (
	"testing"
	"time"
)

func TestIdentity_Owns(t *testing.T) {
	c := Comment{ID: 1, Author: Author{ID: 7, Name: "alice"}}

	tests := []struct {
		name string
		id   Identity
		want bool
	}{
		{name: "author", id: Identity{ID: 7, Username: "alice"}, want: true},
		{name: "other_user", id: Identity{ID: 8, Username: "bob"}, want: false},
		{name: "admin_is_not_owner", id: Identity{ID: 9, Admin: true}, want: false},
		{name: "anonymous", id: Identity{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Owns(c); got != tt.want {
				t.Errorf("Owns() = %t, want %t", got, tt.want)
			}
		})
	}

	// комментарий без автора не принадлежит анонимному пользователю
	if (Identity{}).Owns(Comment{}) {
		t.Errorf("Owns() = %t, want %t", true, false)
	}
}

func TestStamp(t *testing.T) {
	now := time.Unix(1659947255, 0)

	var a Article
	a.Stamp(now)
	if a.PubDate != now.Unix() {
		t.Errorf("Article.Stamp() = %d, want %d", a.PubDate, now.Unix())
	}

	a.PubDate = 100
	a.Stamp(now)
	if a.PubDate != 100 {
		t.Errorf("Article.Stamp() = %d, want %d", a.PubDate, 100)
	}

	var c Comment
	c.Stamp(now)
	if c.Created != now.Unix() {
		t.Errorf("Comment.Stamp() = %d, want %d", c.Created, now.Unix())
	}
}
