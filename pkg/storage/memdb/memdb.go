// пакет memdb - хранилище в памяти, используется в тестах
// и при DB_DRIVER=memory.
package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rtemka/newsroom/domain"
)

// MemDB хранит новости, комментарии и пользователей в памяти.
type MemDB struct {
	mu       sync.RWMutex
	articles map[int64]domain.Article
	comments map[int64]domain.Comment
	users    map[int64]domain.User
	lastID   int64
}

// New возвращает пустое хранилище.
func New() *MemDB {
	return &MemDB{
		articles: make(map[int64]domain.Article),
		comments: make(map[int64]domain.Comment),
		users:    make(map[int64]domain.User),
	}
}

func (db *MemDB) nextID() int64 {
	db.lastID++
	return db.lastID
}

// Articles возвращает новости, свежие первыми.
func (db *MemDB) Articles(_ context.Context, limit, offset int) ([]domain.Article, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]domain.Article, 0, len(db.articles))
	for _, a := range db.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PubDate != out[j].PubDate {
			return out[i].PubDate > out[j].PubDate
		}
		return out[i].ID > out[j].ID
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (db *MemDB) CountArticles(_ context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.articles), nil
}

func (db *MemDB) Article(_ context.Context, id int64) (domain.Article, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	a, ok := db.articles[id]
	if !ok {
		return domain.Article{}, domain.ErrNotFound
	}
	return a, nil
}

// AddArticles добавляет новости и заполняет их id.
func (db *MemDB) AddArticles(_ context.Context, articles []domain.Article) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now()
	for i := range articles {
		a := &articles[i]
		if a.ID == 0 {
			a.ID = db.nextID()
		} else if a.ID > db.lastID {
			db.lastID = a.ID
		}
		a.Stamp(now)
		db.articles[a.ID] = *a
	}
	return nil
}

// DeleteArticle удаляет новость и все комментарии к ней.
func (db *MemDB) DeleteArticle(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.articles[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.articles, id)
	for cid, c := range db.comments {
		if c.ArticleID == id {
			delete(db.comments, cid)
		}
	}
	return nil
}

// Comments возвращает комментарии к новости, старые первыми.
func (db *MemDB) Comments(_ context.Context, articleID int64) ([]domain.Comment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []domain.Comment
	for _, c := range db.comments {
		if c.ArticleID == articleID {
			c.Author.Name = db.users[c.Author.ID].Username
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (db *MemDB) Comment(_ context.Context, id int64) (domain.Comment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	c.Author.Name = db.users[c.Author.ID].Username
	return c, nil
}

func (db *MemDB) CountComments(_ context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.comments), nil
}

// CreateComment создает комментарий. Новость и автор должны существовать.
func (db *MemDB) CreateComment(_ context.Context, c *domain.Comment) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.articles[c.ArticleID]; !ok {
		return 0, domain.ErrNotFound
	}
	u, ok := db.users[c.Author.ID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	c.ID = db.nextID()
	c.Author.Name = u.Username
	c.Stamp(time.Now())
	db.comments[c.ID] = *c
	return c.ID, nil
}

func (db *MemDB) UpdateComment(_ context.Context, id int64, text string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.comments[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Text = text
	db.comments[id] = c
	return nil
}

func (db *MemDB) DeleteComment(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.comments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.comments, id)
	return nil
}

// CreateUser регистрирует пользователя с уникальным именем.
func (db *MemDB) CreateUser(_ context.Context, u *domain.User) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, v := range db.users {
		if v.Username == u.Username {
			return 0, domain.ErrConflict
		}
	}
	u.ID = db.nextID()
	db.users[u.ID] = *u
	return u.ID, nil
}

func (db *MemDB) User(_ context.Context, id int64) (domain.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (db *MemDB) UserByName(_ context.Context, username string) (domain.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, u := range db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

// Close - no-op
func (db *MemDB) Close() error { return nil }
