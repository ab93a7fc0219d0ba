package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rtemka/newsroom/domain"
)

// ErrNoRows когда по запросу не найдены строки.
var ErrNoRows = sql.ErrNoRows

//go:embed schema.sql
var schema string

// SQLite выполняет операции CRUD в БД.
type SQLite struct {
	// это поле экпортируемое, чтобы пользователь
	// мог установить такие важные параметры подлючения как
	// SetConnMaxIdleTime, SetMaxOpenConns, SetMaxIdleConns...
	DB *sql.DB
}

// New производит подключение к [*SQLite] БД.
// Внешние ключи включаются всегда, иначе не работает
// каскадное удаление комментариев.
func New(connstr string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(connstr))
	if err != nil {
		return nil, err
	}

	return &SQLite{DB: db}, db.Ping()
}

func withForeignKeys(connstr string) string {
	if strings.Contains(connstr, "_fk=") || strings.Contains(connstr, "_foreign_keys=") {
		return connstr
	}
	if strings.Contains(connstr, "?") {
		return connstr + "&_fk=1"
	}
	return connstr + "?_fk=1"
}

// Close closes db connection.
func (l *SQLite) Close() error {
	return l.DB.Close()
}

// Migrate создает таблицы, если их нет.
func (l *SQLite) Migrate(ctx context.Context) error {
	return l.exec(ctx, schema)
}

// RunFile читает и исполняет sql-файл.
func (l *SQLite) RunFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return l.exec(context.Background(), string(b))
}

// Articles возвращает новости, свежие первыми.
func (l *SQLite) Articles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	stmt := `
		SELECT id, title, text, pub_date
		FROM news
		ORDER BY pub_date DESC, id DESC
		LIMIT $1 OFFSET $2;`

	if limit <= 0 {
		limit = -1 // без ограничения
	}

	rows, err := l.DB.QueryContext(ctx, stmt, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Text, &a.PubDate); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	return articles, rows.Err()
}

// CountArticles возвращает общее количество новостей.
func (l *SQLite) CountArticles(ctx context.Context) (int, error) {
	var n int
	return n, l.DB.QueryRowContext(ctx, `SELECT COUNT(id) FROM news;`).Scan(&n)
}

// Article находит новость по id.
func (l *SQLite) Article(ctx context.Context, id int64) (domain.Article, error) {
	stmt := `SELECT id, title, text, pub_date FROM news WHERE id = $1;`

	var a domain.Article
	err := l.DB.QueryRowContext(ctx, stmt, id).Scan(&a.ID, &a.Title, &a.Text, &a.PubDate)
	return a, notFound(err)
}

// AddArticles добавляет новости в одной транзакции
// и заполняет их id.
func (l *SQLite) AddArticles(ctx context.Context, articles []domain.Article) error {
	tx, err := l.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for i := range articles {
		a := &articles[i]
		a.Stamp(now)

		var res sql.Result
		if a.ID == 0 {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO news(title, text, pub_date) VALUES($1, $2, $3);`,
				a.Title, a.Text, a.PubDate)
		} else {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO news(id, title, text, pub_date) VALUES($1, $2, $3, $4);`,
				a.ID, a.Title, a.Text, a.PubDate)
		}
		if err != nil {
			return fmt.Errorf("add article %q: %w", a.Title, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteArticle удаляет новость, комментарии удаляются каскадно.
func (l *SQLite) DeleteArticle(ctx context.Context, id int64) error {
	return l.execOne(ctx, `DELETE FROM news WHERE id = $1;`, id)
}

// Comments получает все комментарии к новости, старые первыми.
func (l *SQLite) Comments(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	stmt := `
		SELECT
			c.id, a.id, a.username,
			c.news_id, c.text, c.created
		FROM comments as c JOIN users as a ON c.author_id = a.id
		WHERE c.news_id = $1
		ORDER BY c.created ASC, c.id ASC;`

	rows, err := l.DB.QueryContext(ctx, stmt, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coms []domain.Comment
	for rows.Next() {
		var c domain.Comment
		err := rows.Scan(&c.ID, &c.Author.ID, &c.Author.Name,
			&c.ArticleID, &c.Text, &c.Created)
		if err != nil {
			return nil, err
		}
		coms = append(coms, c)
	}

	return coms, rows.Err()
}

// Comment находит комментарий по id.
func (l *SQLite) Comment(ctx context.Context, id int64) (domain.Comment, error) {
	stmt := `
		SELECT
			c.id, a.id, a.username,
			c.news_id, c.text, c.created
		FROM comments as c JOIN users as a ON c.author_id = a.id
		WHERE c.id = $1;`

	var c domain.Comment
	err := l.DB.QueryRowContext(ctx, stmt, id).Scan(&c.ID, &c.Author.ID, &c.Author.Name,
		&c.ArticleID, &c.Text, &c.Created)
	return c, notFound(err)
}

// CountComments возвращает общее количество комментариев.
func (l *SQLite) CountComments(ctx context.Context) (int, error) {
	var n int
	return n, l.DB.QueryRowContext(ctx, `SELECT COUNT(id) FROM comments;`).Scan(&n)
}

// CreateComment создает комментарий к новости.
func (l *SQLite) CreateComment(ctx context.Context, c *domain.Comment) (int64, error) {
	c.Stamp(time.Now())

	stmt := `INSERT INTO comments(news_id, author_id, text, created)
		VALUES($1, $2, $3, $4);`
	res, err := l.DB.ExecContext(ctx, stmt, c.ArticleID, c.Author.ID, c.Text, c.Created)
	if err != nil {
		return 0, constraint(err)
	}

	c.ID, err = res.LastInsertId()
	return c.ID, err
}

// UpdateComment заменяет текст комментария.
func (l *SQLite) UpdateComment(ctx context.Context, id int64, text string) error {
	return l.execOne(ctx, `UPDATE comments SET text = $1 WHERE id = $2;`, text, id)
}

// DeleteComment удаляет комментарий.
func (l *SQLite) DeleteComment(ctx context.Context, id int64) error {
	return l.execOne(ctx, `DELETE FROM comments WHERE id = $1;`, id)
}

// CreateUser регистрирует пользователя.
func (l *SQLite) CreateUser(ctx context.Context, u *domain.User) (int64, error) {
	stmt := `INSERT INTO users(username, password_hash, is_admin) VALUES($1, $2, $3);`
	res, err := l.DB.ExecContext(ctx, stmt, u.Username, u.PasswordHash, u.Admin)
	if err != nil {
		return 0, constraint(err)
	}
	u.ID, err = res.LastInsertId()
	return u.ID, err
}

// User находит пользователя по id.
func (l *SQLite) User(ctx context.Context, id int64) (domain.User, error) {
	return l.user(ctx, `SELECT id, username, password_hash, is_admin FROM users WHERE id = $1;`, id)
}

// UserByName находит пользователя по имени.
func (l *SQLite) UserByName(ctx context.Context, username string) (domain.User, error) {
	return l.user(ctx, `SELECT id, username, password_hash, is_admin FROM users WHERE username = $1;`, username)
}

func (l *SQLite) user(ctx context.Context, stmt string, arg any) (domain.User, error) {
	var u domain.User
	err := l.DB.QueryRowContext(ctx, stmt, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Admin)
	return u, notFound(err)
}

// execOne выполняет запрос, который должен затронуть
// ровно одну строку.
func (l *SQLite) execOne(ctx context.Context, stmt string, args ...any) error {
	res, err := l.DB.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// exec вспомогательная функция, выполняет
// *tx.Exec() в транзакции.
func (l *SQLite) exec(ctx context.Context, stmt string, args ...any) error {
	tx, err := l.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// constraint переводит ошибки ограничений SQLite в ошибки domain.
func constraint(err error) error {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}
