package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtemka/newsroom/domain"
)

var ErrNoRows = pgx.ErrNoRows

// коды ошибок PostgreSQL.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

//go:embed schema.sql
var schema string

type statement struct {
	sql  string
	args []any
}

// Postgres выполняет CRUD операции с БД
type Postgres struct {
	db *pgxpool.Pool
}

// New выполняет подключение
// и возвращает объект для взаимодействия с БД
func New(connString string) (*Postgres, error) {

	pool, err := pgxpool.Connect(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	return &Postgres{db: pool}, pool.Ping(context.Background())
}

// Close выполняет закрытие подключения к БД
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

// Migrate создает таблицы, если их нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.exec(ctx, schema)
}

// RunFile читает и исполняет sql-файл.
func (p *Postgres) RunFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return p.exec(context.Background(), string(b))
}

// Articles возвращает новости, свежие первыми.
func (p *Postgres) Articles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	var stmt statement
	stmt.sql = `SELECT id, title, text, pub_date FROM news ORDER BY pub_date DESC, id DESC`
	stmt.addLimitOffsetClause(limit, offset)

	rows, err := p.db.Query(ctx, stmt.sql, stmt.args...)
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

func (stmt *statement) addLimitOffsetClause(limit, offset int) {
	if limit > 0 {
		stmt.sql += fmt.Sprintf(" LIMIT $%d", len(stmt.args)+1)
		stmt.args = append(stmt.args, limit)
	}
	if offset > 0 {
		stmt.sql += fmt.Sprintf(" OFFSET $%d", len(stmt.args)+1)
		stmt.args = append(stmt.args, offset)
	}
}

// CountArticles возвращает общее количество новостей.
func (p *Postgres) CountArticles(ctx context.Context) (int, error) {
	var n int
	return n, p.db.QueryRow(ctx, `SELECT COUNT(id) FROM news;`).Scan(&n)
}

// Article находит новость по id.
func (p *Postgres) Article(ctx context.Context, id int64) (domain.Article, error) {
	stmt := `SELECT id, title, text, pub_date FROM news WHERE id = $1;`

	var a domain.Article
	err := p.db.QueryRow(ctx, stmt, id).Scan(&a.ID, &a.Title, &a.Text, &a.PubDate)
	return a, notFound(err)
}

// AddArticles добавляет в БД слайс новостей,
// используя [*pgx.Batch], и заполняет их id.
func (p *Postgres) AddArticles(ctx context.Context, articles []domain.Article) error {
	now := time.Now()

	return p.db.BeginFunc(ctx, func(tx pgx.Tx) error {

		b := new(pgx.Batch)

		for i := range articles {
			a := &articles[i]
			a.Stamp(now)
			if a.ID == 0 {
				b.Queue(`INSERT INTO news(title, text, pub_date) VALUES ($1, $2, $3) RETURNING id;`,
					a.Title, a.Text, a.PubDate)
			} else {
				b.Queue(`INSERT INTO news(id, title, text, pub_date) VALUES ($1, $2, $3, $4) RETURNING id;`,
					a.ID, a.Title, a.Text, a.PubDate)
			}
		}

		br := tx.SendBatch(ctx, b)
		for i := range articles {
			if err := br.QueryRow().Scan(&articles[i].ID); err != nil {
				_ = br.Close()
				return fmt.Errorf("add article %q: %w", articles[i].Title, err)
			}
		}

		return br.Close()
	})
}

// DeleteArticle удаляет новость, комментарии удаляются каскадно.
func (p *Postgres) DeleteArticle(ctx context.Context, id int64) error {
	return p.execOne(ctx, `DELETE FROM news WHERE id = $1;`, id)
}

const commentColumns = `
	SELECT
		c.id, a.id, a.username,
		c.news_id, c.text, c.created
	FROM comments AS c JOIN users AS a ON c.author_id = a.id`

// Comments получает все комментарии к новости, старые первыми.
func (p *Postgres) Comments(ctx context.Context, articleID int64) ([]domain.Comment, error) {
	stmt := commentColumns + ` WHERE c.news_id = $1 ORDER BY c.created ASC, c.id ASC;`

	rows, err := p.db.Query(ctx, stmt, articleID)
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
func (p *Postgres) Comment(ctx context.Context, id int64) (domain.Comment, error) {
	var c domain.Comment
	err := p.db.QueryRow(ctx, commentColumns+` WHERE c.id = $1;`, id).Scan(
		&c.ID, &c.Author.ID, &c.Author.Name,
		&c.ArticleID, &c.Text, &c.Created)
	return c, notFound(err)
}

// CountComments возвращает общее количество комментариев.
func (p *Postgres) CountComments(ctx context.Context) (int, error) {
	var n int
	return n, p.db.QueryRow(ctx, `SELECT COUNT(id) FROM comments;`).Scan(&n)
}

// CreateComment создает комментарий к новости.
func (p *Postgres) CreateComment(ctx context.Context, c *domain.Comment) (int64, error) {
	c.Stamp(time.Now())

	stmt := `
		INSERT INTO comments(news_id, author_id, text, created)
		VALUES ($1, $2, $3, $4)
		RETURNING id;`

	err := p.db.QueryRow(ctx, stmt, c.ArticleID, c.Author.ID, c.Text, c.Created).Scan(&c.ID)
	return c.ID, constraint(err)
}

// UpdateComment заменяет текст комментария.
func (p *Postgres) UpdateComment(ctx context.Context, id int64, text string) error {
	return p.execOne(ctx, `UPDATE comments SET text = $1 WHERE id = $2;`, text, id)
}

// DeleteComment удаляет комментарий.
func (p *Postgres) DeleteComment(ctx context.Context, id int64) error {
	return p.execOne(ctx, `DELETE FROM comments WHERE id = $1;`, id)
}

// CreateUser регистрирует пользователя.
func (p *Postgres) CreateUser(ctx context.Context, u *domain.User) (int64, error) {
	stmt := `
		INSERT INTO users(username, password_hash, is_admin)
		VALUES ($1, $2, $3)
		RETURNING id;`

	err := p.db.QueryRow(ctx, stmt, u.Username, u.PasswordHash, u.Admin).Scan(&u.ID)
	return u.ID, constraint(err)
}

// User находит пользователя по id.
func (p *Postgres) User(ctx context.Context, id int64) (domain.User, error) {
	return p.user(ctx, `SELECT id, username, password_hash, is_admin FROM users WHERE id = $1;`, id)
}

// UserByName находит пользователя по имени.
func (p *Postgres) UserByName(ctx context.Context, username string) (domain.User, error) {
	return p.user(ctx, `SELECT id, username, password_hash, is_admin FROM users WHERE username = $1;`, username)
}

func (p *Postgres) user(ctx context.Context, stmt string, arg any) (domain.User, error) {
	var u domain.User
	err := p.db.QueryRow(ctx, stmt, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Admin)
	return u, notFound(err)
}

// execOne выполняет запрос, который должен затронуть
// ровно одну строку.
func (p *Postgres) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := p.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// exec вспомогательная функция, выполняет
// Exec() в транзакции
func (p *Postgres) exec(ctx context.Context, sql string, args ...any) error {
	return p.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	})
}

func notFound(err error) error {
	if errors.Is(err, ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// constraint переводит ошибки ограничений PostgreSQL в ошибки domain.
func constraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}
