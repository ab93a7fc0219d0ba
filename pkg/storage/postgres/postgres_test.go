package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/joho/godotenv"
	"github.com/rtemka/newsroom/domain"
)

var tdb *Postgres // тестовая БД

const dbEnv = "TEST_DB_URL"

// id пользователей из testdata/testdb.sql
const authorID = 1

func restoreTestDB(testdb *Postgres) error {

	b, err := os.ReadFile(filepath.Join("testdata", "testdb.sql"))
	if err != nil {
		return err
	}

	return testdb.exec(context.Background(), string(b))
}

func TestMain(m *testing.M) {
	_ = godotenv.Load(".env") // загружаем переменные окружения из файла
	connstr, ok := os.LookupEnv(dbEnv)
	if !ok {
		os.Exit(m.Run()) // тест будет пропущен
	}

	var err error
	tdb, err = New(connstr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := tdb.Migrate(context.Background()); err != nil {
		tdb.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()
	tdb.Close()
	os.Exit(code)
}

func TestPostgres(t *testing.T) {
	if _, ok := os.LookupEnv(dbEnv); !ok {
		t.Skipf("environment variable %s not set, skipping tests", dbEnv)
	}
	if err := restoreTestDB(tdb); err != nil {
		t.Fatalf("restoreTestDB() error = %v", err)
	}
	ctx := context.Background()

	var articles []domain.Article
	for i := 0; i < domain.PageSize+1; i++ {
		articles = append(articles, domain.Article{
			Title:   fmt.Sprintf("Новость %d", i),
			Text:    "Просто текст.",
			PubDate: int64(1659947255 - i*86400),
		})
	}

	t.Run("AddArticles()", func(t *testing.T) {
		if err := tdb.AddArticles(ctx, articles); err != nil {
			t.Fatalf("AddArticles() error = %v", err)
		}

		got, err := tdb.Articles(ctx, domain.PageSize, 0)
		if err != nil {
			t.Fatalf("Articles() error = %v", err)
		}

		if diff := cmp.Diff(articles[:domain.PageSize], got); diff != "" {
			t.Fatalf("Articles() mismatch (-want +got):\n%s", diff)
		}

		n, err := tdb.CountArticles(ctx)
		if err != nil {
			t.Fatalf("CountArticles() error = %v", err)
		}
		if n != len(articles) {
			t.Fatalf("CountArticles() got = %d, want = %d", n, len(articles))
		}
	})

	t.Run("Article()", func(t *testing.T) {
		want := articles[0]

		got, err := tdb.Article(ctx, want.ID)
		if err != nil {
			t.Fatalf("Article() error = %v", err)
		}
		if got != want {
			t.Fatalf("Article() got = %v, want = %v", got, want)
		}

		_, err = tdb.Article(ctx, -1)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Article() error = %v, want = %v", err, domain.ErrNotFound)
		}
	})

	t.Run("Comments()", func(t *testing.T) {
		want := []domain.Comment{
			{ArticleID: articles[0].ID, Text: "Текст 0", Created: 100, Author: domain.Author{ID: authorID, Name: "Автор"}},
			{ArticleID: articles[0].ID, Text: "Текст 1", Created: 200, Author: domain.Author{ID: authorID, Name: "Автор"}},
		}
		for i := len(want) - 1; i >= 0; i-- {
			if _, err := tdb.CreateComment(ctx, &want[i]); err != nil {
				t.Fatalf("CreateComment() error = %v", err)
			}
		}

		got, err := tdb.Comments(ctx, articles[0].ID)
		if err != nil {
			t.Fatalf("Comments() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Comments() mismatch (-want +got):\n%s", diff)
		}

		if err := tdb.UpdateComment(ctx, want[0].ID, "Новый текст"); err != nil {
			t.Fatalf("UpdateComment() error = %v", err)
		}
		c, err := tdb.Comment(ctx, want[0].ID)
		if err != nil {
			t.Fatalf("Comment() error = %v", err)
		}
		if c.Text != "Новый текст" {
			t.Fatalf("UpdateComment() got = %q, want = %q", c.Text, "Новый текст")
		}

		if err := tdb.DeleteComment(ctx, want[0].ID); err != nil {
			t.Fatalf("DeleteComment() error = %v", err)
		}
		if err := tdb.DeleteComment(ctx, want[0].ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("DeleteComment() error = %v, want = %v", err, domain.ErrNotFound)
		}
	})

	t.Run("DeleteArticle()_cascade", func(t *testing.T) {
		if err := tdb.DeleteArticle(ctx, articles[0].ID); err != nil {
			t.Fatalf("DeleteArticle() error = %v", err)
		}
		n, err := tdb.CountComments(ctx)
		if err != nil {
			t.Fatalf("CountComments() error = %v", err)
		}
		if n != 0 {
			t.Fatalf("CountComments() got = %d, want = %d", n, 0)
		}
	})

	t.Run("Users()", func(t *testing.T) {
		u := domain.User{Username: "alice", PasswordHash: "hash"}
		if _, err := tdb.CreateUser(ctx, &u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		got, err := tdb.UserByName(ctx, "alice")
		if err != nil {
			t.Fatalf("UserByName() error = %v", err)
		}
		if got != u {
			t.Fatalf("UserByName() got = %v, want = %v", got, u)
		}
		if _, err := tdb.CreateUser(ctx, &domain.User{Username: "alice"}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("CreateUser() error = %v, want = %v", err, domain.ErrConflict)
		}
	})
}
