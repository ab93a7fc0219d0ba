// пакет listing отдает списки новостей и комментариев.
package listing

import (
	"context"
	"fmt"

	"github.com/rtemka/newsroom/domain"
)

// Repository - то, что нужно сервису от хранилища.
type Repository interface {
	Articles(ctx context.Context, limit, offset int) ([]domain.Article, error)
	CountArticles(ctx context.Context) (int, error)
	Article(ctx context.Context, id int64) (domain.Article, error)
	Comments(ctx context.Context, articleID int64) ([]domain.Comment, error)
}

// Pagination - страница списка новостей.
type Pagination struct {
	TotalPages  int              `json:"total_pages"`
	PageSize    int              `json:"page_size"`
	CurrentPage int              `json:"page_number"`
	PageData    []domain.Article `json:"object_list"`
}

// Detail - новость вместе с комментариями.
type Detail struct {
	Article  domain.Article   `json:"news"`
	Comments []domain.Comment `json:"comments"`
}

// Service отдает упорядоченные списки.
type Service struct {
	repo     Repository
	pageSize int
}

// New возвращает [*Service]. Если pageSize < 1,
// используется [domain.PageSize].
func New(repo Repository, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = domain.PageSize
	}
	return &Service{repo: repo, pageSize: pageSize}
}

// PageSize возвращает размер страницы.
func (s *Service) PageSize() int { return s.pageSize }

// Page возвращает страницу новостей, свежие первыми.
// Страницы нумеруются с 1.
func (s *Service) Page(ctx context.Context, page int) (Pagination, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.repo.CountArticles(ctx)
	if err != nil {
		return Pagination{}, fmt.Errorf("count articles: %w", err)
	}

	limit, offset := calcLimitOffset(page, s.pageSize)
	articles, err := s.repo.Articles(ctx, limit, offset)
	if err != nil {
		return Pagination{}, fmt.Errorf("list articles: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}

	return Pagination{
		TotalPages:  totalPages(total, s.pageSize),
		PageSize:    s.pageSize,
		CurrentPage: page,
		PageData:    articles,
	}, nil
}

// Detail возвращает новость и комментарии к ней, старые первыми.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	a, err := s.repo.Article(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	coms, err := s.repo.Comments(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list comments: %w", err)
	}
	if coms == nil {
		coms = []domain.Comment{}
	}

	return Detail{Article: a, Comments: coms}, nil
}

func calcLimitOffset(pageNum, pageSize int) (int, int) {
	return pageSize, (pageNum - 1) * pageSize
}

func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}
