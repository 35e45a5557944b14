package domain

import (
	"context"
	"time"
)

//go:generate mockgen -source=./comment.go -destination=./mocks/comment.mock.go -package=domainmocks

// Article - статья, к которой привязана ветка комментариев
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment представляет сохраненный комментарий.
// Поля автора равны nil, если аккаунт удален.
type Comment struct {
	ID          string  `json:"id"`
	ArticleID   string  `json:"article_id"`
	AuthorID    *string `json:"author_id,omitempty"`
	AuthorName  *string `json:"author_name,omitempty"`
	AuthorImage *string `json:"author_image,omitempty"`
	Content     string  `json:"content"`
	IsEdited    bool    `json:"is_edited"`
	// AncestorChain - id от корня ветки до непосредственного родителя
	AncestorChain []string  `json:"ancestor_chain"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ParentID возвращает id непосредственного родителя, "" для корневых комментариев
func (c *Comment) ParentID() string {
	if len(c.AncestorChain) == 0 {
		return ""
	}
	return c.AncestorChain[len(c.AncestorChain)-1]
}

// Order задает порядок корневых веток по времени создания
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ThreadFilter содержит параметры пагинации корневых веток статьи
type ThreadFilter struct {
	Page     int
	PageSize int
	Order    Order
}

// ArticleRepository определяет интерфейс для поиска статей
type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*Article, error)
}

// CommentRepository определяет интерфейс для работы с комментариями
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	GetByID(ctx context.Context, id string) (*Comment, error)
	// ListByArticle возвращает все комментарии статьи в порядке создания
	ListByArticle(ctx context.Context, articleID string) ([]Comment, error)
	// UpdateContent сохраняет новый текст и помечает комментарий как отредактированный
	UpdateContent(ctx context.Context, id, content string) (*Comment, error)
	// Delete удаляет комментарий вместе со всеми ответами и возвращает число удаленных строк
	Delete(ctx context.Context, id string) (int64, error)
}

// ThreadCache хранит плоский снимок комментариев статьи
type ThreadCache interface {
	// Get возвращает ErrCacheMiss, если снимка нет
	Get(ctx context.Context, articleID string) ([]Comment, error)
	Set(ctx context.Context, articleID string, comments []Comment) error
	// Update атомарно перезаписывает снимок. Если снимка нет,
	// возвращает ErrCacheMiss и не вызывает fn.
	Update(ctx context.Context, articleID string, fn func([]Comment) ([]Comment, error)) error
	Invalidate(ctx context.Context, articleID string) error
}
