package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
)

// commentColumns выбирает комментарий вместе с автором (автор может быть удален)
const commentColumns = `
	c.id, c.article_id, c.author_id, u.name, u.image,
	c.content, c.is_edited, c.ancestor_chain, c.created_at, c.updated_at
`

// PostgresRepository реализует ArticleRepository и CommentRepository для PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Connect открывает пул соединений и проверяет подключение
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Ping проверяет соединение с базой данных
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetArticle получает статью по ID
func (r *PostgresRepository) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	query := `
		SELECT id, title, created_at
		FROM articles
		WHERE id = $1
	`

	var article domain.Article
	err := r.pool.QueryRow(ctx, query, id).Scan(&article.ID, &article.Title, &article.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return &article, nil
}

// Create создает новый комментарий и заполняет время создания и данные автора
func (r *PostgresRepository) Create(ctx context.Context, comment *domain.Comment) error {
	query := `
		WITH inserted AS (
			INSERT INTO comments (id, article_id, author_id, content, ancestor_chain)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING author_id, created_at, updated_at
		)
		SELECT i.created_at, i.updated_at, u.name, u.image
		FROM inserted i
		LEFT JOIN users u ON u.id = i.author_id
	`

	chain := comment.AncestorChain
	if chain == nil {
		chain = []string{}
	}

	err := r.pool.QueryRow(ctx, query,
		comment.ID,
		comment.ArticleID,
		comment.AuthorID,
		comment.Content,
		chain,
	).Scan(
		&comment.CreatedAt,
		&comment.UpdatedAt,
		&comment.AuthorName,
		&comment.AuthorImage,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	comment.AncestorChain = chain
	return nil
}

// GetByID получает комментарий по ID
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	query := `SELECT ` + commentColumns + `
		FROM comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`

	comment, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return comment, nil
}

// ListByArticle возвращает все комментарии статьи в порядке создания.
// Дерево собирается в пакете thread.
func (r *PostgresRepository) ListByArticle(ctx context.Context, articleID string) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + `
		FROM comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.article_id = $1
		ORDER BY c.created_at, c.id
	`

	rows, err := r.pool.Query(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return comments, nil
}

// UpdateContent заменяет текст и помечает комментарий как отредактированный
func (r *PostgresRepository) UpdateContent(ctx context.Context, id, content string) (*domain.Comment, error) {
	query := `
		WITH c AS (
			UPDATE comments
			SET content = $2, is_edited = TRUE, updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + commentColumns + `
		FROM c
		LEFT JOIN users u ON u.id = c.author_id
	`

	comment, err := scanComment(r.pool.QueryRow(ctx, query, id, content))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return comment, nil
}

// Delete удаляет комментарий и все вложенные ответы
func (r *PostgresRepository) Delete(ctx context.Context, id string) (int64, error) {
	query := `
		DELETE FROM comments
		WHERE id = $1 OR $1 = ANY(ancestor_chain)
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrCommentNotFound
	}

	return tag.RowsAffected(), nil
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var comment domain.Comment
	err := row.Scan(
		&comment.ID,
		&comment.ArticleID,
		&comment.AuthorID,
		&comment.AuthorName,
		&comment.AuthorImage,
		&comment.Content,
		&comment.IsEdited,
		&comment.AncestorChain,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if comment.AncestorChain == nil {
		comment.AncestorChain = []string{}
	}
	return &comment, nil
}
