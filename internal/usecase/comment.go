package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ecodeclub/ekit/slice"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
	"github.com/Pulth-Team/Pulth-sub000/internal/metrics"
	"github.com/Pulth-Team/Pulth-sub000/internal/thread"
)

const (
	defaultPage             = 1
	defaultPageSize         = 50
	maxPageSize             = 100
	defaultMaxContentLength = 10000
)

// errMalformedSnapshot: снимок с некорректными записями не патчится,
// иначе они пропадут при пересборке из Records.
var errMalformedSnapshot = errors.New("thread snapshot holds malformed records")

// CommentUseCase содержит бизнес-логику для работы с комментариями
type CommentUseCase struct {
	repo     domain.CommentRepository
	articles domain.ArticleRepository
	// cache необязателен, nil отключает снимки веток
	cache   domain.ThreadCache
	logger  *zap.Logger
	metrics *metrics.Metrics

	maxContentLength int
}

type Option func(uc *CommentUseCase)

// WithMaxContentLength ограничивает длину комментария в символах
func WithMaxContentLength(n int) Option {
	return func(uc *CommentUseCase) {
		if n > 0 {
			uc.maxContentLength = n
		}
	}
}

// NewCommentUseCase создает новый экземпляр CommentUseCase
func NewCommentUseCase(
	repo domain.CommentRepository,
	articles domain.ArticleRepository,
	cache domain.ThreadCache,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *CommentUseCase {
	uc := &CommentUseCase{
		repo:             repo,
		articles:         articles,
		cache:            cache,
		logger:           logger,
		metrics:          m,
		maxContentLength: defaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateCommentInput описывает новый комментарий. ParentID == nil начинает новую ветку.
type CreateCommentInput struct {
	ArticleID string
	ParentID  *string
	AuthorID  *string
	Content   string
}

// ThreadPage - страница корневых веток статьи
type ThreadPage struct {
	Forest *thread.Forest
	// Roots - корневые узлы на этой странице
	Roots       []*thread.Node
	Total       int
	Page        int
	PageSize    int
	Order       domain.Order
	Diagnostics []error
}

// Create создает комментарий и добавляет его в снимок ветки в кэше
func (uc *CommentUseCase) Create(ctx context.Context, in CreateCommentInput) (*domain.Comment, error) {
	content, err := uc.validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	if _, err := uc.articles.GetArticle(ctx, in.ArticleID); err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	comment := &domain.Comment{
		ID:            uuid.NewString(),
		ArticleID:     in.ArticleID,
		AuthorID:      in.AuthorID,
		Content:       content,
		AncestorChain: []string{},
	}

	if in.ParentID != nil {
		parent, err := uc.repo.GetByID(ctx, *in.ParentID)
		if errors.Is(err, domain.ErrCommentNotFound) {
			return nil, domain.ErrInvalidParent
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get parent comment: %w", err)
		}
		if parent.ArticleID != in.ArticleID {
			return nil, domain.ErrInvalidParent
		}
		comment.AncestorChain = append(slices.Clone(parent.AncestorChain), parent.ID)
	}

	if err := uc.repo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	uc.patchThread(ctx, comment.ArticleID, "insert", func(f *thread.Forest) error {
		return f.Insert(toRecord(*comment))
	})

	return comment, nil
}

// Edit заменяет текст комментария и помечает его как отредактированный
func (uc *CommentUseCase) Edit(ctx context.Context, id, content string) (*domain.Comment, error) {
	content, err := uc.validateContent(content)
	if err != nil {
		return nil, err
	}

	comment, err := uc.repo.UpdateContent(ctx, id, content)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	uc.patchThread(ctx, comment.ArticleID, "edit", func(f *thread.Forest) error {
		return f.Edit(id, content)
	}, *comment)

	return comment, nil
}

// Delete удаляет комментарий и все поддерево ответов
func (uc *CommentUseCase) Delete(ctx context.Context, id string) (int64, error) {
	comment, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to get comment: %w", err)
	}

	removed, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comment: %w", err)
	}

	uc.patchThread(ctx, comment.ArticleID, "remove", func(f *thread.Forest) error {
		_, err := f.Remove(id)
		return err
	})

	return removed, nil
}

// GetThread возвращает страницу веток комментариев статьи
func (uc *CommentUseCase) GetThread(ctx context.Context, articleID string, filter domain.ThreadFilter) (*ThreadPage, error) {
	if filter.Page <= 0 {
		filter.Page = defaultPage
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.Order != domain.OrderDesc {
		filter.Order = domain.OrderAsc
	}

	forest, diagnostics, err := uc.LoadForest(ctx, articleID)
	if err != nil {
		return nil, err
	}

	roots := forest.Roots()
	if filter.Order == domain.OrderDesc {
		slices.Reverse(roots)
	}

	total := len(roots)
	pages := (total + filter.PageSize - 1) / filter.PageSize
	if filter.Page > pages {
		roots = []*thread.Node{}
	} else {
		start := (filter.Page - 1) * filter.PageSize
		roots = roots[start:min(start+filter.PageSize, total)]
	}

	return &ThreadPage{
		Forest:      forest,
		Roots:       roots,
		Total:       total,
		Page:        filter.Page,
		PageSize:    filter.PageSize,
		Order:       filter.Order,
		Diagnostics: diagnostics,
	}, nil
}

// LoadForest строит полное дерево комментариев статьи.
// В diagnostics попадают записи, которые не удалось разместить.
func (uc *CommentUseCase) LoadForest(ctx context.Context, articleID string) (*thread.Forest, []error, error) {
	var (
		eg       errgroup.Group
		comments []domain.Comment
	)

	eg.Go(func() error {
		if _, err := uc.articles.GetArticle(ctx, articleID); err != nil {
			return fmt.Errorf("failed to get article: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		var err error
		comments, err = uc.loadComments(ctx, articleID)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	forest, diagnostics := thread.Build(toRecords(comments))
	uc.reportDiagnostics(articleID, diagnostics)
	return forest, diagnostics, nil
}

// Depth возвращает глубину вложенности комментария в ветке
func (uc *CommentUseCase) Depth(ctx context.Context, articleID, id string) (int, error) {
	forest, _, err := uc.LoadForest(ctx, articleID)
	if err != nil {
		return 0, err
	}
	depth, err := forest.DepthOf(id)
	if errors.Is(err, thread.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", domain.ErrCommentNotFound, id)
	}
	return depth, err
}

func (uc *CommentUseCase) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > uc.maxContentLength {
		return "", domain.ErrContentTooLong
	}
	return content, nil
}

func (uc *CommentUseCase) loadComments(ctx context.Context, articleID string) ([]domain.Comment, error) {
	if uc.cache != nil {
		comments, err := uc.cache.Get(ctx, articleID)
		if err == nil {
			uc.metrics.CacheLookup(true)
			return comments, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			uc.logger.Warn("thread cache read failed", zap.String("article_id", articleID), zap.Error(err))
		}
		uc.metrics.CacheLookup(false)
	}

	comments, err := uc.repo.ListByArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, articleID, comments); err != nil {
			uc.logger.Warn("thread cache write failed", zap.String("article_id", articleID), zap.Error(err))
		}
	}
	return comments, nil
}

// patchThread применяет изменение одного комментария к снимку в кэше через дерево.
// Записи из overrides заменяют совпадающие по id. Снимок, который не удалось
// пропатчить, удаляется: источник истины - база данных.
func (uc *CommentUseCase) patchThread(ctx context.Context, articleID, op string, apply func(f *thread.Forest) error, overrides ...domain.Comment) {
	if uc.cache == nil {
		return
	}

	err := uc.cache.Update(ctx, articleID, func(comments []domain.Comment) ([]domain.Comment, error) {
		forest, diagnostics := thread.Build(toRecords(comments))
		if len(diagnostics) > 0 {
			return nil, fmt.Errorf("%w: %d malformed records", errMalformedSnapshot, len(diagnostics))
		}
		if err := apply(forest); err != nil {
			return nil, err
		}
		patched := fromRecords(articleID, forest.Records())
		for _, o := range overrides {
			if i := slices.IndexFunc(patched, func(c domain.Comment) bool { return c.ID == o.ID }); i >= 0 {
				patched[i] = o
			}
		}
		return patched, nil
	})
	if err == nil || errors.Is(err, domain.ErrCacheMiss) {
		return
	}

	uc.logger.Warn("thread cache patch failed, dropping snapshot",
		zap.String("article_id", articleID),
		zap.String("op", op),
		zap.Error(err),
	)
	if err := uc.cache.Invalidate(ctx, articleID); err != nil {
		uc.logger.Error("thread cache invalidate failed", zap.String("article_id", articleID), zap.Error(err))
	}
}

func (uc *CommentUseCase) reportDiagnostics(articleID string, diagnostics []error) {
	for _, d := range diagnostics {
		kind := diagnosticKind(d)
		uc.metrics.ThreadDiagnostic(kind)
		uc.logger.Warn("malformed comment record skipped",
			zap.String("article_id", articleID),
			zap.String("kind", kind),
			zap.Error(d),
		)
	}
}

func diagnosticKind(err error) string {
	switch {
	case errors.Is(err, thread.ErrCycle):
		return "cycle"
	case errors.Is(err, thread.ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, thread.ErrInvalidRecord):
		return "invalid_record"
	default:
		return "unknown"
	}
}

func toRecord(c domain.Comment) thread.Record {
	return thread.Record{
		ID:            c.ID,
		Content:       c.Content,
		IsEdited:      c.IsEdited,
		AuthorID:      c.AuthorID,
		AuthorName:    c.AuthorName,
		AuthorImage:   c.AuthorImage,
		AncestorChain: c.AncestorChain,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toRecords(comments []domain.Comment) []thread.Record {
	return slice.Map(comments, func(_ int, src domain.Comment) thread.Record {
		return toRecord(src)
	})
}

func fromRecords(articleID string, records []thread.Record) []domain.Comment {
	return slice.Map(records, func(_ int, src thread.Record) domain.Comment {
		return domain.Comment{
			ID:            src.ID,
			ArticleID:     articleID,
			AuthorID:      src.AuthorID,
			AuthorName:    src.AuthorName,
			AuthorImage:   src.AuthorImage,
			Content:       src.Content,
			IsEdited:      src.IsEdited,
			AncestorChain: src.AncestorChain,
			CreatedAt:     src.CreatedAt,
			UpdatedAt:     src.UpdatedAt,
		}
	})
}
