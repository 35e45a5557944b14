package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pulth-Team/Pulth-sub000/internal/domain"
	"github.com/Pulth-Team/Pulth-sub000/internal/thread"
	"github.com/Pulth-Team/Pulth-sub000/internal/usecase"
)

// CommentHandler обрабатывает HTTP запросы для комментариев
type CommentHandler struct {
	useCase       *usecase.CommentUseCase
	logger        *zap.Logger
	maxReplyDepth int
}

// NewCommentHandler создает новый экземпляр CommentHandler.
// Узлы на глубине maxReplyDepth и глубже отдаются без возможности ответа.
func NewCommentHandler(useCase *usecase.CommentUseCase, logger *zap.Logger, maxReplyDepth int) *CommentHandler {
	return &CommentHandler{useCase: useCase, logger: logger, maxReplyDepth: maxReplyDepth}
}

// RegisterRoutes регистрирует маршруты комментариев
func (h *CommentHandler) RegisterRoutes(r gin.IRouter) {
	articles := r.Group("/articles/:articleID/comments")
	articles.POST("", h.Create)
	articles.GET("", h.GetThread)
	articles.GET("/:id/depth", h.Depth)

	comments := r.Group("/comments")
	comments.PATCH("/:id", h.Edit)
	comments.DELETE("/:id", h.Delete)
}

// CreateCommentRequest DTO для создания комментария
type CreateCommentRequest struct {
	ParentID *string `json:"parent_id"`
	AuthorID *string `json:"author_id"`
	Content  string  `json:"content"`
}

// EditCommentRequest DTO для редактирования комментария
type EditCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse DTO для ответа с комментарием
type CommentResponse struct {
	ID            string   `json:"id"`
	ArticleID     string   `json:"article_id"`
	ParentID      *string  `json:"parent_id,omitempty"`
	AuthorID      *string  `json:"author_id,omitempty"`
	AuthorName    *string  `json:"author_name,omitempty"`
	AuthorImage   *string  `json:"author_image,omitempty"`
	Content       string   `json:"content"`
	IsEdited      bool     `json:"is_edited"`
	AncestorChain []string `json:"ancestor_chain"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// ThreadNodeResponse DTO для узла ветки. Comment отсутствует у заглушек
// комментариев, на которые есть ссылки, но которых нет в базе.
type ThreadNodeResponse struct {
	ID       string               `json:"id"`
	Comment  *CommentResponse     `json:"comment,omitempty"`
	Resolved bool                 `json:"resolved"`
	Depth    int                  `json:"depth"`
	CanReply bool                 `json:"can_reply"`
	Children []ThreadNodeResponse `json:"children"`
}

// ThreadResponse DTO для веток комментариев с пагинацией
type ThreadResponse struct {
	Comments    []ThreadNodeResponse `json:"comments"`
	Total       int                  `json:"total"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
	Order       string               `json:"order"`
	Diagnostics []string             `json:"diagnostics"`
}

// Create обрабатывает POST /articles/:articleID/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}

	comment, err := h.useCase.Create(c.Request.Context(), usecase.CreateCommentInput{
		ArticleID: c.Param("articleID"),
		ParentID:  req.ParentID,
		AuthorID:  req.AuthorID,
		Content:   req.Content,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCommentResponse(*comment))
}

// GetThread обрабатывает GET /articles/:articleID/comments
func (h *CommentHandler) GetThread(c *gin.Context) {
	articleID := c.Param("articleID")
	filter := domain.ThreadFilter{
		Page:     positiveQuery(c, "page"),
		PageSize: positiveQuery(c, "page_size"),
	}
	if order := domain.Order(c.Query("order")); order == domain.OrderAsc || order == domain.OrderDesc {
		filter.Order = order
	}

	page, err := h.useCase.GetThread(c.Request.Context(), articleID, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	nodes := make([]ThreadNodeResponse, 0, len(page.Roots))
	for _, root := range page.Roots {
		nodes = append(nodes, h.renderNode(page.Forest, root, 0, articleID))
	}

	c.JSON(http.StatusOK, ThreadResponse{
		Comments: nodes,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Order:    string(page.Order),
		Diagnostics: slice.Map(page.Diagnostics, func(_ int, err error) string {
			return err.Error()
		}),
	})
}

// Edit обрабатывает PATCH /comments/:id
func (h *CommentHandler) Edit(c *gin.Context) {
	var req EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comment, err := h.useCase.Edit(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommentResponse(*comment))
}

// Delete обрабатывает DELETE /comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	removed, err := h.useCase.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Depth обрабатывает GET /articles/:articleID/comments/:id/depth
func (h *CommentHandler) Depth(c *gin.Context) {
	depth, err := h.useCase.Depth(c.Request.Context(), c.Param("articleID"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"depth": depth})
}

func (h *CommentHandler) renderNode(f *thread.Forest, n *thread.Node, depth int, articleID string) ThreadNodeResponse {
	res := ThreadNodeResponse{
		ID:       n.ID(),
		Resolved: n.Resolved(),
		Depth:    depth,
		CanReply: n.Resolved() && depth < h.maxReplyDepth,
		Children: make([]ThreadNodeResponse, 0, n.NumChildren()),
	}
	if rec, ok := n.Payload(); ok {
		comment := recordResponse(articleID, rec)
		res.Comment = &comment
	}
	for _, child := range f.Children(n.ID()) {
		res.Children = append(res.Children, h.renderNode(f, child, depth+1, articleID))
	}
	return res
}

func (h *CommentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrContentTooLong),
		errors.Is(err, domain.ErrInvalidParent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrCommentNotFound.Error()})
	case errors.Is(err, domain.ErrArticleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrArticleNotFound.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// positiveQuery возвращает 0 для отсутствующих и некорректных значений,
// тогда usecase подставляет значения по умолчанию.
func positiveQuery(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

func toCommentResponse(comment domain.Comment) CommentResponse {
	res := CommentResponse{
		ID:            comment.ID,
		ArticleID:     comment.ArticleID,
		AuthorID:      comment.AuthorID,
		AuthorName:    comment.AuthorName,
		AuthorImage:   comment.AuthorImage,
		Content:       comment.Content,
		IsEdited:      comment.IsEdited,
		AncestorChain: comment.AncestorChain,
		CreatedAt:     comment.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     comment.UpdatedAt.Format(time.RFC3339),
	}
	if res.AncestorChain == nil {
		res.AncestorChain = []string{}
	}
	if parentID := comment.ParentID(); parentID != "" {
		res.ParentID = &parentID
	}
	return res
}

func recordResponse(articleID string, rec thread.Record) CommentResponse {
	return toCommentResponse(domain.Comment{
		ID:            rec.ID,
		ArticleID:     articleID,
		AuthorID:      rec.AuthorID,
		AuthorName:    rec.AuthorName,
		AuthorImage:   rec.AuthorImage,
		Content:       rec.Content,
		IsEdited:      rec.IsEdited,
		AncestorChain: rec.AncestorChain,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	})
}
