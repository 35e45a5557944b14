package domain

import "errors"

// Ошибки доменного слоя
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidParent   = errors.New("invalid parent comment")
	ErrEmptyContent    = errors.New("comment content cannot be empty")
	ErrContentTooLong  = errors.New("comment content is too long")
	ErrCacheMiss       = errors.New("thread cache miss")
)
