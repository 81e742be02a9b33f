package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/pkg/db/option"
	"gorm.io/gorm"
)

// Repository persists documents, line items and attempts. Every call is
// scoped to the tenant carried on ctx.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Document, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, doc *Document) error
	UpdateProcessedData(ctx context.Context, db *gorm.DB, doc *Document) error
	CountByStatus(ctx context.Context, db *gorm.DB, userID string) (StatusCounts, error)

	ListLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]LineItem, error)
	ReplaceLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID, items []LineItem) error

	MaxAttemptNumber(ctx context.Context, db *gorm.DB, documentID snowflake.ID) (int, error)
	InsertAttempt(ctx context.Context, db *gorm.DB, attempt *ProcessingAttempt) error
	CompleteAttempt(ctx context.Context, db *gorm.DB, attempt *ProcessingAttempt) error
	ListAttempts(ctx context.Context, db *gorm.DB, documentID snowflake.ID, opts ...option.QueryOption) ([]ProcessingAttempt, error)
}

var (
	ErrTenantRequired   = errors.New("tenant_required")
	ErrNotFound         = errors.New("document_not_found")
	ErrInvalidID        = errors.New("invalid_document_id")
	ErrAttemptFinalized = errors.New("attempt_already_finalized")
)

// ParseID parses a snowflake document ID.
func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}
