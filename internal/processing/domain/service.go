package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
)

// Service drives a document through extraction and, for invoices, validation.
type Service interface {
	Run(ctx context.Context, documentID snowflake.ID) (*documentdomain.Document, error)
	Retry(ctx context.Context, documentID snowflake.ID) (*documentdomain.Document, error)
	Validate(ctx context.Context, documentID snowflake.ID) (validationdomain.Report, error)
	Stats(ctx context.Context, userID string) (documentdomain.StatusCounts, error)
	ListAttempts(ctx context.Context, documentID snowflake.ID, limit int) ([]documentdomain.ProcessingAttempt, error)
}

const (
	DefaultAttemptLimit = 20
	MaxAttemptLimit     = 100
)

var (
	ErrNotRetryable = errors.New("document_not_retryable")
	ErrNotProcessed = errors.New("document_not_processed")
)
