package domain

import (
	"context"
	"errors"

	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
)

// Service runs one extraction attempt for a document. Extraction failures are
// recorded on the document and the attempt; the returned error only reports
// that the outcome could not be persisted.
type Service interface {
	Process(ctx context.Context, doc *documentdomain.Document) error
}

// ContentProvider fetches raw document bytes.
type ContentProvider interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Understanding turns a prompt and a document payload into free-form text.
type Understanding interface {
	Complete(ctx context.Context, prompt string, payload []byte, mimeType string) (string, error)
}

var (
	ErrRejected        = errors.New("extracted data validation failed")
	ErrAttemptConflict = errors.New("attempt_number_conflict")
)

const GenericDocumentType = "generic"
