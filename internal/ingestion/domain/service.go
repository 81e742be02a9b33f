package domain

import (
	"context"
	"errors"

	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
)

// Service creates documents from uploads and inbound email attachments.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*documentdomain.Document, error)
	IngestEmail(ctx context.Context, msg InboundMessage) (IngestResult, error)
	GetSettings(ctx context.Context, userID string) (*EmailSettings, error)
	SaveSettings(ctx context.Context, settings *EmailSettings) error
}

var (
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrUnsupportedFile     = errors.New("unsupported_file_type")
	ErrFileTooLarge        = errors.New("file_too_large")
	ErrTenantUnresolved    = errors.New("tenant_unresolved")
	ErrUnknownSender       = errors.New("unknown_sender")
	ErrAttachmentsDisabled = errors.New("email_attachments_disabled")
	ErrSenderNotAllowed    = errors.New("sender_not_allowed")
)
