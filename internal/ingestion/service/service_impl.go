package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/docflow/internal/config"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	ingestiondomain "github.com/smallbiznis/docflow/internal/ingestion/domain"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	processingdomain "github.com/smallbiznis/docflow/internal/processing/domain"
	"github.com/smallbiznis/docflow/internal/providers/storage"
	"github.com/smallbiznis/docflow/pkg/repository"
	"github.com/smallbiznis/docflow/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	uploadPrefix     = "documents"
	attachmentPrefix = "email-attachments"

	sourceUpload = "upload"
	sourceEmail  = "email"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Config     config.Config
	Repo       documentdomain.Repository
	Storage    storage.Provider
	Processing processingdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	maxBytes   int64
	repo       documentdomain.Repository
	settings   repository.Repository[ingestiondomain.EmailSettings]
	storage    storage.Provider
	processing processingdomain.Service
	metrics    *metrics.Metrics
	validate   *validator.Validate
}

func New(p Params) ingestiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ingestion.service"),
		genID:      p.GenID,
		maxBytes:   p.Config.Ingest.MaxUploadBytes,
		repo:       p.Repo,
		settings:   repository.ProvideStore[ingestiondomain.EmailSettings](p.DB),
		storage:    p.Storage,
		processing: p.Processing,
		metrics:    p.Metrics,
		validate:   validator.New(),
	}
}

// Upload stores the file and records a pending document.
func (s *Service) Upload(ctx context.Context, req ingestiondomain.UploadRequest) (*documentdomain.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ingestiondomain.ErrInvalidRequest, err.Error())
	}
	if s.tooLarge(req.Content) {
		return nil, ingestiondomain.ErrFileTooLarge
	}

	contentType := normalizeContentType(mimetype.Detect(req.Content).String())
	if !documentMimeTypes[contentType] {
		return nil, ingestiondomain.ErrUnsupportedFile
	}

	doc, err := s.store(ctx, storedFile{
		userID:      req.UserID,
		title:       strings.TrimSpace(req.Title),
		docType:     req.Type,
		status:      documentdomain.StatusPending,
		prefix:      uploadPrefix,
		filename:    req.Filename,
		contentType: contentType,
		content:     req.Content,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordIngestedDocument(ctx, sourceUpload, string(doc.Type))
	logger.WithContext(ctx, s.log).Info("document uploaded",
		zap.String("document_id", doc.IDString()),
		zap.String("document_type", string(doc.Type)),
		zap.Int64("file_size", doc.FileSize),
	)
	return doc, nil
}

// IngestEmail turns the document attachments of an inbound message into
// documents for the sender. Attachment failures are logged and skipped.
func (s *Service) IngestEmail(ctx context.Context, msg ingestiondomain.InboundMessage) (ingestiondomain.IngestResult, error) {
	var result ingestiondomain.IngestResult
	if err := s.validate.Struct(msg); err != nil {
		return result, fmt.Errorf("%w: %s", ingestiondomain.ErrInvalidRequest, err.Error())
	}

	sender := senderAddress(msg.From)
	tenantID, ok := tenantFromAddresses(sender, msg.To)
	if !ok {
		logger.WithContext(ctx, s.log).Warn("could not determine tenant for email")
		return result, ingestiondomain.ErrTenantUnresolved
	}
	ctx = tenantctx.WithTenantID(ctx, tenantID)
	log := logger.WithContext(ctx, s.log)

	settings, err := s.settings.FindOne(ctx, &ingestiondomain.EmailSettings{TenantID: tenantID, UserEmail: sender})
	if err != nil {
		return result, err
	}
	if settings == nil {
		log.Warn("no user for email sender")
		return result, ingestiondomain.ErrUnknownSender
	}
	if !settings.ProcessEmailAttachments {
		log.Info("email attachment processing disabled", zap.String("user_id", settings.UserID))
		return result, ingestiondomain.ErrAttachmentsDisabled
	}
	if !settings.IsSenderAllowed(sender) {
		log.Info("email sender not allowed", zap.String("user_id", settings.UserID))
		return result, ingestiondomain.ErrSenderNotAllowed
	}

	docType := documentTypeFromSubject(msg.Subject, settings.DefaultDocumentType)
	for _, attachment := range msg.Attachments {
		filename := sanitizeFilename(attachment.Filename)
		doc, err := s.ingestAttachment(ctx, settings, docType, filename, attachment)
		if err != nil {
			log.Error("failed to ingest email attachment",
				zap.String("filename", filename),
				zap.String("user_id", settings.UserID),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, filename)
			continue
		}
		if doc == nil {
			result.Skipped = append(result.Skipped, filename)
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	return result, nil
}

// ingestAttachment returns nil without error for non-document attachments.
func (s *Service) ingestAttachment(
	ctx context.Context,
	settings *ingestiondomain.EmailSettings,
	docType documentdomain.DocumentType,
	filename string,
	attachment ingestiondomain.Attachment,
) (*documentdomain.Document, error) {
	contentType := detectContentType(attachment.ContentType, attachment.Content)
	if !isDocumentFile(filename, contentType) {
		return nil, nil
	}
	if s.tooLarge(attachment.Content) {
		return nil, ingestiondomain.ErrFileTooLarge
	}

	status := documentdomain.StatusPending
	if settings.AutoProcessAttachments {
		status = documentdomain.StatusProcessing
	}
	doc, err := s.store(ctx, storedFile{
		userID:      settings.UserID,
		title:       filename,
		docType:     docType,
		status:      status,
		prefix:      attachmentPrefix,
		filename:    filename,
		contentType: contentType,
		content:     attachment.Content,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordIngestedDocument(ctx, sourceEmail, string(doc.Type))

	if settings.AutoProcessAttachments {
		processed, err := s.processing.Run(ctx, doc.ID)
		if err != nil {
			return doc, fmt.Errorf("process attachment: %w", err)
		}
		doc = processed
	}

	logger.WithContext(ctx, s.log).Info("email attachment ingested",
		zap.String("document_id", doc.IDString()),
		zap.String("user_id", settings.UserID),
		zap.String("filename", filename),
	)
	return doc, nil
}

func (s *Service) GetSettings(ctx context.Context, userID string) (*ingestiondomain.EmailSettings, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, documentdomain.ErrTenantRequired
	}
	settings, err := s.settings.FindOne(ctx, &ingestiondomain.EmailSettings{TenantID: tenantID, UserID: userID})
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return &ingestiondomain.EmailSettings{
			TenantID:               tenantID,
			UserID:                 userID,
			AutoProcessAttachments: true,
			DefaultDocumentType:    documentdomain.TypeInvoice,
		}, nil
	}
	return settings, nil
}

// SaveSettings creates or replaces the settings row for settings.UserID.
func (s *Service) SaveSettings(ctx context.Context, settings *ingestiondomain.EmailSettings) error {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return documentdomain.ErrTenantRequired
	}
	if strings.TrimSpace(settings.UserID) == "" || strings.TrimSpace(settings.UserEmail) == "" {
		return fmt.Errorf("%w: user_id and user_email are required", ingestiondomain.ErrInvalidRequest)
	}
	if settings.DefaultDocumentType == "" {
		settings.DefaultDocumentType = documentdomain.TypeInvoice
	}
	if _, ok := documentdomain.ParseDocumentType(string(settings.DefaultDocumentType)); !ok {
		return fmt.Errorf("%w: unknown default_document_type", ingestiondomain.ErrInvalidRequest)
	}
	settings.TenantID = tenantID
	settings.UserEmail = strings.ToLower(strings.TrimSpace(settings.UserEmail))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.settings.WithTrx(tx)
		existing, err := store.FindOne(ctx, &ingestiondomain.EmailSettings{TenantID: tenantID, UserID: settings.UserID})
		if err != nil {
			return err
		}
		if existing == nil {
			settings.ID = s.genID.Generate()
			return store.Create(ctx, settings)
		}
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
		return store.Update(ctx, existing.ID, map[string]any{
			"user_email":                settings.UserEmail,
			"process_email_attachments": settings.ProcessEmailAttachments,
			"auto_process_attachments":  settings.AutoProcessAttachments,
			"default_document_type":     settings.DefaultDocumentType,
			"allowed_senders":           settings.AllowedSenders,
			"blocked_senders":           settings.BlockedSenders,
		})
	})
}

type storedFile struct {
	userID      string
	title       string
	docType     documentdomain.DocumentType
	status      documentdomain.DocumentStatus
	prefix      string
	filename    string
	contentType string
	content     []byte
}

func (s *Service) store(ctx context.Context, f storedFile) (*documentdomain.Document, error) {
	path := objectPath(f.prefix, f.userID, f.filename)
	if err := s.storage.Put(ctx, path, f.content, f.contentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	doc := &documentdomain.Document{
		ID:       s.genID.Generate(),
		UserID:   f.userID,
		Title:    f.title,
		Type:     f.docType,
		Status:   f.status,
		FilePath: path,
		FileSize: int64(len(f.content)),
		MimeType: f.contentType,
	}
	if err := s.repo.Insert(ctx, s.db, doc); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *Service) tooLarge(content []byte) bool {
	return s.maxBytes > 0 && int64(len(content)) > s.maxBytes
}

func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
