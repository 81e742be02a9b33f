package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	"github.com/smallbiznis/docflow/pkg/db/option"
	"github.com/smallbiznis/docflow/pkg/tenantctx"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() documentdomain.Repository {
	return &repo{}
}

func tenantFrom(ctx context.Context) (string, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return "", documentdomain.ErrTenantRequired
	}
	return tenantID, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *documentdomain.Document) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	doc.TenantID = tenantID
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*documentdomain.Document, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	var doc documentdomain.Document
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, doc *documentdomain.Document) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&documentdomain.Document{}).
		Where("tenant_id = ? AND id = ?", tenantID, doc.ID).
		Updates(map[string]any{
			"status":           doc.Status,
			"processing_error": doc.ProcessingError,
			"processed_at":     doc.ProcessedAt,
			"updated_at":       doc.UpdatedAt,
		}).Error
}

func (r *repo) UpdateProcessedData(ctx context.Context, db *gorm.DB, doc *documentdomain.Document) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Model(&documentdomain.Document{}).
		Where("tenant_id = ? AND id = ?", tenantID, doc.ID).
		Updates(map[string]any{
			"processed_data": doc.ProcessedData,
			"updated_at":     doc.UpdatedAt,
		}).Error
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, userID string) (documentdomain.StatusCounts, error) {
	var counts documentdomain.StatusCounts
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return counts, err
	}

	var rows []struct {
		Status documentdomain.DocumentStatus
		Total  int64
	}
	stmt := db.WithContext(ctx).
		Model(&documentdomain.Document{}).
		Select("status, COUNT(*) AS total").
		Where("tenant_id = ?", tenantID)
	if userID != "" {
		stmt = stmt.Where("user_id = ?", userID)
	}
	if err := stmt.Group("status").Scan(&rows).Error; err != nil {
		return counts, err
	}

	for _, row := range rows {
		switch row.Status {
		case documentdomain.StatusPending:
			counts.Pending = row.Total
		case documentdomain.StatusProcessing:
			counts.Processing = row.Total
		case documentdomain.StatusProcessed:
			counts.Processed = row.Total
		case documentdomain.StatusFailed:
			counts.Failed = row.Total
		}
		counts.Total += row.Total
	}
	return counts, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID) ([]documentdomain.LineItem, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	var items []documentdomain.LineItem
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

// ReplaceLineItems discards every existing line for the document before
// inserting items. Callers run it inside a transaction.
func (r *repo) ReplaceLineItems(ctx context.Context, db *gorm.DB, documentID snowflake.ID, items []documentdomain.LineItem) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Delete(&documentdomain.LineItem{}).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].TenantID = tenantID
		items[i].DocumentID = documentID
		items[i].Position = i
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) MaxAttemptNumber(ctx context.Context, db *gorm.DB, documentID snowflake.ID) (int, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	var max int
	err = db.WithContext(ctx).
		Model(&documentdomain.ProcessingAttempt{}).
		Select("COALESCE(MAX(attempt_number), 0)").
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Scan(&max).Error
	return max, err
}

func (r *repo) InsertAttempt(ctx context.Context, db *gorm.DB, attempt *documentdomain.ProcessingAttempt) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	attempt.TenantID = tenantID
	return db.WithContext(ctx).Create(attempt).Error
}

// CompleteAttempt moves a pending attempt to its terminal state. Terminal
// rows are never touched again.
func (r *repo) CompleteAttempt(ctx context.Context, db *gorm.DB, attempt *documentdomain.ProcessingAttempt) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	attempt.UpdatedAt = time.Now().UTC()
	result := db.WithContext(ctx).
		Model(&documentdomain.ProcessingAttempt{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, attempt.ID, documentdomain.AttemptPending).
		Updates(map[string]any{
			"status":             attempt.Status,
			"error_message":      attempt.ErrorMessage,
			"processing_time_ms": attempt.ProcessingTimeMs,
			"result_data":        attempt.ResultData,
			"updated_at":         attempt.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return documentdomain.ErrAttemptFinalized
	}
	return nil
}

var attemptSortColumns = map[string]bool{
	"attempt_number": true,
}

func (r *repo) ListAttempts(ctx context.Context, db *gorm.DB, documentID snowflake.ID, opts ...option.QueryOption) ([]documentdomain.ProcessingAttempt, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	stmt := db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID)
	stmt = option.WithSortBy(option.WithQuerySortBy("attempt_number", "desc", attemptSortColumns)).Apply(stmt)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var attempts []documentdomain.ProcessingAttempt
	err = stmt.Find(&attempts).Error
	return attempts, err
}
