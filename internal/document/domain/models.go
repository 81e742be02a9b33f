// Package domain contains persistence models for documents, their line items
// and extraction attempts.
package domain

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DocumentType is the declared kind of a document.
type DocumentType string

const (
	TypeInvoice       DocumentType = "invoice"
	TypeReceipt       DocumentType = "receipt"
	TypePurchaseOrder DocumentType = "purchase_order"
	TypeOther         DocumentType = "other"
)

// ParseDocumentType maps free text onto the closed set of types.
func ParseDocumentType(value string) (DocumentType, bool) {
	switch DocumentType(value) {
	case TypeInvoice, TypeReceipt, TypePurchaseOrder, TypeOther:
		return DocumentType(value), true
	}
	return "", false
}

// DocumentStatus represents document lifecycle states.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is a unit of work owned by a tenant user.
type Document struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	TenantID        string            `gorm:"type:text;not null;index"`
	UserID          string            `gorm:"type:text;not null;index"`
	Title           string            `gorm:"type:text;not null"`
	Type            DocumentType      `gorm:"type:text;not null;default:'other'"`
	Status          DocumentStatus    `gorm:"type:text;not null;default:'pending';index"`
	FilePath        string            `gorm:"type:text;not null"`
	FileSize        int64             `gorm:"not null;default:0"`
	MimeType        string            `gorm:"type:text"`
	ProcessedData   datatypes.JSONMap `gorm:"type:jsonb"`
	ProcessingError *string           `gorm:"type:text"`
	ProcessedAt     *time.Time        `gorm:""`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

func (d *Document) IsProcessed() bool { return d.Status == StatusProcessed }
func (d *Document) HasFailed() bool   { return d.Status == StatusFailed }
func (d *Document) IsPending() bool   { return d.Status == StatusPending }

// IDString renders the snowflake ID for logs and context fields.
func (d *Document) IDString() string { return strconv.FormatInt(d.ID.Int64(), 10) }

// StructuredData returns the typed view over ProcessedData.
func (d *Document) StructuredData() StructuredData {
	return ParseStructuredData(d.ProcessedData)
}

// LineItem is one charge extracted from a document.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	TenantID    string          `gorm:"type:text;not null;index"`
	DocumentID  snowflake.ID    `gorm:"not null;index"`
	Position    int             `gorm:"not null;default:0"`
	Description string          `gorm:"type:text"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(9,4);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// AmountIncludingTax is the line total plus its tax.
func (l LineItem) AmountIncludingTax() decimal.Decimal {
	return l.TotalAmount.Add(l.TaxAmount)
}

// AttemptStatus represents processing attempt states.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// ProcessingAttempt records a single extraction run. Rows are append-only and
// never change once terminal.
type ProcessingAttempt struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	TenantID         string            `gorm:"type:text;not null;index"`
	DocumentID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_processing_attempt_number"`
	AttemptNumber    int               `gorm:"not null;uniqueIndex:ux_processing_attempt_number"`
	Status           AttemptStatus     `gorm:"type:text;not null;default:'pending'"`
	ErrorMessage     *string           `gorm:"type:text"`
	ProcessingTimeMs *int64            `gorm:""`
	ResultData       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ProcessingAttempt) TableName() string { return "processing_attempts" }

func (a *ProcessingAttempt) IsSuccessful() bool { return a.Status == AttemptSuccess }
func (a *ProcessingAttempt) HasFailed() bool    { return a.Status == AttemptFailed }
func (a *ProcessingAttempt) IsTerminal() bool   { return a.IsSuccessful() || a.HasFailed() }

// StatusCounts summarises documents per lifecycle status.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}
