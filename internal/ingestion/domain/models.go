package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	"gorm.io/datatypes"
)

// EmailSettings controls how a user's inbound email attachments are handled.
type EmailSettings struct {
	ID                      snowflake.ID                `gorm:"primaryKey" json:"id"`
	TenantID                string                      `gorm:"type:text;not null;uniqueIndex:ux_email_settings_user" json:"tenant_id"`
	UserID                  string                      `gorm:"type:text;not null;uniqueIndex:ux_email_settings_user" json:"user_id"`
	UserEmail               string                      `gorm:"type:text;not null;index" json:"user_email"`
	ProcessEmailAttachments bool                        `gorm:"not null" json:"process_email_attachments"`
	AutoProcessAttachments  bool                        `gorm:"not null" json:"auto_process_attachments"`
	DefaultDocumentType     documentdomain.DocumentType `gorm:"type:text;not null;default:'invoice'" json:"default_document_type"`
	AllowedSenders          datatypes.JSONSlice[string] `gorm:"type:json" json:"allowed_senders"`
	BlockedSenders          datatypes.JSONSlice[string] `gorm:"type:json" json:"blocked_senders"`
	CreatedAt               time.Time                   `json:"created_at"`
	UpdatedAt               time.Time                   `json:"updated_at"`
}

func (EmailSettings) TableName() string { return "email_settings" }

// IsSenderAllowed applies the block list first; an empty allow list admits
// every sender that is not blocked.
func (s EmailSettings) IsSenderAllowed(sender string) bool {
	if containsAddress(s.BlockedSenders, sender) {
		return false
	}
	if len(s.AllowedSenders) == 0 {
		return true
	}
	return containsAddress(s.AllowedSenders, sender)
}

func containsAddress(list []string, address string) bool {
	address = strings.TrimSpace(address)
	for _, candidate := range list {
		if strings.EqualFold(strings.TrimSpace(candidate), address) {
			return true
		}
	}
	return false
}

// InboundMessage is an already-parsed email delivered to the ingestion hook.
type InboundMessage struct {
	From        string       `json:"from" validate:"required"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Attachments []Attachment `json:"attachments" validate:"dive"`
}

type Attachment struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content" validate:"required"`
}

// UploadRequest carries a directly uploaded document.
type UploadRequest struct {
	UserID   string                      `validate:"required"`
	Title    string                      `validate:"required,max=255"`
	Type     documentdomain.DocumentType `validate:"required,oneof=invoice receipt purchase_order other"`
	Filename string                      `validate:"required"`
	Content  []byte                      `validate:"required"`
}

// IngestResult lists the documents created from one inbound message and the
// attachments that were skipped.
type IngestResult struct {
	Documents []*documentdomain.Document `json:"documents"`
	Skipped   []string                   `json:"skipped"`
}
