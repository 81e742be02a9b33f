package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	ingestiondomain "github.com/smallbiznis/docflow/internal/ingestion/domain"
)

type emailSettingsRequest struct {
	UserEmail               string   `json:"user_email"`
	ProcessEmailAttachments bool     `json:"process_email_attachments"`
	AutoProcessAttachments  bool     `json:"auto_process_attachments"`
	DefaultDocumentType     string   `json:"default_document_type"`
	AllowedSenders          []string `json:"allowed_senders"`
	BlockedSenders          []string `json:"blocked_senders"`
}

func (s *Server) IngestEmail(c *gin.Context) {
	var msg ingestiondomain.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.ingestionSvc.IngestEmail(c.Request.Context(), msg)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": result})
}

func (s *Server) GetEmailSettings(c *gin.Context) {
	settings, err := s.ingestionSvc.GetSettings(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateEmailSettings(c *gin.Context) {
	var req emailSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings := &ingestiondomain.EmailSettings{
		UserID:                  userIDFrom(c),
		UserEmail:               req.UserEmail,
		ProcessEmailAttachments: req.ProcessEmailAttachments,
		AutoProcessAttachments:  req.AutoProcessAttachments,
		DefaultDocumentType:     documentdomain.DocumentType(req.DefaultDocumentType),
		AllowedSenders:          req.AllowedSenders,
		BlockedSenders:          req.BlockedSenders,
	}
	if err := s.ingestionSvc.SaveSettings(c.Request.Context(), settings); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}
