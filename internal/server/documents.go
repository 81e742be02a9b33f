package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	ingestiondomain "github.com/smallbiznis/docflow/internal/ingestion/domain"
)

func (s *Server) UploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	maxBytes := s.cfg.Ingest.MaxUploadBytes
	if maxBytes > 0 && header.Size > maxBytes {
		AbortWithError(c, ingestiondomain.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = header.Filename
	}
	docType := documentdomain.DocumentType(strings.TrimSpace(c.DefaultPostForm("type", string(documentdomain.TypeInvoice))))

	doc, err := s.ingestionSvc.Upload(c.Request.Context(), ingestiondomain.UploadRequest{
		UserID:   userIDFrom(c),
		Title:    title,
		Type:     docType,
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) ProcessDocument(c *gin.Context) {
	id, err := parseDocumentID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.processingSvc.Run(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) RetryDocument(c *gin.Context) {
	id, err := parseDocumentID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.processingSvc.Retry(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func (s *Server) ValidateDocument(c *gin.Context) {
	id, err := parseDocumentID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.processingSvc.Validate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ListDocumentAttempts(c *gin.Context) {
	id, err := parseDocumentID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	attempts, err := s.processingSvc.ListAttempts(c.Request.Context(), id, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attempts})
}

func (s *Server) GetProcessingStats(c *gin.Context) {
	counts, err := s.processingSvc.Stats(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": counts})
}
