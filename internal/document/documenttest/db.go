// Package documenttest provides an in-memory database for package tests.
package documenttest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	"github.com/smallbiznis/docflow/pkg/tenantctx"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const TenantID = "acme"

// NewDB opens a private in-memory sqlite database with the document schema.
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	all := append([]any{
		&documentdomain.Document{},
		&documentdomain.LineItem{},
		&documentdomain.ProcessingAttempt{},
	}, models...)
	require.NoError(t, db.AutoMigrate(all...))
	return db
}

// Context returns a context scoped to the test tenant.
func Context() context.Context {
	return tenantctx.WithTenantID(context.Background(), TenantID)
}

// NewNode returns a snowflake node for test IDs.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// SeedDocument inserts a document for the test tenant.
func SeedDocument(t testing.TB, db *gorm.DB, node *snowflake.Node, docType documentdomain.DocumentType, data map[string]any) *documentdomain.Document {
	t.Helper()
	doc := &documentdomain.Document{
		ID:            node.Generate(),
		TenantID:      TenantID,
		UserID:        "user-1",
		Title:         "document.pdf",
		Type:          docType,
		Status:        documentdomain.StatusPending,
		FilePath:      "documents/user-1/document.pdf",
		FileSize:      128,
		MimeType:      "application/pdf",
		ProcessedData: data,
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}
