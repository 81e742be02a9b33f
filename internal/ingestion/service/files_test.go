package service

import (
	"strings"
	"testing"

	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	"github.com/stretchr/testify/assert"
)

func TestTenantFromAddresses(t *testing.T) {
	tenant, ok := tenantFromAddresses("billing@example.com", "tenant-acme42@inbound.example.com")
	assert.True(t, ok)
	assert.Equal(t, "acme42", tenant)

	_, ok = tenantFromAddresses("billing@example.com", "")
	assert.False(t, ok)
}

func TestDocumentTypeFromSubject(t *testing.T) {
	cases := map[string]documentdomain.DocumentType{
		"Your INVOICE #42":         documentdomain.TypeInvoice,
		"Receipt for your order":   documentdomain.TypeReceipt,
		"New purchase order":       documentdomain.TypePurchaseOrder,
		"PO 7781 attached":         documentdomain.TypePurchaseOrder,
		"Quarterly report":         documentdomain.TypeOther,
		"invoice and receipt both": documentdomain.TypeInvoice,
	}
	for subject, want := range cases {
		assert.Equal(t, want, documentTypeFromSubject(subject, documentdomain.TypeOther), subject)
	}
	assert.Equal(t, documentdomain.TypeInvoice, documentTypeFromSubject("hello", "bogus"))
}

func TestIsDocumentFile(t *testing.T) {
	assert.True(t, isDocumentFile("scan.PDF", ""))
	assert.True(t, isDocumentFile("blob", "application/pdf; name=x"))
	assert.True(t, isDocumentFile("sheet.xlsx", "application/octet-stream"))
	assert.False(t, isDocumentFile("notes.txt", "text/plain"))
	assert.False(t, isDocumentFile("logo.gif", "image/gif"))
}

func TestDetectContentTypeSniffsGenericPayloads(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	assert.Equal(t, "application/pdf", detectContentType("", pdf))
	assert.Equal(t, "application/pdf", detectContentType("application/octet-stream", pdf))
	assert.Equal(t, "image/png", detectContentType("image/PNG", pdf))
}

func TestSanitizeFilenameAndObjectPath(t *testing.T) {
	assert.Equal(t, "invoice.pdf", sanitizeFilename("../../etc/invoice.pdf"))
	assert.Equal(t, "invoice.pdf", sanitizeFilename(`C:\Users\me\invoice.pdf`))
	assert.Equal(t, "attachment", sanitizeFilename(""))

	path := objectPath("email-attachments", "user-1", "a b.pdf")
	assert.True(t, strings.HasPrefix(path, "email-attachments/user-1/"))
	assert.True(t, strings.HasSuffix(path, "-a b.pdf"))
}
