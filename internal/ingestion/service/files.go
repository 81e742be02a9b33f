package service

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
)

const fallbackContentType = "application/octet-stream"

var (
	tenantAddressPattern = regexp.MustCompile(`tenant-(\w+)@`)
	purchaseOrderPattern = regexp.MustCompile(`\bpurchase order\b|\bpo\b`)

	documentExtensions = map[string]bool{
		"pdf": true, "jpg": true, "jpeg": true, "png": true,
		"doc": true, "docx": true, "xls": true, "xlsx": true,
	}
	documentMimeTypes = map[string]bool{
		"application/pdf":    true,
		"image/jpeg":         true,
		"image/png":          true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
		"application/vnd.ms-excel": true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	}
)

// tenantFromAddresses returns the first tenant-<id>@ match.
func tenantFromAddresses(addresses ...string) (string, bool) {
	for _, address := range addresses {
		if m := tenantAddressPattern.FindStringSubmatch(address); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func isDocumentFile(filename, contentType string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	return documentExtensions[ext] || documentMimeTypes[normalizeContentType(contentType)]
}

// detectContentType prefers the declared type and sniffs the payload when the
// sender left it blank or generic.
func detectContentType(declared string, content []byte) string {
	declared = normalizeContentType(declared)
	if declared != "" && declared != fallbackContentType {
		return declared
	}
	return normalizeContentType(mimetype.Detect(content).String())
}

func normalizeContentType(value string) string {
	value, _, _ = strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(value))
}

// documentTypeFromSubject maps subject hints to a type, falling back to def.
func documentTypeFromSubject(subject string, def documentdomain.DocumentType) documentdomain.DocumentType {
	subject = strings.ToLower(subject)
	switch {
	case strings.Contains(subject, "invoice"):
		return documentdomain.TypeInvoice
	case strings.Contains(subject, "receipt"):
		return documentdomain.TypeReceipt
	case purchaseOrderPattern.MatchString(subject):
		return documentdomain.TypePurchaseOrder
	}
	if _, ok := documentdomain.ParseDocumentType(string(def)); ok {
		return def
	}
	return documentdomain.TypeInvoice
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

func objectPath(prefix, userID, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", prefix, userID, uuid.NewString(), sanitizeFilename(filename))
}
