package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/config"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	extractiondomain "github.com/smallbiznis/docflow/internal/extraction/domain"
)

// parseRecord decodes the model answer. Anything that is not exactly one JSON
// object yields an empty record.
func parseRecord(text string) map[string]any {
	text = stripFences(text)
	if text == "" {
		return map[string]any{}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil || record == nil {
		return map[string]any{}
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return map[string]any{}
	}
	return record
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the info string, e.g. ```json
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func genericRecord(content []byte, previewLength int) map[string]any {
	preview := content
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return map[string]any{
		documentdomain.FieldDocumentType:  extractiondomain.GenericDocumentType,
		documentdomain.FieldExtractedText: strings.ToValidUTF8(string(preview), ""),
		documentdomain.FieldFileSize:      len(content),
	}
}

// accept applies the acceptance check. Required keys only bind invoice
// extraction; generic records are accepted once non-empty.
func accept(record map[string]any, docType documentdomain.DocumentType, cfg config.ExtractionConfig) error {
	if len(record) == 0 {
		return reject("empty result")
	}

	if docType == documentdomain.TypeInvoice {
		for _, key := range cfg.RequiredKeys {
			if !hasValue(record[key]) {
				return reject(fmt.Sprintf("missing required field %s", key))
			}
		}
	}

	for _, key := range cfg.NumericKeys {
		value, ok := record[key]
		if !ok || value == nil {
			continue
		}
		if _, ok := documentdomain.DecimalFrom(value); !ok {
			return reject(fmt.Sprintf("field %s is not numeric", key))
		}
	}

	if items, ok := record[documentdomain.FieldLineItems]; ok && items != nil {
		if _, isList := items.([]any); !isList {
			return reject("line_items must be a list")
		}
	}
	return nil
}

func reject(reason string) error {
	return fmt.Errorf("%w: %s", extractiondomain.ErrRejected, reason)
}

func hasValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

// lineItemsFrom coerces raw line entries. Missing quantity defaults to 1 and
// missing or unparsable amounts to 0.
func lineItemsFrom(raw []any, node *snowflake.Node) []documentdomain.LineItem {
	items := make([]documentdomain.LineItem, 0, len(raw))
	for _, entry := range raw {
		fields, _ := entry.(map[string]any)
		items = append(items, documentdomain.LineItem{
			ID:          node.Generate(),
			Description: descriptionOf(fields[documentdomain.LineDescription]),
			Quantity:    decimalOr(fields[documentdomain.LineQuantity], decimal.NewFromInt(1)),
			UnitPrice:   decimalOr(fields[documentdomain.LineUnitPrice], decimal.Zero),
			TotalAmount: decimalOr(fields[documentdomain.LineTotalAmount], decimal.Zero),
			TaxRate:     decimalOr(fields[documentdomain.LineTaxRate], decimal.Zero),
			TaxAmount:   decimalOr(fields[documentdomain.LineTaxAmount], decimal.Zero),
		})
	}
	return items
}

func decimalOr(value any, fallback decimal.Decimal) decimal.Decimal {
	if value == nil {
		return fallback
	}
	d, ok := documentdomain.DecimalFrom(value)
	if !ok {
		return decimal.Zero
	}
	return d
}

func descriptionOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func mergeRecord(existing map[string]any, record map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(record)+1)
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range record {
		merged[k] = v
	}
	return merged
}
