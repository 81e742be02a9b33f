package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
)

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

func parseDocumentID(value string) (snowflake.ID, error) {
	id, err := documentdomain.ParseID(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, documentdomain.ErrInvalidID
	}
	return id, nil
}
