// Package understanding calls an external document-understanding model.
package understanding

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("understanding_not_configured")

// Provider sends a prompt plus a binary payload and returns the model's free-form text.
type Provider interface {
	Complete(ctx context.Context, prompt string, payload []byte, mimeType string) (string, error)
}

// Disabled rejects every call. It stands in when no model is configured.
type Disabled struct{}

func (Disabled) Complete(ctx context.Context, prompt string, payload []byte, mimeType string) (string, error) {
	return "", ErrNotConfigured
}
