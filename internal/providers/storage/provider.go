// Package storage fetches and stores raw document bytes.
package storage

import (
	"context"
	"errors"
)

var ErrContentUnavailable = errors.New("content_unavailable")

// Provider reads and writes document objects by path.
type Provider interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
