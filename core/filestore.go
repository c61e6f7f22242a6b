package core

import (
	"context"
	"io"
)

// FileStore persists uploaded content files (images & documents) by name.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	URL(name string) string
}
