// Package storage is the boundary to the external attachment store.
// Uploads return a URL plus metadata; serving the bytes is the
// collaborator's business.
package storage

import (
	"context"
	"io"

	"github.com/introlink/messaging/internal/domain"
)

type Store interface {
	Put(ctx context.Context, filename, contentType string, size int64, r io.Reader) (domain.Attachment, error)
}
