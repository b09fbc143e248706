package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/introlink/messaging/internal/domain"
)

// LocalStore writes attachments to a directory and serves them by base URL.
// Stands in for the object-store collaborator in dev and tests.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func (s *LocalStore) Put(
	ctx context.Context,
	filename, contentType string,
	size int64,
	r io.Reader,
) (domain.Attachment, error) {

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return domain.Attachment{}, fmt.Errorf("create upload dir: %w", err)
	}

	key := uuid.NewString() + filepath.Ext(filename)
	path := filepath.Join(s.Dir, key)

	f, err := os.Create(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return domain.Attachment{}, fmt.Errorf("write upload: %w", err)
	}

	return domain.Attachment{
		URL:      s.BaseURL + "/" + key,
		Filename: filename,
		Size:     written,
		Type:     contentType,
	}, nil
}
