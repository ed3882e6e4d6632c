// Package artifact publishes finished archives so clients can fetch them
// again later.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists archives under a request id.
type Store interface {
	Put(ctx context.Context, requestID, name string, content io.Reader, size int64) error
	Get(ctx context.Context, requestID, name string) ([]byte, error)
	GetURL(ctx context.Context, requestID, name string) (string, error)
	List(ctx context.Context, requestID string) ([]string, error)
}

// Publish uploads the file at path as <requestID>/<base name> and returns its
// URL.
func Publish(ctx context.Context, store Store, requestID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}
	name := filepath.Base(path)
	if err := store.Put(ctx, requestID, name, f, info.Size()); err != nil {
		return "", fmt.Errorf("put archive: %w", err)
	}
	return store.GetURL(ctx, requestID, name)
}

func validateKey(requestID, name string) (string, string, error) {
	requestID = strings.TrimSpace(requestID)
	name = strings.TrimSpace(name)
	if requestID == "" {
		return "", "", fmt.Errorf("request_id is required")
	}
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	return requestID, strings.TrimLeft(name, "/"), nil
}

func objectKey(prefix, requestID, name string) string {
	key := requestID + "/" + name
	if prefix = strings.Trim(strings.TrimSpace(prefix), "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
