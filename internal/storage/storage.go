// Package storage holds usage-log exports and generated artifacts (PDFs, vCards)
// behind a small bucket abstraction with memory, filesystem and S3 backends.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object_not_found")
	ErrInvalidKey     = errors.New("invalid_object_key")
)

// Object describes a stored blob. Keys are slash-separated and relative to the bucket root.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

type Bucket interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every object whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanKey normalises a key and rejects keys escaping the bucket root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Join builds a key from parts, ignoring empty ones.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func normalisePrefix(prefix string) string {
	prefix = strings.TrimPrefix(strings.TrimSpace(strings.ReplaceAll(prefix, "\\", "/")), "/")
	return prefix
}
