// Package blob stores audio assets by name and addresses them by URL.
//
// Stores are append-only: Put never overwrites an existing name. Deletes are
// idempotent. Callers that must not fail on cleanup use BestEffortDelete.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sentinel errors.
var (
	// ErrNotFound indicates no object exists under the name.
	ErrNotFound = errors.New("blob not found")

	// ErrExists indicates Put targeted a name that is already taken.
	ErrExists = errors.New("blob already exists")

	// ErrForeignURL indicates a URL that this store did not issue.
	ErrForeignURL = errors.New("url not served by this store")
)

// Store puts, fetches and deletes blobs.
type Store interface {
	// Put saves data under name and returns the URL that addresses it.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Get returns the bytes addressed by url.
	Get(ctx context.Context, url string) ([]byte, error)
	// Delete removes the blob addressed by url. Missing blobs are not an error.
	Delete(ctx context.Context, url string) error
}

// Deleter is the subset of Store used for cleanup.
type Deleter interface {
	Delete(ctx context.Context, url string) error
}

// BestEffortDelete deletes url and logs any failure instead of returning it.
// It reports whether the delete succeeded. Empty URLs are ignored.
func BestEffortDelete(ctx context.Context, d Deleter, url string, log *zap.SugaredLogger) bool {
	if url == "" {
		return true
	}
	if err := d.Delete(ctx, url); err != nil {
		if log != nil {
			log.Warnw("best-effort blob delete failed", "url", url, "error", err)
		}
		return false
	}
	return true
}

// BestEffortDeleteAll deletes every url with BestEffortDelete and returns
// how many deletes failed.
func BestEffortDeleteAll(ctx context.Context, d Deleter, urls []string, log *zap.SugaredLogger) int {
	failed := 0
	for _, u := range urls {
		if !BestEffortDelete(ctx, d, u, log) {
			failed++
		}
	}
	return failed
}

// addressing maps object names to public URLs under a base.
type addressing struct {
	base string
}

func newAddressing(publicURL string) addressing {
	return addressing{base: strings.TrimSuffix(publicURL, "/") + "/audio/"}
}

func (a addressing) url(name string) string {
	return a.base + name
}

func (a addressing) name(url string) (string, error) {
	name, ok := strings.CutPrefix(url, a.base)
	if !ok || name == "" {
		return "", fmt.Errorf("%q: %w", url, ErrForeignURL)
	}
	return name, nil
}
