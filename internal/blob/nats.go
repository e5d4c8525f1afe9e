package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Compile-time interface compliance check.
var _ Store = (*NATSStore)(nil)

// NATSStore keeps blobs in a NATS JetStream object store bucket.
// URLs are "<publicURL>/audio/<name>"; the HTTP server serves them back.
type NATSStore struct {
	store  nats.ObjectStore
	bucket string
	addr   addressing
}

// NewNATSStore binds to bucket, creating it when it does not exist yet.
func NewNATSStore(js nats.JetStreamContext, bucket, publicURL string) (*NATSStore, error) {
	store, err := js.ObjectStore(bucket)
	if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Narration audio segments and combined files.",
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store bucket %q: %w", bucket, err)
	}
	return &NATSStore{store: store, bucket: bucket, addr: newAddressing(publicURL)}, nil
}

// Dial connects to NATS and opens the bucket. The returned func closes the connection.
func Dial(natsURL, bucket, publicURL string) (*NATSStore, func(), error) {
	nc, err := nats.Connect(natsURL, nats.Name("go-narrate"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
	}
	s, err := NewNATSStore(js, bucket, publicURL)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return s, nc.Close, nil
}

// URL returns the public URL for name.
func (s *NATSStore) URL(name string) string {
	return s.addr.url(name)
}

// Put saves data under name. Returns ErrExists if name is taken.
func (s *NATSStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.store.GetInfo(name); err == nil {
		return "", fmt.Errorf("%q: %w", name, ErrExists)
	} else if !errors.Is(err, nats.ErrObjectNotFound) {
		return "", fmt.Errorf("failed to stat object %q in bucket %q: %w", name, s.bucket, err)
	}

	meta := &nats.ObjectMeta{
		Name:    name,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}
	if _, err := s.store.Put(meta, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to put object %q to bucket %q: %w", name, s.bucket, err)
	}
	return s.addr.url(name), nil
}

// Get returns the bytes addressed by url.
func (s *NATSStore) Get(ctx context.Context, url string) ([]byte, error) {
	name, err := s.addr.name(url)
	if err != nil {
		return nil, err
	}
	data, _, err := s.Open(ctx, name)
	return data, err
}

// Open returns the bytes and content type stored under name.
func (s *NATSStore) Open(ctx context.Context, name string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	info, err := s.store.GetInfo(name)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, "", fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat object %q: %w", name, err)
	}
	data, err := s.store.GetBytes(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object %q from bucket %q: %w", name, s.bucket, err)
	}
	contentType := info.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// Delete removes the blob addressed by url. Missing objects are not an error.
func (s *NATSStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.addr.name(url)
	if err != nil {
		return err
	}
	if err := s.store.Delete(name); err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object %q from bucket %q: %w", name, s.bucket, err)
	}
	return nil
}
