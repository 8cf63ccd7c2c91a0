// Package attachments stores the binary media (photos, audio) bound to
// enquiries. Keys are derived from content, so a stored blob is immutable:
// putting identical bytes again yields the same key and never rewrites data.
package attachments

import (
	"context"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Key prefixes per attachment kind.
const (
	PhotoPrefix = "photo"
	AudioPrefix = "audio"
)

// Upload is one submitted file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Blob is stored content returned by Get.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store persists and retrieves blobs. Get returns common.ErrorNotFound for
// unknown keys.
type Store interface {
	Put(ctx context.Context, prefix string, up Upload) (string, error)
	Get(ctx context.Context, key string) (Blob, error)
}

// KeyFor derives the storage key for data under prefix.
func KeyFor(prefix string, data []byte) string {
	sum := blake2b.Sum256(data)
	return prefix + "/" + hex.EncodeToString(sum[:])
}

// PutAll stores uploads in order and returns one key per upload in the same
// order. It stops at the first failure and returns no keys, so callers never
// bind a partial set.
func PutAll(ctx context.Context, s Store, prefix string, uploads []Upload) ([]string, error) {
	keys := make([]string, 0, len(uploads))
	for i, up := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, err := s.Put(ctx, prefix, up)
		if err != nil {
			return nil, fmt.Errorf("store %s %d of %d: %w", prefix, i+1, len(uploads), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
