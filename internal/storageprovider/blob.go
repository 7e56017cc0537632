// Package storageprovider keeps the profiler session between slices.
package storageprovider

import (
	"context"

	"gocloud.dev/blob"

	"github.com/getsentry/tickprof/internal/session"
	"github.com/getsentry/tickprof/internal/storageutil"
)

// Blob implements session.Store on top of a bucket, one object per key.
type Blob struct {
	bucket *blob.Bucket
	key    string
}

func NewBlob(bucket *blob.Bucket, key string) *Blob {
	return &Blob{bucket: bucket, key: StoragePath(key)}
}

// StoragePath returns the object name holding the session of key.
func StoragePath(key string) string {
	return "sessions/" + key + ".json.lz4"
}

// Load returns the stored session or errorutil.ErrNotFound.
func (b *Blob) Load(ctx context.Context) (*session.Session, error) {
	var s session.Session
	err := storageutil.UnmarshalCompressed(ctx, b.bucket, b.key, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *Blob) Save(ctx context.Context, s *session.Session) error {
	return storageutil.CompressedWrite(ctx, b.bucket, b.key, s)
}

func (b *Blob) Delete(ctx context.Context) error {
	return storageutil.Delete(ctx, b.bucket, b.key)
}
