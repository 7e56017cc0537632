package storageutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/getsentry/tickprof/internal/errorutil"
)

const timeout = 5 * time.Second

// CompressedWrite encodes d as JSON, compresses it and writes it to the
// bucket under objectName.
func CompressedWrite(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ow, err := b.NewWriter(ctx, objectName, &blob.WriterOptions{
		ContentType:     "application/json",
		ContentEncoding: "lz4",
	})
	if err != nil {
		return err
	}
	if err = encode(ow, d); err != nil {
		// the object is discarded when the context is canceled before Close
		cancel()
		_ = ow.Close()
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads an object written by CompressedWrite into d. It
// returns errorutil.ErrNotFound if the object doesn't exist.
func UnmarshalCompressed(ctx context.Context, b *blob.Bucket, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	or, err := b.NewReader(ctx, objectName, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("%s: %w", objectName, errorutil.ErrNotFound)
		}
		return err
	}
	defer or.Close()
	return decode(or, d)
}

// Delete removes an object. A missing object is not an error.
func Delete(ctx context.Context, b *blob.Bucket, objectName string) error {
	err := b.Delete(ctx, objectName)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

// Compress returns d encoded as compressed JSON, for stores holding values
// in memory.
func Compress(d interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress is the inverse of Compress.
func Decompress(b []byte, d interface{}) error {
	return decode(bytes.NewReader(b), d)
}

func encode(w io.Writer, d interface{}) error {
	zw := lz4.NewWriter(w)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err := gojson.NewEncoder(zw).Encode(d)
	if err != nil {
		return err
	}
	return zw.Close()
}

func decode(r io.Reader, d interface{}) error {
	zr := lz4.NewReader(r)
	err := gojson.NewDecoder(zr).Decode(d)
	if err != nil {
		return fmt.Errorf("%w: %v", errorutil.ErrDataIntegrity, err)
	}
	return nil
}
