package docstore

import (
	"context"
	"io"
	"time"
)

// Store holds proof documents and retirement certificates. Credits carry
// only the opaque reference returned by Put; resolving a reference to a
// browsable URL goes through ResolveURL.
type Store interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	ResolveURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}
