// Package content fetches the bodies of gated resources from the local
// filesystem or from S3.
package content

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("content not found")

type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, location string) (*Object, error)
}

// Router sends s3:// locations to S3 and everything else to the filesystem.
type Router struct {
	fs Fetcher
	s3 Fetcher
}

// NewRouter builds a Router. s3 may be nil when no bucket is configured.
func NewRouter(fs, s3 Fetcher) *Router {
	return &Router{
		fs: fs,
		s3: s3,
	}
}

func (r *Router) Fetch(ctx context.Context, location string) (*Object, error) {
	if strings.HasPrefix(location, "s3://") {
		if r.s3 == nil {
			return nil, errors.New("s3 content requested but s3 is not configured")
		}
		return r.s3.Fetch(ctx, location)
	}
	return r.fs.Fetch(ctx, location)
}
