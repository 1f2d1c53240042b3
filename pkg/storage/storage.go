package storage

import (
	"context"
	"io"
)

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
}

// Uploader stores team files and returns a publicly reachable URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (*Object, error)
}
