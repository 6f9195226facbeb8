package core

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

var ErrBlobNotFound = errors.New("file not found")

type (
	Blob struct {
		Key         string
		ContentType string
		Data        []byte
	}

	// BlobStore stores the files uploaded with posts and banners.
	BlobStore interface {
		// Put stores the content of r under folder and returns the key of the new blob.
		Put(ctx context.Context, folder, filename, contentType string, r io.Reader) (string, error)
		Get(ctx context.Context, key string) (Blob, error)
		// Delete removes a blob; deleting a missing blob is not an error.
		Delete(ctx context.Context, key string) error
		// URL returns the public link of a blob.
		URL(key string) string
		// KeyFromURL reverses URL; ok is false for links the store does not own.
		KeyFromURL(url string) (key string, ok bool)
	}
)
