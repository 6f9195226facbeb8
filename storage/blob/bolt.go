// Package blob stores uploaded files in a bolt database.
package blob

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
)

var (
	dataBucket = []byte("blobs")
	metaBucket = []byte("meta")
)

// PathPrefix is the route files are served under.
const PathPrefix = "/v1/files/"

type Store struct {
	db      *bolt.DB
	baseURL string
}

var _ core.BlobStore = (*Store)(nil)

// Open opens (or creates) the bolt file at filename. Links are built on baseURL (eg. "https://api.example.com").
func Open(filename, baseURL string) (*Store, error) {
	db, err := bolt.Open(filename, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening blob store")
	}

	err = db.Update(func(txn *bolt.Tx) error {
		if _, err := txn.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		_, err := txn.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initializing blob store")
	}
	return &Store{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// cleanSegment keeps a path segment to letters, digits, dots, dashes and underscores.
func cleanSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

func (s *Store) Put(ctx context.Context, folder, filename, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder = cleanSegment(folder)
	if folder == "" {
		folder = "misc"
	}
	name := cleanSegment(path.Base(filename))
	if name == "" {
		name = "file"
	}
	key := folder + "/" + uuid.NewString() + "-" + name

	err = s.db.Update(func(txn *bolt.Tx) error {
		if err := txn.Bucket(dataBucket).Put([]byte(key), data); err != nil {
			return err
		}
		return txn.Bucket(metaBucket).Put([]byte(key), []byte(contentType))
	})
	if err != nil {
		return "", errors.Wrap(err, "storing blob")
	}
	return key, nil
}

func (s *Store) Get(_ context.Context, key string) (core.Blob, error) {
	blob := core.Blob{Key: key}
	err := s.db.View(func(txn *bolt.Tx) error {
		data := txn.Bucket(dataBucket).Get([]byte(key))
		if data == nil {
			return core.ErrBlobNotFound
		}
		// bolt values are only valid for the life of the transaction
		blob.Data = bytes.Clone(data)
		blob.ContentType = string(txn.Bucket(metaBucket).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return core.Blob{}, err
	}
	return blob, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *bolt.Tx) error {
		if err := txn.Bucket(dataBucket).Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Bucket(metaBucket).Delete([]byte(key))
	})
}

func (s *Store) URL(key string) string {
	return s.baseURL + PathPrefix + key
}

func (s *Store) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL + PathPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}
