package ledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ErrNotFound is returned by ObjectStore.Get when no object exists under the
// requested key.
var ErrNotFound = errors.New("object not found")

// Entry is a single row in a prefix listing: an object, or a subdirectory
// (common prefix) when IsPrefix is set.
type Entry struct {
	Key          string
	Size         int64
	LastModified time.Time
	IsPrefix     bool
}

// Object is a readable object payload plus the metadata needed to serve it
// as a download response.
type Object struct {
	Body        io.ReadCloser
	ETag        string
	ContentType string
	Size        int64
}

// ObjectStore is the storage binding used for prefix listings and for the
// direct-streaming download fallback.
type ObjectStore interface {
	// List returns the entries directly under prefix, using "/" as the
	// delimiter.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Get opens the object stored under key. Implementations return
	// ErrNotFound when no such object exists. The caller owns Body and must
	// close it.
	Get(ctx context.Context, key string) (Object, error)
}

// BucketStore is an ObjectStore backed by an S3 client bound to a single
// bucket.
type BucketStore struct {
	client *minio.Client
	bucket string
}

// NewBucketStore creates a BucketStore for the named bucket.
func NewBucketStore(client *minio.Client, bucket string) *BucketStore {
	return &BucketStore{client: client, bucket: bucket}
}

func (s *BucketStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}

	entries := make([]Entry, 0, 64)
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list prefix %q: %w", prefix, obj.Err)
		}
		entries = append(entries, Entry{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			IsPrefix:     strings.HasSuffix(obj.Key, "/"),
		})
	}
	return entries, nil
}

func (s *BucketStore) Get(ctx context.Context, key string) (Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, fmt.Errorf("get object %q: %w", key, err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("stat object %q: %w", key, err)
	}

	return Object{
		Body:        obj,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}
