package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSStore writes objects to a Google Cloud Storage bucket whose objects are
// publicly readable.
type GCSStore struct {
	svc    *storage.Service
	bucket string
}

// NewGCSStore uses credentialsFile when set, application default
// credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	obj := &storage.Object{Name: p, ContentType: contentType}
	_, err = s.svc.Objects.Insert(s.bucket, obj).
		Media(r, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gcs insert %s: %w", p, err)
	}
	return nil
}

func (s *GCSStore) URL(ctx context.Context, path string) (string, error) {
	p, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return "https://storage.googleapis.com/" + s.bucket + "/" + strings.Join(segs, "/"), nil
}
