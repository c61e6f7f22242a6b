package filestore

import (
	"context"
	"io"
	"mime"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

const gcsBaseURL = "https://storage.googleapis.com/"

type gcsStore struct {
	client *storage.Client
	bucket string
}

var _ core.FileStore = (*gcsStore)(nil) // interface compliance check

// NewGCSStore stores files in the conf.Storage.GCSBucket bucket, using the default credentials.
func NewGCSStore(ctx context.Context, conf *core.Config) (core.FileStore, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating storage client")
	}
	return &gcsStore{client: client, bucket: conf.Storage.GCSBucket}, client.Close, nil
}

func (s *gcsStore) Save(ctx context.Context, name string, r io.Reader) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.ContentType = ct
	}
	if _, err = io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "closing object writer")
	}
	return nil
}

func (s *gcsStore) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}

func (s *gcsStore) URL(name string) string {
	return gcsBaseURL + s.bucket + "/" + name
}
