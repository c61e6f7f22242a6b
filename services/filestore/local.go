// Package filestore keeps uploaded course files on local disk or in a Google Cloud Storage bucket.
package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

var errInvalidName = errors.New("invalid file name")

// cleanName rejects names escaping the store root.
func cleanName(name string) (string, error) {
	cleaned := path.Clean("/" + name)[1:]
	if cleaned == "" || cleaned != name {
		return "", errInvalidName
	}
	return cleaned, nil
}

type localStore struct {
	root    string
	baseURL string
}

var _ core.FileStore = (*localStore)(nil) // interface compliance check

// NewLocalStore stores files under conf.Storage.MediaDir; they are served from conf.Storage.MediaURL.
func NewLocalStore(conf *core.Config) core.FileStore {
	root := conf.Storage.MediaDir
	if !filepath.IsAbs(root) {
		root = filepath.Join(core.Getwd(), root)
	}
	return &localStore{
		root:    root,
		baseURL: strings.TrimSuffix(conf.Storage.MediaURL, "/") + "/",
	}
}

func (s *localStore) Save(ctx context.Context, name string, r io.Reader) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	fp := filepath.Join(s.root, filepath.FromSlash(name))
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrap(err, "creating media dir")
	}
	f, err := os.Create(fp)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return errors.Wrap(err, "writing file")
	}
	return errors.Wrap(f.Close(), "closing file")
}

func (s *localStore) Delete(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if err = os.Remove(filepath.Join(s.root, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

func (s *localStore) URL(name string) string {
	return s.baseURL + name
}
