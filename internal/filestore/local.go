package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/yikoni/docbase/internal/pkg/errors"
)

type localConfig struct {
	Root string `json:"root"`
}

type localStore struct {
	root string
}

func init() {
	Register("local", func(args interface{}) (Store, error) {
		c := &localConfig{}
		if err := decodeConfig(args, c); err != nil {
			return nil, err
		}
		return newLocalStore(c)
	})
}

func newLocalStore(c *localConfig) (Store, error) {
	if c.Root == "" {
		return nil, fmt.Errorf("local store: root not set")
	}
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return nil, fmt.Errorf("local store: create root: %w", err)
	}
	return &localStore{root: c.Root}, nil
}

func (s *localStore) Type() string {
	return "local"
}

// resolve keeps keys inside the root; a key that escapes via ".." is refused.
func (s *localStore) resolve(key string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key: %s", key)
	}
	return full, nil
}

func (s *localStore) Save(ctx context.Context, key string, r io.Reader) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, appErr.ErrNotFound
	}
	return f, err
}

// Delete treats a missing blob as already deleted.
func (s *localStore) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *localStore) DeleteBatch(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
