package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Store abstracts where uploaded document blobs live. Implementations are
// registered by type name and built from free-form config.
type Store interface {
	Type() string
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys []string) error
}

type creatorFunc func(args interface{}) (Store, error)

var mp = make(map[string]creatorFunc)

func Register(name string, fn creatorFunc) {
	mp[name] = fn
}

func Create(name string, args interface{}) (Store, error) {
	fn, ok := mp[name]
	if !ok {
		return nil, fmt.Errorf("file store type not found: %s", name)
	}
	return fn(args)
}

func decodeConfig(args interface{}, out interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
