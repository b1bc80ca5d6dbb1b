package kcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Pebble is a persistent cache in a local pebble database.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens or creates the database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (s *Pebble) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()

	res := make([]byte, len(v))
	copy(res, v)

	return res, nil
}

func (s *Pebble) Set(_ context.Context, key string, value []byte) error {
	return s.db.Set([]byte(key), value, &pebble.WriteOptions{Sync: false})
}

func (s *Pebble) Close() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

var _ Cache = (*Pebble)(nil)
