// Package kcache stores compiled programs keyed by a digest of everything
// that affects compilation.
package kcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"go.uber.org/multierr"
)

var ErrKeyNotFound = errors.New("kcache: key not found")

// Cache is a byte store for compile artifacts. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key derives the cache key of a compile from the canonical project
// encoding, the runtime preamble and the type registry fingerprint.
func Key(project []byte, preamble string, registryFingerprint string) string {
	h := sha256.New()
	for _, part := range [][]byte{project, []byte(preamble), []byte(registryFingerprint)} {
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(part))))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Layered reads from each cache in turn and writes to all of them. A hit in
// a later layer is copied into the earlier ones.
type Layered struct {
	layers []Cache
}

func NewLayered(layers ...Cache) *Layered {
	return &Layered{layers: layers}
}

func (l *Layered) Get(ctx context.Context, key string) ([]byte, error) {
	for i, c := range l.layers {
		v, err := c.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, upper := range l.layers[:i] {
			if err := upper.Set(ctx, key, v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return nil, ErrKeyNotFound
}

func (l *Layered) Set(ctx context.Context, key string, value []byte) error {
	var err error
	for _, c := range l.layers {
		err = multierr.Append(err, c.Set(ctx, key, value))
	}
	return err
}

func (l *Layered) Close() error {
	var err error
	for _, c := range l.layers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

var _ Cache = (*Layered)(nil)
