package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/birdayz/xodc"
	"github.com/birdayz/xodc/kcache"
	"github.com/birdayz/xodc/ktype"
)

// LoadTypes returns the core registry with the given registry files merged
// over it in order. Files ending in .json hold a plain type to constructor
// table; all others are HCL.
func LoadTypes(paths ...string) (*ktype.Registry, error) {
	types := ktype.Core()
	for _, path := range paths {
		var (
			r   *ktype.Registry
			err error
		)
		if filepath.Ext(path) == ".json" {
			r, err = loadConstructorTable(path)
		} else {
			r, err = ktype.LoadFiles(path)
		}
		if err != nil {
			return nil, err
		}
		types.Merge(r)
	}
	return types, nil
}

func loadConstructorTable(path string) (*ktype.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read type registry %s: %w", path, err)
	}
	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ktype.ErrInvalidType, path, err)
	}
	return ktype.FromConstructors(table)
}

// ReadRuntime reads the runtime preamble. An empty path yields an empty
// preamble.
func ReadRuntime(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read runtime %s: %w", path, err)
	}
	return string(data), nil
}

// NewCompiler builds a compiler from the runtime and registry files. cache
// may be nil.
func NewCompiler(log *slog.Logger, runtimePath string, typesPaths []string, cache kcache.Cache) (*xodc.Compiler, error) {
	preamble, err := ReadRuntime(runtimePath)
	if err != nil {
		return nil, err
	}
	types, err := LoadTypes(typesPaths...)
	if err != nil {
		return nil, err
	}

	opts := []xodc.Option{
		xodc.WithLog(log),
		xodc.WithRuntime(preamble),
		xodc.WithRegistry(types),
	}
	if cache != nil {
		opts = append(opts, xodc.WithCache(cache))
	}

	log.Debug("Compiler configured", "types", types.Len(), "runtime_bytes", len(preamble))
	return xodc.New(opts...), nil
}
