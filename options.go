package xodc

import (
	"log/slog"

	"github.com/birdayz/xodc/kcache"
	"github.com/birdayz/xodc/ktype"
	"github.com/go-logr/logr"
)

// Option is a function that configures a Compiler
type Option func(*Compiler)

// WithLog sets the logger for the compiler
var WithLog = func(log *slog.Logger) Option {
	return func(c *Compiler) {
		c.log = log
	}
}

// WithLogr sets the logger from a logr.Logger
var WithLogr = func(log logr.Logger) Option {
	return func(c *Compiler) {
		c.log = slog.New(logr.ToSlogHandler(log))
	}
}

// WithRegistry sets the node type registry. Defaults to ktype.Core().
var WithRegistry = func(types *ktype.Registry) Option {
	return func(c *Compiler) {
		c.types = types
	}
}

// WithRuntime sets the runtime preamble copied to the top of every program
var WithRuntime = func(preamble string) Option {
	return func(c *Compiler) {
		c.preamble = preamble
	}
}

// WithCache enables caching of compile results
var WithCache = func(cache kcache.Cache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// WithWorkersCount sets how many projects CompileAll compiles at once
var WithWorkersCount = func(n int) Option {
	return func(c *Compiler) {
		c.workers = n
	}
}

// NullWriter is a writer that discards all data
type NullWriter struct{}

func (NullWriter) Write(b []byte) (int, error) { return len(b), nil }

// NullLogger creates a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(NullWriter{}, nil))
}
