// Package xodc compiles dataflow projects into JavaScript programs for the
// embedded runtime.
//
//	c := xodc.New(xodc.WithRuntime(runtime))
//	res, err := c.CompileJSON(ctx, projectJSON)
//	if err != nil {
//	    log.Printf("compile failed (%s): %v", xodc.ErrorKind(err), err)
//	}
//	fmt.Print(res.Code)
package xodc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/birdayz/xodc/kcache"
	"github.com/birdayz/xodc/kemit"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/kresolve"
	"github.com/birdayz/xodc/kserde"
	"github.com/birdayz/xodc/ktype"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Compiler turns projects into programs. It holds no per-compile state and
// is safe for concurrent use as long as its registry is not modified.
type Compiler struct {
	log      *slog.Logger
	types    *ktype.Registry
	preamble string
	cache    kcache.Cache
	workers  int
}

// New creates a Compiler. Without options it uses the core node types, an
// empty runtime preamble and no cache.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		log:     NullLogger(),
		types:   ktype.Core(),
		workers: runtime.GOMAXPROCS(0),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.workers < 1 {
		c.workers = 1
	}
	return c
}

// Types returns the registry the compiler resolves node types against.
func (c *Compiler) Types() *ktype.Registry {
	return c.types
}

// Result is a compiled program.
type Result struct {
	Code     string            `json:"code"`
	Topology []kproject.NodeID `json:"topology"`

	// Digest identifies the inputs of the compile: project, runtime and
	// registry. Equal digests produce equal code.
	Digest string `json:"digest"`

	// Cached is set when the result was served from the cache.
	Cached bool `json:"-"`
}

// cachedResult encodes results stored in the cache.
var cachedResult = kserde.JSON[Result]()

// CompileJSON decodes a project and compiles it.
func (c *Compiler) CompileJSON(ctx context.Context, data []byte) (*Result, error) {
	p, err := kproject.Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Compile(ctx, p)
}

// Compile resolves and emits p. Either a complete result or an error is
// returned. ctx is only checked before the compile starts; a compile in
// progress is not interrupted.
func (c *Compiler) Compile(ctx context.Context, p *kproject.Project) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project is nil", kproject.ErrInvalidProject)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	canonical, err := p.Canonical()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kproject.ErrInvalidProject, err)
	}
	digest := kcache.Key(canonical, c.preamble, c.types.Fingerprint())
	log := c.log.With("digest", digest[:12])

	if res, ok := c.lookup(ctx, log, digest); ok {
		return res, nil
	}

	log.Debug("Compiling project", "nodes", len(p.Nodes), "links", len(p.Links))

	resolved, err := kresolve.Resolve(p, kresolve.WithRegistry(c.types))
	if err != nil {
		log.Debug("Failed to resolve project", "error", err)
		return nil, err
	}

	code, err := kemit.Emit(resolved, c.preamble, c.types)
	if err != nil {
		log.Debug("Failed to emit project", "error", err)
		return nil, err
	}

	res := &Result{
		Code:     code,
		Topology: resolved.Topology,
		Digest:   digest,
	}
	c.store(ctx, log, res)

	log.Debug("Compiled project", "bytes", len(code))
	return res, nil
}

// lookup returns a cached result. Cache failures are logged and treated as
// misses.
func (c *Compiler) lookup(ctx context.Context, log *slog.Logger, digest string) (*Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, digest)
	if err != nil {
		if !errors.Is(err, kcache.ErrKeyNotFound) {
			log.Warn("Failed to read cache", "error", err)
		}
		return nil, false
	}

	res, err := cachedResult.Deserializer(data)
	if err != nil || res.Digest != digest {
		log.Warn("Ignoring corrupt cache entry", "error", err)
		return nil, false
	}
	res.Cached = true
	log.Debug("Cache hit")
	return &res, true
}

func (c *Compiler) store(ctx context.Context, log *slog.Logger, res *Result) {
	if c.cache == nil {
		return
	}
	data, err := cachedResult.Serializer(*res)
	if err != nil {
		log.Warn("Failed to encode result", "error", err)
		return
	}
	if err := c.cache.Set(ctx, res.Digest, data); err != nil {
		log.Warn("Failed to write cache", "error", err)
	}
}

// Job is one project of a CompileAll batch.
type Job struct {
	Name    string
	Project *kproject.Project
}

// CompileAll compiles independent projects in parallel, using at most the
// configured number of workers. The returned slice is aligned with jobs; a
// failed job leaves a nil entry and contributes its error, prefixed with
// the job name, to the combined error.
func (c *Compiler) CompileAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	grp := errgroup.Group{}
	grp.SetLimit(c.workers)
	for i, job := range jobs {
		grp.Go(func() error {
			res, err := c.Compile(ctx, job.Project)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Name, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = grp.Wait()

	c.log.Debug("Compiled batch", "jobs", len(jobs))
	return results, multierr.Combine(errs...)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
