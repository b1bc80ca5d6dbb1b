// Command xodc compiles a project file into a program for the embedded
// runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/birdayz/xodc"
	"github.com/birdayz/xodc/internal/cli"
	"github.com/birdayz/xodc/internal/outfile"
	"github.com/birdayz/xodc/kcache"
	"github.com/birdayz/xodc/kproject"
	"github.com/birdayz/xodc/pkg/log"
	"go.uber.org/multierr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	cfg, shouldExit, err := cli.Parse(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger, err := log.NewSlog(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	var cache kcache.Cache
	if cfg.CacheDir != "" {
		store, err := kcache.OpenPebble(cfg.CacheDir)
		if err != nil {
			return err
		}
		cache = kcache.NewLayered(kcache.NewMemory(), store)
		defer func() {
			err = multierr.Append(err, cache.Close())
		}()
	}

	compiler, err := cli.NewCompiler(logger, cfg.RuntimePath, cfg.TypesPaths, cache)
	if err != nil {
		return err
	}

	project, err := readProject(cfg.ProjectPath, stdin)
	if err != nil {
		return compileFailed(err)
	}

	res, err := compiler.Compile(ctx, project)
	if err != nil {
		return compileFailed(err)
	}
	logger.Info("Compiled project", "digest", res.Digest, "cached", res.Cached)

	text := res.Code
	if cfg.Topology {
		var sb strings.Builder
		for _, id := range res.Topology {
			sb.WriteString(string(id))
			sb.WriteByte('\n')
		}
		text = sb.String()
	}

	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		return outfile.Write(cfg.OutputPath, []byte(text))
	}
	_, err = io.WriteString(stdout, text)
	return err
}

func readProject(path string, stdin io.Reader) (*kproject.Project, error) {
	if path == "-" {
		return kproject.Decode(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return kproject.Decode(f)
}

// compileFailed lists every error of a failed compile, one per line,
// prefixed with its kind.
func compileFailed(err error) error {
	if !xodc.IsCompileError(err) {
		return err
	}
	var lines []string
	for _, e := range multierr.Errors(err) {
		lines = append(lines, fmt.Sprintf("%s: %v", xodc.ErrorKind(e), e))
	}
	return &cli.ExitError{Code: 1, Message: strings.Join(lines, "\n")}
}
