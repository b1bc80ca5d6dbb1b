// Command xodc-server serves compiles over HTTP and, when brokers are
// configured, runs the Kafka build worker next to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/birdayz/xodc/internal/api"
	"github.com/birdayz/xodc/internal/buildworker"
	"github.com/birdayz/xodc/internal/cli"
	"github.com/birdayz/xodc/kcache"
	"github.com/birdayz/xodc/pkg/log"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stderr, os.Args[1:], os.Getenv); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stderr io.Writer, args []string, getenv func(string) string) (err error) {
	cfg, shouldExit, err := cli.ParseServer(args, stderr, getenv)
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

	cache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, cache.Close())
	}()

	compiler, err := cli.NewCompiler(logger, cfg.RuntimePath, cfg.TypesPaths, cache)
	if err != nil {
		return err
	}

	var worker *buildworker.Worker
	if len(cfg.Worker.Brokers) > 0 {
		if worker, err = buildworker.New(logger.With("component", "buildworker"), compiler, cfg.Worker); err != nil {
			return err
		}
	}

	grp, gctx := errgroup.WithContext(ctx)

	app := api.New(logger.With("component", "api"), compiler)
	grp.Go(func() error {
		logger.Info("Listening", "addr", cfg.Addr)
		return app.Listen(cfg.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	})
	grp.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if worker != nil {
		grp.Go(worker.Run)
		grp.Go(func() error {
			<-gctx.Done()
			return worker.Close(shutdownTimeout)
		})
	}

	return grp.Wait()
}

// openCache stacks an in-memory layer over the optional local and shared
// stores.
func openCache(ctx context.Context, cfg *cli.ServerConfig) (kcache.Cache, error) {
	layers := []kcache.Cache{kcache.NewMemory()}

	if cfg.CacheDir != "" {
		store, err := kcache.OpenPebble(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		layers = append(layers, store)
	}

	if cfg.S3.Endpoint != "" {
		store, err := kcache.OpenS3(ctx, cfg.S3)
		if err != nil {
			return nil, multierr.Append(err, kcache.NewLayered(layers...).Close())
		}
		layers = append(layers, store)
	}

	return kcache.NewLayered(layers...), nil
}
