package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/birdayz/xodc/internal/buildworker"
	"github.com/birdayz/xodc/kcache"
)

// ServerConfig is the configuration of xodc-server.
type ServerConfig struct {
	Addr        string
	RuntimePath string
	TypesPaths  []string
	CacheDir    string

	// S3 is used as a shared cache layer when S3.Endpoint is set.
	S3 kcache.S3Options

	// Worker runs the Kafka build worker when Worker.Brokers is non-empty.
	Worker buildworker.Config

	LogLevel  string
	LogFormat string
}

// ParseServer processes command-line arguments of xodc-server. Secrets are
// only read from the environment through getenv.
func ParseServer(args []string, output io.Writer, getenv func(string) string) (*ServerConfig, bool, error) {
	flagSet := flag.NewFlagSet("xodc-server", flag.ContinueOnError)
	flagSet.SetOutput(output)

	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := &ServerConfig{}
	flagSet.StringVar(&cfg.Addr, "addr", env("XODC_ADDR", ":8080"), "HTTP listen address.")
	flagSet.StringVar(&cfg.RuntimePath, "runtime", env("XODC_RUNTIME", ""), "Path to the runtime preamble.")
	flagSet.Func("types", "Path to a node type registry. May be repeated.", func(s string) error {
		cfg.TypesPaths = append(cfg.TypesPaths, s)
		return nil
	})
	flagSet.StringVar(&cfg.CacheDir, "cache-dir", env("XODC_CACHE_DIR", ""), "Directory of the persistent compile cache.")

	flagSet.StringVar(&cfg.S3.Endpoint, "s3-endpoint", env("XODC_S3_ENDPOINT", ""), "S3 endpoint of the shared cache. Empty disables it.")
	flagSet.StringVar(&cfg.S3.Bucket, "s3-bucket", env("XODC_S3_BUCKET", "xodc-cache"), "S3 bucket of the shared cache.")
	flagSet.StringVar(&cfg.S3.Prefix, "s3-prefix", env("XODC_S3_PREFIX", ""), "Object name prefix in the shared cache bucket.")
	flagSet.BoolVar(&cfg.S3.Secure, "s3-secure", env("XODC_S3_SECURE", "") == "true", "Use TLS for the S3 endpoint.")

	brokers := flagSet.String("brokers", env("XODC_BROKERS", ""), "Comma separated Kafka seed brokers. Empty disables the build worker.")
	flagSet.StringVar(&cfg.Worker.Group, "group", env("XODC_GROUP", "xodc"), "Consumer group of the build worker.")
	flagSet.StringVar(&cfg.Worker.InputTopic, "input-topic", env("XODC_INPUT_TOPIC", "xodc-projects"), "Topic the build worker reads projects from.")
	flagSet.StringVar(&cfg.Worker.OutputTopic, "output-topic", env("XODC_OUTPUT_TOPIC", "xodc-programs"), "Topic the build worker writes programs to.")

	logLevel := flagSet.String("log-level", env("XODC_LOG_LEVEL", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", env("XODC_LOG_FORMAT", "json"), "Log output format. Options: 'console' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	if *brokers != "" {
		for _, b := range strings.Split(*brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Worker.Brokers = append(cfg.Worker.Brokers, b)
			}
		}
	}

	if cfg.S3.Endpoint != "" {
		cfg.S3.AccessKey = getenv("XODC_S3_ACCESS_KEY")
		cfg.S3.SecretKey = getenv("XODC_S3_SECRET_KEY")
		if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			return nil, false, &ExitError{Code: 2, Message: "XODC_S3_ACCESS_KEY and XODC_S3_SECRET_KEY are required with -s3-endpoint"}
		}
	}

	var err error
	if cfg.LogLevel, cfg.LogFormat, err = parseLogFlags(*logLevel, *logFormat); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
