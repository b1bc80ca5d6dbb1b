package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config is the configuration of a single xodc invocation.
type Config struct {
	ProjectPath string
	RuntimePath string
	TypesPaths  []string

	// OutputPath is where the program is written. Empty or "-" is stdout.
	OutputPath string

	// Topology prints the node order, one id per line, instead of the
	// program.
	Topology bool

	CacheDir string

	LogLevel  string
	LogFormat string
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("xodc", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
xodc - compiles a dataflow project into a program for the embedded runtime.

Usage:
  xodc [options] PROJECT_PATH

Arguments:
  PROJECT_PATH
    Path to the project JSON file, or "-" to read it from stdin.

Options:
`)
		flagSet.PrintDefaults()
	}

	cfg := &Config{}
	flagSet.StringVar(&cfg.RuntimePath, "runtime", "", "Path to the runtime preamble copied to the top of the program.")
	flagSet.Func("types", "Path to a node type registry (.hcl, or .json type to constructor table). May be repeated.", func(s string) error {
		cfg.TypesPaths = append(cfg.TypesPaths, s)
		return nil
	})
	flagSet.StringVar(&cfg.OutputPath, "o", "", "Output file. Defaults to stdout.")
	flagSet.BoolVar(&cfg.Topology, "topology", false, "Print the topology instead of the program.")
	flagSet.StringVar(&cfg.CacheDir, "cache-dir", "", "Directory of the persistent compile cache. Empty disables it.")
	logLevel := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", "console", "Log output format. Options: 'console' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	switch flagSet.NArg() {
	case 0:
		flagSet.Usage()
		return nil, true, nil
	case 1:
		cfg.ProjectPath = flagSet.Arg(0)
	default:
		return nil, false, &ExitError{Code: 2, Message: "exactly one project path is allowed"}
	}

	var err error
	if cfg.LogLevel, cfg.LogFormat, err = parseLogFlags(*logLevel, *logFormat); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func parseLogFlags(level, format string) (string, string, error) {
	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return "", "", &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	format = strings.ToLower(format)
	if format != "console" && format != "json" {
		return "", "", &ExitError{Code: 2, Message: "invalid log-format: must be 'console' or 'json'"}
	}
	return level, format, nil
}
