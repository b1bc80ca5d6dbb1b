package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/birdayz/xodc/internal/cli"
)

const blink = `{
  "nodes": {
    "1": {"type": "core/button", "position": {"x": 10, "y": 20}},
    "2": {"type": "core/led"}
  },
  "links": {
    "a": {"fromNodeId": "1", "fromPinKey": "PRESSED", "toNodeId": "2", "toPinKey": "BRIGHTNESS"}
  }
}`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "blink.json")
	assert.NoError(t, os.WriteFile(project, []byte(blink), 0o600))

	t.Run("stdout", func(t *testing.T) {
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		err := run(t.Context(), nil, stdout, stderr, []string{project})
		assert.NoError(t, err)
		assert.Equal(t, `var nodes = {};
nodes["1"] = button({"PORT":"P1"});
nodes["2"] = led({"PORT":"LED1"});
var topology = ["1","2"];
function onInit() {
  nodes["2"].inputs["BRIGHTNESS"] = nodes["1"].outputs["PRESSED"];
}
`, stdout.String())
	})

	t.Run("stdin topology", func(t *testing.T) {
		stdout := &bytes.Buffer{}
		err := run(t.Context(), strings.NewReader(blink), stdout, &bytes.Buffer{}, []string{"-topology", "-"})
		assert.NoError(t, err)
		assert.Equal(t, "1\n2\n", stdout.String())
	})

	t.Run("output file with cache", func(t *testing.T) {
		out := filepath.Join(dir, "blink.js")
		args := []string{"-o", out, "-cache-dir", filepath.Join(dir, "cache"), "-log-level", "info", "-log-format", "json", project}

		stderr := &bytes.Buffer{}
		assert.NoError(t, run(t.Context(), nil, &bytes.Buffer{}, stderr, args))
		first, err := os.ReadFile(out)
		assert.NoError(t, err)
		assert.Contains(t, stderr.String(), `"cached":false`)

		// The pebble store is reopened by the second run.
		stderr.Reset()
		assert.NoError(t, run(t.Context(), nil, &bytes.Buffer{}, stderr, args))
		second, err := os.ReadFile(out)
		assert.NoError(t, err)
		assert.Equal(t, string(first), string(second))
		assert.Contains(t, stderr.String(), `"cached":true`)
	})

	t.Run("compile errors", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		assert.NoError(t, os.WriteFile(bad, []byte(`{"nodes":{"1":{"type":"x/a"},"2":{"type":"x/b"}}}`), 0o600))

		err := run(t.Context(), nil, &bytes.Buffer{}, &bytes.Buffer{}, []string{bad})
		var exitErr *cli.ExitError
		assert.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 1, exitErr.Code)
		lines := strings.Split(exitErr.Message, "\n")
		assert.Equal(t, 2, len(lines))
		assert.True(t, strings.HasPrefix(lines[0], "unknown_node_type: "))
	})

	t.Run("missing project file", func(t *testing.T) {
		err := run(t.Context(), nil, &bytes.Buffer{}, &bytes.Buffer{}, []string{filepath.Join(dir, "nope.json")})
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("help", func(t *testing.T) {
		stderr := &bytes.Buffer{}
		assert.NoError(t, run(t.Context(), nil, &bytes.Buffer{}, stderr, []string{"-h"}))
		assert.Contains(t, stderr.String(), "Usage:")
	})
}
