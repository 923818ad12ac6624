package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkdelta/spinstats/internal/shared"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			var output bytes.Buffer

			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: &output})

			if runner.config != config {
				t.Error("expected provided config to be used")
			}
			if runner.logger != logger {
				t.Error("expected provided logger to be used")
			}
			if runner.output != &output {
				t.Error("expected provided output to be used")
			}
		})

		t.Run("with defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil || runner.logger == nil || runner.output == nil {
				t.Error("expected every dependency to be defaulted")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for _, cmd := range commands {
			names[cmd.Name] = true
		}

		for _, want := range []string{"serve", "setup"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		var output bytes.Buffer
		runner := NewRunner(RunnerOpts{Output: &output})

		if err := runner.writeJSON(map[string]string{"status": "ok"}, false); err != nil {
			t.Fatalf("writeJSON failed: %v", err)
		}
		if got := output.String(); got != "{\"status\":\"ok\"}\n" {
			t.Errorf("unexpected output: %q", got)
		}

		t.Run("pretty", func(t *testing.T) {
			output.Reset()
			if err := runner.writeJSON(map[string]string{"status": "ok"}, true); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if !strings.Contains(output.String(), "  \"status\"") {
				t.Errorf("expected indented output: %q", output.String())
			}
		})
	})
}

func TestSetup(t *testing.T) {
	var output bytes.Buffer
	runner := NewRunner(RunnerOpts{Output: &output})

	path := filepath.Join(t.TempDir(), "config.toml")
	cmd := setupCommand(runner)

	if err := cmd.Run(context.Background(), []string{"setup", "--config", path}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "[credentials.spotify]") {
		t.Error("expected spotify credentials section in starter config")
	}

	if !strings.Contains(output.String(), path) {
		t.Errorf("expected confirmation mentioning %s, got %q", path, output.String())
	}
}
