package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nholik/craft-sentinel/internal/config"
	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/notify"
	"github.com/nholik/craft-sentinel/internal/state"
	"github.com/rs/zerolog"
)

func seedState(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.NewFileStore(path, zerolog.Nop())
	err := store.Save(context.Background(), state.State{
		Flags: state.Flags{"installed": true, "started": true},
		Ports: []string{"25565/tcp"},
		Status: state.StatusRecord{
			Level:     health.LevelActive,
			Message:   "Ready.",
			UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFlagsCommand(t *testing.T) {
	t.Setenv("CS_STATE_PATH", seedState(t))

	out, err := execute(t, "flags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "installed\nstarted\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Setenv("CS_STATE_PATH", seedState(t))

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"status: active (Ready.)", "flags: installed, started", "ports: 25565/tcp"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommandJSON(t *testing.T) {
	t.Setenv("CS_STATE_PATH", seedState(t))

	out, err := execute(t, "status", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var view statusOutput
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.Status.Level != health.LevelActive || len(view.Flags) != 2 || len(view.Ports) != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestStatusCommandFreshState(t *testing.T) {
	t.Setenv("CS_STATE_PATH", filepath.Join(t.TempDir(), "missing.json"))

	out, err := execute(t, "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "status: unknown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStatusCommandConfigError(t *testing.T) {
	t.Setenv("CS_STATE_BACKEND", "etcd")

	if _, err := execute(t, "status"); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestHookRejectsUnknownTrigger(t *testing.T) {
	if _, err := execute(t, "hook", "leader-elected"); err == nil {
		t.Fatalf("expected unknown trigger error")
	}
}

func TestOptionsLoaderDefaultsWhenMissing(t *testing.T) {
	values, err := optionsLoader(filepath.Join(t.TempDir(), "options.yaml"))()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["server-port"] != "25565" {
		t.Fatalf("expected default port, got %q", values["server-port"])
	}
}

func TestOptionsLoaderReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.yaml")
	if err := os.WriteFile(path, []byte("options:\n  server-port: nope\n"), 0o600); err != nil {
		t.Fatalf("write options: %v", err)
	}
	if _, err := optionsLoader(path)(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestBuildNotifier(t *testing.T) {
	notifier, err := buildNotifier(config.Config{
		WebhookURL: "https://example.com/hook",
		DryRun:     true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := notifier.(*notify.DryRunNotifier); !ok {
		t.Fatalf("expected dry-run wrapper, got %T", notifier)
	}

	notifier, err = buildNotifier(config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	multi, ok := notifier.(*notify.MultiNotifier)
	if !ok || multi.Len() != 1 {
		t.Fatalf("expected multi notifier with the slack slot only, got %T", notifier)
	}

	if _, err := buildNotifier(config.Config{WebhookURL: "https://example.com/hook", WebhookTemplate: "{{"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected template error")
	}
}
