package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/nholik/craft-sentinel/internal/options"
	"github.com/rs/zerolog"
)

// fakeHost implements every capability and records calls in order.
type fakeHost struct {
	calls    []string
	failOn   string
	resource string
	size     int64
	ports    []string
	reports  []health.Report
	rendered map[string]any
	modes    map[string]os.FileMode
}

func newFakeHost() *fakeHost {
	return &fakeHost{resource: "/srv/resources/server-jar", size: 1024, rendered: map[string]any{}, modes: map[string]os.FileMode{}}
}

func (f *fakeHost) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeHost) CreateAccount(_ context.Context, name, group, home string) error {
	return f.record(fmt.Sprintf("account %s:%s %s", name, group, home))
}

func (f *fakeHost) SetOwnership(_ context.Context, path, user, group string, recursive bool) error {
	return f.record(fmt.Sprintf("chown %s:%s %s %v", user, group, path, recursive))
}

func (f *fakeHost) CreateSymlink(target, link string) error {
	return f.record("symlink " + link + " -> " + target)
}

func (f *fakeHost) Render(_ context.Context, name, target, owner, group string, perm os.FileMode, data any) error {
	f.rendered[name] = data
	f.modes[name] = perm
	return f.record(fmt.Sprintf("render %s %s %s", name, target, owner))
}

func (f *fakeHost) Reload(context.Context) error { return f.record("reload") }

func (f *fakeHost) Start(_ context.Context, name string) error { return f.record("start " + name) }

func (f *fakeHost) Restart(_ context.Context, name string) error { return f.record("restart " + name) }

func (f *fakeHost) Stop(_ context.Context, name string) error { return f.record("stop " + name) }

func (f *fakeHost) IsRunning(context.Context, string) (bool, error) { return false, nil }

func (f *fakeHost) Open(_ context.Context, port int) error {
	return f.record(fmt.Sprintf("open %d", port))
}

func (f *fakeHost) Close(_ context.Context, port int) error {
	return f.record(fmt.Sprintf("close %d", port))
}

func (f *fakeHost) List(context.Context) ([]string, error) { return f.ports, nil }

func (f *fakeHost) Get(context.Context, string) (string, error) { return f.resource, nil }

func (f *fakeHost) FileSize(string) (int64, error) { return f.size, nil }

func (f *fakeHost) ReportStatus(_ context.Context, report health.Report) error {
	f.reports = append(f.reports, report)
	return f.record("status " + string(report.Level))
}

func newTestExecutor(h *fakeHost) *Executor {
	caps := Capabilities{
		Accounts: h, Files: h, Templates: h, Services: h,
		Ports: h, Resources: h, Reporter: h,
	}
	return New(caps, DefaultLayout("/srv/minecraft"), nil, zerolog.Nop())
}

func TestRunInstallPlan(t *testing.T) {
	h := newFakeHost()
	exec := newTestExecutor(h)
	config := options.NewSnapshot(nil, options.Defaults())

	plan := engine.Install(engine.Input{Flags: map[string]bool{}, Config: config})
	var committed []engine.Kind
	n, err := exec.Run(context.Background(), plan, config, func(a engine.Action) error {
		committed = append(committed, a.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if n != len(plan.Actions) || !reflect.DeepEqual(committed, plan.Kinds()) {
		t.Fatalf("expected every action committed, got %v", committed)
	}

	want := []string{
		"account minecraft:minecraft /srv/minecraft",
		"chown minecraft:minecraft /srv/minecraft true",
		"render eula.txt /srv/minecraft/eula.txt minecraft",
		"render server.properties /srv/minecraft/server.properties minecraft",
		"render minecraft.service /etc/systemd/system/minecraft.service ",
		"symlink /srv/minecraft/minecraft_server.jar -> /srv/resources/server-jar",
		"reload",
	}
	if !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("unexpected calls:\n got %q\nwant %q", h.calls, want)
	}

	wantModes := map[string]os.FileMode{
		"eula.txt":          0o644,
		"server.properties": 0o644,
		"minecraft.service": 0o644,
	}
	if !reflect.DeepEqual(h.modes, wantModes) {
		t.Fatalf("unexpected file modes: %v", h.modes)
	}

	props, ok := h.rendered["server.properties"].(struct{ Options map[string]string })
	if !ok || props.Options[options.ServerPort] != "25565" {
		t.Fatalf("unexpected properties data: %#v", h.rendered["server.properties"])
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	h := newFakeHost()
	h.failOn = "start"
	exec := newTestExecutor(h)

	plan := engine.Plan{Actions: []engine.Action{
		{Kind: engine.OpenPort, Port: 25565},
		{Kind: engine.ReportStatus, Status: health.Maintenance(health.MessageStarting)},
		{Kind: engine.StartService, Sets: map[string]bool{engine.FlagStarted: true}},
		{Kind: engine.ReportStatus, Status: health.Active(health.MessageReady)},
	}}

	var committed []engine.Kind
	n, err := exec.Run(context.Background(), plan, options.Snapshot{}, func(a engine.Action) error {
		committed = append(committed, a.Kind)
		return nil
	})

	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("expected ActionError, got %v", err)
	}
	if actionErr.Action.Kind != engine.StartService {
		t.Fatalf("unexpected failed action %s", actionErr.Action.Kind)
	}
	if n != 2 || len(committed) != 2 {
		t.Fatalf("expected 2 committed actions, got n=%d committed=%v", n, committed)
	}

	last := h.reports[len(h.reports)-1]
	if last.Level != health.LevelBlocked || last.Message != "StartService failed: boom" {
		t.Fatalf("unexpected failure report: %+v", last)
	}
	for _, report := range h.reports {
		if report.Level == health.LevelActive {
			t.Fatalf("ready reported after failure")
		}
	}
}

func TestCloseAllOpenPorts(t *testing.T) {
	h := newFakeHost()
	h.ports = []string{"25565/tcp", "25575/tcp"}
	exec := newTestExecutor(h)

	if err := exec.Apply(context.Background(), engine.Action{Kind: engine.CloseAllOpenPorts}, options.Snapshot{}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if want := []string{"close 25565", "close 25575"}; !reflect.DeepEqual(h.calls, want) {
		t.Fatalf("unexpected calls %v", h.calls)
	}
}

func TestLinkResourceMissingIsNoop(t *testing.T) {
	h := newFakeHost()
	h.resource = ""
	exec := newTestExecutor(h)

	if err := exec.Apply(context.Background(), engine.Action{Kind: engine.LinkResource}, options.Snapshot{}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if len(h.calls) != 0 {
		t.Fatalf("expected no calls, got %v", h.calls)
	}
}

func TestApplyUnknownAction(t *testing.T) {
	exec := newTestExecutor(newFakeHost())
	if err := exec.Apply(context.Background(), engine.Action{Kind: "Teleport"}, options.Snapshot{}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestResourceReady(t *testing.T) {
	cases := []struct {
		name     string
		resource string
		size     int64
		want     bool
	}{
		{name: "present", resource: "/srv/resources/server-jar", size: 10, want: true},
		{name: "empty", resource: "/srv/resources/server-jar", size: 0},
		{name: "missing", resource: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newFakeHost()
			h.resource = tc.resource
			h.size = tc.size
			_, ready, err := ResourceReady(context.Background(), h)
			if err != nil {
				t.Fatalf("ResourceReady error: %v", err)
			}
			if ready != tc.want {
				t.Fatalf("ResourceReady = %v, want %v", ready, tc.want)
			}
		})
	}
}
