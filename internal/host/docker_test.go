package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/rs/zerolog"
)

type mockDockerAPI struct {
	inspectFn func(ctx context.Context, id string) (dockertypes.ContainerJSON, error)
	startErr  error
	started   []string
	restarted []string
	stopped   []string
	stopErr   error
}

type notFoundError struct{}

func (notFoundError) Error() string { return "No such container: mc-1" }
func (notFoundError) NotFound()     {}

func (m *mockDockerAPI) Ping(context.Context) (dockertypes.Ping, error) {
	return dockertypes.Ping{APIVersion: "1.45"}, nil
}

func (m *mockDockerAPI) ContainerInspect(ctx context.Context, id string) (dockertypes.ContainerJSON, error) {
	if m.inspectFn != nil {
		return m.inspectFn(ctx, id)
	}
	return dockertypes.ContainerJSON{}, nil
}

func (m *mockDockerAPI) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, id)
	return nil
}

func (m *mockDockerAPI) ContainerRestart(_ context.Context, id string, _ container.StopOptions) error {
	m.restarted = append(m.restarted, id)
	return nil
}

func (m *mockDockerAPI) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stopped = append(m.stopped, id)
	return nil
}

func (m *mockDockerAPI) Close() error { return nil }

func running(state bool) func(context.Context, string) (dockertypes.ContainerJSON, error) {
	return func(context.Context, string) (dockertypes.ContainerJSON, error) {
		return dockertypes.ContainerJSON{
			ContainerJSONBase: &dockertypes.ContainerJSONBase{
				State: &dockertypes.ContainerState{Running: state},
			},
		}, nil
	}
}

func TestDockerManagerPing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_ping" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(server.Close)

	m, err := NewDockerManager(server.URL, "", 2*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDockerManager error: %v", err)
	}
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}

func TestDockerManager_StartRestartUsesContainerName(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{}
	m := &DockerManager{api: mock, container: "mc-1", timeout: time.Second, logger: zerolog.Nop()}

	if err := m.Start(context.Background(), "minecraft"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := m.Restart(context.Background(), "minecraft"); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	if len(mock.started) != 1 || mock.started[0] != "mc-1" {
		t.Fatalf("unexpected started: %v", mock.started)
	}
	if len(mock.restarted) != 1 || mock.restarted[0] != "mc-1" {
		t.Fatalf("unexpected restarted: %v", mock.restarted)
	}
}

func TestDockerManager_Stop(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{}
	m := &DockerManager{api: mock, timeout: time.Second, logger: zerolog.Nop()}
	if err := m.Stop(context.Background(), "minecraft"); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if len(mock.stopped) != 1 || mock.stopped[0] != "minecraft" {
		t.Fatalf("unexpected stopped: %v", mock.stopped)
	}

	m.api = &mockDockerAPI{stopErr: notFoundError{}}
	if err := m.Stop(context.Background(), "minecraft"); err != nil {
		t.Fatalf("expected missing container to count as stopped, got %v", err)
	}

	m.api = &mockDockerAPI{stopErr: errors.New("daemon down")}
	if err := m.Stop(context.Background(), "minecraft"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDockerManager_StartError(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{startErr: errors.New("no such image")}
	m := &DockerManager{api: mock, timeout: time.Second, logger: zerolog.Nop()}

	if err := m.Start(context.Background(), "minecraft"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDockerManager_IsRunning(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		inspect func(context.Context, string) (dockertypes.ContainerJSON, error)
		want    bool
		wantErr bool
	}{
		{name: "running", inspect: running(true), want: true},
		{name: "exited", inspect: running(false)},
		{name: "no state"},
		{
			name: "daemon error",
			inspect: func(context.Context, string) (dockertypes.ContainerJSON, error) {
				return dockertypes.ContainerJSON{}, errors.New("daemon down")
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := &DockerManager{api: &mockDockerAPI{inspectFn: tc.inspect}, timeout: time.Second, logger: zerolog.Nop()}
			got, err := m.IsRunning(context.Background(), "minecraft")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("IsRunning error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("IsRunning = %v, want %v", got, tc.want)
			}
		})
	}
}
