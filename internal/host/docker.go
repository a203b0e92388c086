package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

const defaultDockerTimeout = 30 * time.Second

// dockerAPI is the subset of the Docker SDK used by DockerManager.
type dockerAPI interface {
	Ping(ctx context.Context) (dockertypes.Ping, error)
	ContainerInspect(ctx context.Context, containerID string) (dockertypes.ContainerJSON, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

var _ dockerAPI = (*client.Client)(nil)

// DockerManager runs the server as a pre-created container. The service
// name passed to each call is used as the container name unless a fixed
// container was configured.
type DockerManager struct {
	api       dockerAPI
	container string
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewDockerManager initializes a Docker client for the given API host.
func NewDockerManager(host, containerName string, timeout time.Duration, logger zerolog.Logger) (*DockerManager, error) {
	if timeout <= 0 {
		timeout = defaultDockerTimeout
	}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	return &DockerManager{
		api:       api,
		container: containerName,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (m *DockerManager) target(name string) string {
	if m.container != "" {
		return m.container
	}
	return name
}

// Ping validates connectivity to the Docker daemon.
func (m *DockerManager) Ping(ctx context.Context) error {
	if m == nil || m.api == nil {
		return errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.api.Ping(ctx)
	return err
}

// Reload is a no-op; containers have no unit files to re-read.
func (m *DockerManager) Reload(context.Context) error {
	m.logger.Debug().Msg("docker backend has no unit manager to reload")
	return nil
}

// Start starts the container.
func (m *DockerManager) Start(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := m.target(name)
	if err := m.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}

// Restart restarts the container using its configured stop timeout.
func (m *DockerManager) Restart(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := m.target(name)
	if err := m.api.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("restart container %s: %w", id, err)
	}
	return nil
}

// Stop stops the container. A missing container counts as stopped.
func (m *DockerManager) Stop(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := m.target(name)
	if err := m.api.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	return nil
}

// IsRunning reports whether the container exists and is running.
func (m *DockerManager) IsRunning(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	id := m.target(name)
	info, err := m.api.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect container %s: %w", id, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return false, nil
	}
	return info.State.Running, nil
}

// Close releases the Docker client.
func (m *DockerManager) Close() error {
	if m == nil || m.api == nil {
		return nil
	}
	return m.api.Close()
}
