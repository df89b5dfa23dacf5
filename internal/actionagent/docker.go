package actionagent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/lanne/internal/shared"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// maxExecOutput bounds how much of a command's output is kept.
const maxExecOutput = 64 * 1024

// ErrContainerNotFound is returned when the target container does not exist.
var ErrContainerNotFound = errors.New("target container not found")

// commandArgv is the argv whitelist for every catalog command. Placeholders
// in braces are filled from params.
var commandArgv = map[string][]string{
	"journalctl":          {"journalctl", "-n", "{lines}", "--no-pager"},
	"syslog":              {"tail", "-n", "{lines}", "/var/log/syslog"},
	"dmesg":               {"dmesg", "--human", "--color=never", "-T"},
	"boot_log":            {"journalctl", "-b", "-n", "{lines}", "--no-pager"},
	"systemctl_list":      {"systemctl", "list-units", "--type=service", "--no-pager"},
	"systemctl_failed":    {"systemctl", "--failed", "--no-pager"},
	"disk_usage":          {"df", "-h"},
	"memory_detailed":     {"cat", "/proc/meminfo"},
	"cpu_usage":           {"top", "-bn1", "-o", "%CPU"},
	"processes_top":       {"ps", "aux", "--sort=-%mem"},
	"network_info":        {"ip", "addr", "show"},
	"network_connections": {"ss", "-tulpn"},
	"os_release":          {"cat", "/etc/os-release"},
	"debian_version":      {"cat", "/etc/debian_version"},
	"uptime":              {"uptime"},
	"apt_updates":         {"apt", "list", "--upgradable"},
	"dpkg_list":           {"dpkg", "-l"},
	"logged_users":        {"who"},
}

// paramDefaults fill placeholders the caller did not provide.
var paramDefaults = map[string]string{"lines": "100"}

// execAPI is the subset of the Docker client used by DockerAgent.
type execAPI interface {
	ContainerExecCreate(ctx context.Context, container string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// DockerAgent runs whitelisted commands inside a target container through
// the Docker exec API.
type DockerAgent struct {
	cli       execAPI
	container string
	timeout   time.Duration
}

var _ Agent = (*DockerAgent)(nil)

// NewDockerAgent connects to the Docker daemon from the environment.
func NewDockerAgent(containerName string, timeout time.Duration) (*DockerAgent, error) {
	if containerName == "" {
		return nil, errors.New("docker agent: container name is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker action agent initialized", "container", containerName)
	return newDockerAgent(cli, containerName, timeout), nil
}

func newDockerAgent(cli execAPI, containerName string, timeout time.Duration) *DockerAgent {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DockerAgent{cli: cli, container: containerName, timeout: timeout}
}

// Execute resolves command against the whitelist and runs it. A non-zero
// exit code is reported in Result, not as an error.
func (a *DockerAgent) Execute(ctx context.Context, command string, params map[string]string) (Result, error) {
	argv, err := buildArgv(command, params)
	if err != nil {
		return Result{}, shared.NewBackendError(backendName, command, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.cli.ContainerExecCreate(ctx, a.container, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			err = fmt.Errorf("%w: %s", ErrContainerNotFound, a.container)
		}
		return Result{}, shared.NewBackendError(backendName, command, fmt.Errorf("create exec: %w", err))
	}

	attachResp, err := a.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return Result{}, shared.NewBackendError(backendName, command, fmt.Errorf("attach exec: %w", err))
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if err := demux(ctx, &stdout, &stderr, attachResp); err != nil {
		return Result{}, shared.NewBackendError(backendName, command, fmt.Errorf("read exec output: %w", err))
	}

	inspect, err := a.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return Result{}, shared.NewBackendError(backendName, command, fmt.Errorf("inspect exec: %w", err))
	}

	return Result{
		ExitCode: inspect.ExitCode,
		Stdout:   shared.Truncate(stdout.String(), maxExecOutput),
		Stderr:   shared.Truncate(stderr.String(), maxExecOutput),
	}, nil
}

// demux copies the multiplexed exec stream, giving up when ctx ends.
func demux(ctx context.Context, stdout, stderr *bytes.Buffer, resp types.HijackedResponse) error {
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, resp.Reader)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		resp.Close()
		<-done
		return ctx.Err()
	}
}

func buildArgv(command string, params map[string]string) ([]string, error) {
	tmpl, ok := commandArgv[command]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCommandNotAllowed, command)
	}
	argv := make([]string, len(tmpl))
	for i, part := range tmpl {
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			argv[i] = part
			continue
		}
		name := strings.Trim(part, "{}")
		v, ok := params[name]
		if !ok {
			v, ok = paramDefaults[name]
		}
		if !ok || !validParam(v) {
			return nil, fmt.Errorf("%w: parameter %s", ErrCommandNotAllowed, name)
		}
		argv[i] = v
	}
	return argv, nil
}

// validParam accepts short numeric values only.
func validParam(v string) bool {
	if v == "" || len(v) > 6 {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
