// Package sandbox routes tool execution (shell exec, filesystem access) to
// either the host process directly or an isolated Docker container, per the
// policy described in config.SandboxConfig. The docker backend shells out to
// the docker CLI rather than pulling in the Docker Engine API client, since
// no example repo in the pack depends on the engine SDK.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Mode controls which runs are sandboxed.
type Mode string

const (
	ModeOff     Mode = "off"      // never sandbox
	ModeNonMain Mode = "non-main" // sandbox subagents, not the main agent
	ModeAll     Mode = "all"      // sandbox every run
)

// Access controls the container's view of the host workspace.
type Access string

const (
	AccessNone Access = "none"
	AccessRO   Access = "ro"
	AccessRW   Access = "rw"
)

// Scope controls how containers are shared across runs.
type Scope string

const (
	ScopeSession Scope = "session" // one container per session key
	ScopeAgent   Scope = "agent"   // one container per agent
	ScopeShared  Scope = "shared"  // one container for the whole process
)

// Config mirrors config.SandboxConfig in the sandbox package's own terms.
type Config struct {
	Mode            Mode
	Image           string
	WorkspaceAccess Access
	Scope           Scope
	MemoryMB        int
	CPUs            float64
	TimeoutSec      int
	NetworkEnabled  bool
	ReadOnlyRoot    bool
	SetupCommand    string
	Env             map[string]string

	User           string
	TmpfsSizeMB    int
	MaxOutputBytes int

	IdleHours        int
	MaxAgeDays       int
	PruneIntervalMin int
}

func DefaultConfig() Config {
	return Config{
		Mode:             ModeOff,
		Image:            "moltis-sandbox:bookworm-slim",
		WorkspaceAccess:  AccessRW,
		Scope:            ScopeSession,
		MemoryMB:         512,
		CPUs:             1.0,
		TimeoutSec:       300,
		NetworkEnabled:   false,
		ReadOnlyRoot:     true,
		MaxOutputBytes:   1 << 20,
		IdleHours:        24,
		MaxAgeDays:       7,
		PruneIntervalMin: 5,
	}
}

// ErrSandboxDisabled is returned by Get when the manager's Config.Mode is
// ModeOff; callers fall back to host execution.
var ErrSandboxDisabled = errors.New("sandbox disabled")

// CheckDockerAvailable reports whether a docker CLI is reachable, so callers
// can fail open to host execution instead of erroring every tool call.
func CheckDockerAvailable(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "docker", "version", "--format", "{{.Server.Version}}").CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker not available: %w: %s", err, out)
	}
	return nil
}

// Sandbox is one live container, addressable by scope key.
type Sandbox interface {
	ID() string
	// Exec runs argv inside the container rooted at cwd (container-relative)
	// and returns combined stdout+stderr.
	Exec(ctx context.Context, argv []string, cwd string) (string, error)
}

// Manager creates and reuses Sandboxes keyed by scope key (session, agent,
// or a fixed shared key, depending on Config.Scope).
type Manager interface {
	Get(ctx context.Context, key string, hostWorkspace string) (Sandbox, error)
	Stop(ctx context.Context, key string) error
}

// DockerManager drives containers via the docker CLI.
type DockerManager struct {
	cfg Config

	mu         sync.Mutex
	containers map[string]*dockerSandbox
}

func NewDockerManager(cfg Config) *DockerManager {
	return &DockerManager{cfg: cfg, containers: make(map[string]*dockerSandbox)}
}

func (m *DockerManager) Get(ctx context.Context, key string, hostWorkspace string) (Sandbox, error) {
	if m.cfg.Mode == ModeOff {
		return nil, ErrSandboxDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sb, ok := m.containers[key]; ok {
		return sb, nil
	}

	name := fmt.Sprintf("moltis-sandbox-%s", sanitizeContainerName(key))
	args := []string{"run", "-d", "--name", name,
		"--memory", fmt.Sprintf("%dm", m.cfg.MemoryMB),
		"--cpus", fmt.Sprintf("%g", m.cfg.CPUs),
	}
	if !m.cfg.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	if m.cfg.ReadOnlyRoot {
		args = append(args, "--read-only")
	}
	if m.cfg.TmpfsSizeMB > 0 {
		args = append(args, "--tmpfs", fmt.Sprintf("/tmp:size=%dm", m.cfg.TmpfsSizeMB))
	}
	if m.cfg.User != "" {
		args = append(args, "--user", m.cfg.User)
	}
	switch m.cfg.WorkspaceAccess {
	case AccessRO:
		args = append(args, "-v", hostWorkspace+":/workspace:ro")
	case AccessRW:
		args = append(args, "-v", hostWorkspace+":/workspace")
	}
	for k, v := range m.cfg.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, m.cfg.Image, "sleep", "infinity")

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker run: %w: %s", err, out)
	}

	sb := &dockerSandbox{id: name, maxOutputBytes: m.cfg.MaxOutputBytes, timeout: time.Duration(m.cfg.TimeoutSec) * time.Second}
	if m.cfg.SetupCommand != "" {
		if _, err := sb.Exec(ctx, []string{"sh", "-c", m.cfg.SetupCommand}, "/workspace"); err != nil {
			return nil, fmt.Errorf("sandbox setup command: %w", err)
		}
	}
	m.containers[key] = sb
	return sb, nil
}

func (m *DockerManager) Stop(ctx context.Context, key string) error {
	m.mu.Lock()
	sb, ok := m.containers[key]
	delete(m.containers, key)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return exec.CommandContext(ctx, "docker", "rm", "-f", sb.id).Run()
}

// ReleaseAll stops and removes every container the manager currently tracks.
// Called on shutdown so a crashed or restarted process doesn't leak
// containers.
func (m *DockerManager) ReleaseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.containers))
	for _, sb := range m.containers {
		ids = append(ids, sb.id)
	}
	m.containers = make(map[string]*dockerSandbox)
	m.mu.Unlock()

	for _, id := range ids {
		if err := exec.CommandContext(ctx, "docker", "rm", "-f", id).Run(); err != nil {
			slog.Warn("sandbox: failed to remove container on shutdown", "container", id, "error", err)
		}
	}
}

type dockerSandbox struct {
	id             string
	maxOutputBytes int
	timeout        time.Duration
}

func (s *dockerSandbox) ID() string { return s.id }

func (s *dockerSandbox) Exec(ctx context.Context, argv []string, cwd string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	args := append([]string{"exec", "-w", cwd, s.id}, argv...)
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if s.maxOutputBytes > 0 && len(out) > s.maxOutputBytes {
		out = out[:s.maxOutputBytes]
	}
	return string(out), err
}

func sanitizeContainerName(key string) string {
	b := make([]byte, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b = append(b, byte(r))
		default:
			b = append(b, '-')
		}
	}
	if len(b) == 0 {
		return "default"
	}
	return string(b)
}
