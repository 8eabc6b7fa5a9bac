package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"seqwatch/internal/config"
	"seqwatch/internal/daemonrun"
)

const pollStep = 100 * time.Millisecond

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath    string
	LogLevel      string
	SkipPreflight bool
}

// State describes the daemon process as seen through its pid file.
type State string

const (
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateStalePID   State = "stale_pid"
	StateStarted    State = "started"
	StateTerminated State = "terminated"
	StateKilled     State = "killed"
)

// Process reports the daemon pid and whether it is alive.
func Process(cfg *config.Config) (int, State) {
	pid, ok := daemonrun.ReadPID(cfg)
	if !ok {
		return 0, StateStopped
	}
	if !alive(pid) {
		return pid, StateStalePID
	}
	return pid, StateRunning
}

func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Launch starts a detached `seqwatch daemon` process.
func Launch(executablePath string, opts LaunchOptions) (*os.Process, error) {
	if strings.TrimSpace(executablePath) == "" {
		return nil, fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if opts.SkipPreflight {
		args = append(args, "--skip-preflight")
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process, nil
}

// EnsureStarted launches the daemon unless one is already running and waits
// for it to record its pid.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, timeout time.Duration) (int, State, error) {
	if pid, state := Process(cfg); state == StateRunning {
		return pid, StateRunning, nil
	}
	proc, err := Launch(executablePath, opts)
	if err != nil {
		return 0, "", err
	}
	exited := make(chan error, 1)
	go func() {
		_, waitErr := proc.Wait()
		exited <- waitErr
	}()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-exited:
			return 0, "", fmt.Errorf("daemon exited during startup; see %s", filepath.Join(cfg.Paths.LogDir, "seqwatch.log"))
		default:
		}
		if pid, state := Process(cfg); state == StateRunning && pid == proc.Pid {
			return pid, StateStarted, nil
		}
		time.Sleep(pollStep)
	}
	return 0, "", fmt.Errorf("timeout waiting for daemon pid file")
}

// Stop sends SIGTERM to the recorded daemon and escalates to SIGKILL after
// grace. The pid and lock files are removed once the process is gone.
func Stop(cfg *config.Config, grace time.Duration) (int, State, error) {
	pid, state := Process(cfg)
	switch state {
	case StateStopped:
		return 0, StateStopped, nil
	case StateStalePID:
		cleanup(cfg)
		return pid, StateStalePID, nil
	}
	if pid == os.Getpid() {
		return 0, "", fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return pid, "", fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitGone(pid, grace) {
		cleanup(cfg)
		return pid, StateTerminated, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return pid, "", fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if !waitGone(pid, grace) {
		return pid, "", fmt.Errorf("daemon process %d did not exit", pid)
	}
	cleanup(cfg)
	return pid, StateKilled, nil
}

func waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollStep)
	}
}

func cleanup(cfg *config.Config) {
	for _, name := range []string{"seqwatch.pid", "seqwatch.lock"} {
		_ = os.Remove(filepath.Join(cfg.Paths.StateDir, name))
	}
}
