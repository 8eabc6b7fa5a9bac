package daemonctl_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"seqwatch/internal/daemonctl"
	"seqwatch/internal/testsupport"
)

func writePID(t *testing.T, dir string, pid int) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(dir, "seqwatch.pid"), strconv.Itoa(pid)+"\n")
}

func TestProcessStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, state := daemonctl.Process(cfg); state != daemonctl.StateStopped {
		t.Fatalf("state without pid file = %q", state)
	}

	writePID(t, cfg.Paths.StateDir, os.Getpid())
	if pid, state := daemonctl.Process(cfg); state != daemonctl.StateRunning || pid != os.Getpid() {
		t.Fatalf("state for live pid = %q (%d)", state, pid)
	}
}

func TestStopRemovesStalePIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc := exec.Command("true")
	if err := proc.Run(); err != nil {
		t.Skipf("true unavailable: %v", err)
	}
	pidPath := writePID(t, cfg.Paths.StateDir, proc.Process.Pid)

	_, state, err := daemonctl.Stop(cfg, time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if state != daemonctl.StateStalePID {
		t.Fatalf("state = %q, want stale", state)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	proc := exec.Command("sleep", "30")
	if err := proc.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	go func() { _ = proc.Wait() }()
	writePID(t, cfg.Paths.StateDir, proc.Process.Pid)

	pid, state, err := daemonctl.Stop(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if pid != proc.Process.Pid || state != daemonctl.StateTerminated {
		t.Fatalf("Stop = %d %q", pid, state)
	}
	if _, state := daemonctl.Process(cfg); state != daemonctl.StateStopped {
		t.Fatalf("state after stop = %q", state)
	}
}

func TestEnsureStartedReportsEarlyExit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	falseBin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false unavailable")
	}
	if _, _, err := daemonctl.EnsureStarted(cfg, falseBin, daemonctl.LaunchOptions{}, 5*time.Second); err == nil {
		t.Fatal("expected startup failure")
	}
}
