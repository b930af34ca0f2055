package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/config"
	"github.com/AlexKrutoy/SnapsterBot/internal/runner"
	"github.com/AlexKrutoy/SnapsterBot/internal/server"
)

type fakeSupervisor struct {
	runFn    func(ctx context.Context) error
	registry *runner.Registry
}

func (f *fakeSupervisor) Run(ctx context.Context) error {
	if f.runFn != nil {
		return f.runFn(ctx)
	}
	return nil
}

func (f *fakeSupervisor) Registry() *runner.Registry {
	return f.registry
}

type fakeStatusServer struct {
	started chan struct{}
	stopped bool
}

func (f *fakeStatusServer) Start() error {
	close(f.started)
	return nil
}

func (f *fakeStatusServer) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func setupRunEnv(t *testing.T, sessions ...string) string {
	t.Helper()

	dir := t.TempDir()
	sessionsDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		t.Fatalf("mkdir sessions: %v", err)
	}
	for _, name := range sessions {
		if err := os.WriteFile(filepath.Join(sessionsDir, name+".session"), []byte("{}"), 0o600); err != nil {
			t.Fatalf("write session: %v", err)
		}
	}

	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abcdef")
	t.Setenv("SESSIONS_DIR", sessionsDir)
	t.Setenv("ACCOUNTS_FILE", filepath.Join(dir, "accounts.yaml"))
	t.Setenv("PROXY_FILE", filepath.Join(dir, "proxies.txt"))
	t.Setenv("FINGERPRINT_FILE", filepath.Join(dir, "accounts.json"))
	t.Setenv("STATUS_ADDR", "")
	t.Setenv("LOG_FILE", "")
	return dir
}

func restoreRunHooks(t *testing.T) {
	origSupervisor := newRunSupervisor
	origStatus := newStatusServer
	origSignal := signalNotifyContext
	origDir, origAddr, origLevel, origProxy := runSessionsDir, runStatusAddr, runLogLevel, runProxyFromFile
	t.Cleanup(func() {
		newRunSupervisor = origSupervisor
		newStatusServer = origStatus
		signalNotifyContext = origSignal
		runSessionsDir, runStatusAddr, runLogLevel, runProxyFromFile = origDir, origAddr, origLevel, origProxy
	})
}

func TestRunStartsSupervisor(t *testing.T) {
	restoreRunHooks(t)
	setupRunEnv(t, "bob", "alice")
	runLogLevel = "debug"

	var (
		capturedCfg      *config.Config
		capturedAccounts []account.Account
	)
	newRunSupervisor = func(cfg *config.Config, accounts []account.Account, _ runner.Fingerprints, _ zerolog.Logger) accountSupervisor {
		copied := *cfg
		capturedCfg = &copied
		capturedAccounts = accounts
		return &fakeSupervisor{registry: runner.NewRegistry()}
	}

	if err := runRun(nil, nil); err != nil {
		t.Fatalf("runRun error: %v", err)
	}
	if capturedCfg == nil {
		t.Fatal("newRunSupervisor was not called")
	}
	if capturedCfg.LogLevel != "debug" || capturedCfg.APIID != 12345 {
		t.Fatalf("unexpected cfg: %+v", *capturedCfg)
	}
	if len(capturedAccounts) != 2 || capturedAccounts[0].Name != "alice" || capturedAccounts[1].Name != "bob" {
		t.Fatalf("accounts = %+v", capturedAccounts)
	}
}

func TestRunRequiresTelegramCredentials(t *testing.T) {
	restoreRunHooks(t)
	setupRunEnv(t, "alice")
	t.Setenv("API_ID", "")
	os.Unsetenv("API_ID")

	err := runRun(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "API_ID") {
		t.Fatalf("runRun error = %v, want missing API_ID", err)
	}
}

func TestRunWithoutSessions(t *testing.T) {
	restoreRunHooks(t)
	setupRunEnv(t)

	err := runRun(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "no sessions found") {
		t.Fatalf("runRun error = %v, want no sessions", err)
	}
}

func TestRunShutdownWithStatusServer(t *testing.T) {
	restoreRunHooks(t)
	setupRunEnv(t, "alice")
	runStatusAddr = "127.0.0.1:0"

	status := &fakeStatusServer{started: make(chan struct{})}
	var statusOpts server.Options
	newStatusServer = func(opts server.Options, _ server.StatusSource, _ zerolog.Logger) statusServer {
		statusOpts = opts
		return status
	}
	newRunSupervisor = func(*config.Config, []account.Account, runner.Fingerprints, zerolog.Logger) accountSupervisor {
		return &fakeSupervisor{
			registry: runner.NewRegistry(),
			runFn: func(ctx context.Context) error {
				<-status.started
				<-ctx.Done()
				return nil
			},
		}
	}
	signalNotifyContext = func(parent context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, func() {}
	}

	if err := runRun(nil, nil); err != nil {
		t.Fatalf("runRun shutdown path error: %v", err)
	}
	if statusOpts.Addr != "127.0.0.1:0" {
		t.Fatalf("status addr = %q", statusOpts.Addr)
	}
	if !status.stopped {
		t.Fatal("status server was not stopped")
	}
}

func TestRunSupervisorError(t *testing.T) {
	restoreRunHooks(t)
	setupRunEnv(t, "alice")

	newRunSupervisor = func(*config.Config, []account.Account, runner.Fingerprints, zerolog.Logger) accountSupervisor {
		return &fakeSupervisor{
			registry: runner.NewRegistry(),
			runFn:    func(context.Context) error { return fmt.Errorf("boom") },
		}
	}

	if err := runRun(nil, nil); err == nil || err.Error() != "boom" {
		t.Fatalf("runRun error = %v, want boom", err)
	}
}
