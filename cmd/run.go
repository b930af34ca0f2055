package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/config"
	"github.com/AlexKrutoy/SnapsterBot/internal/identity"
	"github.com/AlexKrutoy/SnapsterBot/internal/runner"
	"github.com/AlexKrutoy/SnapsterBot/internal/server"
)

type accountSupervisor interface {
	Run(ctx context.Context) error
	Registry() *runner.Registry
}

type statusServer interface {
	Start() error
	Stop(ctx context.Context) error
}

var (
	runSessionsDir   string
	runStatusAddr    string
	runLogLevel      string
	runProxyFromFile bool
)

var (
	newRunSupervisor = func(cfg *config.Config, accounts []account.Account, prints runner.Fingerprints, logger zerolog.Logger) accountSupervisor {
		return runner.NewSupervisor(cfg, accounts, prints, logger)
	}
	newStatusServer = func(opts server.Options, source server.StatusSource, logger zerolog.Logger) statusServer {
		return server.New(opts, source, logger)
	}
	signalNotifyContext = signal.NotifyContext
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reward loop for every session",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runSessionsDir, "sessions-dir", "", "session files directory (default: SESSIONS_DIR)")
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", "", "status endpoint listen address (default: STATUS_ADDR)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "log level (default: LOG_LEVEL)")
	runCmd.Flags().BoolVar(&runProxyFromFile, "proxy-file", false, "assign proxies from PROXY_FILE")
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if runSessionsDir != "" {
		cfg.SessionsDir = runSessionsDir
	}
	if runStatusAddr != "" {
		cfg.StatusAddr = runStatusAddr
	}
	if runLogLevel != "" {
		cfg.LogLevel = runLogLevel
	}
	if runProxyFromFile {
		cfg.UseProxyFromFile = true
	}

	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	logger := config.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Logger = logger
	logger.Info().
		Str("log_level", cfg.LogLevel).
		Msg("logger initialized")

	accounts, err := account.Load(account.LoadOptions{
		SessionsDir:      cfg.SessionsDir,
		AccountsFile:     cfg.AccountsFile,
		ProxyFile:        cfg.ProxyFile,
		UseProxyFromFile: cfg.UseProxyFromFile,
	})
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no sessions found in %s, create one with 'snapster session add <name>'", cfg.SessionsDir)
	}

	store := identity.NewStore(cfg.FingerprintFile)
	logger.Info().
		Int("sessions", len(accounts)).
		Int("fingerprints", len(store.Load())).
		Msg("accounts loaded")

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := newRunSupervisor(cfg, accounts, store, logger)

	if cfg.StatusAddr != "" {
		srv := newStatusServer(server.Options{Addr: cfg.StatusAddr, Token: cfg.StatusToken}, sup.Registry(), logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("status server exited with error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
			}
		}()
	}

	if err := sup.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("run exited with error")
		return err
	}

	if ctx.Err() != nil {
		logger.Info().Msg("shutdown signal received")
	}
	return nil
}
