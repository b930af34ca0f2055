package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/bridge"
	"github.com/AlexKrutoy/SnapsterBot/internal/clock"
	"github.com/AlexKrutoy/SnapsterBot/internal/config"
	"github.com/AlexKrutoy/SnapsterBot/internal/orchestrator"
)

var ErrNoAccounts = errors.New("runner: no accounts to run")

// Supervisor runs every account concurrently. A failing account never
// stops its siblings.
type Supervisor struct {
	cfg      *config.Config
	accounts []account.Account
	prints   Fingerprints
	registry *Registry
	log      zerolog.Logger

	newChat ChatFactory
	newAPI  APIFactory
	sleep   clock.SleepFunc
}

func NewSupervisor(cfg *config.Config, accounts []account.Account, prints Fingerprints, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		accounts: accounts,
		prints:   prints,
		registry: NewRegistry(),
		log:      logger,
		newChat:  DefaultChatFactory(cfg),
		newAPI:   DefaultAPIFactory,
		sleep:    clock.Sleep,
	}
}

func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Run blocks until every account has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.accounts) == 0 {
		return ErrNoAccounts
	}

	s.log.Info().Int("accounts", len(s.accounts)).Msg("supervisor: starting accounts")

	var wg sync.WaitGroup
	for _, acct := range s.accounts {
		r := s.runner(acct)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.finish(r, r.Run(ctx))
		}()
	}
	wg.Wait()

	s.log.Info().Msg("supervisor: all accounts stopped")
	return nil
}

func (s *Supervisor) runner(acct account.Account) *Runner {
	runID := newRunID()
	return &Runner{
		cfg:   s.cfg,
		acct:  acct,
		runID: runID,
		log: s.log.With().
			Str("session", acct.Name).
			Str("run_id", runID).
			Logger(),
		registry: s.registry,
		prints:   s.prints,
		newChat:  s.newChat,
		newAPI:   s.newAPI,
		sleep:    s.sleep,
	}
}

func (s *Supervisor) finish(r *Runner, err error) {
	switch {
	case errors.Is(err, bridge.ErrInvalidSession):
		s.registry.setPhase(r.acct.Name, PhaseInvalid, err)
		r.log.Error().Msg("invalid session")
	case err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.registry.setPhase(r.acct.Name, PhaseStopped, nil)
		r.log.Info().Msg("account stopped")
	default:
		s.registry.setPhase(r.acct.Name, PhaseStopped, err)
		r.log.Error().Str("error", orchestrator.Sanitize(err)).Msg("account stopped with error")
	}
}
