// Package runner supervises one reward loop per account.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/api"
	"github.com/AlexKrutoy/SnapsterBot/internal/bridge"
	"github.com/AlexKrutoy/SnapsterBot/internal/clock"
	"github.com/AlexKrutoy/SnapsterBot/internal/config"
	"github.com/AlexKrutoy/SnapsterBot/internal/identity"
	"github.com/AlexKrutoy/SnapsterBot/internal/orchestrator"
	"github.com/AlexKrutoy/SnapsterBot/internal/telegram"
	"github.com/AlexKrutoy/SnapsterBot/internal/webapp"
)

// APIClient is the reward API surface a runner drives.
type APIClient interface {
	orchestrator.API
	SetCredential(cred *webapp.Credential, telegramID int64)
	PublicIP(ctx context.Context) (string, error)
}

type (
	ChatFactory func(acct account.Account, logger zerolog.Logger) (bridge.ChatClient, error)
	APIFactory  func(opts api.Options) APIClient
)

// Fingerprints resolves the persisted user agent of a session.
type Fingerprints interface {
	Resolve(name string) (string, error)
}

// Runner takes one account from proxy check to the reward loop.
type Runner struct {
	cfg      *config.Config
	acct     account.Account
	runID    string
	log      zerolog.Logger
	registry *Registry
	prints   Fingerprints

	newChat ChatFactory
	newAPI  APIFactory
	sleep   clock.SleepFunc
}

// Run returns an error matching bridge.ErrInvalidSession when the account's
// session is unusable, the context error on shutdown, or a setup error.
func (r *Runner) Run(ctx context.Context) error {
	r.registry.update(r.acct.Name, func(st *AccountStatus) {
		st.RunID = r.runID
		st.Phase = PhaseStarting
		st.Proxy = r.acct.Proxy.String()
	})

	userAgent, err := r.prints.Resolve(r.acct.Name)
	if err != nil {
		userAgent = identity.GenerateUserAgent()
		r.log.Warn().Err(err).Msg("fingerprint not persisted, using a transient one")
	}
	if !identity.IsMobileUserAgent(userAgent) {
		r.log.Warn().Str("user_agent", userAgent).Msg("fingerprint is not a mobile user agent")
	}

	apiOpts := api.Options{
		BaseURL:   r.cfg.APIBaseURL,
		WebAppURL: r.cfg.WebAppURL,
		UserAgent: userAgent,
		Timeout:   r.cfg.RequestTimeout,
		RPS:       r.cfg.APIRPS,
		Burst:     r.cfg.APIBurst,
	}
	if r.acct.Proxy != nil {
		apiOpts.ProxyURL = r.acct.Proxy.URL()
	}
	client := r.newAPI(apiOpts)

	if r.acct.Proxy != nil && r.cfg.CheckProxy {
		r.checkProxy(ctx, client)
	}

	chat, err := r.newChat(r.acct, r.log)
	if err != nil {
		return fmt.Errorf("chat client: %w", err)
	}

	r.registry.setPhase(r.acct.Name, PhaseBridging, nil)
	res, err := r.handshake(ctx, chat)
	if err != nil {
		return err
	}

	client.SetCredential(res.Credential, res.UserID)
	r.registry.update(r.acct.Name, func(st *AccountStatus) {
		st.Phase = PhaseRunning
		st.UserID = res.UserID
		st.Error = ""
	})
	r.log.Info().Int64("user_id", res.UserID).Msg("web app credential obtained")

	orch := orchestrator.New(client, orchestrator.Options{
		AutoMining:       r.cfg.AutoMining,
		ClaimReferral:    r.cfg.ClaimRefPoints,
		AutoQuest:        r.cfg.AutoQuest,
		InterActionDelay: r.cfg.InterActionDelay,
		QuestStepDelay:   r.cfg.QuestStepDelay,
		CycleIdleDelay:   r.cfg.CycleIdleDelay,
		CycleJitter:      r.cfg.CycleJitter,
		ErrorBackoff:     r.cfg.ErrorBackoff,
		StatsRetryDelay:  r.cfg.StatsRetryDelay,
		DailyClaimWindow: r.cfg.DailyClaimWindow,
	}, r.log)
	orch.SetObserver(func(report orchestrator.CycleReport) {
		r.registry.recordCycle(r.acct.Name, report)
	})

	return orch.Run(ctx)
}

// handshake retries bridging until it yields a credential or fails fatally.
func (r *Runner) handshake(ctx context.Context, chat bridge.ChatClient) (*bridge.Result, error) {
	b := bridge.New(chat, bridge.Options{
		Session:         r.acct.Name,
		BotUsername:     r.cfg.BotUsername,
		WebAppURL:       r.cfg.WebAppURL,
		RefID:           r.cfg.RefID,
		DecodeDepth:     r.cfg.WebAppDecodeDepth,
		FloodWaitMargin: r.cfg.FloodWaitMargin,
		FloodMaxRetries: r.cfg.FloodMaxRetries,
	}, r.log)

	for {
		res, err := b.Obtain(ctx)
		if err == nil && res != nil {
			return res, nil
		}
		if errors.Is(err, bridge.ErrInvalidSession) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		r.registry.setPhase(r.acct.Name, PhaseBridging, err)
		if err := r.sleep(ctx, r.cfg.BridgeRetryDelay); err != nil {
			return nil, err
		}
	}
}

func (r *Runner) checkProxy(ctx context.Context, client APIClient) {
	ip, err := client.PublicIP(ctx)
	if err != nil {
		r.log.Error().
			Str("proxy", r.acct.Proxy.String()).
			Str("error", orchestrator.Sanitize(err)).
			Msg("proxy check failed")
		return
	}
	r.log.Info().
		Str("ip", ip).
		Bool("socks", r.acct.Proxy.IsSOCKS()).
		Msg("proxy ip")
}

func newRunID() string {
	return uuid.NewString()
}

// DefaultChatFactory opens the account's session file through its proxy.
func DefaultChatFactory(cfg *config.Config) ChatFactory {
	return func(acct account.Account, logger zerolog.Logger) (bridge.ChatClient, error) {
		if _, err := telegram.NewDialer(acct.Proxy); err != nil {
			return nil, err
		}
		return telegram.NewClient(telegram.Options{
			AppID:       cfg.APIID,
			AppHash:     cfg.APIHash,
			SessionPath: acct.SessionPath,
			Proxy:       acct.Proxy,
		}, logger), nil
	}
}

func DefaultAPIFactory(opts api.Options) APIClient {
	return api.New(opts)
}
