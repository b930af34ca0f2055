// Package bridge turns an authenticated chat-client session into a signed
// mini-app credential.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AlexKrutoy/SnapsterBot/internal/clock"
	"github.com/AlexKrutoy/SnapsterBot/internal/webapp"
	"github.com/rs/zerolog"
)

const (
	DefaultRefID        = "737844465"
	defaultHistoryLimit = 20
	webViewPlatform     = "android"
	startCommand        = "/start"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateBootstrapping
	StateResolving
	StateRequesting
	StateExtracted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateBootstrapping:
		return "bootstrapping"
	case StateResolving:
		return "resolving"
	case StateRequesting:
		return "requesting"
	case StateExtracted:
		return "extracted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Options struct {
	Session         string
	BotUsername     string
	WebAppURL       string
	RefID           string
	DecodeDepth     int
	FloodWaitMargin time.Duration
	// FloodMaxRetries bounds resolve retries; 0 retries until the flood
	// window is over.
	FloodMaxRetries int
	HistoryLimit    int
}

// Result is the outcome of a successful handshake.
type Result struct {
	Credential *webapp.Credential
	UserID     int64
}

type Bridge struct {
	client ChatClient
	opts   Options
	log    zerolog.Logger
	sleep  clock.SleepFunc

	mu     sync.Mutex
	state  State
	userID int64
}

func New(client ChatClient, opts Options, logger zerolog.Logger) *Bridge {
	if strings.TrimSpace(opts.RefID) == "" {
		opts.RefID = DefaultRefID
	}
	if opts.DecodeDepth == 0 {
		opts.DecodeDepth = 1
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}

	return &Bridge{
		client: client,
		opts:   opts,
		log:    logger,
		sleep:  clock.Sleep,
	}
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// UserID is the cached platform user id, 0 until a handshake succeeded.
func (b *Bridge) UserID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

// Obtain runs the handshake. Errors matching ErrInvalidSession are fatal for
// the account; any other error means the caller may retry after a pause.
func (b *Bridge) Obtain(ctx context.Context) (*Result, error) {
	res, err := b.obtain(ctx)
	if err != nil {
		b.setState(StateFailed)
		if errors.Is(err, ErrUnauthorized) {
			return nil, &InvalidSessionError{Session: b.opts.Session, Err: err}
		}
		if ctx.Err() == nil {
			b.log.Error().Err(err).Msg("unknown error during authorization")
		}
		return nil, err
	}

	b.setState(StateExtracted)
	return res, nil
}

func (b *Bridge) obtain(ctx context.Context) (res *Result, err error) {
	if !b.client.IsConnected() {
		b.setState(StateConnecting)
		if err := b.client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		defer func() {
			if discErr := b.client.Disconnect(context.WithoutCancel(ctx)); discErr != nil {
				b.log.Debug().Err(discErr).Msg("disconnect failed")
			}
		}()
	}

	b.setState(StateBootstrapping)
	if err := b.bootstrap(ctx); err != nil {
		if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
			return nil, err
		}
		b.log.Warn().Err(err).Msg("bot start check failed")
	}

	b.setState(StateResolving)
	peer, err := b.resolvePeer(ctx)
	if err != nil {
		return nil, err
	}

	b.setState(StateRequesting)
	rawURL, err := b.client.RequestWebView(ctx, WebViewRequest{
		Peer:        peer,
		URL:         b.opts.WebAppURL,
		Platform:    webViewPlatform,
		FromBotMenu: false,
	})
	if err != nil {
		return nil, fmt.Errorf("request web view: %w", err)
	}

	cred, err := webapp.Parse(rawURL, b.opts.DecodeDepth)
	if err != nil {
		return nil, fmt.Errorf("extract web app data: %w", err)
	}

	userID, err := b.client.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("get self: %w", err)
	}

	b.mu.Lock()
	b.userID = userID
	b.mu.Unlock()

	return &Result{Credential: cred, UserID: userID}, nil
}

// bootstrap sends "/start <ref>" unless the history already shows a start.
func (b *Bridge) bootstrap(ctx context.Context) error {
	messages, err := b.client.History(ctx, b.opts.BotUsername, b.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	for _, msg := range messages {
		if strings.HasPrefix(msg.Text, startCommand) || strings.HasPrefix(msg.Caption, startCommand) {
			return nil
		}
	}

	text := startCommand + " " + b.opts.RefID
	if err := b.client.SendMessage(ctx, b.opts.BotUsername, text); err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	b.log.Info().Str("ref_id", b.opts.RefID).Msg("bot started with referral")

	return nil
}

func (b *Bridge) resolvePeer(ctx context.Context) (Peer, error) {
	retries := 0
	for {
		peer, err := b.client.ResolvePeer(ctx, b.opts.BotUsername)
		if err == nil {
			return peer, nil
		}

		wait, ok := AsFloodWait(err)
		if !ok {
			return Peer{}, fmt.Errorf("resolve peer: %w", err)
		}
		retries++
		if b.opts.FloodMaxRetries > 0 && retries > b.opts.FloodMaxRetries {
			return Peer{}, fmt.Errorf("resolve peer: flood wait retries exhausted: %w", err)
		}

		b.log.Warn().
			Dur("wait", wait).
			Int("retry", retries).
			Msg("flood wait on resolve peer")
		if err := b.sleep(ctx, wait+b.opts.FloodWaitMargin); err != nil {
			return Peer{}, err
		}
	}
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()

	if prev != s {
		b.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("bridge state")
	}
}
