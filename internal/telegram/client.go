// Package telegram implements the chat-client capability on top of an
// MTProto user session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/bridge"
)

var errNotConnected = errors.New("telegram: not connected")

type Options struct {
	AppID       int
	AppHash     string
	SessionPath string
	Proxy       *account.Proxy
}

// Client owns one session file. Connect starts the MTProto engine in the
// background and Disconnect stops it; a Client may be connected again later.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	tg     *telegram.Client
	api    *tg.Client
	cancel context.CancelFunc
	done   chan error
	peers  map[string]*tg.InputPeerUser
}

var _ bridge.ChatClient = (*Client)(nil)

func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{
		opts:  opts,
		log:   logger,
		peers: make(map[string]*tg.InputPeerUser),
	}
}

func (c *Client) newEngine() (*telegram.Client, error) {
	dial, err := NewDialer(c.opts.Proxy)
	if err != nil {
		return nil, err
	}

	return telegram.NewClient(c.opts.AppID, c.opts.AppHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.opts.SessionPath},
		Resolver:       dcs.Plain(dcs.PlainOptions{Dial: dcs.DialFunc(dial)}),
		NoUpdates:      true,
	}), nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api != nil
}

// Connect blocks until the session is usable. A session that is not signed
// in fails with bridge.ErrUnauthorized.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.api != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	engine, err := c.newEngine()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- engine.Run(runCtx, func(ctx context.Context) error {
			status, err := engine.Auth().Status(ctx)
			if err != nil {
				return classify(err)
			}
			if !status.Authorized {
				return fmt.Errorf("%w: session is not signed in", bridge.ErrUnauthorized)
			}
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		if err == nil {
			err = errNotConnected
		}
		return classify(err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}

	c.mu.Lock()
	c.tg = engine
	c.api = engine.API()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.log.Debug().Str("proxy", c.opts.Proxy.String()).Msg("telegram: connected")
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.tg, c.api, c.cancel, c.done = nil, nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Debug().Msg("telegram: disconnected")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) client() (*telegram.Client, *tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, nil, errNotConnected
	}
	return c.tg, c.api, nil
}

func (c *Client) ResolvePeer(ctx context.Context, username string) (bridge.Peer, error) {
	input, err := c.resolve(ctx, username)
	if err != nil {
		return bridge.Peer{}, err
	}
	return bridge.Peer{
		UserID:     input.UserID,
		AccessHash: input.AccessHash,
		Username:   normalizeUsername(username),
	}, nil
}

func (c *Client) resolve(ctx context.Context, username string) (*tg.InputPeerUser, error) {
	name := normalizeUsername(username)

	c.mu.Lock()
	cached, ok := c.peers[name]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	_, api, err := c.client()
	if err != nil {
		return nil, err
	}

	resolved, err := peer.Plain(api).ResolveDomain(ctx, name)
	if err != nil {
		return nil, classify(err)
	}
	user, ok := resolved.(*tg.InputPeerUser)
	if !ok {
		return nil, fmt.Errorf("telegram: @%s is not a user (%T)", name, resolved)
	}

	c.mu.Lock()
	c.peers[name] = user
	c.mu.Unlock()
	return user, nil
}

func (c *Client) History(ctx context.Context, username string, limit int) ([]bridge.Message, error) {
	input, err := c.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	_, api, err := c.client()
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  input,
		Limit: limit,
	})
	if err != nil {
		return nil, classify(err)
	}

	var raw []tg.MessageClass
	switch h := res.(type) {
	case *tg.MessagesMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	}

	messages := make([]bridge.Message, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		out := bridge.Message{Text: msg.Message}
		if msg.Media != nil {
			// media captions travel in the message text
			out.Caption, out.Text = msg.Message, ""
		}
		messages = append(messages, out)
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, username, text string) error {
	input, err := c.resolve(ctx, username)
	if err != nil {
		return err
	}
	_, api, err := c.client()
	if err != nil {
		return err
	}

	if _, err := message.NewSender(api).To(input).Text(ctx, text); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) RequestWebView(ctx context.Context, req bridge.WebViewRequest) (string, error) {
	_, api, err := c.client()
	if err != nil {
		return "", err
	}

	res, err := api.MessagesRequestWebView(ctx, &tg.MessagesRequestWebViewRequest{
		Peer:        &tg.InputPeerUser{UserID: req.Peer.UserID, AccessHash: req.Peer.AccessHash},
		Bot:         &tg.InputUser{UserID: req.Peer.UserID, AccessHash: req.Peer.AccessHash},
		URL:         req.URL,
		Platform:    req.Platform,
		FromBotMenu: req.FromBotMenu,
	})
	if err != nil {
		return "", classify(err)
	}
	return res.URL, nil
}

func (c *Client) Self(ctx context.Context) (int64, error) {
	engine, _, err := c.client()
	if err != nil {
		return 0, err
	}

	self, err := engine.Self(ctx)
	if err != nil {
		return 0, classify(err)
	}
	return self.ID, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
