package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const webViewURL = "https://prod.snapster.bot/#tgWebAppData=query_id%3D123%26user%3D%257B%2522id%2522%253A1%257D%26auth_date%3D999%26hash%3Dabc&tgWebAppVersion=7.10"

type fakeChat struct {
	connected  bool
	connectErr error

	history    []Message
	historyErr error
	sent       []string

	resolveErrs []error
	resolves    int

	webViewURL string
	webViewReq WebViewRequest
	selfID     int64

	connects    int
	disconnects int
}

func (f *fakeChat) IsConnected() bool { return f.connected }

func (f *fakeChat) Connect(context.Context) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChat) Disconnect(context.Context) error {
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeChat) ResolvePeer(_ context.Context, username string) (Peer, error) {
	f.resolves++
	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]
		return Peer{}, err
	}
	return Peer{UserID: 77, AccessHash: 88, Username: username}, nil
}

func (f *fakeChat) History(context.Context, string, int) ([]Message, error) {
	return f.history, f.historyErr
}

func (f *fakeChat) SendMessage(_ context.Context, _ string, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChat) RequestWebView(_ context.Context, req WebViewRequest) (string, error) {
	f.webViewReq = req
	if f.webViewURL == "" {
		return webViewURL, nil
	}
	return f.webViewURL, nil
}

func (f *fakeChat) Self(context.Context) (int64, error) { return f.selfID, nil }

type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func newTestBridge(chat *fakeChat, opts Options) (*Bridge, *sleepRecorder) {
	if opts.Session == "" {
		opts.Session = "alpha"
	}
	if opts.BotUsername == "" {
		opts.BotUsername = "snapster_bot"
	}
	if opts.WebAppURL == "" {
		opts.WebAppURL = "https://prod.snapster.bot/"
	}
	if opts.FloodWaitMargin == 0 {
		opts.FloodWaitMargin = 3 * time.Second
	}
	b := New(chat, opts, zerolog.Nop())
	rec := &sleepRecorder{}
	b.sleep = rec.sleep
	return b, rec
}

func TestObtainExtractsCredential(t *testing.T) {
	chat := &fakeChat{selfID: 4242}
	b, _ := newTestBridge(chat, Options{RefID: "555"})

	res, err := b.Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if res.UserID != 4242 || b.UserID() != 4242 {
		t.Fatalf("UserID = %d/%d, want 4242", res.UserID, b.UserID())
	}
	if res.Credential.Hash != "abc" {
		t.Fatalf("Hash = %q, want %q", res.Credential.Hash, "abc")
	}
	if b.State() != StateExtracted {
		t.Fatalf("State() = %s, want %s", b.State(), StateExtracted)
	}
	if chat.webViewReq.Platform != "android" || chat.webViewReq.FromBotMenu {
		t.Fatalf("web view request = %+v", chat.webViewReq)
	}
	if chat.webViewReq.Peer.UserID != 77 {
		t.Fatalf("web view peer = %+v", chat.webViewReq.Peer)
	}
	if len(chat.sent) != 1 || chat.sent[0] != "/start 555" {
		t.Fatalf("sent = %v, want [/start 555]", chat.sent)
	}
	if chat.connects != 1 || chat.disconnects != 1 {
		t.Fatalf("connects/disconnects = %d/%d, want 1/1", chat.connects, chat.disconnects)
	}
}

func TestObtainKeepsExistingConnection(t *testing.T) {
	chat := &fakeChat{connected: true}
	b, _ := newTestBridge(chat, Options{})

	if _, err := b.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if chat.connects != 0 || chat.disconnects != 0 {
		t.Fatalf("connects/disconnects = %d/%d, want 0/0", chat.connects, chat.disconnects)
	}
	if !chat.connected {
		t.Fatal("pre-existing connection was closed")
	}
}

func TestObtainSkipsStartWhenAlreadyStarted(t *testing.T) {
	chat := &fakeChat{history: []Message{
		{Text: "hello"},
		{Caption: "/start 999"},
	}}
	b, _ := newTestBridge(chat, Options{})

	if _, err := b.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if len(chat.sent) != 0 {
		t.Fatalf("sent = %v, want none", chat.sent)
	}
}

func TestObtainUsesFallbackRefID(t *testing.T) {
	chat := &fakeChat{}
	b, _ := newTestBridge(chat, Options{})

	if _, err := b.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if len(chat.sent) != 1 || chat.sent[0] != "/start "+DefaultRefID {
		t.Fatalf("sent = %v, want fallback referral", chat.sent)
	}
}

func TestObtainBootstrapFailureIsBestEffort(t *testing.T) {
	chat := &fakeChat{historyErr: errors.New("history unavailable")}
	b, _ := newTestBridge(chat, Options{})

	if _, err := b.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
}

func TestObtainFloodWaitRetries(t *testing.T) {
	chat := &fakeChat{resolveErrs: []error{
		&FloodWaitError{Wait: 2 * time.Second},
		fmt.Errorf("wrapped: %w", &FloodWaitError{Wait: 0}),
	}}
	b, rec := newTestBridge(chat, Options{})

	if _, err := b.Obtain(context.Background()); err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if chat.resolves != 3 {
		t.Fatalf("resolves = %d, want 3 (two retries)", chat.resolves)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("sleeps = %v, want 2", rec.slept)
	}

	var total time.Duration
	for _, d := range rec.slept {
		total += d
	}
	if want := (2 + 3 + 0 + 3) * time.Second; total < want {
		t.Fatalf("total sleep = %s, want >= %s", total, want)
	}
}

func TestObtainFloodWaitRetryLimit(t *testing.T) {
	chat := &fakeChat{resolveErrs: []error{
		&FloodWaitError{Wait: time.Second},
		&FloodWaitError{Wait: time.Second},
		&FloodWaitError{Wait: time.Second},
	}}
	b, rec := newTestBridge(chat, Options{FloodMaxRetries: 2})

	_, err := b.Obtain(context.Background())
	if err == nil {
		t.Fatal("Obtain() error = nil, want retries exhausted")
	}
	if errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Obtain() error = %v, flood exhaustion must not be fatal", err)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(rec.slept))
	}
	if b.State() != StateFailed {
		t.Fatalf("State() = %s, want %s", b.State(), StateFailed)
	}
}

func TestObtainConnectUnauthorizedIsFatal(t *testing.T) {
	chat := &fakeChat{connectErr: fmt.Errorf("AUTH_KEY_UNREGISTERED: %w", ErrUnauthorized)}
	b, rec := newTestBridge(chat, Options{})

	_, err := b.Obtain(context.Background())
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Obtain() error = %v, want ErrInvalidSession", err)
	}
	var invalid *InvalidSessionError
	if !errors.As(err, &invalid) || invalid.Session != "alpha" {
		t.Fatalf("Obtain() error = %#v, want *InvalidSessionError for alpha", err)
	}
	if chat.resolves != 0 || len(rec.slept) != 0 {
		t.Fatal("fatal connect error must not be retried")
	}
}

func TestObtainBadWebViewURLIsSoft(t *testing.T) {
	chat := &fakeChat{webViewURL: "https://prod.snapster.bot/#tgWebAppVersion=7.10"}
	b, _ := newTestBridge(chat, Options{})

	_, err := b.Obtain(context.Background())
	if err == nil {
		t.Fatal("Obtain() error = nil, want parse failure")
	}
	if errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Obtain() error = %v, parse failure must not be fatal", err)
	}
	if chat.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", chat.disconnects)
	}
}

func TestStateString(t *testing.T) {
	if got := StateResolving.String(); got != "resolving" {
		t.Fatalf("String() = %q, want resolving", got)
	}
	if got := State(99).String(); got != "state(99)" {
		t.Fatalf("String() = %q, want state(99)", got)
	}
}
