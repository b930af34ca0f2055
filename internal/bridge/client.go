package bridge

import "context"

// Peer is a resolved bot reference.
type Peer struct {
	UserID     int64
	AccessHash int64
	Username   string
}

// Message is the part of a chat message the bridge inspects.
type Message struct {
	Text    string
	Caption string
}

type WebViewRequest struct {
	Peer        Peer
	URL         string
	Platform    string
	FromBotMenu bool
}

// ChatClient is the chat-client capability used by the bridge. Any method may
// fail with *FloodWaitError or an error wrapping ErrUnauthorized.
type ChatClient interface {
	IsConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ResolvePeer(ctx context.Context, username string) (Peer, error)
	History(ctx context.Context, username string, limit int) ([]Message, error)
	SendMessage(ctx context.Context, username, text string) error
	RequestWebView(ctx context.Context, req WebViewRequest) (string, error)
	Self(ctx context.Context) (int64, error)
}
