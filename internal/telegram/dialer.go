package telegram

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"golang.org/x/net/proxy"
)

func init() {
	proxy.RegisterDialerType("http", newConnectDialer)
	proxy.RegisterDialerType("https", newConnectDialer)
}

// DialFunc opens the raw MTProto connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// NewDialer returns a dialer routing the chat-client connection through p.
// A nil proxy dials directly. socks4 is not supported by the chat client.
func NewDialer(p *account.Proxy) (DialFunc, error) {
	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	if p == nil {
		return direct.DialContext, nil
	}

	u, err := url.Parse(p.URL())
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}
	if u.Scheme == "socks5h" {
		u.Scheme = "socks5"
	}

	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", p, err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}

// connectDialer tunnels TCP through an HTTP proxy with CONNECT.
type connectDialer struct {
	proxyAddr string
	auth      string
	forward   proxy.Dialer
}

func newConnectDialer(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	d := &connectDialer{proxyAddr: u.Host, forward: forward}
	if u.User != nil {
		password, _ := u.User.Password()
		d.auth = base64.StdEncoding.EncodeToString([]byte(u.User.Username() + ":" + password))
	}
	return d, nil
}

func (d *connectDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *connectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, network, d.proxyAddr)
	} else {
		conn, err = d.forward.Dial(network, d.proxyAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial proxy: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.auth != "" {
		req.Header.Set("Proxy-Authorization", "Basic "+d.auth)
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("proxy connect: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy connect: %s", resp.Status)
	}

	return conn, nil
}
