package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

// Prompt asks the operator for one line of input.
type Prompt func(ctx context.Context, label string) (string, error)

// LoginResult describes the account a new session belongs to.
type LoginResult struct {
	UserID   int64
	Username string
	Phone    string
}

// Login signs a new session file in interactively: phone number, login
// code and, when the account has one, the 2FA password.
func Login(ctx context.Context, opts Options, prompt Prompt) (*LoginResult, error) {
	if err := os.MkdirAll(filepath.Dir(opts.SessionPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	c := NewClient(opts, zerolog.Nop())
	engine, err := c.newEngine()
	if err != nil {
		return nil, err
	}

	var result *LoginResult
	err = engine.Run(ctx, func(ctx context.Context) error {
		phone, err := prompt(ctx, "Phone number")
		if err != nil {
			return err
		}

		flow := auth.NewFlow(
			terminalAuth{phone: phone, prompt: prompt},
			auth.SendCodeOptions{},
		)
		if err := engine.Auth().IfNecessary(ctx, flow); err != nil {
			return classify(err)
		}

		self, err := engine.Self(ctx)
		if err != nil {
			return classify(err)
		}
		result = &LoginResult{UserID: self.ID, Username: self.Username, Phone: self.Phone}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return result, nil
}

type terminalAuth struct {
	phone  string
	prompt Prompt
}

func (a terminalAuth) Phone(context.Context) (string, error) {
	return a.phone, nil
}

func (a terminalAuth) Password(ctx context.Context) (string, error) {
	return a.prompt(ctx, "2FA password")
}

func (a terminalAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt(ctx, "Login code")
}

func (terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (terminalAuth) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, fmt.Errorf("sign up is not supported, register the number in an official app first")
}
