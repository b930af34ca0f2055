package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AlexKrutoy/SnapsterBot/internal/account"
	"github.com/AlexKrutoy/SnapsterBot/internal/config"
	"github.com/AlexKrutoy/SnapsterBot/internal/identity"
	"github.com/AlexKrutoy/SnapsterBot/internal/telegram"
)

var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var newSessionLogin = telegram.Login

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat-client sessions",
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Sign in and store a new session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionAdd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with their fingerprint and proxy",
	RunE:  runSessionList,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionAddCmd)
	sessionCmd.AddCommand(sessionListCmd)
}

func runSessionAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if !sessionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid session name: %q", name)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	path := account.SessionPath(cfg.SessionsDir, name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("session %s already exists", name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat session: %w", err)
	}

	result, err := newSessionLogin(context.Background(), telegram.Options{
		AppID:       cfg.APIID,
		AppHash:     cfg.APIHash,
		SessionPath: path,
	}, linePrompt(cmd.InOrStdin(), cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	store := identity.NewStore(cfg.FingerprintFile)
	if _, err := store.Resolve(name); err != nil {
		return fmt.Errorf("store fingerprint: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session created: %s\nUser ID: %d\n", name, result.UserID)
	return nil
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

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
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	store := identity.NewStore(cfg.FingerprintFile)
	fmt.Fprintln(cmd.OutOrStdout(), "SESSION\tPROXY\tUSER_AGENT")
	for _, acct := range accounts {
		ua, ok := store.Lookup(acct.Name)
		if !ok {
			ua = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", acct.Name, acct.Proxy, ua)
	}
	return nil
}

func linePrompt(in io.Reader, out io.Writer) telegram.Prompt {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, label string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return strings.TrimSpace(line), nil
	}
}
