package account

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const sessionExt = ".session"

// LoadOptions controls where accounts and their proxies come from.
type LoadOptions struct {
	SessionsDir      string
	AccountsFile     string
	ProxyFile        string
	UseProxyFromFile bool
}

type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Session string `yaml:"session"`
	Proxy   string `yaml:"proxy"`
}

// Load lists every session in SessionsDir and assigns proxies: entries of the
// accounts file win, then the proxy file round-robin when enabled.
func Load(opts LoadOptions) ([]Account, error) {
	names, err := SessionNames(opts.SessionsDir)
	if err != nil {
		return nil, err
	}

	assigned, err := readAccountsFile(opts.AccountsFile)
	if err != nil {
		return nil, err
	}

	var pool []*Proxy
	if opts.UseProxyFromFile {
		pool, err = ReadProxyFile(opts.ProxyFile)
		if err != nil {
			return nil, err
		}
	}

	accounts := make([]Account, 0, len(names))
	next := 0
	for _, name := range names {
		acct := Account{
			Name:        name,
			SessionPath: filepath.Join(opts.SessionsDir, name+sessionExt),
		}

		if raw, ok := assigned[name]; ok && raw != "" {
			p, err := ParseProxy(raw)
			if err != nil {
				return nil, fmt.Errorf("load accounts: session %s: %w", name, err)
			}
			acct.Proxy = p
		} else if len(pool) > 0 {
			acct.Proxy = pool[next%len(pool)]
			next++
		}

		accounts = append(accounts, acct)
	}

	return accounts, nil
}

// SessionNames returns the sorted session names found in dir.
func SessionNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: read dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), sessionExt))
	}
	sort.Strings(names)

	return names, nil
}

// SessionPath returns the session file location for name.
func SessionPath(dir, name string) string {
	return filepath.Join(dir, name+sessionExt)
}

// ReadProxyFile parses one proxy per line, skipping blanks and # comments.
func ReadProxyFile(path string) ([]*Proxy, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	defer f.Close()

	var proxies []*Proxy
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParseProxy(line)
		if err != nil {
			return nil, fmt.Errorf("read proxy file: line %d: %w", lineNo, err)
		}
		proxies = append(proxies, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}

	return proxies, nil
}

func readAccountsFile(path string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var file accountsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	for _, entry := range file.Accounts {
		name := strings.TrimSpace(entry.Session)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(entry.Proxy)
	}

	return out, nil
}
