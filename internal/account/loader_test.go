package account

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAssignsProxies(t *testing.T) {
	dir := t.TempDir()
	sessions := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessions, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		writeFile(t, SessionPath(sessions, name), "{}")
	}
	writeFile(t, filepath.Join(sessions, "accounts.json"), "[]")

	accountsPath := filepath.Join(dir, "accounts.yaml")
	writeFile(t, accountsPath, "accounts:\n  - session: bravo\n    proxy: socks5://u:p@5.5.5.5:1080\n")

	proxyPath := filepath.Join(dir, "proxies.txt")
	writeFile(t, proxyPath, "# pool\nhttp://1.1.1.1:8080\n\n2.2.2.2:3128\n")

	accounts, err := Load(LoadOptions{
		SessionsDir:      sessions,
		AccountsFile:     accountsPath,
		ProxyFile:        proxyPath,
		UseProxyFromFile: true,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("len(Load()) = %d, want 3", len(accounts))
	}

	if accounts[0].Name != "alpha" || accounts[0].Proxy == nil || accounts[0].Proxy.Host != "1.1.1.1" {
		t.Fatalf("alpha = %+v, want first pool proxy", accounts[0])
	}
	if accounts[1].Name != "bravo" || accounts[1].Proxy == nil || accounts[1].Proxy.Host != "5.5.5.5" {
		t.Fatalf("bravo = %+v, want accounts file proxy", accounts[1])
	}
	if accounts[2].Name != "charlie" || accounts[2].Proxy == nil || accounts[2].Proxy.Host != "2.2.2.2" {
		t.Fatalf("charlie = %+v, want second pool proxy", accounts[2])
	}
	if accounts[0].SessionPath != filepath.Join(sessions, "alpha.session") {
		t.Fatalf("SessionPath = %q", accounts[0].SessionPath)
	}
}

func TestLoadWithoutProxyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, SessionPath(dir, "solo"), "{}")

	accounts, err := Load(LoadOptions{
		SessionsDir: dir,
		ProxyFile:   filepath.Join(dir, "proxies.txt"),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(accounts) != 1 || accounts[0].Proxy != nil {
		t.Fatalf("Load() = %+v, want one account without proxy", accounts)
	}
}

func TestLoadMissingSessionsDir(t *testing.T) {
	accounts, err := Load(LoadOptions{SessionsDir: filepath.Join(t.TempDir(), "missing")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("len(Load()) = %d, want 0", len(accounts))
	}
}

func TestReadProxyFileInvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	writeFile(t, path, "http://1.1.1.1:8080\nnot a proxy\n")

	if _, err := ReadProxyFile(path); err == nil {
		t.Fatal("ReadProxyFile() error = nil, want non-nil")
	}
}
