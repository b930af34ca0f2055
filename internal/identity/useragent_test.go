package identity

import (
	"strings"
	"testing"
)

func TestGenerateUserAgent(t *testing.T) {
	ua := GenerateUserAgent()
	if !strings.HasPrefix(ua, "Mozilla/5.0 (Linux; Android ") {
		t.Fatalf("GenerateUserAgent() = %q, want android prefix", ua)
	}
	if !IsMobileUserAgent(ua) {
		t.Fatalf("IsMobileUserAgent(%q) = false, want true", ua)
	}
}

func TestIsMobileUserAgent(t *testing.T) {
	if IsMobileUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/131.0.0.0 Safari/537.36") {
		t.Fatal("IsMobileUserAgent(desktop) = true, want false")
	}
}
