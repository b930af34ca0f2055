package webapp

import (
	"errors"
	"testing"
)

const redirectURL = "https://prod.snapster.bot/#tgWebAppData=query_id%3D123%26user%3D%257B%2522id%2522%253A1%257D%26auth_date%3D999%26hash%3Dabc&tgWebAppVersion=7.10&tgWebAppPlatform=android"

func TestParseRedirectURL(t *testing.T) {
	cred, err := Parse(redirectURL, 1)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cred.QueryID != "123" {
		t.Fatalf("QueryID = %q, want %q", cred.QueryID, "123")
	}
	if cred.AuthDate != 999 {
		t.Fatalf("AuthDate = %d, want 999", cred.AuthDate)
	}
	if cred.Hash != "abc" {
		t.Fatalf("Hash = %q, want %q", cred.Hash, "abc")
	}
	if cred.User != `{"id":1}` {
		t.Fatalf("User = %q, want %q", cred.User, `{"id":1}`)
	}

	want := "query_id=123&user=%7B%22id%22%3A1%7D&auth_date=999&hash=abc"
	if got := cred.HeaderValue(); got != want {
		t.Fatalf("HeaderValue() = %q, want %q", got, want)
	}
	if got := cred.Encode(); got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}

	fields := cred.Fields()
	if len(fields) != 4 || fields[0].Key != "query_id" || fields[3].Key != "hash" {
		t.Fatalf("Fields() = %+v, want original order", fields)
	}
}

func TestParseDecodeDepthTwo(t *testing.T) {
	cred, err := Parse(redirectURL, 2)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := `query_id=123&user={"id":1}&auth_date=999&hash=abc`
	if got := cred.HeaderValue(); got != want {
		t.Fatalf("HeaderValue() = %q, want %q", got, want)
	}
	if cred.Hash != "abc" {
		t.Fatalf("Hash = %q, want %q", cred.Hash, "abc")
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no payload":   "https://example.com/#tgWebAppVersion=7.10",
		"empty":        "https://example.com/#tgWebAppData=&tgWebAppVersion=7.10",
		"missing hash": "https://example.com/#tgWebAppData=query_id%3D1%26user%3D%257B%257D%26auth_date%3D5",
		"bad date":     "https://example.com/#tgWebAppData=query_id%3D1%26user%3Dx%26auth_date%3Dsoon%26hash%3Dh",
		"bad escape":   "https://example.com/#tgWebAppData=%ZZ",
	}

	for name, raw := range cases {
		_, err := Parse(raw, 1)
		if err == nil {
			t.Fatalf("%s: Parse() error = nil, want non-nil", name)
		}
		if !errors.Is(err, ErrParse) {
			t.Fatalf("%s: errors.Is(err, ErrParse) = false for %v", name, err)
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: errors.As(*ParseError) = false for %v", name, err)
		}
	}
}

func TestParseUnsupportedDepth(t *testing.T) {
	if _, err := Parse(redirectURL, 3); !errors.Is(err, ErrParse) {
		t.Fatalf("Parse(depth=3) error = %v, want ErrParse", err)
	}
}
