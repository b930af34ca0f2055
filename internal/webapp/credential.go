// Package webapp extracts the signed mini-app payload from a web-view URL.
package webapp

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const dataKey = "tgWebAppData="

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("webapp: parse error")

type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "webapp: " + e.Reason
	}
	return fmt.Sprintf("webapp: field %s: %s", e.Field, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Field is one key/value pair of the payload, value already unescaped.
type Field struct {
	Key   string
	Value string
}

// Credential is the decoded signed payload sent with every API request.
type Credential struct {
	QueryID  string
	User     string
	AuthDate int64
	Hash     string

	fields []Field
	header string
}

// Fields returns the payload fields in their original order.
func (c *Credential) Fields() []Field {
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Encode re-escapes the fields into a query string.
func (c *Credential) Encode() string {
	parts := make([]string, 0, len(c.fields))
	for _, f := range c.fields {
		parts = append(parts, f.Key+"="+url.QueryEscape(f.Value))
	}
	return strings.Join(parts, "&")
}

// HeaderValue is the payload exactly as the reward API expects it.
func (c *Credential) HeaderValue() string {
	return c.header
}

// Parse extracts the credential from a web-view redirect URL. depth is the
// number of percent-decoding passes applied to the header form: 1 yields the
// standard initData string, 2 additionally unescapes the field values.
func Parse(rawURL string, depth int) (*Credential, error) {
	if depth != 1 && depth != 2 {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported decode depth %d", depth)}
	}

	idx := strings.Index(rawURL, dataKey)
	if idx < 0 {
		return nil, &ParseError{Field: "tgWebAppData", Reason: "missing from url"}
	}
	encoded := rawURL[idx+len(dataKey):]
	if end := strings.IndexAny(encoded, "&#"); end >= 0 {
		encoded = encoded[:end]
	}
	if encoded == "" {
		return nil, &ParseError{Field: "tgWebAppData", Reason: "empty"}
	}

	initData, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, &ParseError{Field: "tgWebAppData", Reason: err.Error()}
	}

	cred, err := parseInitData(initData)
	if err != nil {
		return nil, err
	}

	cred.header = initData
	if depth == 2 {
		header, err := url.QueryUnescape(initData)
		if err != nil {
			return nil, &ParseError{Field: "tgWebAppData", Reason: err.Error()}
		}
		cred.header = header
	}

	return cred, nil
}

func parseInitData(initData string) (*Credential, error) {
	cred := &Credential{}
	for _, pair := range strings.Split(initData, "&") {
		if pair == "" {
			continue
		}
		key, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &ParseError{Field: pair, Reason: "missing '='"}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, &ParseError{Field: key, Reason: err.Error()}
		}
		cred.fields = append(cred.fields, Field{Key: key, Value: value})

		switch key {
		case "query_id":
			cred.QueryID = value
		case "user":
			cred.User = value
		case "auth_date":
			authDate, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, &ParseError{Field: key, Reason: "not an integer"}
			}
			cred.AuthDate = authDate
		case "hash":
			cred.Hash = value
		}
	}

	switch {
	case cred.QueryID == "":
		return nil, &ParseError{Field: "query_id", Reason: "missing"}
	case cred.User == "":
		return nil, &ParseError{Field: "user", Reason: "missing"}
	case cred.AuthDate == 0:
		return nil, &ParseError{Field: "auth_date", Reason: "missing"}
	case cred.Hash == "":
		return nil, &ParseError{Field: "hash", Reason: "missing"}
	}

	return cred, nil
}
