package api

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const telegramPackage = "org.telegram.messenger"

var chromeMajor = regexp.MustCompile(`Chrome/(\d+)\.`)

// headerBuilder produces the browser headers the mini-app web view sends.
type headerBuilder struct {
	userAgent string
	origin    string
}

func newHeaderBuilder(webAppURL, userAgent string) *headerBuilder {
	return &headerBuilder{
		userAgent: strings.TrimSpace(userAgent),
		origin:    normalizedOrigin(webAppURL),
	}
}

func (b *headerBuilder) Build() map[string]string {
	headers := map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "en-US,en;q=0.9",
		"X-Requested-With": telegramPackage,
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
	}
	if b.origin != "" {
		headers["Origin"] = b.origin
		headers["Referer"] = b.origin + "/"
	}
	if b.userAgent == "" {
		return headers
	}

	headers["User-Agent"] = b.userAgent
	if major := chromeVersion(b.userAgent); major != "" {
		headers["Sec-Ch-Ua"] = fmt.Sprintf(`"Chromium";v="%s", "Android WebView";v="%s", "Not?A_Brand";v="24"`, major, major)
	}
	if strings.Contains(b.userAgent, "Mobile") {
		headers["Sec-Ch-Ua-Mobile"] = "?1"
	} else {
		headers["Sec-Ch-Ua-Mobile"] = "?0"
	}
	if strings.Contains(b.userAgent, "Android") {
		headers["Sec-Ch-Ua-Platform"] = `"Android"`
	}

	return headers
}

func chromeVersion(userAgent string) string {
	m := chromeMajor.FindStringSubmatch(userAgent)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// normalizedOrigin reduces a URL to scheme://host.
func normalizedOrigin(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(trimmed, "/")
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}
