package identity

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var androidDevices = []string{
	"SM-S918B",
	"SM-A546E",
	"SM-G991B",
	"Pixel 7",
	"Pixel 8 Pro",
	"Pixel 6a",
	"2201116SG",
	"M2101K6G",
	"CPH2451",
	"RMX3706",
	"V2250",
	"LE2123",
}

// GenerateUserAgent builds a plausible Android Chrome user agent.
func GenerateUserAgent() string {
	androidVersion := gofakeit.Number(10, 14)
	device := gofakeit.RandomString(androidDevices)
	major := gofakeit.Number(116, 131)
	build := gofakeit.Number(5000, 6800)
	patch := gofakeit.Number(40, 220)

	return fmt.Sprintf(
		"Mozilla/5.0 (Linux; Android %d; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Mobile Safari/537.36",
		androidVersion, device, major, build, patch,
	)
}

// IsMobileUserAgent reports whether ua looks like a phone browser.
func IsMobileUserAgent(ua string) bool {
	s := strings.ToLower(ua)
	return strings.Contains(s, "mobile") || strings.Contains(s, "android") || strings.Contains(s, "iphone")
}
