package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// challengeMarkers appear on interstitial pages that carry no content.
var challengeMarkers = []string{
	"checking your browser",
	"cf-browser-verification",
	"just a moment",
	"attention required",
	"please enable cookies",
	"access denied",
	"403 forbidden",
}

var captchaMarkers = []string{"captcha", "recaptcha", "hcaptcha"}

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if hasChallengeMarker(lower, len(body)) ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, BlockCloudflare
	}
	for _, m := range captchaMarkers {
		if strings.Contains(lower, m) {
			return true, BlockCaptcha
		}
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}
	return false, BlockNone
}

// hasChallengeMarker reports a challenge phrase on a short page. Long pages
// mention these phrases in ordinary copy.
func hasChallengeMarker(lower string, size int) bool {
	if size >= 4000 {
		return strings.Contains(lower, "checking your browser") || strings.Contains(lower, "cf-browser-verification")
	}
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
