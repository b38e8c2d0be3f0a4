package fetcher

import (
	"fmt"
	"strings"
)

// challengeMarkers are checked against the lower-cased raw HTML.
var challengeMarkers = []struct {
	marker  string
	kind    string
	captcha bool
}{
	{"cf-challenge", "cloudflare", false},
	{"cf_chl_opt", "cloudflare", false},
	{"challenges.cloudflare.com/turnstile", "cloudflare-turnstile", true},
	{"cf-turnstile", "cloudflare-turnstile", true},
	{"hcaptcha.com", "hcaptcha", true},
	{"h-captcha", "hcaptcha", true},
	{"google.com/recaptcha", "recaptcha", true},
	{"g-recaptcha", "recaptcha", true},
}

// blockedTitles are matched against the lower-cased page title.
var blockedTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"bot detection",
	"captcha",
}

// blockedPhrases are matched against the visible page text. Listing pages can
// be long, so only the first part of the text is scanned.
var blockedPhrases = []string{
	"captcha",
	"suspicious activity",
	"verify you are human",
	"access denied",
	"unusual traffic",
	"are you a robot",
	"robot or human",
}

const blockedTextWindow = 4000

// CheckChallenge inspects a fetched page and returns ErrCaptchaChallenge or
// ErrAntiBot (wrapped with the detected kind) when the page is a block page.
// It returns nil for a usable page.
func CheckChallenge(title, html, text string) error {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	for _, m := range challengeMarkers {
		if strings.Contains(htmlLower, m.marker) {
			return blockedError(m.kind, m.captcha)
		}
	}

	for _, t := range blockedTitles {
		if strings.Contains(titleLower, t) {
			return blockedError("title: "+t, t == "captcha")
		}
	}

	textLower := strings.ToLower(text)
	if len(textLower) > blockedTextWindow {
		textLower = textLower[:blockedTextWindow]
	}
	for _, p := range blockedPhrases {
		if strings.Contains(textLower, p) {
			return blockedError("text: "+p, p == "captcha")
		}
	}

	return nil
}

func blockedError(kind string, captcha bool) error {
	if captcha {
		return fmt.Errorf("%w: %s", ErrCaptchaChallenge, kind)
	}
	return fmt.Errorf("%w: %s", ErrAntiBot, kind)
}
