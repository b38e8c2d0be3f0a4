package fetcher

import (
	"log/slog"
	"os"
	"os/exec"
)

// ChromePathEnv overrides the browser binary lookup.
const ChromePathEnv = "NCRLISTINGS_CHROME_PATH"

var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns the browser binary to launch: $NCRLISTINGS_CHROME_PATH
// when set, otherwise the first known binary found on PATH. An empty result
// leaves the lookup to chromedp.
func FindChromePath(log *slog.Logger) string {
	if p := os.Getenv(ChromePathEnv); p != "" {
		log.Debug("using browser from environment", "path", p)
		return p
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug("found browser", "name", name, "path", path)
			return path
		}
	}
	log.Warn("no Chrome or Chromium binary found; dynamic fetch mode may fail",
		"hint", "set "+ChromePathEnv)
	return ""
}
