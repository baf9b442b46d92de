package util

import (
	"os"
)

// CookieArgs returns the yt-dlp credential flags. A readable cookies file
// wins over a browser profile; with neither, nil is returned.
func CookieArgs(cookiesFile, browser string) []string {
	if cookiesFile != "" {
		if info, err := os.Stat(cookiesFile); err == nil && !info.IsDir() {
			return []string{"--cookies", cookiesFile}
		}
	}
	if browser != "" {
		return []string{"--cookies-from-browser", browser}
	}
	return nil
}
