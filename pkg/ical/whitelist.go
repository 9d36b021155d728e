package ical

import "regexp"

// Feed links are fetched server-side, so only the single accepted
// provider's private feed path may pass. Everything else is rejected
// before any outbound request is made.
var feedPattern = regexp.MustCompile(
	`^(http|https|webcal)(://www\.tripit\.com/feed/ical/private/[A-Za-z0-9-]+/tripit\.ics)$`)

// ValidateFeedURL checks link against the accepted provider pattern and
// returns its canonical form: webcal is not a real scheme and is
// rewritten to http, real schemes pass through unchanged.
func ValidateFeedURL(link string) (string, bool) {
	m := feedPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	scheme := m[1]
	if scheme == "webcal" {
		scheme = "http"
	}
	return scheme + m[2], true
}
