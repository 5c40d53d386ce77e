package engine

import (
	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth helpers for engine consumers.

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }

// BrowserHeaders returns Chrome-like headers for Bilibili requests, with the
// fixed desktop user agent the origin's hotlink protection accepts.
func BrowserHeaders(referer string) map[string]string {
	h := ChromeHeaders()
	h["user-agent"] = UserAgentChrome
	delete(h, "accept-encoding") // let net/http negotiate gzip transparently
	if referer != "" {
		h["referer"] = referer
	}
	return h
}
