package security

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// Patterns for sensitive data
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)["\s:=]+["']?([a-zA-Z0-9_-]{16,})["']?`)
	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?|wss?)://[^\s"']+`)
	walletPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}\b`)

	// Query parameters that carry credentials on hosted RPC endpoints
	sensitiveParams = []string{"key", "apikey", "api_key", "token", "secret", "auth"}
)

const redacted = "***REDACTED***"

// MaskURL keeps the scheme and host of an endpoint and hides user info, path and credential parameters.
// Hosted RPC providers embed the project key in the path (/v3/<key>, /v2/<key>).
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}

	masked := u.Scheme + "://" + u.Host
	if u.User != nil {
		masked = u.Scheme + "://" + redacted + "@" + u.Host
	}
	if path := strings.Trim(u.Path, "/"); path != "" {
		masked += "/" + redacted
	}

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if isSensitiveParam(k) {
				q.Set(k, redacted)
			}
		}
		masked += "?" + q.Encode()
	}
	return masked
}

// MaskString masks endpoints and credentials embedded in free text such as error messages
func MaskString(s string) string {
	s = urlPattern.ReplaceAllStringFunc(s, MaskURL)
	return apiKeyPattern.ReplaceAllString(s, "$1: "+redacted)
}

// MaskAddresses shortens account addresses to the first 6 and last 4 characters
func MaskAddresses(s string) string {
	return walletPattern.ReplaceAllStringFunc(s, maskWalletAddress)
}

func maskWalletAddress(addr string) string {
	if len(addr) < 10 {
		return "0x****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
