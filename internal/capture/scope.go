package capture

import (
	"strings"

	"golang.org/x/net/idna"
)

// MatchesPattern reports whether host matches pattern: exact match, or a
// `*.suffix` pattern matching any host equal to suffix or ending in
// `.suffix`. Hosts are normalized to ASCII
// (punycode) form before comparison so a unicode hostname and its `*.suffix`
// pattern agree regardless of which form either was written in.
func MatchesPattern(host, pattern string) bool {
	host = normalizeHost(host)

	if rawSuffix, ok := strings.CutPrefix(pattern, "*."); ok {
		suffix := normalizeHost(rawSuffix)
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return host == normalizeHost(pattern)
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if ascii, err := idna.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// InScope decides whether an exchange for host should be emitted:
// out-of-scope patterns are checked first (any match drops the exchange),
// then in-scope patterns (any match emits it); no match drops it. When
// saveOnlyInScope is false every exchange is emitted.
func InScope(host string, saveOnlyInScope bool, inScope, outOfScope []string) bool {
	if !saveOnlyInScope {
		return true
	}
	for _, pattern := range outOfScope {
		if MatchesPattern(host, pattern) {
			return false
		}
	}
	for _, pattern := range inScope {
		if MatchesPattern(host, pattern) {
			return true
		}
	}
	return false
}
