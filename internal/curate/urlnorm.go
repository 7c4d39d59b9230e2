package curate

import "strings"

// NormalizeURL canonicalizes a URL for deduplication: scheme variance
// stripped, "www." subdomain dropped, host lowercased, trailing slash
// trimmed. The path keeps its case; many sites treat paths as
// case-sensitive.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(s), scheme) {
			s = s[len(scheme):]
			break
		}
	}
	host, path := s, ""
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		host, path = s[:i], s[i:]
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host+path, "/")
}

// Domain returns the normalized host of a URL, used to group positive
// examples for diversity selection.
func Domain(raw string) string {
	n := NormalizeURL(raw)
	if i := strings.IndexAny(n, "/?#"); i >= 0 {
		n = n[:i]
	}
	return n
}
