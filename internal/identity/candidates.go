package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// Ref is what the backend knows about an external actor.
type Ref struct {
	URL      string
	RefID    string
	PublicID string
}

// Candidates returns lookup keys for ref, most reliable first: canonical URL,
// raw URL, reference id, public id, then the id extracted from the URL by
// pattern. Empty and repeated keys are dropped.
func Candidates(ref Ref, pattern *regexp.Regexp) []string {
	raw := strings.TrimSpace(ref.URL)
	keys := []string{
		NormalizeURL(raw),
		raw,
		strings.TrimSpace(ref.RefID),
		strings.TrimSpace(ref.PublicID),
	}
	if pattern != nil && raw != "" {
		if m := pattern.FindStringSubmatch(raw); len(m) > 1 {
			if id, err := url.PathUnescape(m[1]); err == nil {
				keys = append(keys, id)
			} else {
				keys = append(keys, m[1])
			}
		}
	}

	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// NormalizeURL returns the canonical form of a profile URL: https scheme,
// lower-case host without "www.", no query, fragment or trailing slash.
// Returns "" when raw is not a URL with a host.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	return "https://" + host + path
}
