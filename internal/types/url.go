package types

import (
	"net/url"
	"sort"
	"strings"
)

// CanonicalizeURL normalizes a URL for deduplication and UniqueKey
// generation: lowercases scheme and host, drops the fragment and default
// port, sorts query parameters, and trims a trailing slash (except root).
// Grounded on the teacher's engine.CanonicalizeURL, generalized to take an
// already-parsed *url.URL since Request carries one.
func CanonicalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	c.Fragment = ""

	host := c.Hostname()
	port := c.Port()
	if (c.Scheme == "http" && port == "80") || (c.Scheme == "https" && port == "443") {
		c.Host = host
	}

	if c.RawQuery != "" {
		params := c.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := append([]string(nil), params[k]...)
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		c.RawQuery = strings.Join(sorted, "&")
	}

	if c.Path != "/" && strings.HasSuffix(c.Path, "/") {
		c.Path = strings.TrimRight(c.Path, "/")
	}
	if c.Path == "" {
		c.Path = "/"
	}

	return c.String()
}

// CanonicalizeURLString parses and canonicalizes a raw URL string,
// returning the original string unchanged if it does not parse.
func CanonicalizeURLString(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return CanonicalizeURL(u)
}

// SameHostname reports whether a and b share a hostname (spec's
// same-hostname enqueue strategy).
func SameHostname(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// SameDomain reports whether a and b share a registrable domain, computed
// here as the last two labels of the hostname — a reasonable approximation
// without pulling in a public-suffix list, matching the teacher's own
// Domain()-based comparisons (no PSL dependency in the pack).
func SameDomain(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return lastTwoLabels(a.Hostname()) == lastTwoLabels(b.Hostname())
}

func lastTwoLabels(host string) string {
	host = strings.ToLower(host)
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// SameOrigin reports whether a and b share scheme, hostname, and port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Hostname(), b.Hostname()) &&
		a.Port() == b.Port()
}

// SatisfiesStrategy checks loadedURL against originalURL for the given
// enqueue strategy, used for the post-redirect skip check in spec §4.6.
func SatisfiesStrategy(strategy EnqueueStrategy, originalURL, loadedURL *url.URL) bool {
	switch strategy {
	case EnqueueStrategySameHostname:
		return SameHostname(originalURL, loadedURL)
	case EnqueueStrategySameDomain:
		return SameDomain(originalURL, loadedURL)
	case EnqueueStrategySameOrigin:
		return SameOrigin(originalURL, loadedURL)
	case EnqueueStrategyAll, EnqueueStrategyNone:
		return true
	default:
		return true
	}
}
