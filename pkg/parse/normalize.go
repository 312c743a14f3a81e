package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

// NormalizeURL standardizes a URL for visited-set comparison and storage.
// It lowercases the scheme and host, drops default ports, removes the fragment,
// trims a trailing slash from non-root paths and sorts the query string.
// The query is kept because some listings paginate with ?page=N.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = strings.TrimRight(normalized.Path, "/")
		if normalized.Path == "" {
			normalized.Path = "/"
		}
	}
	normalized.RawPath = ""

	normalized.Fragment = ""
	normalized.RawFragment = ""
	if normalized.RawQuery != "" {
		normalized.RawQuery = normalized.Query().Encode() // Encode sorts by key
	}

	return normalized.String()
}

// ParseAndNormalize parses an absolute URL string and normalizes it.
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, urlStr, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil, fmt.Errorf("%w: URL '%s' has unsupported scheme '%s'", utils.ErrParsing, urlStr, parsed.Scheme)
	}
	return NormalizeURL(parsed), parsed, nil
}

// ResolveHref resolves an href found on a page against the page's final URL.
// Only http(s) results are accepted.
func ResolveHref(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, fmt.Errorf("%w: empty href", utils.ErrParsing)
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: URL href '%s': %w", utils.ErrParsing, href, err)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL href '%s' resolves to scheme '%s'", utils.ErrParsing, href, resolved.Scheme)
	}
	return resolved, nil
}
