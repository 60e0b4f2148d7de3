// Package url validates and canonicalizes the URLs the fetch pipeline
// operates on.
package url

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ParseAndValidate parses a URL string and validates it is an absolute
// http or https URL with a host.
func ParseAndValidate(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}

	// url.Parse rather than ParseRequestURI: request URLs may carry
	// fragments, which normalization strips.
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("url must be absolute with scheme (http/https) and host")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	return parsedURL, nil
}

// Normalize returns the canonical form of a URL used for cache
// fingerprinting: lowercased scheme and host, default port stripped,
// fragment removed, query parameters sorted by key.
func Normalize(rawURL string) (string, error) {
	parsedURL, err := ParseAndValidate(rawURL)
	if err != nil {
		return "", err
	}

	u := *parsedURL
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if host, port, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	return u.String(), nil
}

// sortQuery re-encodes a query string with keys in sorted order so that
// parameter order does not affect the canonical URL.
func sortQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}

// Origin returns the scheme://host[:port] origin of a URL.
func Origin(rawURL string) (string, error) {
	parsedURL, err := ParseAndValidate(rawURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(parsedURL.Scheme), strings.ToLower(parsedURL.Host)), nil
}

// RegistrableDomain returns the eTLD+1 for the URL's host, the key used
// for per-domain rate limiting. Hosts without a registrable suffix
// (IP addresses, single labels) are returned as-is.
func RegistrableDomain(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("url has no host: %s", rawURL)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname, nil
	}
	return domain, nil
}
