// Package urlhandle implements the tagged-union URL handle from the data
// model: scheme decides the fetch path taken by the orchestrator.
package urlhandle

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/use-agent/crawl4go/model"
)

// Scheme identifies which fetch path a Handle routes through.
type Scheme string

const (
	SchemeHTTP Scheme = "http"
	SchemeFile Scheme = "file"
	SchemeRaw  Scheme = "raw"
	SchemeWS   Scheme = "ws" // covers ws:// and wss:// CDP endpoints
)

// Handle is the parsed, tagged form of a URL string.
type Handle struct {
	Scheme  Scheme
	Raw     string // original input
	HTML    string // populated only for SchemeRaw: the literal HTML suffix
	Path    string // populated only for SchemeFile
}

// Parse classifies rawURL into a Handle, or returns a KindInvalidScheme
// CrawlError per §6.
func Parse(rawURL string) (Handle, error) {
	switch {
	case strings.HasPrefix(rawURL, "raw:"):
		return Handle{Scheme: SchemeRaw, Raw: rawURL, HTML: rawURL[len("raw:"):]}, nil
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return Handle{Scheme: SchemeHTTP, Raw: rawURL}, nil
	case strings.HasPrefix(rawURL, "file://"):
		return Handle{Scheme: SchemeFile, Raw: rawURL, Path: strings.TrimPrefix(rawURL, "file://")}, nil
	case strings.HasPrefix(rawURL, "ws://"), strings.HasPrefix(rawURL, "wss://"):
		return Handle{Scheme: SchemeWS, Raw: rawURL}, nil
	default:
		return Handle{}, model.NewCrawlError(model.KindInvalidScheme, "unrecognized URL scheme: "+rawURL, nil)
	}
}

// Canonicalize normalizes a URL for visited-set / cache-key comparisons:
// lowercase scheme+host, default ports stripped, fragment removed, query
// keys sorted. Non-http(s) URLs are returned unchanged.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if host, port, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			u.Host = host
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for i, k := range keys {
			vs := q[k]
			sort.Strings(vs)
			for j, v := range vs {
				if i+j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	return u.String()
}

// BaseDomain returns the eTLD+1-ish registrable domain used for internal vs
// external link classification. This is a pragmatic heuristic (last two
// labels, or last three when the second-to-last label is a known short
// public-suffix-like token) rather than a full public-suffix-list lookup,
// since the core has no external PSL dependency to consult.
func BaseDomain(host string) string {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	secondLevel := labels[len(labels)-2]
	if isCompoundSuffix(secondLevel) && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

var compoundSuffixes = map[string]bool{
	"co": true, "com": true, "org": true, "net": true, "gov": true, "ac": true, "edu": true,
}

func isCompoundSuffix(label string) bool {
	return compoundSuffixes[label]
}

// SameBaseDomain reports whether two hosts share a base domain.
func SameBaseDomain(a, b string) bool {
	return BaseDomain(a) == BaseDomain(b)
}

// FormatPort renders a non-default port suffix, or "" for the default port.
func FormatPort(scheme string, port int) string {
	if port == 0 {
		return ""
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return ""
	}
	return ":" + strconv.Itoa(port)
}
