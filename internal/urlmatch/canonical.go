// Package urlmatch normalizes URLs and decides whether a tab URL is "the same
// place" as a target URL.
package urlmatch

import (
	"net/url"
	"strings"
)

// trackingParams are query keys dropped when tracking stripping is on.
// Keys starting with "utm_" are dropped as well.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"_ga":     true,
	"_gl":     true,
	"ref":     true,
	"source":  true,
}

// Options controls the optional canonicalization steps.
type Options struct {
	StripTracking  bool
	IgnoreQuery    bool
	IgnoreFragment bool
}

// Canonical is the result of canonicalizing a URL. When the input could not
// be parsed as an absolute URL, Literal is set and Value is the input
// unchanged, so comparisons degrade to plain string equality.
type Canonical struct {
	Value   string
	Literal bool
}

// Parse canonicalizes raw. It never fails.
func Parse(raw string, opts Options) Canonical {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return Canonical{Value: raw, Literal: true}
	}

	var b strings.Builder
	b.Grow(len(raw))
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(canonicalPath(u.EscapedPath()))

	if !opts.IgnoreQuery {
		query := u.RawQuery
		if opts.StripTracking {
			query = stripTracking(query)
		}
		if query != "" {
			b.WriteByte('?')
			b.WriteString(query)
		}
	}
	if !opts.IgnoreFragment {
		if frag := u.EscapedFragment(); frag != "" {
			b.WriteByte('#')
			b.WriteString(frag)
		}
	}
	return Canonical{Value: b.String()}
}

// Canonicalize returns the canonical string form of raw.
func Canonicalize(raw string, opts Options) string {
	return Parse(raw, opts).Value
}

// canonicalPath drops every trailing slash, so "/a/" and "/a//" agree and
// the result is stable under reapplication. The root path is kept as "/" and an
// empty path becomes "/" so "https://a.com" and "https://a.com/" agree.
func canonicalPath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// stripTracking removes tracking keys from a raw query while keeping the
// order and encoding of the remaining pairs.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTrackingKey(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingKey(key string) bool {
	key = strings.ToLower(key)
	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// Hostname returns the lowercased hostname of raw without port, or "" when
// raw has no host.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
