package cmsengine

import (
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"
)

// Slugify converts a title to a URL-safe slug: lowercase letters, digits and
// single hyphens. Titles made only of punctuation yield "".
func Slugify(s string) string {
	s = strings.ToLower(s)
	var kept strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			kept.WriteRune(r)
		case unicode.IsSpace(r):
			kept.WriteRune(' ')
		}
	}
	var b strings.Builder
	prevDash := false
	for _, r := range strings.TrimSpace(kept.String()) {
		if r == ' ' || r == '-' {
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
			continue
		}
		b.WriteRune(r)
		prevDash = false
	}
	return b.String()
}

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	if len(pathSegments) > 0 {
		u.Path = path.Join(u.Path, path.Join(pathSegments...))
	}
	return u.String()
}

// FilterEmpty trims vals and drops the ones left empty.
func FilterEmpty(vals []string) []string {
	out := []string{}
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitTags splits comma separated tags, trimming each and dropping blanks.
// Order and repeats are kept.
func SplitTags(vals []string) []string {
	var parts []string
	for _, v := range vals {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return FilterEmpty(parts)
}

// FormatLongDate renders t as "January 2, 2006", or "" for the zero time.
func FormatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}
