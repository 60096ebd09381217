package entity

import (
	"net/url"
	"strings"
)

// NormalizeProfileID canonicalizes a LinkedIn profile URL: fixed scheme and
// host, no query, fragment or trailing slash. The path keeps its case since
// member URNs and Sales Navigator ids are case-sensitive. Provider handles
// that are not URLs pass through trimmed.
func NormalizeProfileID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	if !strings.Contains(lower, "linkedin.com/") {
		return s
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return strings.TrimSpace(raw)
	}

	path := strings.TrimRight(u.Path, "/")
	return "https://www.linkedin.com" + path
}

// ProfileKey is the case-folded form of a normalized profile id used to
// dedupe prospects within a campaign.
func ProfileKey(profileID string) string {
	return strings.ToLower(profileID)
}

// ProfileSlug extracts the vanity name from a /in/ URL, if any.
func ProfileSlug(profileID string) string {
	idx := strings.Index(profileID, "/in/")
	if idx < 0 {
		return ""
	}
	slug := profileID[idx+len("/in/"):]
	if cut := strings.IndexByte(slug, '/'); cut >= 0 {
		slug = slug[:cut]
	}
	return slug
}
