package arena

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	postUUIDRe   = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
	uuidInPathRe = regexp.MustCompile(`[0-9a-fA-F-]{36}`)
	notifLinkRe  = regexp.MustCompile(`/(status|nested)/([0-9a-fA-F-]{36})`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	bareURLRe    = regexp.MustCompile(`https?://\S+`)
)

// ExtractPostID accepts either a bare post UUID or an arena.social URL and
// returns the UUID. Unrecognized input is returned as-is so the API can
// fail loudly downstream.
func ExtractPostID(urlOrID string) string {
	s := strings.TrimSpace(urlOrID)
	if postUUIDRe.MatchString(s) {
		return s
	}
	if u, err := url.Parse(s); err == nil {
		if m := uuidInPathRe.FindString(u.Path); m != "" {
			return m
		}
	}
	return s
}

// ExtractNotificationPostID resolves a notification link to a post id,
// accepting both the "status" and "nested" path shapes. Empty when the
// link carries neither.
func ExtractNotificationPostID(link string) string {
	m := notifLinkRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[2]
}

// StripHTML removes tags and entities from post HTML and collapses
// whitespace into a single-line readable string.
func StripHTML(raw string) string {
	s := tagRe.ReplaceAllString(raw, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanText is StripHTML with bare URLs removed, used when building prompt
// excerpts where links are noise.
func CleanText(raw string) string {
	s := tagRe.ReplaceAllString(raw, " ")
	s = html.UnescapeString(s)
	s = bareURLRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
