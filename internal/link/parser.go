// Package link extracts post references from Telegram message links.
package link

import (
	"regexp"
	"strconv"
)

// Reference is a parsed (channel, message) pair extracted from a link.
// Private references require an authenticated user session to resolve.
type Reference struct {
	Channel   string
	MessageID int64
	Private   bool
}

// Patterns are tried in a fixed order: public, private, telegram.me alias.
// Search semantics: a link may be embedded in a larger message; only the
// first match is acted upon.
var (
	publicRe  = regexp.MustCompile(`https?://t\.me/([A-Za-z0-9_]+)/(\d+)`)
	privateRe = regexp.MustCompile(`https?://t\.me/c/(\d+)/(\d+)`)
	aliasRe   = regexp.MustCompile(`https?://telegram\.me/([A-Za-z0-9_]+)/(\d+)`)
)

var numericRe = regexp.MustCompile(`^\d+$`)

// Parse scans text for a Telegram post link and returns the extracted
// reference. The second return value reports whether a reference was found.
// Parse performs no network access and has no side effects.
func Parse(text string) (Reference, bool) {
	if m := publicRe.FindStringSubmatch(text); m != nil && m[1] != "c" {
		return makeRef(m[1], m[2]), true
	}
	if m := privateRe.FindStringSubmatch(text); m != nil {
		ref := makeRef(m[1], m[2])
		ref.Private = true
		return ref, true
	}
	if m := aliasRe.FindStringSubmatch(text); m != nil {
		return makeRef(m[1], m[2]), true
	}
	return Reference{}, false
}

func makeRef(channel, messageID string) Reference {
	id, _ := strconv.ParseInt(messageID, 10, 64)
	return Reference{
		Channel:   channel,
		MessageID: id,
		// A purely numeric channel token is an internal identifier and
		// always needs an authenticated session.
		Private: numericRe.MatchString(channel),
	}
}

// URL reconstructs the canonical link for the reference.
func (r Reference) URL() string {
	if r.Private {
		return "https://t.me/c/" + r.Channel + "/" + strconv.FormatInt(r.MessageID, 10)
	}
	return "https://t.me/" + r.Channel + "/" + strconv.FormatInt(r.MessageID, 10)
}
