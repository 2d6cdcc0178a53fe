/*
Package tags defines the reqtag label vocabulary.

Labels are written to the library server verbatim (lowercase). Content managers
only accept [a-z0-9-] in tag labels, so manager tags use a rendered form of the
same vocabulary (see Manager).
*/
package tags

import (
	"strings"
)

// Status labels.
const (
	NotRequested     = "not_requested"
	RequesterWatched = "requester_watched"
	OthersWatching   = "others_watching"
	StaleRequest     = "stale_request"

	// RequesterPrefix is followed by the requester's username.
	RequesterPrefix = "requester:"
	// OwnerPrefix labels smart collections with the requester they belong to.
	OwnerPrefix = "owner:"
)

// Normalize lowercases and trims a label.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Requester returns the requester label for username.
func Requester(username string) string {
	return RequesterPrefix + Normalize(username)
}

// Owner returns the collection owner label for username.
func Owner(username string) string {
	return OwnerPrefix + Normalize(username)
}

// ParseRequester returns the username of a requester label.
func ParseRequester(label string) (string, bool) {
	label = Normalize(label)
	if !strings.HasPrefix(label, RequesterPrefix) {
		return "", false
	}
	user := strings.TrimPrefix(label, RequesterPrefix)
	return user, user != ""
}

// IsStatusLabel reports whether label is one of the item labels managed by reqtag.
// Owner labels live on collections and are not item status labels.
func IsStatusLabel(label string) bool {
	label = Normalize(label)
	switch label {
	case NotRequested, RequesterWatched, OthersWatching, StaleRequest:
		return true
	}
	return strings.HasPrefix(label, RequesterPrefix) && len(label) > len(RequesterPrefix)
}

// IsReqtagLabel reports whether label was written by reqtag, including owner labels.
func IsReqtagLabel(label string) bool {
	label = Normalize(label)
	return IsStatusLabel(label) || (strings.HasPrefix(label, OwnerPrefix) && len(label) > len(OwnerPrefix))
}

// Manager renders a label in the alphabet content managers accept.
// "requester:Alice Smith" becomes "requester-alice-smith".
func Manager(label string) string {
	label = Normalize(label)
	var b strings.Builder
	b.Grow(len(label))
	dash := false
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

var managerStatus = map[string]struct{}{
	Manager(NotRequested):     {},
	Manager(RequesterWatched): {},
	Manager(OthersWatching):   {},
	Manager(StaleRequest):     {},
}

var managerRequesterPrefix = Manager(RequesterPrefix) + "-"

// IsManagerStatusTag reports whether a manager tag is a rendered status label.
func IsManagerStatusTag(tag string) bool {
	tag = Normalize(tag)
	if _, ok := managerStatus[tag]; ok {
		return true
	}
	return strings.HasPrefix(tag, managerRequesterPrefix) && len(tag) > len(managerRequesterPrefix)
}
