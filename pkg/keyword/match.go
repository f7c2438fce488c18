// Package keyword classifies how a search keyword relates to listing text and
// extracts candidate keywords from free text.
package keyword

import (
	"math"
	"strings"
	"time"
)

// MatchType describes how a keyword appears in a title.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchBroad   MatchType = "broad"
	MatchPartial MatchType = "partial"
	MatchNone    MatchType = "none"
)

// Match classifies keyword against title, ignoring case.
//
// The whole keyword as a substring is exact; otherwise every word of the
// keyword present is broad, at least one is partial.
func Match(keyword, title string) MatchType {
	kw := strings.ToLower(keyword)
	t := strings.ToLower(title)

	if strings.Contains(t, kw) {
		return MatchExact
	}

	words := strings.Fields(kw)
	found := 0
	for _, w := range words {
		if strings.Contains(t, w) {
			found++
		}
	}

	switch {
	case found == 0:
		return MatchNone
	case found == len(words):
		return MatchBroad
	default:
		return MatchPartial
	}
}

// DaysSince returns the whole days elapsed between t and now, floored.
// A zero t counts from the Unix epoch.
func DaysSince(t, now time.Time) int {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return int(math.Floor(now.Sub(t).Hours() / 24))
}
