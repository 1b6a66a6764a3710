package activity

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

var platforms = map[string]string{
	"PSN":  "PlayStation Network",
	"BLIZ": "Battle.Net",
	"XBOX": "Xbox Live",
}

// PlatformName resolves a roster short code into the label bungie.net shows on
// profile pages. Unknown codes are returned as is.
func PlatformName(code string) string {
	name, ok := platforms[code]
	if !ok {
		return code
	}
	return name
}

// Unknown is the activity of a member nothing has been observed for yet.
var Unknown = time.Date(1333, time.March, 7, 0, 0, 0, 0, time.UTC)

// MergeActivity returns the more recent of the two instants, current wins ties.
func MergeActivity(current, candidate time.Time) time.Time {
	if candidate.After(current) {
		return candidate
	}
	return current
}

type Member struct {
	Name     string
	Platform string
	Profile  string
	// LastActive never moves backwards, it only changes through Observe.
	LastActive time.Time
}

func NewMember(name, platformCode, profile string) *Member {
	return &Member{
		Name:       name,
		Platform:   PlatformName(platformCode),
		Profile:    profile,
		LastActive: Unknown,
	}
}

// Observe merges an activity instant into the member, it reports whether
// LastActive changed.
func (m *Member) Observe(t time.Time) bool {
	merged := MergeActivity(m.LastActive, t)
	if merged.Equal(m.LastActive) {
		return false
	}
	m.LastActive = merged
	return true
}

// Known reports whether any activity was ever observed.
func (m *Member) Known() bool {
	return m.LastActive.After(Unknown)
}

// Age renders how long ago the member was last active relative to now.
func (m *Member) Age(now time.Time) string {
	// time.Duration saturates at ~292 years so centuries are counted by hand.
	years := now.Year() - m.LastActive.Year()
	switch {
	case years >= 200:
		return fmt.Sprintf("%d centuries ago", years/100)
	case years >= 100:
		return "a century ago"
	}
	return humanize.RelTime(m.LastActive, now, "ago", "from now")
}

func (m *Member) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Platform)
}
