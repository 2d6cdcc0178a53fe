// Package watch derives watch completion and staleness facts for a requested item.
package watch

import (
	"strings"
	"time"

	"github.com/jon4hz/reqtag/internal/media"
	"github.com/samber/lo"
)

// Period is a calendar period.
type Period struct {
	Months int `yaml:"months" mapstructure:"months"`
	Days   int `yaml:"days" mapstructure:"days"`
}

// Before returns the point in time the period ends before now.
func (p Period) Before(now time.Time) time.Time {
	return now.AddDate(0, -p.Months, -p.Days)
}

// IsZero reports whether the period is empty.
func (p Period) IsZero() bool {
	return p.Months == 0 && p.Days == 0
}

// Facts are the watch facts for a requested item.
type Facts struct {
	RequesterFullyWatched bool
	OthersWatching        bool
	IsStale               bool
	// LastWatched is the latest session of anyone, zero if none.
	LastWatched time.Time
}

// Input is everything Evaluate needs for one item.
type Input struct {
	Item       media.Item
	Request    media.Request
	Sessions   []media.WatchSession
	Managed    *media.ManagedRecord
	Now        time.Time
	StaleAdded Period
	StaleView  Period
}

// Evaluate computes the watch facts for a requested item.
func Evaluate(in Input) Facts {
	own, others := lo.FilterReject(in.Sessions, func(s media.WatchSession, _ int) bool {
		return strings.EqualFold(s.Username, in.Request.RequesterUsername)
	})

	lastOther := latest(others)
	lastAny := latest(in.Sessions)
	viewCutoff := in.StaleView.Before(in.Now)

	facts := Facts{LastWatched: lastAny}

	switch in.Item.Kind {
	case media.KindShow:
		facts.RequesterFullyWatched = showWatched(own, in.Managed)
	default:
		facts.RequesterFullyWatched = lo.ContainsBy(own, func(s media.WatchSession) bool { return s.Watched })
	}

	facts.OthersWatching = !lastOther.IsZero() && !lastOther.Before(viewCutoff)
	facts.IsStale = in.Item.AddedAt.Before(in.StaleAdded.Before(in.Now)) && lastAny.Before(viewCutoff)

	return facts
}

// showWatched is true if the requester watched every episode the manager knows of
// and the manager reports the show as completely downloaded.
func showWatched(own []media.WatchSession, managed *media.ManagedRecord) bool {
	if managed == nil || managed.EpisodeStats == nil {
		return false
	}
	stats := managed.EpisodeStats
	if stats.EpisodeCount <= 0 || stats.PercentComplete < 100 {
		return false
	}

	episodes := make(map[string]struct{})
	for _, s := range own {
		if s.Watched && s.EpisodeID != "" {
			episodes[s.EpisodeID] = struct{}{}
		}
	}
	return len(episodes) == stats.EpisodeCount
}

func latest(sessions []media.WatchSession) time.Time {
	var t time.Time
	for _, s := range sessions {
		if s.Timestamp.After(t) {
			t = s.Timestamp
		}
	}
	return t
}
