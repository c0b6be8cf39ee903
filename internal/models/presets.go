package models

import (
	"slices"
	"time"
)

// ListPreset is a named top-N list.
type ListPreset struct {
	Name    string
	Label   string
	Artists bool          // list artists rather than songs
	Limit   int           // 0 means the server default
	Window  time.Duration // 0 means all time
}

var presets = []ListPreset{
	{Name: "top-100-songs", Label: "Top 100 Songs", Limit: 100},
	{Name: "top-artists", Label: "Your Top Artists", Artists: true, Limit: 50},
	{Name: "top-songs-all-time", Label: "Top Songs of All Time", Limit: 50},
	{Name: "top-10-artists", Label: "Top 10 Artists", Artists: true, Limit: 10},
	{Name: "top-10-this-week", Label: "Top 10 Songs This Week", Limit: 10, Window: 7 * 24 * time.Hour},
}

// Presets returns the built-in lists in menu order.
func Presets() []ListPreset {
	return slices.Clone(presets)
}

// LookupPreset finds a preset by name.
func LookupPreset(name string) (ListPreset, bool) {
	i := slices.IndexFunc(presets, func(p ListPreset) bool { return p.Name == name })
	if i < 0 {
		return ListPreset{}, false
	}
	return presets[i], true
}

// Query builds the list request for p relative to now.
func (p ListPreset) Query(now time.Time) ListQuery {
	q := ListQuery{Limit: p.Limit}
	if p.Window > 0 {
		q.Start = now.Add(-p.Window)
		q.End = now
	}
	return q
}
