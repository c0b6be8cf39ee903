package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/yomi/internal/models"
)

var (
	_ list.Item = presetItem{}
	_ list.Item = songItem{}
	_ list.Item = artistItem{}
)

// presetItem wraps [models.ListPreset] to implement [list.Item].
type presetItem struct {
	preset models.ListPreset
}

func (i presetItem) FilterValue() string { return i.preset.Label }
func (i presetItem) Title() string       { return i.preset.Label }
func (i presetItem) Description() string {
	kind := "songs"
	if i.preset.Artists {
		kind = "artists"
	}
	if i.preset.Window > 0 {
		return fmt.Sprintf("%d %s, last %d days", i.preset.Limit, kind, int(i.preset.Window.Hours()/24))
	}
	return fmt.Sprintf("%d %s, all time", i.preset.Limit, kind)
}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	rank int
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.TrackName }
func (i songItem) Title() string       { return fmt.Sprintf("%d. %s", i.rank, i.song.TrackName) }
func (i songItem) Description() string {
	desc := i.song.ArtistName
	if i.song.PlayCount > 0 {
		desc = fmt.Sprintf("%s • %d plays", desc, i.song.PlayCount)
	}
	return desc
}

// artistItem wraps [models.Artist] to implement [list.Item].
type artistItem struct {
	rank   int
	artist models.Artist
}

func (i artistItem) FilterValue() string { return i.artist.Name }
func (i artistItem) Title() string       { return fmt.Sprintf("%d. %s", i.rank, i.artist.Name) }
func (i artistItem) Description() string {
	return fmt.Sprintf("%d streams", i.artist.TotalStreams)
}

func songItems(songs []models.Song) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{rank: i + 1, song: s}
	}
	return items
}

func artistItems(artists []models.Artist) []list.Item {
	items := make([]list.Item, len(artists))
	for i, a := range artists {
		items[i] = artistItem{rank: i + 1, artist: a}
	}
	return items
}
