package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgListFetched MsgKind = iota
	MsgProgressUpdate
	MsgSnapshotsDone
)

type listFetched struct {
	preset  models.ListPreset
	songs   []models.Song
	artists []models.Artist
	err     error
}

type snapshotsDone struct {
	result *tasks.SnapshotBatchResult
	err    error
}

// listFetchedMsg is the constructor for [MsgListFetched]
func listFetchedMsg(preset models.ListPreset, songs []models.Song, artists []models.Artist, err error) Msg {
	return Msg{
		kind: MsgListFetched,
		data: listFetched{preset: preset, songs: songs, artists: artists, err: err},
	}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// snapshotsDoneMsg is the constructor for [MsgSnapshotsDone]
func snapshotsDoneMsg(result *tasks.SnapshotBatchResult, err error) Msg {
	return Msg{kind: MsgSnapshotsDone, data: snapshotsDone{result: result, err: err}}
}
