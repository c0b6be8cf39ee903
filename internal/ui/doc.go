// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI offers two workflows:
//  1. [MenuView] then [ListView] : pick a built-in list preset and browse the ranked songs or artists
//  2. [JobView] then [ResultView] : generate snapshots for every period and watch the jobs finish
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the JobEngine, providing non-blocking status reporting while jobs poll.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, g, x, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
