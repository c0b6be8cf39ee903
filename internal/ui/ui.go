package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/yomi/internal/models"
	"github.com/desertthunder/yomi/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MenuView ViewState = iota
	ListView
	JobView
	ResultView
)

const logLines = 5

// Lister fetches top-N lists.
type Lister interface {
	TopSongs(ctx context.Context, q models.ListQuery) ([]models.Song, error)
	TopArtists(ctx context.Context, q models.ListQuery) ([]models.Artist, error)
}

// SnapshotGenerator runs a batch of snapshot jobs, reporting progress on the channel.
type SnapshotGenerator interface {
	GenerateSnapshots(ctx context.Context, periods []string, progress chan<- tasks.ProgressUpdate) (*tasks.SnapshotBatchResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	view    ViewState
	lists   Lister
	engine  SnapshotGenerator
	periods []string
	now     func() time.Time

	width   int
	height  int
	menu    list.Model
	results list.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap

	updates chan tasks.ProgressUpdate
	done    chan Msg
	jobs    map[string]models.Job
	log     []string
	result  *tasks.SnapshotBatchResult
	err     error
}

// NewModel creates a new TUI model. Snapshot generation is offered only when engine is non-nil; periods
// defaults to every snapshot period.
func NewModel(ctx context.Context, lists Lister, engine SnapshotGenerator, periods []string) *Model {
	if len(periods) == 0 {
		periods = models.SnapshotPeriods
	}

	presets := models.Presets()
	items := make([]list.Item, len(presets))
	for i, p := range presets {
		items[i] = presetItem{preset: p}
	}
	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "Lists"

	return &Model{
		ctx:     ctx,
		view:    MenuView,
		lists:   lists,
		engine:  engine,
		periods: slices.Clone(periods),
		now:     time.Now,
		menu:    menu,
		results: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:     progress.New(progress.WithDefaultGradient()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init implements [tea.Model]. The menu is static, so there is nothing to fetch.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.menu.SetSize(msg.Width-4, msg.Height-6)
		m.results.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MenuView:
			return m.handleMenuKeys(msg)
		case ListView:
			return m.handleListKeys(msg)
		case JobView:
			return m.handleJobKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgListFetched:
		data := msg.data.(listFetched)
		if data.err != nil {
			m.err = data.err
			m.view = MenuView
			return m, nil
		}
		m.err = nil
		var items []list.Item
		if data.preset.Artists {
			items = artistItems(data.artists)
		} else {
			items = songItems(data.songs)
		}
		cmd := m.results.SetItems(items)
		m.results.Title = data.preset.Label
		m.results.ResetSelected()
		m.view = ListView
		return m, cmd

	case MsgProgressUpdate:
		m.applyUpdate(msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()

	case MsgSnapshotsDone:
		data := msg.data.(snapshotsDone)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.updates, m.done = nil, nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MenuView:
		return m.renderMenu()
	case ListView:
		return m.renderList()
	case JobView:
		return m.renderJob()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.menu.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.menu, cmd = m.menu.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.menu.SelectedItem().(presetItem); ok {
			return m, m.fetchList(item.preset)
		}
		return m, nil
	case key.Matches(msg, m.keys.generate):
		if m.engine == nil {
			return m, nil
		}
		return m, m.startSnapshots()
	}

	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = MenuView
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) handleJobKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case "x", "esc":
		if m.cancel != nil {
			m.cancel()
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart), key.Matches(msg, m.keys.back):
		m.view = MenuView
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case MenuView:
		m.menu, cmd = m.menu.Update(msg)
	case ListView:
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchList(p models.ListPreset) tea.Cmd {
	ctx, lists, q := m.ctx, m.lists, p.Query(m.now())
	return func() tea.Msg {
		if p.Artists {
			artists, err := lists.TopArtists(ctx, q)
			return listFetchedMsg(p, nil, artists, err)
		}
		songs, err := lists.TopSongs(ctx, q)
		return listFetchedMsg(p, songs, nil, err)
	}
}

// startSnapshots runs the batch in a goroutine. The result is queued on done before updates is closed, so
// [Model.waitForProgress] always finds it.
func (m *Model) startSnapshots() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	updates := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)

	m.cancel = cancel
	m.updates, m.done = updates, done
	m.jobs = map[string]models.Job{}
	m.log = nil
	m.result, m.err = nil, nil
	m.view = JobView

	engine, periods := m.engine, slices.Clone(m.periods)
	go func() {
		result, err := engine.GenerateSnapshots(ctx, periods, updates)
		done <- snapshotsDoneMsg(result, err)
		close(updates)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if update, ok := <-updates; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) applyUpdate(u tasks.ProgressUpdate) {
	if job, ok := u.Data.(models.Job); ok && job.Label != "" {
		m.jobs[job.Label] = job
	}
	if u.Message != "" {
		m.log = append(m.log, u.Message)
		if len(m.log) > logLines {
			m.log = m.log[len(m.log)-logLines:]
		}
	}
}

// percent averages per-period progress; finished jobs count as complete.
func (m *Model) percent() float64 {
	if len(m.periods) == 0 {
		return 0
	}
	total := 0
	for _, p := range m.periods {
		job, ok := m.jobs[p]
		switch {
		case !ok:
		case job.Status.IsTerminal():
			total += 100
		case job.Progress != nil:
			total += *job.Progress
		}
	}
	return float64(total) / float64(100*len(m.periods))
}

func (m *Model) renderMenu() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	b.WriteString(m.menu.View())

	helpKeys := []key.Binding{m.keys.enter}
	if m.engine != nil {
		helpKeys = append(helpKeys, m.keys.generate)
	}
	helpKeys = append(helpKeys, m.keys.quit)
	fmt.Fprintf(&b, "\n\n%s", m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.results.View(), helpView)
}

func (m *Model) renderJob() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Generating snapshots"))
	fmt.Fprintf(&b, "\n%s\n\n", m.bar.ViewAs(m.percent()))

	for _, p := range m.periods {
		status := "waiting"
		if job, ok := m.jobs[p]; ok {
			status = job.Status.String()
			if job.Progress != nil && !job.Status.IsTerminal() {
				status = fmt.Sprintf("%s (%d%%)", status, *job.Progress)
			}
			if job.Status == models.JobFailed {
				status = styles.err.Render(status)
			} else if job.Status == models.JobSucceeded {
				status = styles.ok.Render(status)
			}
		}
		fmt.Fprintf(&b, "  %-9s %s\n", p, status)
	}

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(styles.help.Render(line))
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n%s", m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Snapshot generation failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	var b strings.Builder
	summary := fmt.Sprintf("%d of %d snapshots ready", m.result.Succeeded, len(m.result.Outcomes))
	if m.result.Failed == 0 && m.err == nil {
		b.WriteString(styles.ok.Render("✓ " + summary))
	} else {
		b.WriteString(styles.warn.Render("! " + summary))
	}
	b.WriteString("\n\n")

	for _, o := range m.result.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(&b, "  ✗ %s: %v\n", o.Period, o.Err)
			continue
		}
		fmt.Fprintf(&b, "  ✓ %s (%s)\n", o.Period, o.Job.ID)
	}
	if m.err != nil {
		fmt.Fprintf(&b, "\n%s\n", styles.err.Render(m.err.Error()))
	}

	fmt.Fprintf(&b, "\n%s", helpView)
	return b.String()
}
