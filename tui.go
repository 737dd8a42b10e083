package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"parla/beep"
	"parla/config"
	"parla/scorer"
	"parla/session"
	"parla/stats"
	"parla/store"
)

// TUI message types
type SnapshotMsg struct{ Snap session.Snapshot }
type AudioLevelMsg struct{ Level float64 }
type RecordingTickMsg struct{}

type tuiView int

const (
	viewPractice tuiView = iota
	viewDashboard
)

// Accuracy severity thresholds for coloring the score line.
const (
	badScoreThreshold    = 30
	mediumScoreThreshold = 70
)

type theme struct {
	name      string
	accent    lipgloss.Style
	dim       lipgloss.Style
	correct   lipgloss.Style
	incorrect lipgloss.Style
	good      lipgloss.Style
	okay      lipgloss.Style
	bad       lipgloss.Style
	statusErr lipgloss.Style
}

func darkTheme() theme {
	return theme{
		name:      "dark",
		accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		correct:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		incorrect: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Underline(true),
		good:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		okay:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		bad:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		statusErr: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

func lightTheme() theme {
	return theme{
		name:      "light",
		accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("26")).Bold(true),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		correct:   lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		incorrect: lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Underline(true),
		good:      lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		okay:      lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
		bad:       lipgloss.NewStyle().Foreground(lipgloss.Color("124")),
		statusErr: lipgloss.NewStyle().Foreground(lipgloss.Color("166")),
	}
}

type tuiModel struct {
	runner *session.Runner
	db     *store.Store

	view          tuiView
	snap          session.Snapshot
	audioLevel    float64
	recordingFor  float64
	wordCursor    int
	width, height int
	theme         theme

	// dashboard state
	tbl       table.Model
	query     textinput.Model
	filtering bool
	sortKey   stats.SortKey
	sortDesc  bool
	category  int
	langOnly  bool
	allStats  []stats.WordStat
	trend     []int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// programSink forwards view snapshots from the session runner into the
// running bubbletea program.
type programSink struct{}

func (programSink) Push(snap session.Snapshot) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(SnapshotMsg{Snap: snap})
	}
}

func setTUIProgram(p *tea.Program) {
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
}

func sendAudioLevel(level float64) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(AudioLevelMsg{Level: level})
	}
}

func newTUIModel(r *session.Runner, db *store.Store, themeName string) tuiModel {
	query := textinput.New()
	query.Placeholder = "filter words"
	query.CharLimit = 40

	columns := []table.Column{
		{Title: "Word", Width: 16},
		{Title: "Lang", Width: 4},
		{Title: "Seen", Width: 5},
		{Title: "Bad", Width: 4},
		{Title: "Avg%", Width: 5},
		{Title: "IPA", Width: 18},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithHeight(12),
		table.WithFocused(true),
	)

	th := darkTheme()
	if themeName == "light" {
		th = lightTheme()
	}

	return tuiModel{
		runner:   r,
		db:       db,
		theme:    th,
		tbl:      tbl,
		query:    query,
		sortKey:  stats.SortByBadCount,
		sortDesc: true,
		category: stats.AnyCategory,
		langOnly: true,
	}
}

func NewTUIProgram(r *session.Runner, db *store.Store, themeName string) *tea.Program {
	m := newTUIModel(r, db, themeName)
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) dispatch(ev session.Event) tea.Cmd {
	r := m.runner
	return func() tea.Msg {
		r.Dispatch(context.Background(), ev)
		return nil
	}
}

func recordingTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return RecordingTickMsg{}
	})
}

func (m tuiModel) Init() tea.Cmd {
	return m.dispatch(session.Start{})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SnapshotMsg:
		prev := m.snap.State
		prevSentence := m.snap.Sentence
		m.snap = msg.Snap
		if m.snap.State == session.Recording && prev != session.Recording {
			beep.Start()
			m.recordingFor = 0
			m.audioLevel = 0
			return m, recordingTick()
		}
		if prev == session.Recording && m.snap.State != session.Recording {
			beep.End()
		}
		if m.snap.State == session.ErrorState && prev != session.ErrorState {
			beep.Error()
		}
		if m.snap.State != session.Recording {
			m.audioLevel = 0
		}
		if m.snap.Sentence != prevSentence {
			m.wordCursor = 0
		}

	case AudioLevelMsg:
		if m.snap.State == session.Recording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case RecordingTickMsg:
		if m.snap.State == session.Recording {
			m.recordingFor += 0.1
			return m, recordingTick()
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.view == viewDashboard {
		return m.handleDashboardKey(msg)
	}
	return m.handlePracticeKey(msg)
}

func (m tuiModel) handlePracticeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case " ", "enter":
		return m, m.dispatch(session.ToggleRecord{})
	case "n":
		return m, m.dispatch(session.NextSample{})
	case "1", "2", "3", "4":
		tier, _ := strconv.Atoi(msg.String())
		r := m.runner
		return m, func() tea.Msg {
			r.SetDifficulty(tier - 1)
			return nil
		}
	case "l":
		return m, m.cycleLanguage()
	case "left":
		if m.wordCursor > 0 {
			m.wordCursor--
		}
	case "right":
		if m.wordCursor < len(m.snap.Words)-1 {
			m.wordCursor++
		}
	case "p":
		if m.snap.HasResult {
			return m, m.dispatch(session.PlayWord{Index: m.wordCursor})
		}
	case "t":
		m.toggleTheme()
		return m, nil
	case "tab", "d":
		m.view = viewDashboard
		m.reloadDashboard()
		return m, nil
	}
	return m, nil
}

// cycleLanguage picks the next language from the last snapshot and applies
// it through the runner, which owns all machine access.
func (m tuiModel) cycleLanguage() tea.Cmd {
	next := config.Languages[0]
	for i, code := range config.Languages {
		if code == m.snap.Language {
			next = config.Languages[(i+1)%len(config.Languages)]
			break
		}
	}
	r := m.runner
	return func() tea.Msg {
		r.SetLanguage(next)
		return nil
	}
}

func (m *tuiModel) toggleTheme() {
	if m.theme.name == "dark" {
		m.theme = lightTheme()
	} else {
		m.theme = darkTheme()
	}
	m.db.TrySetPref(context.Background(), "theme", m.theme.name)
}

func (m tuiModel) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "enter", "esc":
			m.filtering = false
			m.query.Blur()
			m.refreshTable()
			return m, nil
		default:
			var cmd tea.Cmd
			m.query, cmd = m.query.Update(msg)
			m.refreshTable()
			return m, cmd
		}
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "d", "esc":
		m.view = viewPractice
		return m, nil
	case "/":
		m.filtering = true
		m.query.Focus()
		return m, nil
	case "s":
		// switching the sort key resets direction to descending
		m.sortKey = (m.sortKey + 1) % 4
		m.sortDesc = true
		m.refreshTable()
		return m, nil
	case "r":
		m.sortDesc = !m.sortDesc
		m.refreshTable()
		return m, nil
	case "c":
		// any -> bad -> okay -> good -> any
		switch m.category {
		case stats.AnyCategory:
			m.category = scorer.CategoryBad
		case scorer.CategoryBad:
			m.category = scorer.CategoryOkay
		case scorer.CategoryOkay:
			m.category = scorer.CategoryGood
		default:
			m.category = stats.AnyCategory
		}
		m.refreshTable()
		return m, nil
	case "l":
		m.langOnly = !m.langOnly
		m.refreshTable()
		return m, nil
	case "x":
		m.db.ClearAll(context.Background())
		m.reloadDashboard()
		return m, nil
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m *tuiModel) reloadDashboard() {
	ctx := context.Background()
	m.allStats = stats.Aggregate(m.db.TryLoadMistakes(ctx))
	m.trend = stats.TrendSeries(m.db.TryLoadHistory(ctx))
	m.refreshTable()
}

func (m *tuiModel) refreshTable() {
	filter := stats.Filter{
		Category: m.category,
		Query:    m.query.Value(),
	}
	if m.langOnly {
		filter.Language = m.snap.Language
	}
	visible := filter.Apply(append([]stats.WordStat(nil), m.allStats...))
	stats.Sort(visible, m.sortKey, m.sortDesc)

	rows := make([]table.Row, len(visible))
	for i, s := range visible {
		rows[i] = table.Row{
			s.DisplayWord,
			s.Language,
			strconv.Itoa(s.Occurrences),
			strconv.Itoa(s.BadCount),
			strconv.Itoa(stats.AvgAccuracy(s.CategorySamples)),
			s.LastKnownRealIPA,
		}
	}
	m.tbl.SetRows(rows)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.view == viewDashboard {
		return m.dashboardView()
	}
	return m.practiceView()
}

func (m tuiModel) practiceView() string {
	var b strings.Builder
	th := m.theme

	title := th.accent.Render("parla") + th.dim.Render("  pronunciation practice")
	b.WriteString(title + "\n\n")

	// Score line: running total and sample counter.
	b.WriteString(th.dim.Render(fmt.Sprintf("Score: %d - (%d)  lang: %s  difficulty: %d",
		m.snap.CumulativeScore, m.snap.SampleCounter,
		m.snap.Language, m.snap.Difficulty+1)) + "\n\n")

	if m.snap.Sentence != "" {
		b.WriteString(m.renderSentence() + "\n")
		if m.snap.IPA != "" {
			b.WriteString(th.dim.Render("/ "+m.snap.IPA+" /") + "\n")
		}
		if m.snap.Translation != "" {
			b.WriteString(th.dim.Render(m.snap.Translation) + "\n")
		}
		b.WriteString("\n")
	}

	switch m.snap.State {
	case session.Recording:
		b.WriteString(th.bad.Render(fmt.Sprintf("● REC %.1fs ", m.recordingFor)))
		b.WriteString(levelMeter(m.audioLevel) + "\n")
	case session.Submitting:
		b.WriteString(th.dim.Render("scoring...") + "\n")
	default:
		if m.snap.HasResult {
			b.WriteString(m.renderResult())
		}
	}

	if m.snap.Status != "" {
		b.WriteString("\n" + th.statusErr.Render(m.snap.Status) + "\n")
	}
	if m.snap.Mismatch {
		b.WriteString(th.dim.Render("(partial scoring data, worst-case shown)") + "\n")
	}

	b.WriteString("\n" + th.dim.Render(
		"space record · n next · ←/→ word · p play · 1-4 difficulty · l language · t theme · d dashboard · q quit"))
	return b.String()
}

// renderSentence paints the reference sentence. After scoring, letters take
// their correctness colors and the selected word is highlighted.
func (m tuiModel) renderSentence() string {
	th := m.theme
	if !m.snap.HasResult {
		return th.accent.Render(m.snap.Sentence)
	}

	parts := make([]string, len(m.snap.Words))
	for i, w := range m.snap.Words {
		var wb strings.Builder
		for _, l := range w.Letters {
			if l.Correct {
				wb.WriteString(th.correct.Render(string(l.R)))
			} else {
				wb.WriteString(th.incorrect.Render(string(l.R)))
			}
		}
		word := wb.String()
		if i == m.wordCursor {
			word = lipgloss.NewStyle().Reverse(true).Render(w.Text)
		}
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func (m tuiModel) renderResult() string {
	th := m.theme
	var b strings.Builder

	score := m.snap.Accuracy
	style := th.good
	switch {
	case score < badScoreThreshold:
		style = th.bad
	case score < mediumScoreThreshold:
		style = th.okay
	}
	b.WriteString(style.Render(fmt.Sprintf("accuracy: %.0f%%", score)) + "\n")

	if m.snap.RecordedIPA != "" {
		b.WriteString(th.dim.Render("you said: / "+m.snap.RecordedIPA+" /") + "\n")
	}

	if m.wordCursor < len(m.snap.Words) {
		w := m.snap.Words[m.wordCursor]
		sev := th.good
		switch w.Severity {
		case scorer.CategoryOkay:
			sev = th.okay
		case scorer.CategoryBad:
			sev = th.bad
		}
		b.WriteString(fmt.Sprintf("%s  %s\n",
			sev.Render(w.Text),
			th.dim.Render("/ "+w.RealIPA+" / → / "+w.SpokenIPA+" /")))
	}
	return b.String()
}

func levelMeter(level float64) string {
	const width = 24
	filled := int(level * float64(width) * 3)
	if filled > width {
		filled = width
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders scores 0-100 as one block character each.
func sparkline(series []int) string {
	var b strings.Builder
	for _, v := range series {
		idx := v * (len(sparkRunes) - 1) / 100
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func (m tuiModel) dashboardView() string {
	th := m.theme
	var b strings.Builder

	b.WriteString(th.accent.Render("dashboard") + "\n\n")

	if len(m.trend) > 0 {
		b.WriteString(th.dim.Render("trend: ") + sparkline(m.trend) + "\n\n")
	}

	sortNames := map[stats.SortKey]string{
		stats.SortByWord:        "word",
		stats.SortByOccurrences: "seen",
		stats.SortByAvgAccuracy: "avg",
		stats.SortByBadCount:    "bad",
	}
	dir := "desc"
	if !m.sortDesc {
		dir = "asc"
	}
	catName := "any"
	switch m.category {
	case scorer.CategoryGood:
		catName = "good"
	case scorer.CategoryOkay:
		catName = "okay"
	case scorer.CategoryBad:
		catName = "bad"
	}
	langName := "all"
	if m.langOnly {
		langName = m.snap.Language
	}
	b.WriteString(th.dim.Render(fmt.Sprintf("sort: %s %s · category: %s · lang: %s",
		sortNames[m.sortKey], dir, catName, langName)) + "\n")

	if m.filtering {
		b.WriteString(m.query.View() + "\n")
	} else if m.query.Value() != "" {
		b.WriteString(th.dim.Render("filter: "+m.query.Value()) + "\n")
	}
	b.WriteString("\n" + m.tbl.View() + "\n")

	b.WriteString("\n" + th.dim.Render(
		"/ filter · s sort · r reverse · c category · l language · x clear data · tab back · q quit"))
	return b.String()
}
