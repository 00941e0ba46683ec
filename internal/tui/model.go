// Package tui is the terminal front end: it shows the running transcript,
// lets the user move a caret over it, and corrects uncertain words from a
// suggestion list or by typing.
//
// All transcript mutation happens inside [Model.Update], which bubbletea
// calls from a single goroutine. Recognition runs in the background and
// reaches the model only as messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/scribe/internal/config"
	"github.com/MrWong99/scribe/internal/recognize"
	"github.com/MrWong99/scribe/internal/session"
	"github.com/MrWong99/scribe/internal/suggest"
	"github.com/MrWong99/scribe/pkg/audio"
	"github.com/MrWong99/scribe/pkg/provider/stt"
)

const (
	thresholdStep = 0.05
	maxStatuses   = 4
	eventBuffer   = 64
	chromeHeight  = 9
)

type mode int

const (
	modeBrowse mode = iota
	modeConfirm
	modeSuggest
	modeInput
)

// OpenFunc opens the audio to recognise. It is called once per run.
type OpenFunc func() (audio.Stream, error)

// Options are the collaborators of a [Model].
type Options struct {
	Session    *session.Session
	Recognizer *recognize.Recognizer
	Open       OpenFunc

	// Source names the audio in the header.
	Source string

	AutoScroll   bool
	KeywordBoost float64
}

// Model is the bubbletea model of the editor.
type Model struct {
	ctx  context.Context
	sess *session.Session
	rec  *recognize.Recognizer
	open OpenFunc

	source       string
	autoScroll   bool
	keywordBoost float64

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model
	list     list.Model
	input    textinput.Model

	mode     mode
	caret    int
	width    int
	height   int
	statuses []string
	errText  string

	// target is the word the suggestion list or input edits.
	target int64

	running   bool
	cancelRun context.CancelFunc
	events    chan recognize.Event
	partial   string
	position  time.Duration
	total     time.Duration
	quitting  bool
}

// New returns a model bound to ctx; cancelling ctx stops any recognition
// run the model started.
func New(ctx context.Context, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Prompt = "correction: "
	ti.CharLimit = 80

	l := list.New(nil, list.NewDefaultDelegate(), 40, 12)
	l.Title = "Suggestions"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := Model{
		ctx:          ctx,
		sess:         opts.Session,
		rec:          opts.Recognizer,
		open:         opts.Open,
		source:       opts.Source,
		autoScroll:   opts.AutoScroll,
		keywordBoost: opts.KeywordBoost,
		keys:         defaultKeys(),
		help:         help.New(),
		viewport:     viewport.New(80, 20),
		spinner:      sp,
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		list:         l,
		input:        ti,
		width:        80,
		height:       20 + chromeHeight,
	}
	m.status(fmt.Sprintf("Word confidence: %.2f%%", m.rec.Threshold()*100))
	m.syncViewport()
	return m
}

// Messages delivered to Update by commands and by cmd/scribe.
type (
	eventMsg struct {
		ev recognize.Event
		ch chan recognize.Event
	}
	suggestionsMsg struct {
		id    int64
		items []suggest.Suggestion
	}
	// runFailedMsg reports a run whose audio could not be opened.
	runFailedMsg struct {
		ch  chan recognize.Event
		err error
	}

	// ConfigMsg carries a hot-reloaded configuration.
	ConfigMsg struct {
		Diff   config.ConfigDiff
		Config *config.Config
	}
)

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.list.SetSize(min(msg.Width, 60), max(msg.Height-chromeHeight, 5))
		m.progress.Width = min(max(msg.Width-30, 10), 60)
		m.help.Width = msg.Width
		m.syncViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		if msg.ch != m.events {
			// Left over from a replaced run; drain it.
			return m, waitEvent(msg.ch)
		}
		return m.handleEvent(msg.ev)

	case suggestionsMsg:
		if m.mode != modeSuggest || msg.id != m.target {
			return m, nil
		}
		items := make([]list.Item, len(msg.items))
		for i, s := range msg.items {
			items[i] = suggestionItem(s)
		}
		cmd := m.list.SetItems(items)
		if len(items) == 0 {
			m.status("No suggestions, press e to type a correction.")
		}
		return m, cmd

	case ConfigMsg:
		m.applyConfig(msg)
		return m, nil

	case runFailedMsg:
		if msg.ch == m.events {
			m.running = false
			m.cancelRun = nil
			m.fail(msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	switch m.mode {
	case modeConfirm:
		m.mode = modeBrowse
		if msg.String() == "y" || msg.String() == "Y" {
			return m.startRun()
		}
		m.status("Restart cancelled.")
		return m, nil
	case modeSuggest:
		return m.handleSuggestKey(msg)
	case modeInput:
		return m.handleInputKey(msg)
	}

	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m.quit()
	case key.Matches(msg, k.Left):
		m.moveCaret(m.caret - 1)
	case key.Matches(msg, k.Right):
		m.moveCaret(m.caret + 1)
	case key.Matches(msg, k.Up):
		m.moveCaret(moveVertical(m.sess.Text(), m.caret, -1))
	case key.Matches(msg, k.Down):
		m.moveCaret(moveVertical(m.sess.Text(), m.caret, 1))
	case key.Matches(msg, k.NextWord):
		if off, ok := nextStart(wordStarts(m.sess, false), m.caret); ok {
			m.moveCaret(off)
		}
	case key.Matches(msg, k.PrevWord):
		if off, ok := prevStart(wordStarts(m.sess, false), m.caret); ok {
			m.moveCaret(off)
		}
	case key.Matches(msg, k.NextUnsure):
		starts := wordStarts(m.sess, true)
		off, ok := nextStart(starts, m.caret)
		if !ok && len(starts) > 0 {
			off, ok = starts[0], true
		}
		if ok {
			m.moveCaret(off)
		} else {
			m.status("No uncertain words.")
		}
	case key.Matches(msg, k.Select):
		return m.selectWord()
	case key.Matches(msg, k.Edit):
		return m.editWord("")
	case key.Matches(msg, k.Save):
		m.save()
	case key.Matches(msg, k.Recognize):
		if m.running || m.sess.Buffer().Len() > 0 {
			m.mode = modeConfirm
			return m, nil
		}
		return m.startRun()
	case key.Matches(msg, k.Stop):
		if m.running && m.cancelRun != nil {
			m.cancelRun()
			m.status("Stopping recognition...")
		}
	case key.Matches(msg, k.Raise):
		m.setThreshold(m.rec.Threshold() + thresholdStep)
	case key.Matches(msg, k.Lower):
		m.setThreshold(m.rec.Threshold() - thresholdStep)
	case key.Matches(msg, k.Scroll):
		m.autoScroll = !m.autoScroll
		m.status(fmt.Sprintf("Auto-scroll %s.", onOff(m.autoScroll)))
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) handleSuggestKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeBrowse
		return m, nil
	case "e":
		return m.editWord(m.lexicalOf(m.target))
	case "enter":
		it, ok := m.list.SelectedItem().(suggestionItem)
		if !ok {
			return m, nil
		}
		m.mode = modeBrowse
		m.correct(m.target, it.Text)
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.mode = modeBrowse
		m.input.Blur()
		m.correct(m.target, m.input.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) selectWord() (tea.Model, tea.Cmd) {
	w, ok := m.sess.WordAt(m.caret)
	if !ok {
		m.status("No word at the caret.")
		return m, nil
	}
	m.status(session.Describe(w))
	if !w.Uncertain() {
		return m, nil
	}
	req, err := m.sess.SuggestRequest(w.ID())
	if err != nil {
		m.fail(err)
		return m, nil
	}
	m.mode = modeSuggest
	m.target = w.ID()
	m.list.ResetSelected()
	cmd := m.list.SetItems(nil)
	m.list.Title = "Suggestions for " + strings.TrimRight(w.Text(), " ")

	ctx, sg, id := m.ctx, m.sess.Suggester(), w.ID()
	return m, tea.Batch(cmd, func() tea.Msg {
		return suggestionsMsg{id: id, items: sg.Suggest(ctx, req)}
	})
}

func (m Model) editWord(initial string) (tea.Model, tea.Cmd) {
	id := m.target
	if m.mode != modeSuggest {
		w, ok := m.sess.WordAt(m.caret)
		if !ok || !w.Uncertain() {
			m.status("Only uncertain words can be corrected.")
			return m, nil
		}
		id = w.ID()
		initial = w.LexicalForm()
	}
	m.mode = modeInput
	m.target = id
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) correct(id int64, text string) {
	if _, err := m.sess.Correct(m.ctx, id, text); err != nil {
		m.fail(err)
		return
	}
	m.status(fmt.Sprintf("Corrected to %q.", strings.TrimSpace(text)))
	m.syncViewport()
}

func (m *Model) lexicalOf(id int64) string {
	if w, ok := m.sess.Buffer().Word(id); ok {
		return w.LexicalForm()
	}
	return ""
}

func (m *Model) save() {
	path, err := m.sess.Export(m.ctx, "")
	if err != nil {
		m.fail(err)
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m.status("Saved transcript to " + path)
}

func (m *Model) setThreshold(t float64) {
	m.rec.SetThreshold(t)
	m.status(fmt.Sprintf("Word confidence: %.2f%%", m.rec.Threshold()*100))
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.sess.Reset()
	m.caret = 0
	m.partial = ""
	m.position, m.total = 0, 0
	m.errText = ""
	m.syncViewport()

	runCtx, cancel := context.WithCancel(m.ctx)
	ch := make(chan recognize.Event, eventBuffer)
	m.cancelRun = cancel
	m.events = ch
	m.running = true
	m.status("Recognizing " + m.source + "...")

	appCtx, rec, open := m.ctx, m.rec, m.open
	start := func() tea.Msg {
		src, err := open()
		if err != nil {
			cancel()
			close(ch)
			return runFailedMsg{ch: ch, err: fmt.Errorf("open audio: %w", err)}
		}
		go func() {
			defer close(ch)
			defer src.Close()
			_ = rec.Run(runCtx, src, func(ev recognize.Event) {
				select {
				case ch <- ev:
				case <-appCtx.Done():
				}
			})
		}()
		return nil
	}
	return m, tea.Batch(start, waitEvent(ch), m.spinner.Tick)
}

func waitEvent(ch chan recognize.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{ev: ev, ch: ch}
	}
}

func (m Model) handleEvent(ev recognize.Event) (tea.Model, tea.Cmd) {
	next := waitEvent(m.events)
	switch ev := ev.(type) {
	case recognize.Line:
		m.sess.Append(m.ctx, ev.Stop, ev.Words)
		m.partial = ""
		if m.autoScroll {
			m.caret = m.sess.Cursor()
		}
		m.syncViewport()
	case recognize.Partial:
		m.partial = ev.Text
	case recognize.Progress:
		m.position, m.total = ev.Position, ev.Total
	case recognize.Done:
		m.running = false
		m.partial = ""
		if m.cancelRun != nil {
			m.cancelRun()
			m.cancelRun = nil
		}
		switch {
		case ev.Err != nil:
			m.fail(ev.Err)
		case ev.Stopped:
			m.status("Recognition stopped.")
		default:
			st := m.sess.Stats()
			m.status(fmt.Sprintf("Recognition completed: %d lines, %d uncertain words.", st.Lines, st.Uncertain))
		}
		return m, next
	}
	return m, next
}

func (m *Model) applyConfig(msg ConfigMsg) {
	d, cfg := msg.Diff, msg.Config
	if d.ThresholdChanged {
		m.rec.SetThreshold(d.NewThreshold)
	}
	if d.SkipMarkerChanged {
		m.rec.SetSkipMarker(d.NewSkipMarker)
	}
	if d.VocabularyChanged {
		m.sess.Suggester().SetVocabulary(d.NewVocabulary)
		boost := m.keywordBoost
		if cfg != nil {
			boost = cfg.Suggest.VocabularyBoost
		}
		m.keywordBoost = boost
		if err := m.rec.SetKeywords(Keywords(d.NewVocabulary, boost)); err != nil {
			m.fail(err)
		}
	}
	if d.AutoScrollChanged {
		m.autoScroll = d.NewAutoScroll
	}
	if d.Changed() {
		m.status("Configuration reloaded.")
	}
}

// Keywords turns vocabulary terms into STT keyword boosts.
func Keywords(vocabulary []string, boost float64) []stt.KeywordBoost {
	out := make([]stt.KeywordBoost, 0, len(vocabulary))
	for _, v := range vocabulary {
		out = append(out, stt.KeywordBoost{Keyword: v, Boost: boost})
	}
	return out
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) moveCaret(to int) {
	n := len([]rune(m.sess.Text()))
	m.caret = min(max(to, 0), max(n-1, 0))
	if w, ok := m.sess.WordAt(m.caret); ok && w.Uncertain() {
		m.status(session.Describe(w))
	}
	m.syncViewport()
}

// syncViewport re-renders the transcript and scrolls so the caret is visible.
func (m *Model) syncViewport() {
	content, row := renderTranscript(m.sess, m.caret, m.viewport.Width)
	m.viewport.SetContent(content)
	switch {
	case row < m.viewport.YOffset:
		m.viewport.SetYOffset(row)
	case row >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(row - m.viewport.Height + 1)
	}
}

func (m *Model) status(s string) {
	m.statuses = append(m.statuses, s)
	if len(m.statuses) > maxStatuses {
		m.statuses = m.statuses[len(m.statuses)-maxStatuses:]
	}
}

func (m *Model) fail(err error) {
	var msg string
	switch {
	case errors.Is(err, session.ErrNotUncertain):
		msg = "Only uncertain words can be corrected."
	case errors.Is(err, session.ErrInvalidCorrection):
		msg = "A correction must be a single non-empty line."
	case errors.Is(err, recognize.ErrNoProvider):
		msg = "No recognition engine configured (providers.stt)."
	default:
		msg = err.Error()
	}
	m.errText = msg
	m.status("Error: " + msg)
}

// Caret returns the caret's rune offset.
func (m Model) Caret() int { return m.caret }

// Running reports whether a recognition run is in progress.
func (m Model) Running() bool { return m.running }

// AutoScroll reports whether the caret follows new lines.
func (m Model) AutoScroll() bool { return m.autoScroll }

// Statuses returns the recent status lines, oldest first.
func (m Model) Statuses() []string { return append([]string(nil), m.statuses...) }

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

type suggestionItem suggest.Suggestion

func (i suggestionItem) Title() string { return i.Text }
func (i suggestionItem) Description() string {
	return fmt.Sprintf("%s · %.0f%%", i.Source, i.Confidence*100)
}
func (i suggestionItem) FilterValue() string { return i.Text }
