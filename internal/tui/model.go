// Package tui is the terminal viewer. It drives a cache.Loader with key
// presses, polls it on a timer and draws the current image with half blocks.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"minimg/internal/cache"
	"minimg/internal/config"
	serr "minimg/internal/errors"
	"minimg/internal/log"
	"minimg/internal/watch"
)

// infoWidth is the width of the info panel, borders included
const infoWidth = 34

// Options configures the viewer
type Options struct {
	Theme        config.Theme
	ShowInfo     bool
	PollInterval time.Duration
	// Watch, if set, feeds directory change notices
	Watch watch.Source
}

type tickMsg time.Time

type changeMsg watch.Change

type changesClosedMsg struct{}

// Model is the bubbletea model of the viewer
type Model struct {
	loader  *cache.Loader
	keys    KeyMap
	help    help.Model
	styles  Styles
	status  StatusBar
	poll    time.Duration
	watch   watch.Source
	changes <-chan watch.Change

	width, height int

	current   cache.Result
	hasResult bool
	pending   uint64

	frame    string
	frameKey string

	number   string
	showInfo bool
	showHelp bool

	err      error
	quitting bool
}

// New creates a viewer for l
func New(l *cache.Loader, opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = cache.DefaultPollInterval
	}
	styles := NewStyles(opts.Theme)
	m := &Model{
		loader:   l,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		styles:   styles,
		status:   NewStatusBar(styles.Status),
		poll:     opts.PollInterval,
		watch:    opts.Watch,
		showInfo: opts.ShowInfo,
	}
	if opts.Watch != nil {
		m.changes = opts.Watch.Changes()
	}
	// the loader resolves its start image on its own
	m.status.loading = true
	return m
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitChange(), m.status.spinner.Tick)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.poll, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) waitChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return changesClosedMsg{}
		}
		return changeMsg(c)
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.frameKey = ""
		return m, nil

	case tickMsg:
		return m.handleTick()

	case changeMsg:
		log.LogWithFields(log.F("path", msg.Path), log.F("change", msg.Kind.String())).Debug("Directory changed")
		return m, m.waitChange()

	case changesClosedMsg:
		m.changes = nil
		return m, nil

	case spinner.TickMsg:
		return m, m.status.Update(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleTick() (tea.Model, tea.Cmd) {
	select {
	case <-m.loader.Done():
		m.err = m.loader.Err()
		if m.err == nil {
			m.err = serr.ErrLoaderStopped
		}
		m.quitting = true
		return m, tea.Quit
	default:
	}

	cmds := []tea.Cmd{m.tick()}
	if res, ok := m.loader.Poll(); ok {
		m.current = res
		m.hasResult = true
		if res.Seq >= m.pending {
			cmds = append(cmds, m.status.SetLoading(false))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.number != "" && msg.String() == "esc" {
			m.number = ""
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Info):
		m.showInfo = !m.showInfo
		m.frameKey = ""
	case key.Matches(msg, m.keys.Digit):
		if len(m.number) < 9 {
			m.number += msg.String()
		}
	case key.Matches(msg, m.keys.Goto):
		if m.number == "" {
			return m, nil
		}
		n, _ := strconv.Atoi(m.number)
		m.number = ""
		// numbers are 1-based on screen
		return m, m.send(cache.Goto(n - 1))
	case key.Matches(msg, m.keys.Prev):
		return m, m.send(cache.Move(cache.Left))
	case key.Matches(msg, m.keys.Next):
		return m, m.send(cache.Move(cache.Right))
	case key.Matches(msg, m.keys.First):
		return m, m.send(cache.Move(cache.First))
	case key.Matches(msg, m.keys.Last):
		return m, m.send(cache.Move(cache.Last))
	}
	return m, nil
}

func (m *Model) send(req cache.Request) tea.Cmd {
	seq, err := m.loader.Send(req)
	if err != nil {
		m.err = err
		m.quitting = true
		return tea.Quit
	}
	m.pending = seq
	return m.status.SetLoading(true)
}

// Err returns the error that ended the session, if any
func (m *Model) Err() error {
	return m.err
}

// Current returns the result on screen
func (m *Model) Current() (cache.Result, bool) {
	return m.current, m.hasResult
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.styles.Title.Render("minimg")
	if m.hasResult {
		header += " " + m.styles.Emphasis.Render(m.current.Identity())
	}

	helpView := m.help.View(m.keys)
	m.status.SetText(m.statusLeft(), m.statusRight())
	statusView := m.status.View(m.width)

	rows := m.height - lipgloss.Height(header) - lipgloss.Height(helpView) - lipgloss.Height(statusView)
	if rows < 1 {
		rows = 1
	}
	cols := m.width
	var panel string
	if m.showInfo && m.hasResult && m.width > infoWidth*2 {
		panel = m.infoPanel(rows)
		cols -= lipgloss.Width(panel)
	}

	body := lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, m.body(cols, rows))
	if panel != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, panel)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusView, helpView)
}

func (m *Model) body(cols, rows int) string {
	if !m.hasResult {
		return m.styles.Status.Render("decoding...")
	}
	res := m.current
	if !res.OK() {
		return m.styles.Error.Render("cannot display "+filepath.Base(res.Path)) + "\n" +
			m.styles.Status.Render(res.Err.Error())
	}

	frameKey := fmt.Sprintf("%d:%s:%dx%d", res.Index, res.Path, cols, rows)
	if frameKey != m.frameKey {
		m.frame = renderHalfBlocks(res.Image.Pixels, cols, rows)
		m.frameKey = frameKey
	}
	return m.frame
}

func (m *Model) statusLeft() string {
	if m.number != "" {
		return "go to: " + m.number
	}
	if !m.hasResult {
		return ""
	}
	res := m.current
	if !res.OK() {
		return m.styles.Error.Render("decode failed")
	}
	img := res.Image
	return fmt.Sprintf("%dx%d %s %s", img.Width(), img.Height(), img.Format, humanize.Bytes(uint64(img.Size)))
}

func (m *Model) statusRight() string {
	stats := m.loader.Stats()
	parts := []string{
		fmt.Sprintf("cache %d/%d", stats.Read+stats.Err, m.loader.Len()),
		humanize.Bytes(uint64(stats.ResidentBytes)),
	}
	if stats.Err > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.Err))
	}
	if m.watch != nil {
		if notice := m.watch.Summary().Notice(); notice != "" {
			parts = append(parts, m.styles.Notice.Render(notice))
		}
	}
	return strings.Join(parts, " · ")
}

func (m *Model) infoPanel(rows int) string {
	res := m.current
	var lines []string
	add := func(k, v string) {
		if v != "" {
			lines = append(lines, m.styles.Info.Render(k+": ")+v)
		}
	}
	add("File", filepath.Base(res.Path))
	add("Position", fmt.Sprintf("%d of %d", res.Index+1, res.Total))
	if res.OK() {
		img := res.Image
		add("Format", img.Format)
		add("MIME", img.MIME)
		add("Size", fmt.Sprintf("%dx%d", img.Width(), img.Height()))
		add("File size", humanize.Bytes(uint64(img.Size)))
		keys := make([]string, 0, len(img.Meta))
		for k := range img.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k, img.Meta[k])
		}
	} else {
		add("Error", res.Err.Error())
	}
	stats := m.loader.Stats()
	add("Hits", strconv.FormatInt(stats.Hits, 10))
	add("Prefetched", strconv.FormatInt(stats.Prefetched, 10))

	return m.styles.Panel.Width(infoWidth - 2).MaxHeight(rows).Render(strings.Join(lines, "\n"))
}

// Run shows the viewer until the user quits. The caller owns the loader and
// shuts it down afterwards.
func Run(l *cache.Loader, opts Options) error {
	m := New(l, opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return serr.Wrap(err, "terminal ui failed")
	}
	if fm, ok := final.(*Model); ok && fm.err != nil && !serr.Is(fm.err, serr.ErrLoaderStopped) {
		return fm.err
	}
	return nil
}
