// Package ui provides the interactive generator for asmrgen.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/pipeline"
	"github.com/dgnsrekt/asmrgen/internal/store"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	ellipsis             = "…"
)

// Runner runs one generation request.
type Runner interface {
	Run(ctx context.Context, req domain.GenerationRequest, overrides domain.VoiceMap, opts ...pipeline.RunOption) (*pipeline.Result, error)
}

// Player plays PCM audio until it ends or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []byte, f domain.AudioFormat) error
}

// Deps are the services the TUI drives. Store and Player may be nil.
type Deps struct {
	Runner Runner
	Store  store.Store
	Player Player
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting asmrgen TUI", "auto_save", cfg.AutoSave, "partial", cfg.Partial)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// state is the top-level application state.
type state int

const (
	stateForm state = iota
	stateRunning
	stateDone
)

func (s state) String() string {
	return map[state]string{
		stateForm:    "editing request",
		stateRunning: "running",
		stateDone:    "showing result",
	}[s]
}

var lengthPresets = []domain.LengthPreset{
	domain.LengthShort,
	domain.LengthMedium,
	domain.LengthLong,
	domain.LengthVeryLong,
}

type model struct {
	cfg   Config
	deps  Deps
	state state
	now   func() time.Time

	width  int
	height int

	// Form
	theme     textinput.Model
	lengthIdx int

	// Run
	spinner  spinner.Model
	status   *runStatus
	cancel   context.CancelFunc
	progress chan pipeline.Transition

	// Result
	result   *pipeline.Result
	asset    *domain.AudioAsset
	viewport viewport.Model
	saved    []string
	playing  bool
	stopPlay context.CancelFunc

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, deps Deps) model {
	ti := textinput.New()
	ti.Placeholder = "a rainy evening in a quiet library"
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.SetValue(cfg.Theme)
	ti.Focus()

	idx := 1
	for i, p := range lengthPresets {
		if p == cfg.Length {
			idx = i
		}
	}

	return model{
		cfg:       cfg,
		deps:      deps,
		state:     stateForm,
		now:       time.Now,
		theme:     ti,
		lengthIdx: idx,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport:  viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(0, msg.Height-6)
		if m.result != nil {
			return m, renderScript(m.result.Script, m.cfg.GlamourStyle, m.wrapWidth())
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stop()
			return m, tea.Quit
		}
		switch m.state {
		case stateForm:
			return m.updateForm(msg)
		case stateRunning:
			if msg.String() == "esc" && m.cancel != nil {
				m.cancel()
				return m, m.showStatusMessage("Cancelling…")
			}
			return m, nil
		case stateDone:
			return m.updateDone(msg)
		}

	case spinner.TickMsg:
		if m.state != stateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transitionMsg:
		if m.status != nil {
			m.status.Apply(pipeline.Transition(msg))
		}
		return m, waitForTransition(m.progress)

	case runDoneMsg:
		return m.finishRun(msg)

	case scriptRenderedMsg:
		m.viewport.SetContent(string(msg))
		return m, nil

	case savedMsg:
		m.saved = msg.refs
		if msg.err != nil {
			log.Error("Unable to save generation", "err", msg.err)
			return m, m.showStatusMessage("Save failed: " + msg.err.Error())
		}
		return m, m.showStatusMessage("Saved " + strings.Join(msg.refs, ", "))

	case playDoneMsg:
		m.playing = false
		m.stopPlay = nil
		if msg.err != nil {
			return m, m.showStatusMessage("Playback failed: " + msg.err.Error())
		}
		return m, nil

	case errMsg:
		return m, m.showStatusMessage(msg.Error())

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil
	}

	if m.state == stateDone {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.lengthIdx = (m.lengthIdx + 1) % len(lengthPresets)
		return m, nil
	case "shift+tab":
		m.lengthIdx = (m.lengthIdx + len(lengthPresets) - 1) % len(lengthPresets)
		return m, nil
	case "esc":
		return m, tea.Quit
	case "enter":
		if strings.TrimSpace(m.theme.Value()) == "" {
			return m, m.showStatusMessage("Enter a theme first")
		}
		return m.startRun()
	}

	var cmd tea.Cmd
	m.theme, cmd = m.theme.Update(msg)
	return m, cmd
}

func (m model) updateDone(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.stop()
		return m, tea.Quit
	case "n":
		m.stop()
		m.reset()
		return m, textinput.Blink
	case "c":
		if m.result == nil || m.result.Script.Len() == 0 {
			return m, nil
		}
		return m, tea.Batch(copyScript(m.result.Script), m.showStatusMessage("Copied script"))
	case "p", " ":
		if m.asset == nil || m.deps.Player == nil {
			return m, m.showStatusMessage("Nothing to play")
		}
		if m.playing {
			m.stop()
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.playing = true
		m.stopPlay = cancel
		return m, playAsset(ctx, m.deps.Player, *m.asset)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) startRun() (tea.Model, tea.Cmd) {
	words, _ := domain.ParseLengthPreset(string(lengthPresets[m.lengthIdx]))
	req := domain.NewAIRequest(strings.TrimSpace(m.theme.Value()), words)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.progress = make(chan pipeline.Transition)
	m.status = newRunStatus(true, m.now())
	m.state = stateRunning
	m.theme.Blur()

	var opts []pipeline.RunOption
	if m.cfg.Partial {
		opts = append(opts, pipeline.WithPartial())
	}

	log.Debug("Starting run", "theme", req.AIGenerated.Theme, "words", words)
	return m, tea.Batch(
		startRun(ctx, m.deps.Runner, req, m.cfg.Overrides, m.progress, opts...),
		waitForTransition(m.progress),
		m.spinner.Tick,
	)
}

func (m model) finishRun(msg runDoneMsg) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = stateDone
	m.result = msg.result

	if msg.err != nil && m.status != nil {
		m.status.Fail(msg.err)
	}
	if msg.result != nil {
		switch {
		case msg.result.Asset != nil:
			m.asset = msg.result.Asset
		case msg.result.Partial != nil:
			m.asset = msg.result.Partial
		}
	}

	var cmds []tea.Cmd
	if m.result != nil && m.result.Script.Len() > 0 {
		cmds = append(cmds, renderScript(m.result.Script, m.cfg.GlamourStyle, m.wrapWidth()))
	}
	if m.asset != nil && m.cfg.AutoSave && m.deps.Store != nil {
		cmds = append(cmds, saveAsset(m.deps.Store, *m.asset))
	}
	return m, tea.Batch(cmds...)
}

// stop cancels any run or playback in flight.
func (m *model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.stopPlay != nil {
		m.stopPlay()
		m.stopPlay = nil
	}
	m.playing = false
}

func (m *model) reset() {
	m.state = stateForm
	m.status = nil
	m.progress = nil
	m.result = nil
	m.asset = nil
	m.saved = nil
	m.viewport.SetContent("")
	m.theme.Focus()
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) wrapWidth() int {
	w := m.width
	if m.cfg.GlamourMaxWidth > 0 && (w == 0 || int(m.cfg.GlamourMaxWidth) < w) { //nolint:gosec
		w = int(m.cfg.GlamourMaxWidth) //nolint:gosec
	}
	if w == 0 {
		w = 80
	}
	return w
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("asmrgen"))
	fmt.Fprintln(&b)

	switch m.state {
	case stateForm:
		b.WriteString(m.formView())
	case stateRunning:
		b.WriteString(m.status.View(m.width, m.spinner.View(), m.now()))
		fmt.Fprint(&b, "\n\n"+helpStyle.Render("esc cancel • ctrl+c quit"))
	case stateDone:
		b.WriteString(m.doneView())
	}

	if m.statusMessage != "" {
		note := " " + m.statusMessage + " "
		if m.width > 0 {
			note = truncate.StringWithTail(note, uint(m.width), ellipsis) //nolint:gosec
		}
		fmt.Fprint(&b, "\n\n"+statusBarMessageStyle.Render(note))
	}
	return b.String()
}

func (m model) formView() string {
	var b strings.Builder
	fmt.Fprintln(&b, labelStyle.Render("Theme"))
	fmt.Fprintln(&b, m.theme.View())
	fmt.Fprintln(&b)

	fmt.Fprint(&b, labelStyle.Render("Length  "))
	for i, p := range lengthPresets {
		if i == m.lengthIdx {
			fmt.Fprint(&b, selectedStyle.Render("["+string(p)+"]"))
		} else {
			fmt.Fprint(&b, " "+string(p)+" ")
		}
		fmt.Fprint(&b, " ")
	}
	fmt.Fprint(&b, "\n\n"+helpStyle.Render("enter generate • tab length • esc quit"))
	return b.String()
}

func (m model) doneView() string {
	var b strings.Builder

	if m.status != nil {
		fmt.Fprintln(&b, m.status.View(m.width, "", m.now()))
		fmt.Fprintln(&b)
	}

	if m.asset != nil {
		label, style := "Audio", statusBarNoteStyle
		if m.asset.Partial {
			label, style = "Partial audio", warnStyle.Inherit(statusBarNoteStyle)
		}
		fmt.Fprintln(&b, style.Render(fmt.Sprintf(" %s: %s, %s ",
			label, formatDuration(m.asset.Duration), humanize.Bytes(uint64(len(m.asset.Data))))))
	}
	if m.result != nil && m.result.Script.Len() > 0 {
		fmt.Fprintln(&b, m.viewport.View())
	}

	help := []string{"n new", "q quit"}
	if m.result != nil && m.result.Script.Len() > 0 {
		help = append([]string{"c copy script"}, help...)
	}
	if m.asset != nil && m.deps.Player != nil {
		if m.playing {
			help = append([]string{"p stop"}, help...)
		} else {
			help = append([]string{"p play"}, help...)
		}
	}
	fmt.Fprint(&b, helpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}
