package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/asmrgen/internal/assemble"
	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/pipeline"
	"github.com/dgnsrekt/asmrgen/internal/script"
	"github.com/dgnsrekt/asmrgen/internal/store"
)

type (
	transitionMsg pipeline.Transition

	runDoneMsg struct {
		result *pipeline.Result
		err    error
	}

	savedMsg struct {
		refs []string
		err  error
	}

	playDoneMsg struct{ err error }

	scriptRenderedMsg string

	statusMessageTimeoutMsg struct{}

	errMsg struct{ err error }
)

func (e errMsg) Error() string { return e.err.Error() }

// startRun runs the pipeline and closes progress when it returns.
func startRun(ctx context.Context, r Runner, req domain.GenerationRequest, overrides domain.VoiceMap, progress chan pipeline.Transition, opts ...pipeline.RunOption) tea.Cmd {
	return func() tea.Msg {
		opts = append(opts, pipeline.WithProgress(progress))
		res, err := r.Run(ctx, req, overrides, opts...)
		close(progress)
		return runDoneMsg{result: res, err: err}
	}
}

// waitForTransition reads the next progress event. It returns nil once the
// channel is closed.
func waitForTransition(progress <-chan pipeline.Transition) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-progress
		if !ok {
			return nil
		}
		return transitionMsg(t)
	}
}

// saveAsset stores the audio and its script under the same stem.
func saveAsset(st store.Store, asset domain.AudioAsset) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		audioRef, err := st.SaveAsset(ctx, asset)
		if err != nil {
			return savedMsg{err: err}
		}
		scriptRef, err := st.SaveScript(ctx, asset.Script, store.Stem(asset))
		if err != nil {
			return savedMsg{refs: []string{audioRef}, err: err}
		}
		log.Info("Saved generation", "audio", audioRef, "script", scriptRef)
		return savedMsg{refs: []string{audioRef, scriptRef}}
	}
}

func playAsset(ctx context.Context, p Player, asset domain.AudioAsset) tea.Cmd {
	return func() tea.Msg {
		pcm, f, err := assemble.DecodeWAV(asset.Data)
		if err != nil {
			return playDoneMsg{err: err}
		}
		err = p.Play(ctx, pcm, f)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return playDoneMsg{err: err}
	}
}

func copyScript(s domain.Script) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(s.String()); err != nil {
			return errMsg{fmt.Errorf("unable to copy script: %w", err)}
		}
		return nil
	}
}

func renderScript(s domain.Script, style string, width int) tea.Cmd {
	return func() tea.Msg {
		out, err := RenderMarkdown(script.Markdown(s), style, width)
		if err != nil {
			log.Warn("Unable to render script", "err", err)
			return scriptRenderedMsg(s.String())
		}
		return scriptRenderedMsg(out)
	}
}

// RenderMarkdown renders md with glamour. style is a glamour style name,
// "auto", or a path to a JSON style.
func RenderMarkdown(md, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		GlamourStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	return r.Render(md)
}

// GlamourStyle resolves "auto" against the terminal background.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style == "" || style == styles.AutoStyle {
		if lipgloss.HasDarkBackground() {
			return glamour.WithStandardStyle(styles.DarkStyle)
		}
		return glamour.WithStandardStyle(styles.LightStyle)
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(style)
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
