package ui

import "github.com/dgnsrekt/asmrgen/internal/domain"

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Initial form values.
	Theme  string
	Length domain.LengthPreset

	// Overrides assign voices to speaker labels.
	Overrides domain.VoiceMap

	// Partial keeps whatever was synthesized when a run fails midway.
	Partial bool `env:"ASMRGEN_TUI_PARTIAL"`

	// AutoSave writes finished audio and its script to the store.
	AutoSave bool `env:"ASMRGEN_TUI_AUTO_SAVE" envDefault:"true"`
}
