package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# style name or JSON path for rendered scripts (default "auto")
style: "auto"
# word-wrap at width
width: 80

# Script generation
text:
  provider: "gemini"
  model: "gemini-2.0-flash"
  temperature: 0.7
  top_p: 0.95
  # requested lengths are clamped to this range
  min_words: 50
  max_words: 1500
  # speaker labels the model may use; untagged lines go to default_speaker
  speakers: ["narrator", "companion"]
  default_speaker: "narrator"
  requests_per_minute: 30
  timeout: "60s"

# Speech synthesis
speech:
  # gemini or elevenlabs
  provider: "gemini"
  model: "gemini-2.5-flash-preview-tts"
  # default voice rotation; empty uses the provider's pool
  # voices: ["Enceladus", "Puck", "Charon", "Kore"]
  sample_rate: 24000
  channels: 1
  concurrency: 4
  # voice consecutive lines of one speaker in a single call
  merge_runs: false
  requests_per_minute: 60
  timeout: "90s"
  elevenlabs:
    model_id: "eleven_multilingual_v2"
    output_rate: 22050
    stability: 0.5
    similarity_boost: 0.75

# Retries for transient provider failures
retry:
  max_attempts: 3
  initial_backoff: "500ms"
  max_backoff: "8s"
  multiplier: 2.0

# Silence between segments
assembly:
  speaker_gap: "500ms"
  same_speaker_gap: "150ms"

# Where generations are saved
output:
  # local or s3
  backend: "local"
  # dir: "~/asmr"
  s3:
    # bucket: "my-bucket"
    # region: "us-east-1"
    prefix: "asmrgen"

# Synthesized segment cache
cache:
  enabled: false
  memory_mb: 64
  disk_mb: 512
  compression_level: 3
  ttl: "168h"

log:
  level: "info"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the asmrgen config file",
	Long:    paragraph(fmt.Sprintf("\n%s the asmrgen config file in $EDITOR. A commented default is written first when none exists.", keyword("Edit"))),
	Example: paragraph("asmrgen config\nasmrgen config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd(appName, configFile)
		if err != nil {
			return fmt.Errorf("unable to open editor: %w", err)
		}
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor exited: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Config file:", configFile) //nolint:errcheck
		return nil
	},
}

// ensureConfigFile resolves configFile and writes defaultConfig there unless
// a file already exists.
func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.ConfigFileUsed()
	}
	if configFile == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return err
		}
		configFile = p
	}
	configFile = expandPath(configFile)

	switch ext := filepath.Ext(configFile); ext {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("%q is not a supported configuration type: use .yaml or .yml", ext)
	}

	_, err := os.Stat(configFile)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}
