// Package main provides the entry point for the asmrgen CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/asmrgen/internal/config"
	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/ui"
)

const appName = "asmrgen"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	mouse      bool
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "asmrgen",
		Short: "Generate multi-voice ASMR audio from a theme or a script",
		Long: paragraph(
			fmt.Sprintf("\nGenerate multi-voice %s audio from a theme or a script.", keyword("ASMR")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(*cobra.Command, []string) error {
			return runTUI()
		},
	}
)

// validateStyle accepts a built-in glamour style name or a path to a JSON
// style file.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(expandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	debug = viper.GetBool("debug")

	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	fd := int(os.Stdout.Fd()) //nolint:gosec
	isTerminal := term.IsTerminal(fd)
	if !isTerminal {
		// Piped output gets plain text unless a style was asked for.
		lipgloss.SetColorProfile(termenv.Ascii)
		if !cmd.Flags().Changed("style") {
			style = "notty"
		}
	}

	if !cmd.Flags().Changed("width") && width == 0 {
		width = terminalWidth(fd, isTerminal)
	}
	return nil
}

// terminalWidth is the wrap width for rendered scripts: the terminal's
// width capped at 120 columns, or 80 when it cannot be measured.
func terminalWidth(fd int, isTerminal bool) uint {
	const fallback, ceiling = 80, 120
	if !isTerminal {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return fallback
	}
	return uint(min(w, ceiling)) //nolint:gosec
}

func runTUI() error {
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// GLAMOUR_STYLE wins when it names a usable style.
	if err := validateStyle(cfg.GlamourStyle); err != nil {
		cfg.GlamourStyle = style
	}
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	if cfg.Length == "" {
		cfg.Length = domain.LengthMedium
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	deps, err := a.tuiDeps(rootCmd.Context())
	if err != nil {
		return err
	}

	if _, err := ui.NewProgram(cfg, deps).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(generateCmd, scriptCmd, voicesCmd, listCmd, playCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find a configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("ASMRGEN_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], appName+".yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
