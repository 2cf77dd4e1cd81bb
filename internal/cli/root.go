// Package cli implements the riskiq command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BuildInfo identifies the running binary. Set via ldflags in main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app is the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	info    BuildInfo
	cfgFile string
	verbose bool
}

// NewRootCommand builds the riskiq command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	a := &app{v: viper.New(), info: info}

	root := &cobra.Command{
		Use:   "riskiq",
		Short: "RiskIQ - lending compliance, fraud and loan-risk engine",
		Long: `RiskIQ checks loan agreements against RBI lending regulations, scores
loan applicants for fraud and borrowers for credit risk, and builds the
regulatory reports a lender files with the regulator.

Every analysis has a deterministic rule tier. An inference provider
(Hugging Face, OpenAI or Gemini) refines results when configured.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.riskiq/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	_ = a.v.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		a.serveCommand(),
		a.analyzeCommand(),
		a.rulesCommand(),
		a.benchCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute(info BuildInfo) error {
	return NewRootCommand(info).Execute()
}

// initConfig reads the config file and RISKIQ_* environment variables.
func (a *app) initConfig(stderr io.Writer) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home + "/.riskiq")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix("RISKIQ")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		// a missing default file is fine; a named or broken one is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else if a.verbose {
		fmt.Fprintf(stderr, "Using config file: %s\n", a.v.ConfigFileUsed())
	}
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riskiq %s (commit %s, built %s)\n",
				a.info.Version, a.info.Commit, a.info.BuildDate)
		},
	}
}

// newLogger builds the process logger. RISKIQ_DEBUG=true or --verbose
// forces debug level.
func newLogger(w io.Writer, level, format string, debug bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if debug || os.Getenv("RISKIQ_DEBUG") == "true" {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
