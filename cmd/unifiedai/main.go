// Package main provides the unifiedai CLI: catalogue discovery and one-shot chat exchanges
// against any configured provider.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"unifiedai/internal/config"
	"unifiedai/internal/logger"
)

// cliState is shared by the command tree; PersistentPreRunE fills it before any subcommand runs.
type cliState struct {
	configFile string
	logLevel   string
	logFile    string
	testMode   bool

	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "unifiedai",
		Short: "Unified access to chat-capable AI providers",
		Long: `unifiedai resolves a provider configuration and its API key from a catalogue,
then talks to the model over the protocol that configuration supports
(OpenAI chat completions, Anthropic messages, Gemini, or a generic REST endpoint).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&state.configFile, "config", "", "Config file (default: ./unifiedai.yaml or ~/.config/unifiedai/unifiedai.yaml)")
	flags.StringVar(&state.logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&state.logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&state.testMode, "test-mode", false, "Run in deterministic test mode")
	flags.String("catalog", "", "Provider catalogue file (default: embedded catalogue)")
	flags.String("secrets", "", "Secret store file")
	flags.Bool("debug-transport", false, "Log every HTTP exchange at debug level")

	rootCmd.AddCommand(
		newProvidersCmd(state),
		newConfigsCmd(state),
		newAPIsCmd(state),
		newSendCmd(state),
		newVersionCmd(),
	)
	return rootCmd
}

// init loads configuration with flag overrides and configures the logger.
func (s *cliState) init(cmd *cobra.Command) error {
	s.v = config.New(s.configFile)

	root := cmd.Root().PersistentFlags()
	bindings := map[string]string{
		"log.level":       "log-level",
		"log.file":        "log-file",
		"catalog_path":    "catalog",
		"secrets_path":    "secrets",
		"debug_transport": "debug-transport",
	}
	for key, flag := range bindings {
		if err := s.v.BindPFlag(key, root.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding %s flag: %w", flag, err)
		}
	}

	cfg, err := config.Load(s.v)
	if err != nil {
		return err
	}
	s.cfg = cfg

	if err := logger.Configure(cfg.Log.Level, cfg.Log.File, s.testMode); err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}
	logger.Debug("Configuration loaded", "file", s.v.ConfigFileUsed(), "catalog", cfg.CatalogPath)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
