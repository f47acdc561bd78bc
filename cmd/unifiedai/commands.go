package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"unifiedai/internal/chat"
	"unifiedai/internal/logger"
	"unifiedai/internal/version"
	"unifiedai/pkg/aitypes"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func newProvidersCmd(state *cliState) *cobra.Command {
	var apiFilter string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers in the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(state.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if apiFilter != "" {
				byProvider := a.manager.GetProvidersForAPI(aitypes.APIType(apiFilter))
				fmt.Fprintln(out, headerStyle.Render("Providers supporting "+apiFilter))
				for _, provider := range a.manager.GetAvailableProviders() {
					if configs, ok := byProvider[provider]; ok {
						fmt.Fprintf(out, "  %s %s\n", provider, dimStyle.Render(fmt.Sprintf("(%d configs)", len(configs))))
					}
				}
				return nil
			}

			fmt.Fprintln(out, headerStyle.Render("Providers"))
			for _, provider := range a.manager.GetAvailableProviders() {
				configs, err := a.manager.GetProviderConfigs(provider)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s %s\n", provider, dimStyle.Render(fmt.Sprintf("(%d configs)", len(configs))))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiFilter, "api", "", "Only list providers with a configuration for this API type")
	return cmd
}

func newConfigsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "configs <provider>",
		Short: "List a provider's configurations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(state.cfg)
			if err != nil {
				return err
			}
			configs, err := a.manager.GetProviderConfigs(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(args[0]))
			for i, cfg := range configs {
				fmt.Fprintf(out, "  [%d] %s  %s  %s\n", i, cfg.ConfigName, cfg.ModelName,
					dimStyle.Render(joinAPITypes(cfg.APISupported)))
			}
			return nil
		},
	}
}

func newAPIsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "apis [provider index]",
		Short: "List API types for one configuration, or for the whole catalogue",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(state.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				fmt.Fprintln(out, joinAPITypes(a.manager.GetAPITypes()))
				return nil
			}
			if len(args) == 1 {
				return errors.New("apis needs both a provider and a config index")
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return &aitypes.InvalidParameterError{Field: "config_index", Value: args[1], Message: "must be an integer"}
			}
			types, err := a.manager.GetSupportedAPI(args[0], index)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, joinAPITypes(types))
			return nil
		},
	}
}

type sendOptions struct {
	provider  string
	index     int
	apiType   string
	sessionID string
	retries   int
	verbose   bool
}

func newSendCmd(state *cliState) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send one message and print the reply",
		Long: `Send one message through the selected configuration and print the reply.
Provider, config index and API type default to the "default" section of the config file.
Transient transport failures (timeouts, 429, 5xx) are retried with a fresh session when --retries > 0.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(state.cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("provider") {
				opts.provider = state.cfg.Default.Provider
			}
			if !cmd.Flags().Changed("index") {
				opts.index = state.cfg.Default.ConfigIndex
			}
			if !cmd.Flags().Changed("api") {
				opts.apiType = state.cfg.Default.APIType
			}
			err = runSend(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a, opts, strings.Join(args, " "))
			if a.collector != nil {
				writeMetricsSummary(cmd.ErrOrStderr(), a)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.provider, "provider", "p", "", "Provider name")
	flags.IntVarP(&opts.index, "index", "i", 0, "Configuration index")
	flags.StringVarP(&opts.apiType, "api", "a", "", "API type")
	flags.StringVar(&opts.sessionID, "session", "", "Session id (generated when empty)")
	flags.IntVar(&opts.retries, "retries", 0, "Retries for transient transport failures")
	flags.BoolVar(&opts.verbose, "verbose-reply", false, "Print session details with the reply")
	return cmd
}

func runSend(ctx context.Context, out, errOut io.Writer, a *app, opts *sendOptions, message string) error {
	sendLog := logger.NewStyledLogger("send", errOut)

	if err := a.manager.ConfigureAPI(opts.provider, opts.index, aitypes.APIType(opts.apiType)); err != nil {
		return err
	}
	if !a.manager.ValidateConfiguration() {
		return errors.New("configuration did not validate")
	}

	var lastErr error
	for attempt := 0; attempt <= opts.retries; attempt++ {
		if attempt > 0 {
			sendLog.Warn("Retrying after transient failure", "attempt", attempt, "of", opts.retries, "error", lastErr)
		}
		lastErr = a.manager.WithChatClient(ctx, opts.sessionID, func(s *chat.ChatClient) error {
			reply, err := s.SendMessage(ctx, message)
			if err != nil {
				return err
			}
			if opts.verbose {
				params := s.ConnectionParams()
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s via %s (%s)", s.ModelName(), s.APIType(), params.Provider)))
			}
			fmt.Fprintln(out, replyStyle.Render(reply))
			return nil
		})
		if lastErr == nil || !aitypes.IsRetryable(lastErr) {
			return lastErr
		}
	}
	if opts.retries > 0 {
		sendLog.Error("Giving up", "attempts", opts.retries+1, "error", lastErr)
	}
	return lastErr
}

func writeMetricsSummary(w io.Writer, a *app) {
	families, err := a.collector.Registry().Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", "error", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = m.GetHistogram().GetSampleSum()
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	fmt.Fprintln(w, dimStyle.Render(strings.Join(lines, "\n")))
}

func newVersionCmd() *cobra.Command {
	var detailed bool
	var constraint string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show version information.
With --check, exit non-zero unless this build satisfies a semantic version constraint
such as ">= 0.1, < 1.0".`,
		Args: cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if constraint != "" {
				ok, err := version.Satisfies(constraint)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s v%s does not satisfy %q", version.Name, version.Version, constraint)
				}
				fmt.Fprintf(out, "%s v%s satisfies %q\n", version.Name, version.Version, constraint)
				return nil
			}
			if detailed {
				fmt.Fprintln(out, version.GetDetailedVersion())
				return nil
			}
			fmt.Fprintln(out, version.GetFormattedVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show build details")
	cmd.Flags().StringVar(&constraint, "check", "", "Semantic version constraint to check this build against")
	return cmd
}

func joinAPITypes(types []aitypes.APIType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
