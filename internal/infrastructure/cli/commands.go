package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/compai/assets"
	appconfig "github.com/doeshing/compai/internal/application/config"
	"github.com/doeshing/compai/internal/domain"
	"github.com/doeshing/compai/internal/infrastructure/bridge"
	"github.com/doeshing/compai/internal/infrastructure/config"
	"github.com/doeshing/compai/internal/infrastructure/security"
	"github.com/doeshing/compai/internal/ports"
)

const (
	msgConfigurationValid       = "Configuration valid"
	msgNoDifferencesFromDefault = "No differences from default configuration."
)

func newAskCommand(rt *runtime) *cobra.Command {
	var showUsage bool
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one conversational turn",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, rt, strings.Join(args, " "), showUsage)
		},
	}
	cmd.Flags().BoolVar(&showUsage, "usage", false, "Print token usage")
	return cmd
}

func runAsk(cmd *cobra.Command, rt *runtime, message string, showUsage bool) error {
	ctx := cmd.Context()
	container, err := rt.load(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if _, errCh := container.StartBridge(ctx); errCh != nil {
		go logServerError(container.Logger, errCh)
	}

	resp, err := container.Dispatch.Run(domain.TurnRequest{Context: ctx, Message: message})
	if err != nil {
		return err
	}
	RenderTurn(cmd.OutOrStdout(), resp, showUsage)
	return nil
}

func newChatCommand(rt *runtime) *cobra.Command {
	var showUsage bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			container, err := rt.load(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if server, errCh := container.StartBridge(ctx); server != nil {
				go logServerError(container.Logger, errCh)
				fmt.Fprintf(out, "Waiting for the host panel on ws://%s%s\n", server.Addr(), bridge.BridgePath)
			}
			if err := container.WatchConfig(); err != nil {
				container.Logger.Warn("config watch unavailable", map[string]interface{}{"error": err.Error()})
			}

			in := cmd.InOrStdin()
			interactive := in == os.Stdin && isTerminal(os.Stdin)
			if interactive {
				RenderSnapshot(out, container.Snapshots.Refresh(ctx))
				fmt.Fprintln(out, "Type /help for commands.")
			}

			session := &ChatSession{
				Dispatch:    container.Dispatch,
				Client:      container.Client,
				Snapshots:   container.Snapshots,
				In:          in,
				Out:         out,
				Interactive: interactive,
				ShowUsage:   showUsage,
			}
			return session.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&showUsage, "usage", false, "Print token usage after each reply")
	return cmd
}

func newAnalyzeCommand(rt *runtime) *cobra.Command {
	var analysisType string
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a rendered frame with the vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseAnalysisType(analysisType)
			if !ok {
				return fmt.Errorf("unknown analysis type %q (want full|coin|lighting|color)", analysisType)
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			container, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			analysis := container.Client.AnalyzeFrame(cmd.Context(), domain.FrameRequest{
				ImageBase64: base64.StdEncoding.EncodeToString(image),
				MimeType:    http.DetectContentType(image),
				Type:        kind,
			})
			RenderAnalysis(cmd.OutOrStdout(), analysis)
			if !analysis.Success {
				return errors.New("analysis failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&analysisType, "type", "t", string(domain.AnalysisFull), "Analysis type: full|coin|lighting|color")
	return cmd
}

func newActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions [prefix]",
		Short: "List the actions the assistant may invoke",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			whitelist, err := security.NewWhitelist(assets.CatalogYAML)
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog %s\n", whitelist.Version())
			RenderActions(cmd.OutOrStdout(), whitelist.WithPrefix(prefix))
			return nil
		},
	}
}

func newCallCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "call <action> [params-json]",
		Short: "Invoke one catalog action directly",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := domain.ActionCommand{Action: args[0], Params: map[string]any{}}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &command.Params); err != nil {
					return fmt.Errorf("params must be a JSON object: %w", err)
				}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			container, err := rt.load(ctx)
			if err != nil {
				return err
			}
			if _, errCh := container.StartBridge(ctx); errCh != nil {
				go logServerError(container.Logger, errCh)
			}

			result, messages := container.Dispatch.Execute(ctx, command)
			RenderResult(cmd.OutOrStdout(), result, messages)
			if !result.Success {
				return fmt.Errorf("%s failed", command.Action)
			}
			return nil
		},
	}
}

func newBridgeCommand(rt *runtime) *cobra.Command {
	bridgeCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Host bridge utilities",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept the host panel connection and keep it open",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := rt.load(ctx)
			if err != nil {
				return err
			}
			server, errCh := container.StartBridge(ctx)
			if server == nil {
				return errors.New("bridge serve requires bridge.mode: websocket")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s%s\n", server.Addr(), bridge.BridgePath)
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errCh:
				if !ok {
					return nil
				}
				return err
			}
		},
	}

	var wait time.Duration
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the host entry point and the catalog against the host registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			container, err := rt.load(ctx)
			if err != nil {
				return err
			}
			if server, errCh := container.StartBridge(ctx); server != nil {
				go logServerError(container.Logger, errCh)
				waitForPanel(ctx, container.Panel, wait)
			}

			out := cmd.OutOrStdout()
			if err := container.Transport.EntryPointAvailable(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s is available\n", domain.BridgeEntryPoint)
			if err := container.CheckCatalog(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Catalog %s matches the host registry (%d actions)\n",
				container.Whitelist.Version(), container.Whitelist.Len())
			return nil
		},
	}
	probeCmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the host panel in websocket mode")

	bridgeCmd.AddCommand(serveCmd, probeCmd)
	return bridgeCmd
}

func waitForPanel(ctx context.Context, host *bridge.WebsocketHost, wait time.Duration) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for !host.Connected() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

func newDoctorCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose environment setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			report, err := container.DoctorService.Run(cmd.Context())
			RenderDoctorReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			if report.HasErrors() {
				return errors.New("diagnostics reported errors")
			}
			return nil
		},
	}
}

func newConfigCommand(rt *runtime) *cobra.Command {
	loader := func() *config.FileLoader { return config.NewFileLoader(rt.opts.ConfigPath) }

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect compai configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), loader())
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show full configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), loader())
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show diff versus default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigurationDiff(cmd.Context(), cmd.OutOrStdout(), loader())
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), loader().Path())
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader().Load(cmd.Context())
			if err != nil {
				return err
			}
			if err := appconfig.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgConfigurationValid)
			return nil
		},
	}

	configCmd.AddCommand(showCmd, diffCmd, pathCmd, validateCmd)
	return configCmd
}

func showConfiguration(ctx context.Context, out io.Writer, loader *config.FileLoader) error {
	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Endpoint.APIKey != "" {
		cfg.Endpoint.APIKey = "********"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(out, string(data))
	return nil
}

func showConfigurationDiff(ctx context.Context, out io.Writer, loader *config.FileLoader) error {
	current, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load current configuration: %w", err)
	}
	defaults, err := config.Defaults()
	if err != nil {
		return err
	}
	diff := cmp.Diff(defaults, current)
	if diff == "" {
		fmt.Fprintln(out, msgNoDifferencesFromDefault)
		return nil
	}
	fmt.Fprintln(out, diff)
	return nil
}

func logServerError(log ports.Logger, errCh <-chan error) {
	if err, ok := <-errCh; ok && err != nil {
		log.Error("bridge server stopped", err, nil)
	}
}
