package cli

import (
	"context"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/doeshing/compai/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// runtime builds the container on first use so flags are parsed before config is read.
type runtime struct {
	opts      Options
	container *app.Container
}

func (r *runtime) load(ctx context.Context) (*app.Container, error) {
	if r.container != nil {
		return r.container, nil
	}
	container, err := app.BuildContainer(ctx, app.Options{ConfigPath: r.opts.ConfigPath, Verbose: r.opts.Verbose})
	if err != nil {
		return nil, err
	}
	r.container = container
	return container, nil
}

func (r *runtime) close() error {
	if r.container == nil {
		return nil
	}
	return r.container.Close()
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	rt := &runtime{opts: opts}
	askCmd := newAskCommand(rt)

	root := &cobra.Command{
		Use:   "compai [message]",
		Short: "compai - compositing assistant",
		Long:  "compai turns natural language into whitelisted host actions on your compositions.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runAsk(cmd, rt, strings.Join(args, " "), false)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rt.opts.ConfigPath, "config", opts.ConfigPath, "Config file (default ~/.compai/config.yaml)")
	root.PersistentFlags().BoolVarP(&rt.opts.Verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(
		askCmd,
		newChatCommand(rt),
		newAnalyzeCommand(rt),
		newActionsCommand(),
		newCallCommand(rt),
		newBridgeCommand(rt),
		newDoctorCommand(rt),
		newConfigCommand(rt),
	)
	return root
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
