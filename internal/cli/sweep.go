package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Notify bool
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Refresh prices for every tracked route",
		Long: `Re-query the flight provider for every tracked route and record the
fresh quotes. With --notify, an SMS is sent for every route whose stored
price was overwritten.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Notify, "notify", false, "send an SMS for each overwritten price")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp()

	if opts.Notify && app.Notifier == nil {
		return NewExitError(ExitCommandError, "--notify requires the notify section in the config file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.NewController().Sweep(ctx, opts.Notify); err != nil {
		return WrapExitError(ExitFailure, "sweep aborted", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	return out.Success("Sweep complete.")
}
