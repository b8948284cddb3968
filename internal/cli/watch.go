package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flightclub/flightclub/internal/sweep"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sweep periodically until interrupted",
		Long: `Run the sweep on a fixed interval, sending notifications for every
overwritten price, until interrupted.

The interval defaults to sweep.interval from the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between sweeps (default from config)")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	app, closeApp, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp()

	interval := opts.Interval
	if interval <= 0 {
		interval = app.Config.Sweep.Interval.Std()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := sweep.NewRunner(app.NewController(), interval, app.Log)
	runner.SetEnabled(true)

	app.Log.Info("watching tracked routes", "interval", interval)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch stopped", err)
	}
	return nil
}
