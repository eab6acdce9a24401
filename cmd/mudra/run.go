package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start gesture control: stream, matching and hybrid-mode relay",
		Args:  cobra.NoArgs,
		RunE:  runClient,
	}
	cmd.Flags().String("context", "global", "active application context")
	_ = v.BindPFlag("pipeline.activeContext", cmd.Flags().Lookup("context"))
	return cmd
}

func runClient(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := newApp(st, cfg.Stream.URL, printStatus(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}
