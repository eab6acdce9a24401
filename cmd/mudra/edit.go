package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Hold an editor session open until interrupted, then restore hybrid mode",
		Args:  cobra.NoArgs,
		RunE:  runEdit,
	}
}

func runEdit(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := newApp(st, "", nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err = a.Editor().Run(ctx, func(ctx context.Context) error {
		fmt.Fprintln(out, "Editing. Gestures are paused; press Ctrl+C to finish.")
		<-ctx.Done()
		return nil
	})
	fmt.Fprintf(out, "Editor closed, hybrid mode %s\n", onOff(a.Relay().HybridMode()))
	return err
}
