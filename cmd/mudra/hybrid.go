package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHybridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hybrid",
		Short: "Read or change hybrid mode for every context",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored hybrid mode",
		Args:  cobra.NoArgs,
		RunE:  runHybridGet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <on|off>",
		Short: "Change hybrid mode and notify the other contexts",
		Args:  cobra.ExactArgs(1),
		RunE:  runHybridSet,
	})
	return cmd
}

func runHybridGet(cmd *cobra.Command, _ []string) error {
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

	fmt.Fprintln(cmd.OutOrStdout(), onOff(a.Relay().HybridMode()))
	return nil
}

func runHybridSet(cmd *cobra.Command, args []string) error {
	value, err := parseSwitch(args[0])
	if err != nil {
		return err
	}

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

	old, err := a.SetHybridMode(context.Background(), value)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "hybrid mode: %s -> %s\n", onOff(old), onOff(value))
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid value %q: want on, off, true or false", s)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
