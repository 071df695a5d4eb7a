package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/btctl/internal/device"
)

var pairCmd = &cobra.Command{
	Use:   "pair <address>",
	Short: "Pair a nearby device",
	Long: `Runs a discovery scan and pairs the device with the given address.

The device must be in pairing mode and must answer the scan. Devices that are
already paired are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runPair,
}

func runPair(cmd *cobra.Command, args []string) error {
	address := args[0]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if err := a.requireTool(); err != nil {
		return err
	}

	ctx, cancel := a.commandContext(cmd)
	defer cancel()

	if err := discover(ctx, cmd, a, fmt.Sprintf("Looking for %s", address)); err != nil {
		return err
	}

	label := address
	for _, d := range a.store.Discovered() {
		if device.SameAddress(d.Address, address) {
			label = deviceLabel(d.Name, d.Address)
			break
		}
	}

	progress := NewProgressPrinter(progressWriter(cmd.ErrOrStderr()), fmt.Sprintf("Pairing %s", label), "Pairing")
	progress.Start()
	err = a.dispatcher.Pair(ctx, address)
	progress.Stop()
	if err != nil {
		return fmt.Errorf("failed to pair %s: %w", label, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Paired with %s\n", label)
	return nil
}
