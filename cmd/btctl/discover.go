package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/srg/btctl/internal/discovery"
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover nearby Bluetooth devices",
	Long: `Runs a Bluetooth inquiry and lists the devices that answered. Devices that
are already paired with this host are marked in the PAIRED column.

The inquiry is performed by blueutil and typically takes 10 to 20 seconds.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

var discoverFormat string

func init() {
	discoverCmd.Flags().StringVarP(&discoverFormat, "format", "f", "", "Output format (table, json); defaults to output_format from the config")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if discoverFormat != "" {
		if err := validateFormat(discoverFormat); err != nil {
			return err
		}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	format, err := a.resolveFormat(discoverFormat)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if err := a.requireTool(); err != nil {
		return err
	}

	ctx, cancel := a.commandContext(cmd)
	defer cancel()

	if err := discover(ctx, cmd, a, "Scanning for Bluetooth devices"); err != nil {
		return err
	}
	return displayDiscovered(cmd.OutOrStdout(), a.store.Discovered(), a.store.IsPaired, format)
}

// discover runs an inquiry while a countdown is shown on the terminal.
func discover(ctx context.Context, cmd *cobra.Command, a *app, prefix string) error {
	progress := NewCountdownProgressPrinter(progressWriter(cmd.ErrOrStderr()), prefix,
		discovery.PhaseScanning, a.cfg.InquiryDuration, discovery.PhaseProcessing)
	progress.Start()
	defer progress.Stop()

	return a.store.Discover(ctx, progress.Callback())
}
