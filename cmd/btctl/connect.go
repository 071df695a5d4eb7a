package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/dispatch"
)

var connectCmd = &cobra.Command{
	Use:   "connect <address>",
	Short: "Connect a paired device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnection(cmd, args[0], dispatch.ActionConnect)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <address>",
	Short: "Disconnect a connected device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnection(cmd, args[0], dispatch.ActionDisconnect)
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <address>",
	Short: "Connect a disconnected device or disconnect a connected one",
	Long: `Toggles the connection of a paired device based on its current state.

The device list is re-read shortly after the change so the reported state
reflects the host Bluetooth stack.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnection(cmd, args[0], "")
	},
}

// runConnection connects, disconnects, or (with an empty action) toggles address.
func runConnection(cmd *cobra.Command, address string, action dispatch.Action) error {
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

	if err := a.store.Revalidate(ctx); err != nil {
		return err
	}
	dev, ok := a.store.Device(address)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, address)
	}

	expected := action
	if expected == "" {
		expected = dispatch.ActionConnect
		if dev.Connected {
			expected = dispatch.ActionDisconnect
		}
	}

	verb := "Connecting"
	if expected == dispatch.ActionDisconnect {
		verb = "Disconnecting"
	}
	progress := NewProgressPrinter(progressWriter(cmd.ErrOrStderr()), fmt.Sprintf("%s %s", verb, dev.Name), verb)
	progress.Start()

	switch action {
	case "":
		action, err = a.dispatcher.ToggleConnection(ctx, address)
	case dispatch.ActionConnect:
		err = a.dispatcher.Connect(ctx, address)
	default:
		err = a.dispatcher.Disconnect(ctx, address)
	}
	progress.Stop()
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", expected, deviceLabel(dev.Name, dev.Address), err)
	}

	done := "Connected"
	if action == dispatch.ActionDisconnect {
		done = "Disconnected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, deviceLabel(dev.Name, dev.Address))

	if current, ok := a.store.Device(address); ok && current.Connected != (action == dispatch.ActionConnect) {
		a.logger.WithField("address", address).Warn("Device state has not caught up yet; run list again in a moment")
	}
	return nil
}
