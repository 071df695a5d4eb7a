package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:     "forget <address>",
	Aliases: []string{"unpair"},
	Short:   "Forget (unpair) a device",
	Long: `Removes the pairing of the device with the given address.

The device has to be paired again before it can reconnect. Asks for
confirmation unless --yes is given; without a terminal --yes is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

var forgetYes bool

// isInteractive reports whether the confirmation prompt can be answered.
// This is a variable so that it can be overridden in tests.
var isInteractive = func(in io.Reader) bool {
	return isTerminal(in)
}

func init() {
	forgetCmd.Flags().BoolVarP(&forgetYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runForget(cmd *cobra.Command, args []string) error {
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

	// The name is only needed for the prompt; an unknown address can still be unpaired.
	label := address
	if err := a.store.Revalidate(ctx); err != nil {
		a.logger.WithError(err).Warn("Could not read device list before forgetting")
	} else if dev, ok := a.store.Device(address); ok {
		label = deviceLabel(dev.Name, dev.Address)
	}

	if !forgetYes {
		if !isInteractive(cmd.InOrStdin()) {
			return ErrConfirmationRequired
		}
		confirmed, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf(
			"Forget %s? This device will be unpaired. You may need to pair it again to reconnect. [y/N]: ", label))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}

	if err := a.dispatcher.Forget(ctx, address); err != nil {
		return fmt.Errorf("failed to forget %s: %w", label, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", label)
	return nil
}

// confirm prints prompt and reads a yes/no answer. Anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
