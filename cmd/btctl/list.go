package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/btctl/internal/store"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List Bluetooth devices known to this host",
	Long: `List the Bluetooth devices paired with this host, sorted by name, with
their hardware address, device type and connection state.

With --watch the list is refreshed periodically until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listFormat   string
	listWatch    bool
	listInterval time.Duration
)

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "", "Output format (table, json); defaults to output_format from the config")
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "Continuously refresh and redraw the list")
	listCmd.Flags().DurationVar(&listInterval, "interval", 5*time.Second, "Refresh interval for --watch")
}

func runList(cmd *cobra.Command, args []string) error {
	if listFormat != "" {
		if err := validateFormat(listFormat); err != nil {
			return err
		}
	}
	if listWatch && listInterval <= 0 {
		return fmt.Errorf("invalid interval %s: must be positive", listInterval)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	format, err := a.resolveFormat(listFormat)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := a.commandContext(cmd)
	defer cancel()

	if listWatch {
		return runListWatch(ctx, cmd.OutOrStdout(), a, format, listInterval)
	}

	if err := a.store.Revalidate(ctx); err != nil {
		return err
	}
	return displayDevices(cmd.OutOrStdout(), a.store.Devices(), format)
}

// runListWatch redraws the list every time the store reports new devices.
// Refreshes run in the background and may overlap; the store keeps only the
// newest one. Pending refreshes are waited for before returning.
func runListWatch(ctx context.Context, w io.Writer, a *app, format string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	refresh := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := <-a.store.RevalidateAsync(ctx); err != nil && ctx.Err() == nil {
				a.logger.WithError(err).Debug("Background refresh failed")
			}
		}()
	}

	refresh()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh()
		case ev := <-a.store.Events():
			if ev.Type != store.EventDevices {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			clearScreen(w)
			if desc := a.store.Error(); desc != nil {
				fmt.Fprintf(w, "%s: %s\n", desc.Title, desc.Message)
				continue
			}
			if err := displayDevices(w, a.store.Devices(), format); err != nil {
				return err
			}
		}
	}
}
