package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/btctl/internal/device"
)

var (
	connectedColor    = color.New(color.FgGreen)
	disconnectedColor = color.New(color.Faint)
	pairedColor       = color.New(color.FgYellow)
)

const maxNameWidth = 32

func displayDevices(w io.Writer, devices []device.BluetoothDevice, format string) error {
	if format == "json" {
		if devices == nil {
			devices = []device.BluetoothDevice{}
		}
		return displayJSON(w, devices)
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tTYPE\tSTATUS")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", truncate(d.Name, maxNameWidth), d.Address, device.KindOf(d.MinorType), connectionStatus(d.Connected))
	}
	return tw.Flush()
}

// discoveredEntry is the JSON form of a discovered device.
type discoveredEntry struct {
	device.DiscoveredBluetoothDevice
	Paired bool `json:"paired"`
}

func displayDiscovered(w io.Writer, found []device.DiscoveredBluetoothDevice, isPaired func(string) bool, format string) error {
	if format == "json" {
		entries := make([]discoveredEntry, 0, len(found))
		for _, d := range found {
			entries = append(entries, discoveredEntry{DiscoveredBluetoothDevice: d, Paired: isPaired(d.Address)})
		}
		return displayJSON(w, entries)
	}

	if len(found) == 0 {
		fmt.Fprintln(w, "No new devices found")
		fmt.Fprintln(w, "Make sure your device is in pairing mode and run discover again.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tPAIRED")
	for _, d := range found {
		paired := "no"
		if isPaired(d.Address) {
			paired = pairedColor.Sprint("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", truncate(d.Name, maxNameWidth), d.Address, paired)
	}
	return tw.Flush()
}

func displayJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func connectionStatus(connected bool) string {
	if connected {
		return connectedColor.Sprint("connected")
	}
	return disconnectedColor.Sprint("disconnected")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}

// deviceLabel returns "Name (address)" or just the address when the name is unknown.
func deviceLabel(name, address string) string {
	if strings.TrimSpace(name) == "" || name == address {
		return address
	}
	return fmt.Sprintf("%s (%s)", name, address)
}
