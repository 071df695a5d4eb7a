package main

import (
	"errors"
	"fmt"

	"github.com/srg/btctl/internal/device"
)

// Command-level errors
var (
	// ErrConfirmationRequired is returned by forget when there is no terminal
	// to ask on and --yes was not given.
	ErrConfirmationRequired = errors.New("confirmation required: re-run with --yes to forget the device")
)

// FormatUserError renders err for the terminal, preferring the external tool's
// own diagnostic text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	for _, sentinel := range []error{
		device.ErrUnknownDevice,
		device.ErrNotDiscovered,
		device.ErrAlreadyPaired,
		device.ErrActionInFlight,
		ErrConfirmationRequired,
	} {
		if errors.Is(err, sentinel) {
			return err.Error()
		}
	}

	desc := device.Describe(err)
	if desc.Title == "Error" {
		return desc.Message
	}
	return fmt.Sprintf("%s: %s", desc.Title, desc.Message)
}
