package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/groutine"
	"github.com/srg/btctl/internal/runner"
)

// DefaultCommand prints the Bluetooth report as JSON.
var DefaultCommand = []string{"/usr/sbin/system_profiler", "SPBluetoothDataType", "-json"}

// Source fetches the reconciled list of devices known to the host.
type Source struct {
	runner  runner.Runner
	command []string
	buckets []Bucket
	locale  string
	logger  *logrus.Logger
}

// SourceOptions configures a Source. Zero values select the defaults.
type SourceOptions struct {
	Command []string
	Buckets []Bucket
	Locale  string
}

// NewSource creates an inventory Source that runs commands through r.
func NewSource(r runner.Runner, opts *SourceOptions, logger *logrus.Logger) *Source {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = &SourceOptions{}
	}

	s := &Source{
		runner:  r,
		command: opts.Command,
		buckets: opts.Buckets,
		locale:  opts.Locale,
		logger:  logger,
	}
	if len(s.command) == 0 {
		s.command = DefaultCommand
	}
	if len(s.buckets) == 0 {
		s.buckets = DefaultBuckets()
	}
	if s.locale == "" {
		s.locale = device.DefaultLocale
	}
	return s
}

// Fetch runs the inventory command and returns the reconciled device list.
//
// A nonzero exit fails with *device.ExternalCommandError. Diagnostic text on a
// successful exit is only logged, since the report on stdout is still usable.
// Output that cannot be parsed fails with *device.ParseError.
func (s *Source) Fetch(ctx context.Context) ([]device.BluetoothDevice, error) {
	name, args := s.command[0], s.command[1:]
	cmdline := runner.CommandLine(name, args...)
	logger := s.logger.WithFields(logrus.Fields{
		"command":   cmdline,
		"goroutine": groutine.GetName(ctx),
	})

	start := time.Now()
	res, err := s.runner.Run(ctx, name, args...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &device.ExternalCommandError{Command: cmdline, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return nil, res.Err(cmdline)
	}
	if diag := res.Diagnostic(); diag != "" {
		logger.WithField("stderr", diag).Warn("Inventory command wrote diagnostics")
	}

	devices, err := ParseDevices(res.Stdout, s.buckets, device.NewCollator(s.locale))
	if err != nil {
		logger.WithError(err).Error("Failed to parse inventory output")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"device_count": len(devices),
		"elapsed":      time.Since(start).Truncate(time.Millisecond),
	}).Info("Fetched Bluetooth inventory")

	return devices, nil
}
