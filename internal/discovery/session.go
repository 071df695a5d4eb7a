// Package discovery runs the control tool's inquiry scan and correlates the
// devices it sees with the devices already paired to the host.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/runner"
	"golang.org/x/sync/errgroup"
)

// ProgressCallback is called when the discovery phase changes.
type ProgressCallback func(phase string)

// Discovery phases reported through ProgressCallback.
const (
	PhaseScanning   = "Scanning"
	PhaseProcessing = "Processing results"
)

// PairedSource lists the devices already known to the host.
type PairedSource interface {
	Fetch(ctx context.Context) ([]device.BluetoothDevice, error)
}

// Result is the outcome of one discovery run.
type Result struct {
	Devices []device.DiscoveredBluetoothDevice
	paired  device.AddressSet
}

// NewResult builds a Result from discovered devices and the paired device list.
func NewResult(found []device.DiscoveredBluetoothDevice, paired []device.BluetoothDevice) *Result {
	return &Result{Devices: found, paired: device.NewAddressSet(paired)}
}

// IsPaired reports whether address belongs to a device the host already knows.
func (r *Result) IsPaired(address string) bool {
	if r == nil {
		return false
	}
	return r.paired.Contains(address)
}

// Contains reports whether address was seen during the scan.
func (r *Result) Contains(address string) bool {
	if r == nil {
		return false
	}
	for _, d := range r.Devices {
		if device.SameAddress(d.Address, address) {
			return true
		}
	}
	return false
}

// Session runs inquiry scans through the control tool.
type Session struct {
	runner   runner.Runner
	toolPath string
	paired   PairedSource
	logger   *logrus.Logger
}

// NewSession creates a discovery Session. toolPath is the resolved control tool,
// "" when it could not be found. paired may be nil.
func NewSession(r runner.Runner, toolPath string, paired PairedSource, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		runner:   r,
		toolPath: toolPath,
		paired:   paired,
		logger:   logger,
	}
}

// Run performs one inquiry scan. The scan blocks for as long as the control
// tool inquires, typically 10 to 20 seconds. The paired device list is fetched
// concurrently; if that fetch fails the scan still succeeds with an empty
// paired set.
//
// A nonzero exit or any diagnostic text from the scan fails the whole run with
// *device.DiscoveryError and its partial output is discarded.
func (s *Session) Run(ctx context.Context, progress ProgressCallback) (*Result, error) {
	if s.toolPath == "" {
		return nil, &device.ToolNotFoundError{Tool: device.ControlToolName}
	}
	if progress == nil {
		progress = func(string) {}
	}

	s.logger.WithField("tool", s.toolPath).Info("Starting Bluetooth inquiry...")
	progress(PhaseScanning)
	start := time.Now()

	var (
		found  []device.DiscoveredBluetoothDevice
		paired []device.BluetoothDevice
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := s.runner.Run(gctx, s.toolPath, "--inquiry")
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &device.DiscoveryError{ExitCode: -1, Err: err}
		}
		if res.Failed() {
			return &device.DiscoveryError{Stderr: string(res.Stderr), ExitCode: res.ExitCode}
		}
		found = ParseInquiry(string(res.Stdout))
		return nil
	})

	if s.paired != nil {
		g.Go(func() error {
			devices, err := s.paired.Fetch(gctx)
			if err != nil {
				s.logger.WithError(err).Warn("Could not list paired devices, pairing state is unknown")
				return nil
			}
			paired = devices
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WithError(err).Error("Bluetooth inquiry failed")
		return nil, err
	}

	progress(PhaseProcessing)
	result := NewResult(found, paired)

	s.logger.WithFields(logrus.Fields{
		"device_count": len(result.Devices),
		"paired_count": len(paired),
		"elapsed":      time.Since(start).Truncate(time.Millisecond),
	}).Info("Bluetooth inquiry completed")

	return result, nil
}
