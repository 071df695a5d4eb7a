// Package store keeps the in-memory device lists shown to the user and
// serializes concurrent refreshes with a generation counter.
package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/discovery"
	"github.com/srg/btctl/internal/groutine"
	"github.com/srg/btctl/internal/ringchan"
)

// Inventory lists the devices known to the host.
type Inventory interface {
	Fetch(ctx context.Context) ([]device.BluetoothDevice, error)
}

// Discoverer runs an inquiry scan.
type Discoverer interface {
	Run(ctx context.Context, progress discovery.ProgressCallback) (*discovery.Result, error)
}

// Phase tells whether a device's state came from the host or from an
// optimistic update that has not been confirmed yet.
type Phase int

const (
	PhaseConfirmed Phase = iota
	PhaseOptimistic
)

func (p Phase) String() string {
	if p == PhaseOptimistic {
		return "optimistic"
	}
	return "confirmed"
}

// EventType identifies what changed in the store.
type EventType int

const (
	EventDevices EventType = iota
	EventDiscovered
	EventError
	EventLoading
)

// Event notifies observers of a change.
type Event struct {
	Type       EventType
	Generation uint64
}

const eventBufferSize = 32

// Store holds the device list, the discovered list, the last error and the
// loading state. It is safe for concurrent use.
//
// Every refresh takes a new generation number; a refresh that completes after
// a newer one was issued (or after an optimistic update) is discarded, so the
// last issued request wins regardless of completion order.
type Store struct {
	inventory  Inventory
	discoverer Discoverer
	logger     *logrus.Logger
	events     *ringchan.RingChannel[Event]

	mu                  sync.RWMutex
	devices             []device.BluetoothDevice
	phases              map[string]Phase
	discovered          []device.DiscoveredBluetoothDevice
	lastDiscovery       *discovery.Result
	fetchErr            error
	discoveryErr        error
	loading             int
	generation          uint64
	discoveryGeneration uint64
}

// New creates a Store. discoverer may be nil when scanning is not needed.
func New(inventory Inventory, discoverer Discoverer, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		inventory:  inventory,
		discoverer: discoverer,
		logger:     logger,
		events:     ringchan.New[Event](eventBufferSize),
		phases:     make(map[string]Phase),
	}
}

// Revalidate re-runs the inventory and replaces the device list.
//
// On failure the device list is cleared and FetchErr is set. A refresh only
// clears its own error, never the one left by a discovery. The fetch error is
// returned even when the result was discarded as stale.
func (s *Store) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.loading++
	s.fetchErr = nil
	s.mu.Unlock()
	s.emit(EventLoading, gen)

	devices, err := s.inventory.Fetch(ctx)

	s.mu.Lock()
	s.loading--
	stale := gen != s.generation
	if !stale {
		if err != nil {
			s.devices = nil
			s.fetchErr = err
		} else {
			s.devices = devices
		}
		s.phases = make(map[string]Phase)
	}
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"goroutine":  groutine.GetName(ctx),
	})
	if stale {
		logger.Debug("Discarding stale device refresh")
		s.emit(EventLoading, gen)
		return err
	}

	if err != nil {
		logger.WithError(err).Error("Device refresh failed")
		s.emit(EventError, gen)
	} else {
		logger.WithField("device_count", len(devices)).Debug("Device list refreshed")
	}
	s.emit(EventDevices, gen)
	return err
}

// RevalidateAsync starts Revalidate in a background goroutine. The returned
// channel receives its error and is then closed.
func (s *Store) RevalidateAsync(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	groutine.Go(ctx, "store-revalidate", func(ctx context.Context) {
		defer close(errCh)
		errCh <- s.Revalidate(ctx)
	})
	return errCh
}

// Discover runs an inquiry scan and replaces the discovered list.
// On failure the discovered list is cleared and DiscoveryErr is set.
func (s *Store) Discover(ctx context.Context, progress discovery.ProgressCallback) error {
	if s.discoverer == nil {
		return &device.ToolNotFoundError{Tool: device.ControlToolName}
	}

	s.mu.Lock()
	s.discoveryGeneration++
	gen := s.discoveryGeneration
	s.loading++
	s.discoveryErr = nil
	s.mu.Unlock()
	s.emit(EventLoading, gen)

	result, err := s.discoverer.Run(ctx, progress)

	s.mu.Lock()
	s.loading--
	stale := gen != s.discoveryGeneration
	if !stale {
		if err != nil {
			s.discovered = nil
			s.lastDiscovery = nil
			s.discoveryErr = err
		} else {
			s.discovered = result.Devices
			s.lastDiscovery = result
		}
	}
	s.mu.Unlock()

	if stale {
		s.emit(EventLoading, gen)
		return err
	}
	if err != nil {
		s.emit(EventError, gen)
	}
	s.emit(EventDiscovered, gen)
	return err
}

// SetConnected optimistically sets the connected flag of a known device and
// invalidates refreshes that are still in flight. It reports whether the
// device was found.
func (s *Store) SetConnected(address string, connected bool) bool {
	key := device.NormalizeAddress(address)

	s.mu.Lock()
	idx := s.indexLocked(key)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	devices := make([]device.BluetoothDevice, len(s.devices))
	copy(devices, s.devices)
	devices[idx].Connected = connected
	s.devices = devices
	s.phases[key] = PhaseOptimistic
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"address":   address,
		"connected": connected,
	}).Debug("Applied optimistic connection state")
	s.emit(EventDevices, gen)
	return true
}

// RevertConnected restores the connected flag of a device after a failed
// action and marks its state as confirmed again. Like SetConnected it
// invalidates refreshes that are still in flight. It reports whether the
// device was found.
func (s *Store) RevertConnected(address string, connected bool) bool {
	key := device.NormalizeAddress(address)

	s.mu.Lock()
	idx := s.indexLocked(key)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	devices := make([]device.BluetoothDevice, len(s.devices))
	copy(devices, s.devices)
	devices[idx].Connected = connected
	s.devices = devices
	delete(s.phases, key)
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"address":   address,
		"connected": connected,
	}).Debug("Reverted optimistic connection state")
	s.emit(EventDevices, gen)
	return true
}

// Devices returns a copy of the current device list.
func (s *Store) Devices() []device.BluetoothDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]device.BluetoothDevice, len(s.devices))
	copy(out, s.devices)
	return out
}

// Device returns the device with address.
func (s *Store) Device(address string) (device.BluetoothDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(device.NormalizeAddress(address))
	if idx < 0 {
		return device.BluetoothDevice{}, false
	}
	return s.devices[idx], true
}

// Phase returns whether the state of address is confirmed or optimistic.
func (s *Store) Phase(address string) Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phases[device.NormalizeAddress(address)]
}

// Discovered returns a copy of the devices seen by the last discovery.
func (s *Store) Discovered() []device.DiscoveredBluetoothDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]device.DiscoveredBluetoothDevice, len(s.discovered))
	copy(out, s.discovered)
	return out
}

// IsDiscovered reports whether the last discovery saw address.
func (s *Store) IsDiscovered(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDiscovery.Contains(address)
}

// IsPaired reports whether address is already paired, either because it is
// in the device list or because the last discovery found it in the paired set.
func (s *Store) IsPaired(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexLocked(device.NormalizeAddress(address)) >= 0 {
		return true
	}
	return s.lastDiscovery.IsPaired(address)
}

// Err returns the error of the last device refresh, or failing that the
// error of the last discovery. It is nil when neither failed.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fetchErr != nil {
		return s.fetchErr
	}
	return s.discoveryErr
}

// FetchErr returns the error of the last device refresh, or nil.
func (s *Store) FetchErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchErr
}

// DiscoveryErr returns the error of the last discovery, or nil.
func (s *Store) DiscoveryErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discoveryErr
}

// Error returns the last error as a descriptor, or nil.
func (s *Store) Error() *device.ErrorDescriptor {
	return device.Describe(s.Err())
}

// IsLoading reports whether a refresh or discovery is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Events returns the change notification channel. Old events are dropped
// when the consumer falls behind.
func (s *Store) Events() <-chan Event {
	return s.events.C()
}

func (s *Store) indexLocked(key string) int {
	if key == "" {
		return -1
	}
	for i, d := range s.devices {
		if device.NormalizeAddress(d.Address) == key {
			return i
		}
	}
	return -1
}

func (s *Store) emit(t EventType, gen uint64) {
	s.events.Send(Event{Type: t, Generation: gen})
}
