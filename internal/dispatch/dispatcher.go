// Package dispatch issues connect, disconnect, pair and unpair commands
// through the control tool and keeps the device store consistent with them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/runner"
)

// DefaultSettleDelay is how long the host stack is given to apply a connection
// change before the device list is re-read.
const DefaultSettleDelay = time.Second

// Action is a control tool verb.
type Action string

const (
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionPair       Action = "pair"
	ActionUnpair     Action = "unpair"
)

// DeviceStore is the part of the device store the dispatcher mutates.
type DeviceStore interface {
	Device(address string) (device.BluetoothDevice, bool)
	SetConnected(address string, connected bool) bool
	RevertConnected(address string, connected bool) bool
	IsDiscovered(address string) bool
	IsPaired(address string) bool
	Revalidate(ctx context.Context) error
}

// Dispatcher runs device actions. At most one action per device runs at a time.
type Dispatcher struct {
	runner      runner.Runner
	toolPath    string
	store       DeviceStore
	settleDelay time.Duration
	inFlight    *hashmap.Map[string, Action]
	logger      *logrus.Logger
}

// New creates a Dispatcher. toolPath is the resolved control tool, "" when it
// could not be found; every action then fails with *device.ToolNotFoundError.
// A negative settleDelay selects DefaultSettleDelay.
func New(r runner.Runner, toolPath string, st DeviceStore, settleDelay time.Duration, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if settleDelay < 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Dispatcher{
		runner:      r,
		toolPath:    toolPath,
		store:       st,
		settleDelay: settleDelay,
		inFlight:    hashmap.New[string, Action](),
		logger:      logger,
	}
}

// InFlight returns the action currently running for address, if any.
func (d *Dispatcher) InFlight(address string) (Action, bool) {
	return d.inFlight.Get(device.NormalizeAddress(address))
}

// ToggleConnection disconnects a connected device and connects a disconnected
// one, based on the store's current view. It returns the action it issued.
func (d *Dispatcher) ToggleConnection(ctx context.Context, address string) (Action, error) {
	if err := d.requireTool(); err != nil {
		return "", err
	}
	dev, ok := d.store.Device(address)
	if !ok {
		return "", fmt.Errorf("%w: %s", device.ErrUnknownDevice, address)
	}

	action := ActionConnect
	if dev.Connected {
		action = ActionDisconnect
	}
	return action, d.setConnection(ctx, dev, action)
}

// Connect connects a known device.
func (d *Dispatcher) Connect(ctx context.Context, address string) error {
	return d.connection(ctx, address, ActionConnect)
}

// Disconnect disconnects a known device.
func (d *Dispatcher) Disconnect(ctx context.Context, address string) error {
	return d.connection(ctx, address, ActionDisconnect)
}

func (d *Dispatcher) connection(ctx context.Context, address string, action Action) error {
	if err := d.requireTool(); err != nil {
		return err
	}
	dev, ok := d.store.Device(address)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, address)
	}
	return d.setConnection(ctx, dev, action)
}

// setConnection flips the store optimistically and runs the command. On
// success the device list is re-read after the settle delay. On failure the
// previous state is restored at once, then re-read while ctx is still live.
func (d *Dispatcher) setConnection(ctx context.Context, dev device.BluetoothDevice, action Action) error {
	release, err := d.acquire(dev.Address, action)
	if err != nil {
		return err
	}
	defer release()

	d.store.SetConnected(dev.Address, action == ActionConnect)

	if err := d.run(ctx, action, dev.Address); err != nil {
		d.store.RevertConnected(dev.Address, dev.Connected)
		d.revalidate(ctx, action, dev.Address)
		return err
	}

	d.settle(ctx, action, dev.Address)
	return nil
}

// Pair pairs a device found by the last discovery. Devices that are already
// paired are rejected with device.ErrAlreadyPaired.
func (d *Dispatcher) Pair(ctx context.Context, address string) error {
	if err := d.requireTool(); err != nil {
		return err
	}
	if !d.store.IsDiscovered(address) {
		return fmt.Errorf("%w: %s", device.ErrNotDiscovered, address)
	}
	if d.store.IsPaired(address) {
		return fmt.Errorf("%w: %s", device.ErrAlreadyPaired, address)
	}

	release, err := d.acquire(address, ActionPair)
	if err != nil {
		return err
	}
	defer release()

	err = d.run(ctx, ActionPair, address)
	d.revalidate(ctx, ActionPair, address)
	return err
}

// Forget unpairs a device. The caller is responsible for asking the user
// for confirmation first.
func (d *Dispatcher) Forget(ctx context.Context, address string) error {
	if err := d.requireTool(); err != nil {
		return err
	}

	release, err := d.acquire(address, ActionUnpair)
	if err != nil {
		return err
	}
	defer release()

	err = d.run(ctx, ActionUnpair, address)
	d.revalidate(ctx, ActionUnpair, address)
	return err
}

func (d *Dispatcher) requireTool() error {
	if d.toolPath == "" {
		return &device.ToolNotFoundError{Tool: device.ControlToolName}
	}
	return nil
}

// acquire marks address as busy with action. The returned func releases it.
func (d *Dispatcher) acquire(address string, action Action) (func(), error) {
	key := device.NormalizeAddress(address)
	if current, loaded := d.inFlight.GetOrInsert(key, action); loaded {
		return nil, fmt.Errorf("%w: %s is running for %s", device.ErrActionInFlight, current, address)
	}
	return func() { d.inFlight.Del(key) }, nil
}

// run executes `<tool> --<action> <address>`. Stdout is ignored.
func (d *Dispatcher) run(ctx context.Context, action Action, address string) error {
	args := []string{"--" + string(action), address}
	cmdline := runner.CommandLine(d.toolPath, args...)
	logger := d.logger.WithFields(logrus.Fields{
		"action":  action,
		"address": address,
	})
	logger.Debug("Dispatching device action")

	res, err := d.runner.Run(ctx, d.toolPath, args...)
	if err != nil {
		logger.WithError(err).Error("Device action could not run")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &device.ExternalCommandError{Command: cmdline, ExitCode: -1, Err: err}
	}
	if err := res.Err(cmdline); err != nil {
		logger.WithFields(logrus.Fields{
			"exit_code": res.ExitCode,
			"stderr":    res.Diagnostic(),
		}).Error("Device action failed")
		return err
	}

	logger.Info("Device action succeeded")
	return nil
}

// settle waits for the host stack to apply the change, then re-reads the list.
func (d *Dispatcher) settle(ctx context.Context, action Action, address string) {
	if d.settleDelay > 0 {
		timer := time.NewTimer(d.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			d.logger.WithError(ctx.Err()).WithField("address", address).Warn("Skipped refresh after device action")
			return
		case <-timer.C:
		}
	}
	d.revalidate(ctx, action, address)
}

func (d *Dispatcher) revalidate(ctx context.Context, action Action, address string) {
	if ctx.Err() != nil {
		return
	}
	if err := d.store.Revalidate(ctx); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"action":  action,
			"address": address,
		}).Warn("Refresh after device action failed")
	}
}
