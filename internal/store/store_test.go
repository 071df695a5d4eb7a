package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/discovery"
	"github.com/srg/btctl/internal/inventory"
	"github.com/srg/btctl/internal/store"
	"github.com/srg/btctl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// fetchResponse is one scripted inventory answer. A non-nil gate holds the
// fetch until it is closed.
type fetchResponse struct {
	devices []device.BluetoothDevice
	err     error
	gate    chan struct{}
}

type fakeInventory struct {
	mu        sync.Mutex
	responses []fetchResponse
	started   chan struct{}
}

func newFakeInventory(responses ...fetchResponse) *fakeInventory {
	return &fakeInventory{responses: responses, started: make(chan struct{}, 16)}
}

func (f *fakeInventory) Fetch(ctx context.Context) ([]device.BluetoothDevice, error) {
	f.mu.Lock()
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	f.started <- struct{}{}
	if resp.gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-resp.gate:
		}
	}
	return resp.devices, resp.err
}

type fakeDiscoverer struct {
	result *discovery.Result
	err    error
}

func (f *fakeDiscoverer) Run(_ context.Context, progress discovery.ProgressCallback) (*discovery.Result, error) {
	if progress != nil {
		progress(discovery.PhaseScanning)
	}
	return f.result, f.err
}

var (
	keyboard = device.BluetoothDevice{Name: "Keyboard", Address: "AA:01", Connected: true, MinorType: "Keyboard"}
	mouse    = device.BluetoothDevice{Name: "Mouse", Address: "AA:02", Connected: false, MinorType: "Mouse"}
)

type StoreTestSuite struct {
	suite.Suite
}

func (s *StoreTestSuite) newStore(inv store.Inventory, disc store.Discoverer) *store.Store {
	return store.New(inv, disc, testutils.NewSilentLogger())
}

// drain returns the event types currently buffered.
func drain(st *store.Store) []store.EventType {
	var types []store.EventType
	for {
		select {
		case ev := <-st.Events():
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}

func (s *StoreTestSuite) TestRevalidate_Success() {
	// GOAL: Verify a refresh replaces the device list and notifies observers
	//
	// TEST SCENARIO: inventory returns two devices → list updated, no error → loading then devices events

	st := s.newStore(newFakeInventory(fetchResponse{devices: []device.BluetoothDevice{keyboard, mouse}}), nil)

	s.Require().NoError(st.Revalidate(context.Background()))

	s.Assert().Equal([]device.BluetoothDevice{keyboard, mouse}, st.Devices())
	s.Assert().NoError(st.Err())
	s.Assert().Nil(st.Error())
	s.Assert().False(st.IsLoading())
	s.Assert().Equal([]store.EventType{store.EventLoading, store.EventDevices}, drain(st))
}

func (s *StoreTestSuite) TestRevalidate_MalformedOutputClearsList() {
	// GOAL: Verify a parse failure clears the list and records the error
	//
	// TEST SCENARIO: first refresh succeeds, second gets malformed JSON → list empty, ParseError set, descriptor exposed

	const cmd = "/usr/sbin/system_profiler SPBluetoothDataType -json"
	r := testutils.NewScriptedRunner().
		On(cmd, testutils.ScriptedResponse{Stdout: testutils.InventoryReport(`{"device_connected": [{"Mouse": {"device_address": "AA:02"}}]}`)}).
		On(cmd, testutils.ScriptedResponse{Stdout: `{"SPBluetoothDataType": [`})
	st := s.newStore(inventory.NewSource(r, nil, testutils.NewSilentLogger()), nil)

	s.Require().NoError(st.Revalidate(context.Background()))
	s.Require().Len(st.Devices(), 1)

	err := st.Revalidate(context.Background())

	var parseErr *device.ParseError
	s.Require().ErrorAs(err, &parseErr)
	s.Assert().Empty(st.Devices(), "device list MUST be cleared on failure")
	s.Assert().ErrorAs(st.Err(), &parseErr)
	s.Require().NotNil(st.Error())
	s.Assert().Equal("Could not fetch devices", st.Error().Title)
}

func (s *StoreTestSuite) TestRevalidate_SuccessClearsPreviousError() {
	// GOAL: Verify a successful refresh resets the error
	//
	// TEST SCENARIO: refresh fails then succeeds → error cleared

	st := s.newStore(newFakeInventory(
		fetchResponse{err: errors.New("boom")},
		fetchResponse{devices: []device.BluetoothDevice{mouse}},
	), nil)

	s.Require().Error(st.Revalidate(context.Background()))
	s.Require().Error(st.Err())

	s.Require().NoError(st.Revalidate(context.Background()))
	s.Assert().NoError(st.Err())
	s.Assert().Equal([]device.BluetoothDevice{mouse}, st.Devices())
}

func (s *StoreTestSuite) TestRevalidate_LastIssuedWins() {
	// GOAL: Verify an older refresh that completes late does not overwrite a newer one
	//
	// TEST SCENARIO: refresh A blocks, refresh B completes, A completes → list is B's

	gate := make(chan struct{})
	inv := newFakeInventory(
		fetchResponse{devices: []device.BluetoothDevice{keyboard}, gate: gate},
		fetchResponse{devices: []device.BluetoothDevice{mouse}},
	)
	st := s.newStore(inv, nil)

	first := st.RevalidateAsync(context.Background())
	<-inv.started
	s.Assert().True(st.IsLoading())

	s.Require().NoError(st.Revalidate(context.Background()))
	s.Assert().Equal([]device.BluetoothDevice{mouse}, st.Devices())
	s.Assert().True(st.IsLoading(), "older refresh is still in flight")

	close(gate)
	s.Require().NoError(<-first)

	s.Assert().Equal([]device.BluetoothDevice{mouse}, st.Devices(), "stale refresh MUST be discarded")
	s.Assert().False(st.IsLoading())
}

func (s *StoreTestSuite) TestRevalidate_StaleFailureIsDiscarded() {
	// GOAL: Verify a stale failing refresh neither clears the list nor sets the error
	//
	// TEST SCENARIO: refresh A blocks then fails after refresh B succeeded → list kept, no error

	gate := make(chan struct{})
	inv := newFakeInventory(
		fetchResponse{err: errors.New("late failure"), gate: gate},
		fetchResponse{devices: []device.BluetoothDevice{mouse}},
	)
	st := s.newStore(inv, nil)

	first := st.RevalidateAsync(context.Background())
	<-inv.started
	s.Require().NoError(st.Revalidate(context.Background()))

	close(gate)
	s.Assert().EqualError(<-first, "late failure")
	s.Assert().Equal([]device.BluetoothDevice{mouse}, st.Devices())
	s.Assert().NoError(st.Err())
}

func (s *StoreTestSuite) TestSetConnected_Optimistic() {
	// GOAL: Verify optimistic updates flip the flag, are marked optimistic, and win over in-flight refreshes
	//
	// TEST SCENARIO: list loaded → refresh started → SetConnected → refresh completes → optimistic state kept

	gate := make(chan struct{})
	inv := newFakeInventory(
		fetchResponse{devices: []device.BluetoothDevice{keyboard, mouse}},
		fetchResponse{devices: []device.BluetoothDevice{keyboard, mouse}, gate: gate},
		fetchResponse{devices: []device.BluetoothDevice{keyboard, {Name: "Mouse", Address: "AA:02", Connected: true, MinorType: "Mouse"}}},
	)
	st := s.newStore(inv, nil)
	s.Require().NoError(st.Revalidate(context.Background()))
	before := st.Devices()

	inFlight := st.RevalidateAsync(context.Background())
	<-inv.started
	<-inv.started

	s.Require().True(st.SetConnected("aa-02", true))
	dev, ok := st.Device("AA:02")
	s.Require().True(ok)
	s.Assert().True(dev.Connected)
	s.Assert().Equal(store.PhaseOptimistic, st.Phase("AA:02"))
	s.Assert().Equal(store.PhaseConfirmed, st.Phase("AA:01"))
	s.Assert().False(before[1].Connected, "earlier snapshots MUST NOT change")

	close(gate)
	s.Require().NoError(<-inFlight)
	dev, _ = st.Device("AA:02")
	s.Assert().True(dev.Connected, "refresh issued before the optimistic update MUST be discarded")

	s.Require().NoError(st.Revalidate(context.Background()))
	s.Assert().Equal(store.PhaseConfirmed, st.Phase("AA:02"), "a newer refresh MUST confirm the state")
}

func (s *StoreTestSuite) TestSetConnected_UnknownDevice() {
	st := s.newStore(newFakeInventory(fetchResponse{devices: []device.BluetoothDevice{keyboard}}), nil)
	s.Require().NoError(st.Revalidate(context.Background()))

	s.Assert().False(st.SetConnected("FF:FF", true))
	s.Assert().False(st.SetConnected("", true))
	s.Assert().Equal([]device.BluetoothDevice{keyboard}, st.Devices())
}

func (s *StoreTestSuite) TestRevertConnected() {
	// GOAL: Verify a reverted device is confirmed again and older refreshes cannot overwrite it
	//
	// TEST SCENARIO: optimistic disconnect → refresh started → revert → stale refresh completes → reverted state kept

	gate := make(chan struct{})
	inv := newFakeInventory(
		fetchResponse{devices: []device.BluetoothDevice{keyboard}},
		fetchResponse{devices: []device.BluetoothDevice{mouse}, gate: gate},
	)
	st := s.newStore(inv, nil)
	s.Require().NoError(st.Revalidate(context.Background()))
	<-inv.started

	s.Require().True(st.SetConnected("AA:01", false))
	errCh := st.RevalidateAsync(context.Background())
	<-inv.started

	s.Require().True(st.RevertConnected("aa:01", true))
	s.Assert().Equal(store.PhaseConfirmed, st.Phase("AA:01"))

	close(gate)
	s.Require().NoError(<-errCh)
	s.Assert().Equal([]device.BluetoothDevice{keyboard}, st.Devices())
	s.Assert().False(st.RevertConnected("FF:FF", true))
}

func (s *StoreTestSuite) TestDiscover() {
	// GOAL: Verify discovery results and the paired set are exposed
	//
	// TEST SCENARIO: scan finds two devices, one paired → discovered list set, IsPaired/IsDiscovered answer correctly

	found := []device.DiscoveredBluetoothDevice{
		{Name: "Speaker", Address: "bb-01"},
		{Name: "Keyboard", Address: "aa-01"},
	}
	disc := &fakeDiscoverer{result: discovery.NewResult(found, []device.BluetoothDevice{keyboard})}
	st := s.newStore(newFakeInventory(fetchResponse{}), disc)

	var phases []string
	s.Require().NoError(st.Discover(context.Background(), func(p string) { phases = append(phases, p) }))

	s.Assert().Equal(found, st.Discovered())
	s.Assert().True(st.IsDiscovered("BB:01"))
	s.Assert().False(st.IsDiscovered("CC:01"))
	s.Assert().True(st.IsPaired("AA:01"), "paired set from the scan MUST be consulted")
	s.Assert().False(st.IsPaired("BB:01"))
	s.Assert().Equal([]string{discovery.PhaseScanning}, phases)
	s.Assert().Contains(drain(st), store.EventDiscovered)
}

func (s *StoreTestSuite) TestDiscover_FailureClearsDiscovered() {
	// GOAL: Verify a failed scan clears the previous results and records the error
	//
	// TEST SCENARIO: scan succeeds, then fails → discovered empty, DiscoveryError set

	disc := &fakeDiscoverer{result: discovery.NewResult([]device.DiscoveredBluetoothDevice{{Name: "Speaker", Address: "bb-01"}}, nil)}
	st := s.newStore(newFakeInventory(fetchResponse{}), disc)
	s.Require().NoError(st.Discover(context.Background(), nil))
	s.Require().Len(st.Discovered(), 1)

	disc.result, disc.err = nil, &device.DiscoveryError{Stderr: "Bluetooth is off", ExitCode: 1}
	err := st.Discover(context.Background(), nil)

	var discErr *device.DiscoveryError
	s.Require().ErrorAs(err, &discErr)
	s.Assert().Empty(st.Discovered())
	s.Assert().False(st.IsDiscovered("bb-01"))
	s.Assert().Equal(&device.ErrorDescriptor{Title: "Could not discover devices", Message: "Bluetooth is off"}, st.Error())
}

func (s *StoreTestSuite) TestDiscover_ErrorSurvivesRefresh() {
	// GOAL: Verify a device refresh does not erase the error of a failed scan
	//
	// TEST SCENARIO: scan fails → refresh succeeds → DiscoveryErr kept, FetchErr nil → Error describes the scan failure

	disc := &fakeDiscoverer{err: &device.DiscoveryError{Stderr: "Bluetooth is off", ExitCode: 1}}
	st := s.newStore(newFakeInventory(fetchResponse{devices: []device.BluetoothDevice{keyboard}}), disc)

	s.Require().Error(st.Discover(context.Background(), nil))
	s.Require().NoError(st.Revalidate(context.Background()))

	var discErr *device.DiscoveryError
	s.Assert().NoError(st.FetchErr())
	s.Assert().ErrorAs(st.DiscoveryErr(), &discErr)
	s.Assert().ErrorAs(st.Err(), &discErr)
	s.Require().NotNil(st.Error())
	s.Assert().Equal("Could not discover devices", st.Error().Title)
}

func (s *StoreTestSuite) TestDiscover_NoDiscoverer() {
	st := s.newStore(newFakeInventory(fetchResponse{}), nil)

	var toolErr *device.ToolNotFoundError
	s.Assert().ErrorAs(st.Discover(context.Background(), nil), &toolErr)
}

func (s *StoreTestSuite) TestEvents_NeverBlock() {
	// GOAL: Verify a store without an event consumer keeps working
	//
	// TEST SCENARIO: many updates without reading events → all calls return promptly

	st := s.newStore(newFakeInventory(fetchResponse{devices: []device.BluetoothDevice{keyboard}}), nil)
	s.Require().NoError(st.Revalidate(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			st.SetConnected("AA:01", i%2 == 0)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("SetConnected MUST NOT block on a full event buffer")
	}
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
