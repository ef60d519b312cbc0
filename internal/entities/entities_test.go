package entities

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/halcyon-home/netatmo-energy/internal/modes"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
	"github.com/halcyon-home/netatmo-energy/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoordinator struct {
	lock     sync.Mutex
	snapshot snapshot.Snapshot
	ch       chan snapshot.Snapshot

	roomCalls   []roomCall
	moduleCalls []moduleCall
}

type roomCall struct {
	roomID      string
	hvac        modes.HvacMode
	preset      modes.Preset
	temperature *float64
}

type moduleCall struct {
	moduleID   string
	on         *bool
	brightness *int
}

func newFakeCoordinator(s snapshot.Snapshot) *fakeCoordinator {
	return &fakeCoordinator{snapshot: s, ch: make(chan snapshot.Snapshot, 1)}
}

func (f *fakeCoordinator) Subscribe() chan snapshot.Snapshot    { return f.ch }
func (f *fakeCoordinator) Unsubscribe(_ chan snapshot.Snapshot) {}

func (f *fakeCoordinator) GetHome(id string) (snapshot.Home, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.snapshot.GetHome(id)
}
func (f *fakeCoordinator) GetRoom(id string) (snapshot.Room, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.snapshot.GetRoom(id)
}
func (f *fakeCoordinator) GetModule(id string) (snapshot.Module, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.snapshot.GetModule(id)
}

func (f *fakeCoordinator) SetRoomMode(_ context.Context, roomID string, hvac modes.HvacMode, preset modes.Preset, temperature *float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.roomCalls = append(f.roomCalls, roomCall{roomID, hvac, preset, temperature})
	return nil
}

func (f *fakeCoordinator) SetModuleState(_ context.Context, moduleID string, on *bool, brightness *int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.moduleCalls = append(f.moduleCalls, moduleCall{moduleID, on, brightness})
	return nil
}

func testSnapshot(t *testing.T) snapshot.Snapshot {
	t.Helper()
	return snapshot.Build(testutils.Topology(
		testutils.WithHome("home-1", "Main",
			testutils.WithThermMode("schedule"),
			testutils.WithRoom("room-1", "Living room",
				testutils.RoomWithSetpoint("manual", "comfort"),
				testutils.RoomWithTemperatures(20.5, 21.0),
				testutils.RoomWithHeatingPower(42),
				testutils.RoomWithModules("valve-1"),
			),
			testutils.WithModule("valve-1", "Valve", "NRV",
				testutils.ModuleInRoom("room-1"),
				testutils.ModuleWithBridge("relay-1"),
				testutils.ModuleWithBattery(80),
				testutils.ModuleWithBatteryState("high"),
				testutils.ModuleWithSignal(60, 0),
			),
			testutils.WithModule("relay-1", "Relay", "NAPlug",
				testutils.ModuleWithBoiler(true),
			),
			testutils.WithModule("dimmer-1", "Spots", "NLF",
				testutils.ModuleOn(true),
				testutils.ModuleWithBrightness(70),
			),
			testutils.WithModule("plug-1", "Outlet", "NLP",
				testutils.ModuleOn(false),
			),
		),
	), slog.Default())
}

func TestClimate_State(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	c := &Climate{coordinator: f, roomID: "room-1", name: "Living room"}

	state, ok := c.State()
	require.True(t, ok)
	assert.Equal(t, modes.HvacHeat, state.HvacMode)
	assert.Equal(t, modes.PresetComfort, state.Preset)
	assert.Equal(t, modes.ActionHeating, state.Action)
	require.NotNil(t, state.CurrentTemperature)
	assert.Equal(t, 20.5, *state.CurrentTemperature)
	require.NotNil(t, state.TargetTemperature)
	assert.Equal(t, 21.0, *state.TargetTemperature)
}

func TestClimate_HomeModeOverridesSchedule(t *testing.T) {
	s := snapshot.Build(testutils.Topology(
		testutils.WithHome("home-1", "Main",
			testutils.WithThermMode("away"),
			testutils.WithRoom("room-1", "Living room", testutils.RoomWithSetpoint("schedule", "")),
		),
	), slog.Default())
	f := newFakeCoordinator(s)
	c := &Climate{coordinator: f, roomID: "room-1"}

	state, ok := c.State()
	require.True(t, ok)
	assert.Equal(t, modes.HvacOff, state.HvacMode)
	assert.Equal(t, modes.PresetEco, state.Preset)
}

func TestClimate_RoomOverrideBeatsHomeMode(t *testing.T) {
	s := snapshot.Build(testutils.Topology(
		testutils.WithHome("home-1", "Main",
			testutils.WithThermMode("away"),
			testutils.WithRoom("room-1", "Living room", testutils.RoomWithSetpoint("manual", "comfort")),
		),
	), slog.Default())
	f := newFakeCoordinator(s)
	c := &Climate{coordinator: f, roomID: "room-1"}

	state, ok := c.State()
	require.True(t, ok)
	assert.Equal(t, modes.HvacHeat, state.HvacMode)
	assert.Equal(t, modes.PresetComfort, state.Preset)
}

func TestClimate_Unavailable(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	c := &Climate{coordinator: f, roomID: "gone"}

	_, ok := c.State()
	assert.False(t, ok)
}

func TestClimate_Commands(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	c := &Climate{coordinator: f, roomID: "room-1"}
	ctx := context.Background()

	require.NoError(t, c.SetHvacMode(ctx, modes.HvacAuto))
	require.NoError(t, c.SetPreset(ctx, modes.PresetEco))
	require.NoError(t, c.SetPreset(ctx, modes.PresetAway))
	require.NoError(t, c.SetTemperature(ctx, 19.5))
	require.NoError(t, c.TurnOff(ctx))

	require.Len(t, f.roomCalls, 5)
	assert.Equal(t, roomCall{roomID: "room-1", hvac: modes.HvacAuto, preset: modes.PresetNone}, f.roomCalls[0])
	assert.Equal(t, roomCall{roomID: "room-1", hvac: modes.HvacHeat, preset: modes.PresetEco}, f.roomCalls[1])
	assert.Equal(t, roomCall{roomID: "room-1", hvac: modes.HvacOff, preset: modes.PresetAway}, f.roomCalls[2])
	require.NotNil(t, f.roomCalls[3].temperature)
	assert.Equal(t, 19.5, *f.roomCalls[3].temperature)
	assert.Equal(t, modes.HvacOff, f.roomCalls[4].hvac)
}

func TestLight(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	l := &Light{coordinator: f, moduleID: "dimmer-1", name: "Spots"}

	state, ok := l.State()
	require.True(t, ok)
	assert.True(t, state.On)
	assert.True(t, state.Dimmable)
	require.NotNil(t, state.Brightness)
	assert.Equal(t, 70, *state.Brightness)

	ctx := context.Background()
	brightness := 30
	require.NoError(t, l.TurnOn(ctx, &brightness))
	require.NoError(t, l.TurnOff(ctx))

	require.Len(t, f.moduleCalls, 2)
	assert.True(t, *f.moduleCalls[0].on)
	assert.Equal(t, 30, *f.moduleCalls[0].brightness)
	assert.False(t, *f.moduleCalls[1].on)
	assert.Nil(t, f.moduleCalls[1].brightness)
}

func TestSwitch(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	s := &Switch{coordinator: f, moduleID: "plug-1", name: "Outlet"}

	on, ok := s.State()
	require.True(t, ok)
	assert.False(t, on)

	ctx := context.Background()
	require.NoError(t, s.TurnOn(ctx))
	require.Len(t, f.moduleCalls, 1)
	assert.True(t, *f.moduleCalls[0].on)
}

func TestRegistry_Discover(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	r := NewRegistry(f, nil, slog.Default())

	ids := make(map[string]bool)
	for _, e := range r.Discover(f.snapshot) {
		ids[e.UniqueID()] = true
	}

	assert.True(t, ids["climate_room-1"])
	assert.True(t, ids["light_dimmer-1"])
	assert.True(t, ids["switch_plug-1"])
	assert.True(t, ids["sensor_room-1_temperature"])
	assert.True(t, ids["sensor_valve-1_battery"])
	assert.True(t, ids["sensor_valve-1_rf"])
	assert.True(t, ids["sensor_relay-1_boiler"])
	// the relay is a bridge: sensors only, nothing controllable
	assert.False(t, ids["switch_relay-1"])
}

func TestRegistry_Overrides(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	overrides := Overrides{
		"climate_room-1": {ID: "climate_room-1", Name: "Salon"},
		"switch_plug-1":  {ID: "switch_plug-1", Disabled: true},
	}
	r := NewRegistry(f, overrides, slog.Default())

	byID := make(map[string]Entity)
	for _, e := range r.Discover(f.snapshot) {
		byID[e.UniqueID()] = e
	}

	require.Contains(t, byID, "climate_room-1")
	assert.Equal(t, "Salon", byID["climate_room-1"].Name())
	assert.NotContains(t, byID, "switch_plug-1")
}

func TestRegistry_Run(t *testing.T) {
	f := newFakeCoordinator(testSnapshot(t))
	r := NewRegistry(f, nil, slog.Default())

	var lock sync.Mutex
	discovered := make(map[string]bool)
	removed := make(map[string]bool)
	updates := make(chan struct{}, 10)
	r.OnDiscover = func(e Entity) {
		lock.Lock()
		defer lock.Unlock()
		discovered[e.UniqueID()] = true
	}
	r.OnRemove = func(id string) {
		lock.Lock()
		defer lock.Unlock()
		removed[id] = true
	}
	r.OnUpdate = func() { updates <- struct{}{} }

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- r.Run(ctx) }()

	f.ch <- f.snapshot
	<-updates
	lock.Lock()
	assert.True(t, discovered["light_dimmer-1"])
	lock.Unlock()

	// the dimmer drops out of the topology
	smaller := snapshot.Build(testutils.Topology(
		testutils.WithHome("home-1", "Main",
			testutils.WithRoom("room-1", "Living room", testutils.RoomWithModules("valve-1")),
			testutils.WithModule("valve-1", "Valve", "NRV", testutils.ModuleInRoom("room-1")),
		),
	), slog.Default())
	f.ch <- smaller
	<-updates
	lock.Lock()
	assert.True(t, removed["light_dimmer-1"])
	lock.Unlock()

	cancel()
	assert.NoError(t, <-errCh)
}

func TestLoadOverrides(t *testing.T) {
	overrides, err := LoadOverrides(strings.NewReader(`
entities:
  - id: climate_room-1
    name: Salon
  - id: light_dimmer-1
    disabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "Salon", overrides.name("climate_room-1", "Living room"))
	assert.True(t, overrides.disabled("light_dimmer-1"))
	assert.False(t, overrides.disabled("climate_room-1"))
	assert.Equal(t, "fallback", overrides.name("unknown", "fallback"))

	_, err = LoadOverrides(strings.NewReader("entities:\n  - name: no id\n"))
	assert.Error(t, err)
}
