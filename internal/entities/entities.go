// Package entities translates the snapshot into platform-visible entity
// state and forwards user commands to the coordinator.
//
// All mode translation goes through the modes package; no adapter carries its
// own mapping table.
package entities

import (
	"context"

	"github.com/halcyon-home/netatmo-energy/internal/modes"
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
)

// Coordinator is what adapters need from the reconciliation coordinator.
type Coordinator interface {
	Subscribe() chan snapshot.Snapshot
	Unsubscribe(chan snapshot.Snapshot)
	GetHome(id string) (snapshot.Home, bool)
	GetRoom(id string) (snapshot.Room, bool)
	GetModule(id string) (snapshot.Module, bool)
	SetRoomMode(ctx context.Context, roomID string, hvac modes.HvacMode, preset modes.Preset, temperature *float64) error
	SetModuleState(ctx context.Context, moduleID string, on *bool, brightness *int) error
}

// Entity is anything the host platform can register.
type Entity interface {
	UniqueID() string
	Name() string
}

// Climate is the thermostat adapter for one room.
type Climate struct {
	coordinator Coordinator
	roomID      string
	name        string
}

// ClimateState is the platform-facing rendering of a room.
type ClimateState struct {
	HvacMode            modes.HvacMode
	Preset              modes.Preset
	Action              modes.HvacAction
	CurrentTemperature  *float64
	TargetTemperature   *float64
	HeatingPowerRequest *int
	Anticipating        bool
	OpenWindow          bool
}

func (c *Climate) UniqueID() string { return "climate_" + c.roomID }
func (c *Climate) Name() string     { return c.name }

// State renders the room. ok is false when the room has dropped out of the
// snapshot, which the platform shows as unavailable.
func (c *Climate) State() (ClimateState, bool) {
	room, ok := c.coordinator.GetRoom(c.roomID)
	if !ok {
		return ClimateState{}, false
	}
	setpointMode := room.SetpointMode
	if home, found := c.coordinator.GetHome(room.HomeID); found && setpointMode == modes.ModeSchedule {
		// a whole-home away/frost-guard overrides a room on schedule
		if home.ThermMode != modes.ModeSchedule && home.ThermMode != "" {
			setpointMode = home.ThermMode
		}
	}
	hvac, preset := modes.RemoteToLocal(setpointMode, room.SetpointFP)
	return ClimateState{
		HvacMode:            hvac,
		Preset:              preset,
		Action:              modes.Action(hvac, room.HeatingPowerRequest),
		CurrentTemperature:  room.MeasuredTemperature,
		TargetTemperature:   room.SetpointTemperature,
		HeatingPowerRequest: room.HeatingPowerRequest,
		Anticipating:        room.Anticipating,
		OpenWindow:          room.OpenWindow,
	}, true
}

// SetHvacMode sets the room's hvac mode.
func (c *Climate) SetHvacMode(ctx context.Context, hvac modes.HvacMode) error {
	return c.coordinator.SetRoomMode(ctx, c.roomID, hvac, modes.PresetNone, nil)
}

// SetPreset sets the room's preset.
func (c *Climate) SetPreset(ctx context.Context, preset modes.Preset) error {
	hvac := modes.HvacAuto
	switch preset {
	case modes.PresetComfort, modes.PresetEco:
		hvac = modes.HvacHeat
	case modes.PresetAway:
		hvac = modes.HvacOff
	}
	return c.coordinator.SetRoomMode(ctx, c.roomID, hvac, preset, nil)
}

// SetTemperature sets a manual setpoint temperature.
func (c *Climate) SetTemperature(ctx context.Context, temperature float64) error {
	return c.coordinator.SetRoomMode(ctx, c.roomID, modes.HvacHeat, modes.PresetComfort, &temperature)
}

// TurnOn puts the room back on its schedule.
func (c *Climate) TurnOn(ctx context.Context) error {
	return c.SetHvacMode(ctx, modes.HvacAuto)
}

// TurnOff switches the room off.
func (c *Climate) TurnOff(ctx context.Context) error {
	return c.SetHvacMode(ctx, modes.HvacOff)
}

// Light is the adapter for a light or dimmer module.
type Light struct {
	coordinator Coordinator
	moduleID    string
	name        string
}

// LightState is the platform-facing rendering of a light module.
type LightState struct {
	On         bool
	Brightness *int // vendor scale, 0-100; nil when not dimmer-capable
	Dimmable   bool
	Reachable  bool
}

func (l *Light) UniqueID() string { return "light_" + l.moduleID }
func (l *Light) Name() string     { return l.name }

func (l *Light) State() (LightState, bool) {
	module, ok := l.coordinator.GetModule(l.moduleID)
	if !ok {
		return LightState{}, false
	}
	state := LightState{
		On:        module.On != nil && *module.On,
		Dimmable:  netatmo.IsDimmer(module.Type),
		Reachable: module.Reachable,
	}
	if state.Dimmable {
		state.Brightness = module.Brightness
	}
	return state, true
}

// TurnOn switches the light on, optionally at the given brightness (0-100).
func (l *Light) TurnOn(ctx context.Context, brightness *int) error {
	on := true
	return l.coordinator.SetModuleState(ctx, l.moduleID, &on, brightness)
}

func (l *Light) TurnOff(ctx context.Context) error {
	on := false
	return l.coordinator.SetModuleState(ctx, l.moduleID, &on, nil)
}

// Switch is the adapter for a plug/relay module.
type Switch struct {
	coordinator Coordinator
	moduleID    string
	name        string
}

func (s *Switch) UniqueID() string { return "switch_" + s.moduleID }
func (s *Switch) Name() string     { return s.name }

func (s *Switch) State() (on, ok bool) {
	module, found := s.coordinator.GetModule(s.moduleID)
	if !found {
		return false, false
	}
	return module.On != nil && *module.On, true
}

func (s *Switch) TurnOn(ctx context.Context) error {
	on := true
	return s.coordinator.SetModuleState(ctx, s.moduleID, &on, nil)
}

func (s *Switch) TurnOff(ctx context.Context) error {
	on := false
	return s.coordinator.SetModuleState(ctx, s.moduleID, &on, nil)
}
