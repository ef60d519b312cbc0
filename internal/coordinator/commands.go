package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halcyon-home/netatmo-energy/internal/modes"
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
)

// Home thermostat modes accepted by SetHomeMode.
const (
	HomeModeSchedule   = modes.ModeSchedule
	HomeModeAway       = modes.ModeAway
	HomeModeFrostGuard = modes.ModeFrostGuard
)

// SetRoomMode sets a room's thermostat state. The hvac mode and preset are
// platform vocabulary; translation to the vendor's command vocabulary happens
// here. A non-nil temperature sets a manual setpoint temperature, bounded in
// time by the home's default setpoint duration when the home reports one.
//
// On success the room is patched optimistically and adapters are notified
// before the reconciling refresh completes. On failure nothing is patched.
func (c *Coordinator) SetRoomMode(ctx context.Context, roomID string, hvac modes.HvacMode, preset modes.Preset, temperature *float64) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	room, ok := c.GetRoom(roomID)
	if !ok {
		return &NotFoundError{Kind: "room", ID: roomID}
	}
	home, ok := c.GetHome(room.HomeID)
	if !ok {
		return &NotFoundError{Kind: "home", ID: room.HomeID}
	}

	mode, fpMode := modes.LocalToRemote(hvac, preset)
	cmd := netatmo.RoomCommand{Mode: mode, FPMode: fpMode}
	if temperature != nil && mode == modes.ModeManual {
		cmd.Temperature = temperature
		if home.SetpointDefaultDuration != nil {
			end := time.Now().Add(time.Duration(*home.SetpointDefaultDuration) * time.Minute).Unix()
			cmd.EndTime = &end
		}
	}

	lock := c.serialize(roomID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.client.SetRoomState(ctx, home.ID, roomID, cmd); err != nil {
		c.reportError(err)
		return fmt.Errorf("set room mode: %w", err)
	}

	c.logger.Debug("room command accepted",
		slog.String("room", roomID), slog.String("mode", mode), slog.String("fp", fpMode))
	c.applyPatch(patchRecord{
		roomID: roomID,
		room:   snapshot.RoomPatch{SetpointMode: &mode, SetpointFP: &fpMode, Temperature: cmd.Temperature},
	})
	return nil
}

// SetModuleState turns a module on or off and optionally sets its
// brightness. Commands for bridged device types must be routed through the
// module's gateway; if the snapshot holds no bridge id for such a module the
// command is rejected before any network call.
func (c *Coordinator) SetModuleState(ctx context.Context, moduleID string, on *bool, brightness *int) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	module, ok := c.GetModule(moduleID)
	if !ok {
		return &NotFoundError{Kind: "module", ID: moduleID}
	}
	if brightness != nil && !netatmo.IsDimmer(module.Type) {
		return fmt.Errorf("module %q (%s): %w", moduleID, module.Type, ErrBrightnessNotSupported)
	}

	cmd := netatmo.ModuleCommand{On: on, Brightness: brightness}
	if module.Bridge != nil {
		cmd.Bridge = *module.Bridge
	} else if netatmo.RequiresBridge(module.Type) {
		return fmt.Errorf("module %q (%s): %w", moduleID, module.Type, ErrBridgeRequired)
	}

	lock := c.serialize(moduleID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.client.SetModuleState(ctx, module.HomeID, moduleID, cmd); err != nil {
		c.reportError(err)
		return fmt.Errorf("set module state: %w", err)
	}

	c.logger.Debug("module command accepted", slog.String("module", moduleID))
	c.applyPatch(patchRecord{
		moduleID: moduleID,
		module:   snapshot.ModulePatch{On: on, Brightness: brightness},
	})
	return nil
}

// SetHomeMode sets the whole-home thermostat mode: schedule, away or
// frost_guard.
func (c *Coordinator) SetHomeMode(ctx context.Context, homeID, mode string) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	if mode == modes.ModeHG {
		mode = modes.ModeFrostGuard
	}
	switch mode {
	case HomeModeSchedule, HomeModeAway, HomeModeFrostGuard:
	default:
		return fmt.Errorf("invalid home mode %q", mode)
	}
	if _, ok := c.GetHome(homeID); !ok {
		return &NotFoundError{Kind: "home", ID: homeID}
	}

	lock := c.serialize(homeID)
	lock.Lock()
	defer lock.Unlock()

	if err := c.client.SetThermMode(ctx, homeID, mode); err != nil {
		c.reportError(err)
		return fmt.Errorf("set home mode: %w", err)
	}

	c.logger.Debug("home command accepted", slog.String("home", homeID), slog.String("mode", mode))
	c.applyPatch(patchRecord{
		homeID: homeID,
		home:   snapshot.HomePatch{ThermMode: &mode},
	})
	return nil
}
