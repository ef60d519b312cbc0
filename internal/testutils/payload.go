// Package testutils builds Netatmo API payloads for tests.
package testutils

import (
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
)

func Topology(options ...TopologyOption) netatmo.Topology {
	var t netatmo.Topology
	for _, option := range options {
		option(&t)
	}
	return t
}

type TopologyOption func(*netatmo.Topology)

func WithHome(id, name string, options ...HomeOption) TopologyOption {
	return func(t *netatmo.Topology) {
		home := netatmo.Home{
			HomeData: netatmo.HomeData{ID: id, Name: name},
			Status:   &netatmo.HomeStatus{ID: id, ThermMode: "schedule"},
		}
		for _, option := range options {
			option(&home)
		}
		t.Homes = append(t.Homes, home)
	}
}

type HomeOption func(*netatmo.Home)

// WithoutStatus simulates a failed /homestatus call for the home.
func WithoutStatus() HomeOption {
	return func(h *netatmo.Home) {
		h.Status = nil
	}
}

func WithThermMode(mode string) HomeOption {
	return func(h *netatmo.Home) {
		h.Status.ThermMode = mode
	}
}

func WithRoom(id, name string, options ...RoomOption) HomeOption {
	return func(h *netatmo.Home) {
		h.Rooms = append(h.Rooms, netatmo.RoomData{ID: id, Name: name, Type: "livingroom"})
		var status netatmo.RoomStatus
		if h.Status == nil {
			status = netatmo.RoomStatus{ID: id}
			for _, option := range options {
				option(&h.Rooms[len(h.Rooms)-1], &status)
			}
			return
		}
		h.Status.Rooms = append(h.Status.Rooms, netatmo.RoomStatus{ID: id, ThermSetpointMode: "schedule"})
		for _, option := range options {
			option(&h.Rooms[len(h.Rooms)-1], &h.Status.Rooms[len(h.Status.Rooms)-1])
		}
	}
}

type RoomOption func(*netatmo.RoomData, *netatmo.RoomStatus)

func RoomWithSetpoint(mode, fp string) RoomOption {
	return func(_ *netatmo.RoomData, rs *netatmo.RoomStatus) {
		rs.ThermSetpointMode = mode
		rs.ThermSetpointFP = fp
	}
}

func RoomWithTemperatures(measured, setpoint float64) RoomOption {
	return func(_ *netatmo.RoomData, rs *netatmo.RoomStatus) {
		rs.ThermMeasuredTemperature = &measured
		rs.ThermSetpointTemperature = &setpoint
	}
}

func RoomWithHeatingPower(power int) RoomOption {
	return func(_ *netatmo.RoomData, rs *netatmo.RoomStatus) {
		rs.HeatingPowerRequest = &power
	}
}

func RoomWithModules(moduleIDs ...string) RoomOption {
	return func(rd *netatmo.RoomData, _ *netatmo.RoomStatus) {
		rd.ModuleIDs = append(rd.ModuleIDs, moduleIDs...)
	}
}

func RoomWithoutSetpointMode() RoomOption {
	return func(_ *netatmo.RoomData, rs *netatmo.RoomStatus) {
		rs.ThermSetpointMode = ""
	}
}

func WithModule(id, name, deviceType string, options ...ModuleOption) HomeOption {
	return func(h *netatmo.Home) {
		h.Modules = append(h.Modules, netatmo.ModuleData{ID: id, Name: name, Type: deviceType})
		var status netatmo.ModuleStatus
		if h.Status == nil {
			status = netatmo.ModuleStatus{ID: id}
			for _, option := range options {
				option(&h.Modules[len(h.Modules)-1], &status)
			}
			return
		}
		h.Status.Modules = append(h.Status.Modules, netatmo.ModuleStatus{ID: id})
		for _, option := range options {
			option(&h.Modules[len(h.Modules)-1], &h.Status.Modules[len(h.Status.Modules)-1])
		}
	}
}

type ModuleOption func(*netatmo.ModuleData, *netatmo.ModuleStatus)

func ModuleInRoom(roomID string) ModuleOption {
	return func(md *netatmo.ModuleData, _ *netatmo.ModuleStatus) {
		md.RoomID = &roomID
	}
}

func ModuleWithBridge(bridgeID string) ModuleOption {
	return func(md *netatmo.ModuleData, _ *netatmo.ModuleStatus) {
		md.Bridge = &bridgeID
	}
}

func ModuleOn(on bool) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.On = &on
	}
}

func ModuleWithBrightness(brightness int) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.Brightness = &brightness
	}
}

func ModuleWithBattery(level int) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.BatteryLevel = &level
	}
}

func ModuleWithBatteryState(state string) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.BatteryState = &state
	}
}

func ModuleWithSignal(rf, wifi int) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.RFStrength = &rf
		ms.WifiStrength = &wifi
	}
}

func ModuleUnreachable() ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		reachable := false
		ms.Reachable = &reachable
	}
}

func ModuleWithBoiler(on bool) ModuleOption {
	return func(_ *netatmo.ModuleData, ms *netatmo.ModuleStatus) {
		ms.BoilerStatus = &on
	}
}
