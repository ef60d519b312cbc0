// Package snapshot holds the in-memory representation of the Netatmo
// topology: homes, rooms and modules, addressed by id.
//
// A Snapshot is rebuilt wholesale from each poll (Build); incremental
// patching of polled data is deliberately avoided so stale fields can't
// accumulate. The only mutations are the optimistic patches the coordinator
// applies after a successful command, and those are overwritten by the next
// merge.
package snapshot

import (
	"log/slog"

	"github.com/halcyon-home/netatmo-energy/internal/modes"
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
)

// Home is a vendor account's top-level site.
type Home struct {
	ID                      string
	Name                    string
	ThermMode               string
	Altitude                *int
	Coordinates             []float64
	Country                 *string
	Timezone                *string
	SetpointDefaultDuration *int
	RoomIDs                 []string
	ModuleIDs               []string
}

// Room is a heating zone inside a Home.
type Room struct {
	ID                  string
	HomeID              string
	HomeName            string
	Name                string
	Type                string
	ModuleIDs           []string
	MeasuredTemperature *float64
	SetpointTemperature *float64
	SetpointMode        string // never empty after a merge
	SetpointFP          string
	SetpointEndTime     *int64
	HeatingPowerRequest *int
	Anticipating        bool
	OpenWindow          bool
}

// Module is a physical device, optionally linked to a Room.
type Module struct {
	ID           string
	HomeID       string
	RoomID       *string
	Name         string
	Type         string
	Bridge       *string
	On           *bool
	Brightness   *int
	BatteryLevel *int
	BatteryState *string
	RFStrength   *int
	WifiStrength *int
	Reachable    bool
	BoilerStatus *bool
	Firmware     *int
}

// Snapshot is the aggregate of all homes, rooms and modules from one merge.
// All lookups are O(1); accessors return copies, so readers can't alias the
// store's state.
type Snapshot struct {
	Homes   map[string]Home
	Rooms   map[string]Room
	Modules map[string]Module
}

// Build constructs a Snapshot from a topology+status fetch. Homes without an
// id are dropped, as are status entries that reference rooms or modules
// absent from the home's definition: nothing in a Snapshot dangles.
//
// A home whose status is missing still gets its rooms and modules, with every
// room on the schedule default; one broken home never blocks the others.
func Build(topology netatmo.Topology, logger *slog.Logger) Snapshot {
	s := Snapshot{
		Homes:   make(map[string]Home),
		Rooms:   make(map[string]Room),
		Modules: make(map[string]Module),
	}
	for _, home := range topology.Homes {
		if home.ID == "" {
			logger.Warn("dropping home without id", "name", home.Name)
			continue
		}
		s.mergeHome(home, logger)
	}
	return s
}

func (s *Snapshot) mergeHome(home netatmo.Home, logger *slog.Logger) {
	h := Home{
		ID:                      home.ID,
		Name:                    home.Name,
		ThermMode:               modes.ModeSchedule,
		Altitude:                home.Altitude,
		Coordinates:             home.Coordinates,
		Country:                 home.Country,
		Timezone:                home.Timezone,
		SetpointDefaultDuration: home.ThermSetpointDefaultDuration,
	}

	roomStatus := make(map[string]netatmo.RoomStatus)
	moduleStatus := make(map[string]netatmo.ModuleStatus)
	if home.Status != nil {
		if home.Status.ThermMode != "" {
			h.ThermMode = home.Status.ThermMode
		}
		for _, rs := range home.Status.Rooms {
			if _, known := findRoom(home.Rooms, rs.ID); !known {
				logger.Warn("dropping status for unknown room", "home", home.ID, "room", rs.ID)
				continue
			}
			roomStatus[rs.ID] = rs
		}
		for _, ms := range home.Status.Modules {
			if _, known := findModule(home.Modules, ms.ID); !known {
				logger.Warn("dropping status for unknown module", "home", home.ID, "module", ms.ID)
				continue
			}
			moduleStatus[ms.ID] = ms
		}
	} else {
		logger.Warn("no status for home, using topology only", "home", home.ID)
	}

	for _, rd := range home.Rooms {
		if rd.ID == "" {
			continue
		}
		room := Room{
			ID:           rd.ID,
			HomeID:       home.ID,
			HomeName:     home.Name,
			Name:         rd.Name,
			Type:         rd.Type,
			ModuleIDs:    rd.ModuleIDs,
			SetpointMode: modes.ModeSchedule,
		}
		if rs, ok := roomStatus[rd.ID]; ok {
			room.MeasuredTemperature = rs.ThermMeasuredTemperature
			room.SetpointTemperature = rs.ThermSetpointTemperature
			if rs.ThermSetpointMode != "" {
				room.SetpointMode = rs.ThermSetpointMode
			}
			room.SetpointFP = rs.ThermSetpointFP
			room.SetpointEndTime = rs.ThermSetpointEndTime
			room.HeatingPowerRequest = rs.HeatingPowerRequest
			room.Anticipating = rs.Anticipating != nil && *rs.Anticipating
			room.OpenWindow = rs.OpenWindow != nil && *rs.OpenWindow
		}
		s.Rooms[rd.ID] = room
		h.RoomIDs = append(h.RoomIDs, rd.ID)
	}

	for _, md := range home.Modules {
		if md.ID == "" {
			continue
		}
		module := Module{
			ID:     md.ID,
			HomeID: home.ID,
			RoomID: md.RoomID,
			Name:   md.Name,
			Type:   md.Type,
			Bridge: md.Bridge,
		}
		if ms, ok := moduleStatus[md.ID]; ok {
			module.On = ms.On
			module.Brightness = ms.Brightness
			module.BatteryLevel = ms.BatteryLevel
			module.BatteryState = ms.BatteryState
			module.RFStrength = ms.RFStrength
			module.WifiStrength = ms.WifiStrength
			module.Reachable = ms.Reachable == nil || *ms.Reachable
			module.BoilerStatus = ms.BoilerStatus
			module.Firmware = ms.Firmware
		}
		s.Modules[md.ID] = module
		h.ModuleIDs = append(h.ModuleIDs, md.ID)
	}

	s.Homes[home.ID] = h
}

func findRoom(rooms []netatmo.RoomData, id string) (netatmo.RoomData, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return netatmo.RoomData{}, false
}

func findModule(mods []netatmo.ModuleData, id string) (netatmo.ModuleData, bool) {
	for _, m := range mods {
		if m.ID == id {
			return m, true
		}
	}
	return netatmo.ModuleData{}, false
}

// Clone returns a copy of the Snapshot whose maps are independent of the
// original: patches applied to one are not visible through the other.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Homes:   make(map[string]Home, len(s.Homes)),
		Rooms:   make(map[string]Room, len(s.Rooms)),
		Modules: make(map[string]Module, len(s.Modules)),
	}
	for id, h := range s.Homes {
		c.Homes[id] = h
	}
	for id, r := range s.Rooms {
		c.Rooms[id] = r
	}
	for id, m := range s.Modules {
		c.Modules[id] = m
	}
	return c
}

// GetHome returns the home with the given id.
func (s Snapshot) GetHome(id string) (Home, bool) {
	h, ok := s.Homes[id]
	return h, ok
}

// GetRoom returns the room with the given id.
func (s Snapshot) GetRoom(id string) (Room, bool) {
	r, ok := s.Rooms[id]
	return r, ok
}

// GetModule returns the module with the given id.
func (s Snapshot) GetModule(id string) (Module, bool) {
	m, ok := s.Modules[id]
	return m, ok
}

// HomeForRoom returns the home owning the given room.
func (s Snapshot) HomeForRoom(roomID string) (Home, bool) {
	r, ok := s.Rooms[roomID]
	if !ok {
		return Home{}, false
	}
	return s.GetHome(r.HomeID)
}

// ModulesForRoom returns the modules linked to the given room.
func (s Snapshot) ModulesForRoom(roomID string) []Module {
	r, ok := s.Rooms[roomID]
	if !ok {
		return nil
	}
	mods := make([]Module, 0, len(r.ModuleIDs))
	for _, id := range r.ModuleIDs {
		if m, found := s.Modules[id]; found {
			mods = append(mods, m)
		}
	}
	return mods
}
