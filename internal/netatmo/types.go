package netatmo

// Wire types for the Netatmo Energy API. Optional fields are pointers:
// the API omits them freely and a missing value is not the same as a zero.

// Topology is the combined result of /homesdata and per-home /homestatus.
type Topology struct {
	Homes []Home
}

// Home pairs a home's definition with its status. Status is nil when the
// status call for this home failed; the caller decides how to degrade.
type Home struct {
	HomeData
	Status *HomeStatus
}

type homesDataResponse struct {
	Body struct {
		Homes []HomeData `json:"homes"`
	} `json:"body"`
}

type homeStatusResponse struct {
	Body struct {
		Home HomeStatus `json:"home"`
	} `json:"body"`
}

type HomeData struct {
	ID                           string       `json:"id"`
	Name                         string       `json:"name"`
	Altitude                     *int         `json:"altitude,omitempty"`
	Coordinates                  []float64    `json:"coordinates,omitempty"`
	Country                      *string      `json:"country,omitempty"`
	Timezone                     *string      `json:"timezone,omitempty"`
	ThermSetpointDefaultDuration *int         `json:"therm_setpoint_default_duration,omitempty"`
	Rooms                        []RoomData   `json:"rooms,omitempty"`
	Modules                      []ModuleData `json:"modules,omitempty"`
}

type RoomData struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	ModuleIDs []string `json:"module_ids,omitempty"`
}

type ModuleData struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	SetupDate      *int64   `json:"setup_date,omitempty"`
	RoomID         *string  `json:"room_id,omitempty"`
	Bridge         *string  `json:"bridge,omitempty"`
	ModulesBridged []string `json:"modules_bridged,omitempty"`
}

type HomeStatus struct {
	ID        string         `json:"id"`
	ThermMode string         `json:"therm_mode"`
	Rooms     []RoomStatus   `json:"rooms,omitempty"`
	Modules   []ModuleStatus `json:"modules,omitempty"`
}

type RoomStatus struct {
	ID                       string   `json:"id"`
	Reachable                *bool    `json:"reachable,omitempty"`
	ThermMeasuredTemperature *float64 `json:"therm_measured_temperature,omitempty"`
	ThermSetpointTemperature *float64 `json:"therm_setpoint_temperature,omitempty"`
	ThermSetpointMode        string   `json:"therm_setpoint_mode,omitempty"`
	ThermSetpointFP          string   `json:"therm_setpoint_fp,omitempty"`
	ThermSetpointStartTime   *int64   `json:"therm_setpoint_start_time,omitempty"`
	ThermSetpointEndTime     *int64   `json:"therm_setpoint_end_time,omitempty"`
	HeatingPowerRequest      *int     `json:"heating_power_request,omitempty"`
	Anticipating             *bool    `json:"anticipating,omitempty"`
	OpenWindow               *bool    `json:"open_window,omitempty"`
}

type ModuleStatus struct {
	ID                      string  `json:"id"`
	On                      *bool   `json:"on,omitempty"`
	Brightness              *int    `json:"brightness,omitempty"`
	BatteryLevel            *int    `json:"battery_level,omitempty"`
	BatteryState            *string `json:"battery_state,omitempty"`
	RFStrength              *int    `json:"rf_strength,omitempty"`
	WifiStrength            *int    `json:"wifi_strength,omitempty"`
	Reachable               *bool   `json:"reachable,omitempty"`
	Firmware                *int    `json:"firmware_revision,omitempty"`
	BoilerStatus            *bool   `json:"boiler_status,omitempty"`
	BoilerValveComfortBoost *bool   `json:"boiler_valve_comfort_boost,omitempty"`
}

// RoomCommand sets a room's thermostat state via /setstate.
type RoomCommand struct {
	Mode        string
	FPMode      string
	Temperature *float64
	EndTime     *int64
}

// ModuleCommand sets a module's on/off state and brightness via /setstate.
// Bridge must carry the module's gateway id for device types that are
// commanded through one.
type ModuleCommand struct {
	On         *bool
	Brightness *int
	Bridge     string
}

type setStateRequest struct {
	Home setStateHome `json:"home"`
}

type setStateHome struct {
	ID      string           `json:"id"`
	Rooms   []setStateRoom   `json:"rooms,omitempty"`
	Modules []setStateModule `json:"modules,omitempty"`
}

type setStateRoom struct {
	ID                       string   `json:"id"`
	ThermSetpointMode        string   `json:"therm_setpoint_mode"`
	ThermSetpointFP          string   `json:"therm_setpoint_fp,omitempty"`
	ThermSetpointTemperature *float64 `json:"therm_setpoint_temperature,omitempty"`
	ThermSetpointEndTime     *int64   `json:"therm_setpoint_end_time,omitempty"`
}

type setStateModule struct {
	ID         string `json:"id"`
	On         *bool  `json:"on,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
	Bridge     string `json:"bridge,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}
