package entities

import (
	"strconv"

	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
)

// Sensor exposes one diagnostic reading of a module or room.
type Sensor struct {
	id    string
	name  string
	Kind  SensorKind
	Value string
	Unit  string
}

// SensorKind identifies what a Sensor measures.
type SensorKind string

const (
	SensorBattery      SensorKind = "battery"
	SensorBatteryState SensorKind = "battery_state"
	SensorRFStrength   SensorKind = "rf_strength"
	SensorWifiStrength SensorKind = "wifi_strength"
	SensorBoilerStatus SensorKind = "boiler_status"
	SensorTemperature  SensorKind = "temperature"
)

func (s Sensor) UniqueID() string { return s.id }
func (s Sensor) Name() string     { return s.name }

// moduleSensors renders the diagnostic sensors a module's status supports.
// A module only ever reports one of battery or wifi, so the set is sparse.
func moduleSensors(m snapshot.Module) []Sensor {
	var out []Sensor
	if m.BatteryLevel != nil {
		out = append(out, Sensor{
			id:    "sensor_" + m.ID + "_battery",
			name:  m.Name + " battery",
			Kind:  SensorBattery,
			Value: strconv.Itoa(*m.BatteryLevel),
			Unit:  "%",
		})
	}
	if m.BatteryState != nil {
		out = append(out, Sensor{
			id:    "sensor_" + m.ID + "_battery_state",
			name:  m.Name + " battery state",
			Kind:  SensorBatteryState,
			Value: *m.BatteryState,
		})
	}
	if m.RFStrength != nil {
		out = append(out, Sensor{
			id:    "sensor_" + m.ID + "_rf",
			name:  m.Name + " rf strength",
			Kind:  SensorRFStrength,
			Value: strconv.Itoa(*m.RFStrength),
		})
	}
	if m.WifiStrength != nil {
		out = append(out, Sensor{
			id:    "sensor_" + m.ID + "_wifi",
			name:  m.Name + " wifi strength",
			Kind:  SensorWifiStrength,
			Value: strconv.Itoa(*m.WifiStrength),
		})
	}
	if m.BoilerStatus != nil {
		out = append(out, Sensor{
			id:    "sensor_" + m.ID + "_boiler",
			name:  m.Name + " boiler status",
			Kind:  SensorBoilerStatus,
			Value: strconv.FormatBool(*m.BoilerStatus),
		})
	}
	return out
}

func roomSensors(r snapshot.Room) []Sensor {
	var out []Sensor
	if r.MeasuredTemperature != nil {
		out = append(out, Sensor{
			id:    "sensor_" + r.ID + "_temperature",
			name:  r.Name + " temperature",
			Kind:  SensorTemperature,
			Value: strconv.FormatFloat(*r.MeasuredTemperature, 'f', 1, 64),
			Unit:  "°C",
		})
	}
	return out
}
