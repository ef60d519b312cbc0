// Package collector exports the snapshot as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/halcyon-home/netatmo-energy/internal/modes"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	roomTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "room", "temperature_celsius"),
		"Measured temperature of this room in degrees celsius",
		[]string{"home_name", "room_name"},
		nil,
	)
	roomSetpoint = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "room", "setpoint_celsius"),
		"Setpoint temperature of this room in degrees celsius",
		[]string{"home_name", "room_name"},
		nil,
	)
	roomHeatingPower = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "room", "heating_power_percentage"),
		"Heating power requested by this room (0-100)",
		[]string{"home_name", "room_name"},
		nil,
	)
	roomManualMode = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "room", "manual_mode"),
		"1 if this room's schedule is overridden",
		[]string{"home_name", "room_name"},
		nil,
	)
	roomOpenWindow = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "room", "open_window"),
		"1 if an open window is detected in this room",
		[]string{"home_name", "room_name"},
		nil,
	)
	moduleReachable = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "module", "reachable"),
		"1 if the module currently responds to its gateway",
		[]string{"home_name", "name", "id", "type"},
		nil,
	)
	moduleBattery = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "module", "battery_percentage"),
		"Battery level of this module (0-100)",
		[]string{"home_name", "name", "id", "type"},
		nil,
	)
	moduleRFStrength = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "module", "rf_strength"),
		"Radio signal strength of this module (lower is better)",
		[]string{"home_name", "name", "id", "type"},
		nil,
	)
	moduleOn = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "module", "on"),
		"1 if this light or plug is switched on",
		[]string{"home_name", "name", "id", "type"},
		nil,
	)
	boilerStatus = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "home", "boiler_status"),
		"1 if the boiler is firing",
		[]string{"home_name", "id"},
		nil,
	)
	homeMode = prometheus.NewDesc(
		prometheus.BuildFQName("netatmo", "home", "mode"),
		"Thermostat mode of the home. Always 1. Label mode specifies the mode",
		[]string{"home_name", "mode"},
		nil,
	)
)

// Publisher is the snapshot feed the collector consumes.
type Publisher interface {
	Subscribe() chan snapshot.Snapshot
	Unsubscribe(chan snapshot.Snapshot)
}

// Collector caches the latest snapshot and renders it on scrape.
type Collector struct {
	Publisher Publisher
	Logger    *slog.Logger

	lock sync.RWMutex
	last *snapshot.Snapshot
}

// Run caches published snapshots until ctx is cancelled or the publisher
// closes.
func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Publisher.Subscribe()
	defer c.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			c.lock.Lock()
			c.last = &s
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- roomTemperature
	ch <- roomSetpoint
	ch <- roomHeatingPower
	ch <- roomManualMode
	ch <- roomOpenWindow
	ch <- moduleReachable
	ch <- moduleBattery
	ch <- moduleRFStrength
	ch <- moduleOn
	ch <- boilerStatus
	ch <- homeMode
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.last == nil {
		return
	}
	c.collectRooms(ch)
	c.collectModules(ch)
	c.collectHomes(ch)
}

func (c *Collector) collectRooms(ch chan<- prometheus.Metric) {
	for _, room := range c.last.Rooms {
		if room.MeasuredTemperature != nil {
			ch <- prometheus.MustNewConstMetric(roomTemperature, prometheus.GaugeValue, *room.MeasuredTemperature, room.HomeName, room.Name)
		}
		if room.SetpointTemperature != nil {
			ch <- prometheus.MustNewConstMetric(roomSetpoint, prometheus.GaugeValue, *room.SetpointTemperature, room.HomeName, room.Name)
		}
		if room.HeatingPowerRequest != nil {
			ch <- prometheus.MustNewConstMetric(roomHeatingPower, prometheus.GaugeValue, float64(*room.HeatingPowerRequest), room.HomeName, room.Name)
		}

		var manual float64
		if room.SetpointMode != modes.ModeSchedule && room.SetpointMode != modes.ModeHome {
			manual = 1.0
		}
		ch <- prometheus.MustNewConstMetric(roomManualMode, prometheus.GaugeValue, manual, room.HomeName, room.Name)

		var open float64
		if room.OpenWindow {
			open = 1.0
		}
		ch <- prometheus.MustNewConstMetric(roomOpenWindow, prometheus.GaugeValue, open, room.HomeName, room.Name)
	}
}

func (c *Collector) collectModules(ch chan<- prometheus.Metric) {
	for _, module := range c.last.Modules {
		home, found := c.last.GetHome(module.HomeID)
		if !found {
			c.Logger.Warn("module without home in collected metrics, skipping", "id", module.ID)
			continue
		}

		var reachable float64
		if module.Reachable {
			reachable = 1.0
		}
		ch <- prometheus.MustNewConstMetric(moduleReachable, prometheus.GaugeValue, reachable, home.Name, module.Name, module.ID, module.Type)

		if module.BatteryLevel != nil {
			ch <- prometheus.MustNewConstMetric(moduleBattery, prometheus.GaugeValue, float64(*module.BatteryLevel), home.Name, module.Name, module.ID, module.Type)
		}
		if module.RFStrength != nil {
			ch <- prometheus.MustNewConstMetric(moduleRFStrength, prometheus.GaugeValue, float64(*module.RFStrength), home.Name, module.Name, module.ID, module.Type)
		}
		if module.On != nil {
			var on float64
			if *module.On {
				on = 1.0
			}
			ch <- prometheus.MustNewConstMetric(moduleOn, prometheus.GaugeValue, on, home.Name, module.Name, module.ID, module.Type)
		}
		if module.BoilerStatus != nil {
			var firing float64
			if *module.BoilerStatus {
				firing = 1.0
			}
			ch <- prometheus.MustNewConstMetric(boilerStatus, prometheus.GaugeValue, firing, home.Name, module.ID)
		}
	}
}

func (c *Collector) collectHomes(ch chan<- prometheus.Metric) {
	for _, home := range c.last.Homes {
		ch <- prometheus.MustNewConstMetric(homeMode, prometheus.GaugeValue, 1, home.Name, home.ThermMode)
	}
}
