package entities

import (
	"context"
	"log/slog"

	"github.com/clambin/go-common/set"
	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
)

// Registry discovers entities from published snapshots and keeps the host
// platform's view of them current. Discovery is driven by topology: a module
// appearing in a later poll is announced through OnDiscover, and an entity
// whose backing device disappears is announced through OnRemove.
type Registry struct {
	coordinator Coordinator
	overrides   Overrides
	logger      *slog.Logger

	// OnDiscover is called once per newly discovered entity.
	OnDiscover func(Entity)
	// OnRemove is called when an entity's backing device left the topology.
	OnRemove func(id string)
	// OnUpdate is called after every snapshot, once discovery is done.
	OnUpdate func()

	known set.Set[string]
}

// NewRegistry creates a Registry. Overrides may be nil.
func NewRegistry(c Coordinator, overrides Overrides, logger *slog.Logger) *Registry {
	if overrides == nil {
		overrides = Overrides{}
	}
	return &Registry{
		coordinator: c,
		overrides:   overrides,
		logger:      logger.With(slog.String("component", "entities")),
		known:       set.New[string](),
	}
}

// Run consumes snapshots until ctx is cancelled or the publisher closes.
func (r *Registry) Run(ctx context.Context) error {
	r.logger.Debug("started")
	defer r.logger.Debug("stopped")

	ch := r.coordinator.Subscribe()
	defer r.coordinator.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			r.apply(s)
		}
	}
}

func (r *Registry) apply(s snapshot.Snapshot) {
	current := set.New[string]()
	for _, e := range r.Discover(s) {
		current.Add(e.UniqueID())
		if !r.known.Contains(e.UniqueID()) {
			r.known.Add(e.UniqueID())
			r.logger.Debug("entity discovered", slog.String("id", e.UniqueID()))
			if r.OnDiscover != nil {
				r.OnDiscover(e)
			}
		}
	}
	for _, id := range r.known.List() {
		if !current.Contains(id) {
			r.known.Remove(id)
			r.logger.Debug("entity removed", slog.String("id", id))
			if r.OnRemove != nil {
				r.OnRemove(id)
			}
		}
	}
	if r.OnUpdate != nil {
		r.OnUpdate()
	}
}

// Discover lists the entities a snapshot supports: one climate per room that
// has at least one climate module, one light per light/dimmer module, one
// switch per plug, plus diagnostic sensors. Bridges and unknown device types
// yield no controllable entity, only their sensors.
func (r *Registry) Discover(s snapshot.Snapshot) []Entity {
	var out []Entity
	add := func(id string, e Entity) {
		if r.overrides.disabled(id) {
			return
		}
		out = append(out, e)
	}

	for id, room := range s.Rooms {
		if !hasClimateModule(s, room) {
			continue
		}
		add("climate_"+id, &Climate{
			coordinator: r.coordinator,
			roomID:      id,
			name:        r.overrides.name("climate_"+id, room.Name),
		})
		for _, sensor := range roomSensors(room) {
			sensor.name = r.overrides.name(sensor.id, sensor.name)
			add(sensor.id, sensor)
		}
	}

	for id, module := range s.Modules {
		switch netatmo.ClassOf(module.Type) {
		case netatmo.ClassLight, netatmo.ClassDimmer:
			add("light_"+id, &Light{
				coordinator: r.coordinator,
				moduleID:    id,
				name:        r.overrides.name("light_"+id, module.Name),
			})
		case netatmo.ClassPlug:
			add("switch_"+id, &Switch{
				coordinator: r.coordinator,
				moduleID:    id,
				name:        r.overrides.name("switch_"+id, module.Name),
			})
		}
		for _, sensor := range moduleSensors(module) {
			sensor.name = r.overrides.name(sensor.id, sensor.name)
			add(sensor.id, sensor)
		}
	}
	return out
}

func hasClimateModule(s snapshot.Snapshot, room snapshot.Room) bool {
	for _, m := range s.ModulesForRoom(room.ID) {
		if netatmo.ClassOf(m.Type) == netatmo.ClassClimate {
			return true
		}
	}
	return false
}
