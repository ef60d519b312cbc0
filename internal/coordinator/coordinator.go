// Package coordinator reconciles the local snapshot with the Netatmo cloud.
//
// It owns the poll loop, merges topology+status fetches into the snapshot,
// publishes updates to entity adapters, and carries the command path: a
// successful command is applied to the snapshot optimistically so the UI
// reacts immediately, and a reconciling refresh is scheduled to true the
// guess up against the remote state.
//
// Polled data observed to lag a just-issued command would otherwise flicker
// the entity back to its pre-command state. Fields touched by an optimistic
// patch therefore win over polled data for a debounce window; once the window
// elapses, remote truth fully wins.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halcyon-home/netatmo-energy/internal/netatmo"
	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
	"github.com/halcyon-home/netatmo-energy/pkg/pubsub"
)

// RemoteClient is the part of the Netatmo client the coordinator needs.
type RemoteClient interface {
	GetTopology(ctx context.Context, homeIDs ...string) (netatmo.Topology, error)
	SetRoomState(ctx context.Context, homeID, roomID string, cmd netatmo.RoomCommand) error
	SetModuleState(ctx context.Context, homeID, moduleID string, cmd netatmo.ModuleCommand) error
	SetThermMode(ctx context.Context, homeID, mode string) error
}

// Configuration tunes a Coordinator.
type Configuration struct {
	// Interval between scheduled polls. Default: 60s.
	Interval time.Duration
	// Debounce is how long an optimistic patch outranks polled data for the
	// fields it touched. Default: 30s.
	Debounce time.Duration
	// HomeIDs restricts the coordinator to the given homes. Empty: all homes.
	HomeIDs []string
	// OnAuthError is called when the token can no longer be refreshed, so the
	// host can start its re-authentication flow.
	OnAuthError func(error)
}

// Coordinator polls the Netatmo API, maintains the snapshot and executes
// commands.
type Coordinator struct {
	*pubsub.Publisher[snapshot.Snapshot]
	client      RemoteClient
	interval    time.Duration
	debounce    time.Duration
	homeIDs     []string
	onAuthError func(error)
	logger      *slog.Logger
	refresh     chan struct{}
	stopped     atomic.Bool

	lock    sync.RWMutex
	current snapshot.Snapshot
	ready   bool
	patches []patchRecord

	commandLock sync.Mutex
	inFlight    map[string]*sync.Mutex
}

// patchRecord remembers an applied optimistic patch so it can be re-applied
// over polled data until the debounce window elapses.
type patchRecord struct {
	roomID   string
	moduleID string
	homeID   string
	room     snapshot.RoomPatch
	module   snapshot.ModulePatch
	home     snapshot.HomePatch
	at       time.Time
}

// ErrStopped is returned for commands issued after the coordinator was
// unloaded.
var ErrStopped = errors.New("coordinator stopped")

// NotFoundError indicates a command referenced an entity absent from the
// current snapshot.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ErrBridgeRequired indicates a module command for a bridged device type
// whose bridge id is unknown. Sending the command anyway would be silently
// dropped by the vendor, so it is rejected before any network call.
var ErrBridgeRequired = errors.New("module requires a bridge id for commands")

// ErrBrightnessNotSupported indicates a brightness command for a module that
// is not dimmer-capable.
var ErrBrightnessNotSupported = errors.New("module does not support brightness")

// New creates a Coordinator polling with the given client.
func New(client RemoteClient, cfg Configuration, logger *slog.Logger) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 30 * time.Second
	}
	return &Coordinator{
		Publisher:   pubsub.New[snapshot.Snapshot](logger.With(slog.String("component", "registry"))),
		client:      client,
		interval:    cfg.Interval,
		debounce:    cfg.Debounce,
		homeIDs:     cfg.HomeIDs,
		onAuthError: cfg.OnAuthError,
		logger:      logger,
		refresh:     make(chan struct{}, 1),
		inFlight:    make(map[string]*sync.Mutex),
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
// A failed poll keeps the last good snapshot: stale-but-present beats blank.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Debug("started", slog.Duration("interval", c.interval))
	defer c.logger.Debug("stopped")
	defer c.stopped.Store(true)
	defer c.Publisher.Close()

	timer := time.NewTicker(c.interval)
	defer timer.Stop()

	c.Refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-c.refresh:
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.reportError(err)
			c.logger.Warn("poll failed, keeping last snapshot", slog.Any("err", err))
		}
	}
}

// Refresh requests an unscheduled poll. Requests arriving while a poll is
// pending or in flight coalesce into a single fetch.
func (c *Coordinator) Refresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) poll(ctx context.Context) error {
	start := time.Now()
	topology, err := c.client.GetTopology(ctx, c.homeIDs...)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		// unloaded while the fetch was in flight: no mutation, no notification
		return ctx.Err()
	}

	fresh := snapshot.Build(topology, c.logger)

	c.lock.Lock()
	c.reapplyRecentPatches(&fresh, time.Now())
	c.current = fresh
	c.ready = true
	published := c.current.Clone()
	c.lock.Unlock()

	c.Publisher.Publish(published)
	c.logger.Debug("poll completed", slog.Duration("duration", time.Since(start)))
	return nil
}

// reapplyRecentPatches overlays optimistic patches younger than the debounce
// window onto a freshly merged snapshot. Expired records are pruned: from
// then on, polled data wins. Caller must hold the lock.
func (c *Coordinator) reapplyRecentPatches(s *snapshot.Snapshot, now time.Time) {
	kept := c.patches[:0]
	for _, record := range c.patches {
		if now.Sub(record.at) >= c.debounce {
			continue
		}
		switch {
		case record.roomID != "":
			s.PatchRoom(record.roomID, record.room)
		case record.moduleID != "":
			s.PatchModule(record.moduleID, record.module)
		case record.homeID != "":
			s.PatchHome(record.homeID, record.home)
		}
		kept = append(kept, record)
	}
	c.patches = kept
}

func (c *Coordinator) reportError(err error) {
	var authErr *netatmo.AuthError
	if errors.As(err, &authErr) && c.onAuthError != nil {
		c.onAuthError(err)
	}
}

// Snapshot returns a copy of the current snapshot and whether at least one
// poll has completed.
func (c *Coordinator) Snapshot() (snapshot.Snapshot, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if !c.ready {
		return snapshot.Snapshot{}, false
	}
	return c.current.Clone(), true
}

// GetHome returns the home with the given id from the current snapshot.
func (c *Coordinator) GetHome(id string) (snapshot.Home, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.current.GetHome(id)
}

// GetRoom returns the room with the given id from the current snapshot.
func (c *Coordinator) GetRoom(id string) (snapshot.Room, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.current.GetRoom(id)
}

// GetModule returns the module with the given id from the current snapshot.
func (c *Coordinator) GetModule(id string) (snapshot.Module, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.current.GetModule(id)
}

// serialize returns a lock dedicated to one command target, so two commands
// for the same room or module cannot race and leave the optimistic patch in
// an order-dependent state. Commands for different targets run concurrently.
func (c *Coordinator) serialize(id string) *sync.Mutex {
	c.commandLock.Lock()
	defer c.commandLock.Unlock()
	m, ok := c.inFlight[id]
	if !ok {
		m = &sync.Mutex{}
		c.inFlight[id] = m
	}
	return m
}

func (c *Coordinator) applyPatch(record patchRecord) {
	c.lock.Lock()
	record.at = time.Now()
	switch {
	case record.roomID != "":
		c.current.PatchRoom(record.roomID, record.room)
	case record.moduleID != "":
		c.current.PatchModule(record.moduleID, record.module)
	case record.homeID != "":
		c.current.PatchHome(record.homeID, record.home)
	}
	c.patches = append(c.patches, record)
	published := c.current.Clone()
	c.lock.Unlock()

	c.Publisher.Publish(published)
	c.Refresh()
}
