package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/halcyon-home/netatmo-energy/internal/snapshot"
)

// Publisher is the snapshot feed plus the ability to request a poll.
type Publisher interface {
	Subscribe() chan snapshot.Snapshot
	Unsubscribe(chan snapshot.Snapshot)
	Refresh()
}

// Health serves the latest snapshot as a liveness probe: it reports
// unavailable until the first poll has completed.
type Health struct {
	Publisher
	logger  *slog.Logger
	current snapshot.Snapshot
	updated bool
	lock    sync.RWMutex
}

func New(p Publisher, logger *slog.Logger) *Health {
	return &Health{
		Publisher: p,
		logger:    logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Publisher.Subscribe()
	defer h.Publisher.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			h.lock.Lock()
			h.current = s
			h.updated = true
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		h.Publisher.Refresh()
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.current); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
