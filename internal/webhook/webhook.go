// Package webhook accepts vendor event notifications and turns them into
// refresh requests.
//
// Event payloads are not trusted as state: the vendor's event schema drifts
// and events can arrive out of order, so a webhook only ever triggers a poll.
// The authoritative state always comes from the coordinator's own fetch.
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Refresher requests an unscheduled poll.
type Refresher interface {
	Refresh()
}

// Handler serves vendor webhook deliveries.
type Handler struct {
	refresher Refresher
	logger    *slog.Logger
}

// New creates a webhook Handler triggering refreshes on r.
func New(r Refresher, logger *slog.Logger) *Handler {
	return &Handler{refresher: r, logger: logger.With(slog.String("component", "webhook"))}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// decoded for logging only; any POST, malformed payloads included,
	// triggers exactly one refresh request
	var event struct {
		EventType string `json:"event_type"`
		HomeID    string `json:"home_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&event); err == nil {
		h.logger.Debug("webhook event received",
			slog.String("type", event.EventType), slog.String("home", event.HomeID))
	} else {
		h.logger.Debug("webhook event received", slog.String("type", "unparseable"))
	}

	h.refresher.Refresh()
	w.WriteHeader(http.StatusOK)
}
