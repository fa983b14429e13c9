package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/services"
)

const defaultHeartbeat = 25 * time.Second

// FeedHandler streams row change notifications as server-sent events.
type FeedHandler struct {
	feed          services.FeedSubscriber
	friendService services.FriendServiceInterface
	metrics       *metrics.Metrics
	heartbeat     time.Duration
}

func NewFeedHandler(feed services.FeedSubscriber, friendService services.FriendServiceInterface, m *metrics.Metrics) *FeedHandler {
	return &FeedHandler{
		feed:          feed,
		friendService: friendService,
		metrics:       m,
		heartbeat:     defaultHeartbeat,
	}
}

// Stream serves GET /api/feed?table=habits|friendships&owner=<user id>.
// Owner defaults to the caller. Another owner's habits are visible to
// accepted friends; friendships are only ever visible to their owner.
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	table := r.URL.Query().Get("table")
	if !services.ValidFeedTable(table) {
		writeError(w, http.StatusBadRequest, "table must be habits or friendships")
		return
	}

	owner := user.ID
	if raw := r.URL.Query().Get("owner"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid owner ID")
			return
		}
		owner = id
	}

	if owner != user.ID {
		if table != services.TableHabits {
			writeError(w, http.StatusForbidden, "You can only follow your own friendships")
			return
		}
		isFriend, err := h.friendService.IsFriend(r.Context(), user.ID, owner)
		if err != nil {
			writeServiceError(w, "checking friendship", err)
			return
		}
		if !isFriend {
			writeError(w, http.StatusForbidden, "You can only follow your friends")
			return
		}
	}

	changes, err := h.feed.Subscribe(r.Context(), table, owner)
	if err != nil {
		writeServiceError(w, "subscribing to feed", err)
		return
	}

	h.metrics.SubscriberOpened()
	defer h.metrics.SubscriberClosed()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "event: ready\ndata: {\"table\":%q,\"owner_id\":%q}\n\n", table, owner.String()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		logging.Warn("Feed stream cannot flush", map[string]interface{}{"error": err.Error()})
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(change)
			if err != nil {
				logging.Error("Error encoding change", map[string]interface{}{"error": err.Error()})
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
