package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
)

// sseEndpoint streams live events of the requested channels. Callers always receive their own
// user channel; offer and item channels are named with ?channel=offer:<id>&channel=item:<id>.
func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	if s.sseHub == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "live events are disabled")
		return
	}
	actor := actorFromRequest(r)
	channels := []string{notification.UserChannel(actor.ID)}
	for _, ch := range r.URL.Query()["channel"] {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if !validChannel(ch) {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", fmt.Sprintf("invalid channel %q", ch))
			return
		}
		channels = append(channels, ch)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	clientID := uuid.NewString()
	userID := actor.ID.String()
	client := notification.NewSSEClient(clientID, &userID, channels)
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	// Send an initial comment to flush headers and keep the connection alive.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-client.MessageChan:
			if msg == nil {
				return
			}
			payload, _ := json.Marshal(msg)
			_, _ = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", msg.ID, msg.Event, payload)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// validChannel accepts offer:<uuid> and item:<uuid>. User channels are implied by the token.
func validChannel(ch string) bool {
	kind, id, ok := strings.Cut(ch, ":")
	if !ok || (kind != "offer" && kind != "item") {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
