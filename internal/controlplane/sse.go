package controlplane

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kanti-proxy/kanti/internal/capture"
)

// handleEvents implements GET /api/events: a server-sent-events stream of
// flushed event-bus batches, each written as a single
// `data: {"type":...,"data":[...]}\n\n` record — no `event:` or `id:` lines.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(struct {
				Type string                  `json:"type"`
				Data []capture.RequestDetails `json:"data"`
			}{Type: string(batch.Type), Data: batch.Items})
			if err != nil {
				s.logger.Error("failed to marshal event batch", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
