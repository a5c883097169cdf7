package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okunev/bookshelf-bot/internal/jobs"
)

const jobStreamInterval = time.Second

// conversionFrame is one SSE payload: the full job list plus per-status
// counts, so the UI can paint badges without walking the list itself.
type conversionFrame struct {
	Jobs   []*jobs.ConversionJob `json:"jobs"`
	Counts map[string]int        `json:"counts"`
}

func (s *Server) conversionSnapshot() conversionFrame {
	list := s.queue.List()
	counts := make(map[string]int)
	for _, job := range list {
		counts[string(job.Status)]++
	}
	return conversionFrame{Jobs: list, Counts: counts}
}

// handleJobStream feeds conversion progress to the UI as server-sent
// "conversions" events. A frame identical to the previous one is replaced
// by a comment heartbeat, so an idle queue keeps the connection warm
// without repainting anything.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last string
	send := func() bool {
		frame, err := json.Marshal(s.conversionSnapshot())
		if err != nil {
			return false
		}
		if string(frame) == last {
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}
		last = string(frame)
		if _, err := fmt.Fprintf(w, "event: conversions\ndata: %s\n\n", frame); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(jobStreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
