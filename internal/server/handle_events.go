package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/finder"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
)

// handleEvents streams Server-Sent Events: the caller's spinner stats and the
// finder round status, each sent on connect and again after every change.
func handleEvents(logger *slog.Logger, app App, events *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, sess.Team, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		spin := events.Subscribe(spinner.Topic)
		defer events.Unsubscribe(spinner.Topic, spin)
		hunt := events.Subscribe(finder.Topic)
		defer events.Unsubscribe(finder.Topic, hunt)

		emit := func(name string, v any) {
			data, _ := json.Marshal(v)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
			flusher.Flush()
		}
		sendStats := func() bool {
			st, err := app.Spinner.Stats(r.Context(), sess)
			if err != nil {
				logger.Error("loading stats for stream", "error", err)
				return false
			}
			emit("stats", st)
			return true
		}
		sendStatus := func() bool {
			st, err := app.Finder.Status(r.Context())
			if err != nil {
				logger.Error("loading finder status for stream", "error", err)
				return false
			}
			emit("finder", st)
			return true
		}
		if !sendStats() || !sendStatus() {
			return
		}

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-spin:
				// Coalesce bursts of clicks into one snapshot.
				drain(spin)
				if !sendStats() {
					return
				}
			case <-hunt:
				drain(hunt)
				if !sendStatus() {
					return
				}
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func drain(ch chan []byte) {
	for len(ch) > 0 {
		<-ch
	}
}
