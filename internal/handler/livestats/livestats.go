// Package livestats pushes the caller's spinner stats over a WebSocket after
// every spinner change.
package livestats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
)

type StatsSource interface {
	Stats(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error)
}

type Subscriber interface {
	Subscribe(topic string) chan []byte
	Unsubscribe(topic string, ch chan []byte)
}

type Handler struct {
	stats    StatsSource
	events   Subscriber
	logger   *slog.Logger
	lifetime time.Duration
}

func NewHandler(logger *slog.Logger, stats StatsSource, events Subscriber) *Handler {
	return &Handler{stats: stats, events: events, logger: logger, lifetime: 10 * time.Minute}
}

// Routes expects to sit behind the session middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stream)
	return r
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(r.Context(), h.lifetime)
	defer cancel()
	// Clients never send; CloseRead handles their close frame and cancels ctx.
	ctx = conn.CloseRead(ctx)

	ch := h.events.Subscribe(spinner.Topic)
	defer h.events.Unsubscribe(spinner.Topic, ch)

	if err := h.push(ctx, conn, sess); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ch:
			for len(ch) > 0 {
				<-ch
			}
			if err := h.push(ctx, conn, sess); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) push(ctx context.Context, conn *websocket.Conn, sess colorwar.Session) error {
	st, err := h.stats.Stats(ctx, sess)
	if err != nil {
		h.logger.Error("loading stats for websocket", "error", err)
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
