package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/colorwar/internal/session"
)

// CookieName is the cookie carrying the session token.
const CookieName = "cookie"

// cookieExpires keeps the session cookie effectively permanent.
var cookieExpires = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)

// sessionMiddleware resolves the caller's session from the cookie and the
// name/password parameters, and sets the cookie on every response.
func sessionMiddleware(logger *slog.Logger, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			q := r.URL.Query()

			var token string
			if c, err := r.Cookie(CookieName); err == nil {
				token = c.Value
			}

			sess, created, err := sessions.Resolve(ctx, token, q.Get("name"), q.Get("password"))
			if err != nil {
				logger.Error("resolving session", "error", err, "request_id", middleware.GetReqID(ctx))
				writeError(w, http.StatusInternalServerError, 0, "internal error")
				return
			}

			if machine := q.Get("machine"); machine != "" {
				if err := sessions.Touch(ctx, sess, machine); err != nil {
					logger.Warn("recording machine", "error", err)
				}
			}
			if created {
				logger.Info("new player", "name", sess.Name, "team", sess.Team, "machine", q.Get("machine"))
			}

			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    sess.Cookie,
				Path:     "/",
				Expires:  cookieExpires,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r.WithContext(session.NewContext(ctx, sess)))
		})
	}
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				}
				if machine := r.URL.Query().Get("machine"); machine != "" {
					attrs = append(attrs, "machine", machine)
				}
				logger.Info("http request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// handleUnknown answers paths under the game prefixes that match no
// operation.
func handleUnknown() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := session.FromContext(r.Context())
		writeError(w, http.StatusOK, sess.Team, "Unknown command")
	}
}
