package server

import (
	"log/slog"
	"net/http"
	"os"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/colorwar/internal/broker"
)

func addRoutes(r chi.Router, logger *slog.Logger, app App, events *broker.Broker, opts Options) {
	r.Use(corsHandler(opts.CORSOrigins))

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Color War API", "/openapi.json", "/docs"))
	if opts.Public != nil {
		opts.Public(r)
	}

	// Game routes: every response carries the session cookie.
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware(logger, app.Sessions))

		for _, rt := range opRoutes {
			r.Get(rt.Path, handleOp(logger, app, rt))
		}
		r.Get("/json/events", handleEvents(logger, app, events))
		r.HandleFunc("/json/*", handleUnknown())
		r.HandleFunc("/finder/*", handleUnknown())

		if opts.Player != nil {
			opts.Player(r)
		}
	})

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			logger.Info("serving static files", "dir", opts.StaticDir)
			r.Handle("/static/*", http.StripPrefix("/static", handleStatic(opts.StaticDir)))
		}
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
