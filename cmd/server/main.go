package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/config"
	"github.com/playperu/colorwar/internal/database"
	"github.com/playperu/colorwar/internal/finder"
	"github.com/playperu/colorwar/internal/handler/health"
	"github.com/playperu/colorwar/internal/handler/livestats"
	"github.com/playperu/colorwar/internal/migrations"
	"github.com/playperu/colorwar/internal/server"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
	"github.com/playperu/colorwar/internal/tlsdemo"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load(args, stdout)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return err
		}
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(stdout, cfg)

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	sessions := session.NewManager(db, logger)
	if cfg.AdminSecret != "" {
		if err := sessions.SetAdminSecret(ctx, cfg.AdminSecret); err != nil {
			return fmt.Errorf("seeding admin secret: %w", err)
		}
		logger.Info("admin secret set")
	}

	checks := map[string]health.Checker{"sqlite": health.SQL(db)}

	// --- Redis (optional, health only) ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = health.Redis(rdb)
		logger.Info("connected to redis")
	}

	// --- Games ---
	events := broker.New()
	app := server.App{
		Sessions: sessions,
		Spinner:  spinner.New(db, logger, events),
		Finder:   finder.New(db, logger, events),
	}

	opts := server.Options{
		Addr:        cfg.HTTPAddr,
		StaticDir:   cfg.StaticDir,
		CORSOrigins: cfg.CORSOrigins,
		Public: func(r chi.Router) {
			r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
		},
		Player: func(r chi.Router) {
			r.Mount("/ws", livestats.NewHandler(logger, app.Spinner, events).Routes())
		},
	}
	if cfg.HTTPS {
		if opts.TLS, err = tlsdemo.Config(cfg.TLSCertFile, cfg.TLSKeyFile); err != nil {
			return fmt.Errorf("configuring tls: %w", err)
		}
	}

	// --- HTTP Server ---
	srv := server.New(opts, logger, app, events)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "https", cfg.HTTPS, "daemon", cfg.Daemon)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	if !cfg.Daemon {
		// The reader goroutine stays blocked on stdin after shutdown; the
		// process exits right after.
		stop := make(chan struct{})
		go func() {
			if waitForEnter(stdin) {
				close(stop)
			}
		}()
		g.Go(func() error {
			select {
			case <-stop:
				logger.Info("enter pressed, stopping")
				return errStopped
			case <-gctx.Done():
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

var errStopped = errors.New("stopped from terminal")

// waitForEnter reports whether a line was read before stdin ended.
func waitForEnter(r io.Reader) bool {
	_, err := bufio.NewReader(r).ReadString('\n')
	return err == nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: cfg.LogLevel}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
