package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/finder"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
)

// App bundles the game engines the dispatcher routes to.
type App struct {
	Sessions *session.Manager
	Spinner  *spinner.Game
	Finder   *finder.Game
}

// outcome is what an operation hands back to the envelope writer.
type outcome struct {
	result  string
	payload any
}

func okResult(payload any) (outcome, error) { return outcome{result: resultOK, payload: payload}, nil }

func failedResult(payload any) (outcome, error) { return outcome{result: resultFailed, payload: payload}, nil }

func handleOp(logger *slog.Logger, app App, rt opRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _ := session.FromContext(ctx)

		if rt.Admin {
			isAdmin, err := app.Sessions.IsAdmin(ctx, sess)
			if err != nil {
				writeOpError(w, r, logger, rt, sess, err)
				return
			}
			if !isAdmin {
				writeOpError(w, r, logger, rt, sess, colorwar.ErrUnauthorized)
				return
			}
		}

		out, err := app.run(ctx, rt.Op, sess, r)
		if err != nil {
			writeOpError(w, r, logger, rt, sess, err)
			return
		}
		writeResult(w, out.result, sess.Team, out.payload)
	}
}

// writeOpError maps operation errors onto envelopes. Unauthorized is routine
// and answered with 200; malformed parameters are the client's fault; anything
// else is a store failure.
func writeOpError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, rt opRoute, sess colorwar.Session, err error) {
	attrs := []any{
		"op", rt.Path,
		"name", sess.Name,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	}
	switch {
	case errors.Is(err, colorwar.ErrUnauthorized):
		logger.Debug("admin operation refused", attrs...)
		writeError(w, http.StatusOK, sess.Team, colorwar.ErrUnauthorized.Error())
	case errors.Is(err, colorwar.ErrMalformedInput):
		logger.Warn("malformed request", attrs...)
		writeError(w, http.StatusBadRequest, sess.Team, err.Error())
	default:
		logger.Error("operation failed", attrs...)
		writeError(w, http.StatusInternalServerError, sess.Team, "internal error")
	}
}

func (app App) run(ctx context.Context, op Op, sess colorwar.Session, r *http.Request) (outcome, error) {
	q := r.URL.Query()

	switch op {
	case OpSpinnerClick:
		return stats(app.Spinner.Click(ctx, sess))
	case OpSpinnerStats:
		return stats(app.Spinner.Stats(ctx, sess))
	case OpSpinnerStart:
		return stats(app.Spinner.Start(ctx, sess))
	case OpSpinnerPause:
		return stats(app.Spinner.Pause(ctx, sess))
	case OpSpinnerResume:
		return stats(app.Spinner.Resume(ctx, sess))
	case OpSpinnerStop:
		return stats(app.Spinner.Stop(ctx, sess))
	case OpSpinnerShow:
		return stats(app.Spinner.Show(ctx, sess))
	case OpSpinnerHide:
		return stats(app.Spinner.Hide(ctx, sess))

	case OpFinderStart:
		cfg, err := colorwar.ParseRoundConfig(q.Get("start"))
		if err != nil {
			return outcome{}, err
		}
		if err := app.Finder.Start(ctx, cfg); err != nil {
			return outcome{}, err
		}
		return okResult(nil)

	case OpFinderStop:
		if err := app.Finder.Stop(ctx); err != nil {
			return outcome{}, err
		}
		return okResult(nil)

	case OpFinderAddBeacon:
		b, err := colorwar.ParseBeacon(q.Get("beacon"))
		if err != nil {
			return outcome{}, err
		}
		if err := app.Finder.AddBeacon(ctx, b); err != nil {
			return outcome{}, err
		}
		return okResult(nil)

	case OpFinderAddHint:
		raw := q.Get("hint")
		if raw == "" {
			raw = q.Get("question")
		}
		h, err := colorwar.ParseHint(raw)
		if err != nil {
			return outcome{}, err
		}
		if err := app.Finder.AddHint(ctx, h); err != nil {
			return outcome{}, err
		}
		return okResult(nil)

	case OpFinderAddFact:
		if err := app.Finder.AddFact(ctx, q.Get("fact")); err != nil {
			return outcome{}, err
		}
		return okResult(nil)

	case OpFinderStatus:
		st, err := app.Finder.Status(ctx)
		if err != nil {
			return outcome{}, err
		}
		return okResult(st)

	case OpFinderConfig:
		cfg, err := app.Finder.Config(ctx)
		if err != nil {
			return outcome{}, err
		}
		return okResult(cfg)

	case OpFinderProximity:
		reports, err := colorwar.ParseReports(q.Get("proximity"))
		if err != nil {
			return outcome{}, err
		}
		prox, err := app.Finder.Proximity(ctx, sess, reports)
		if err != nil {
			return outcome{}, err
		}
		return okResult(prox)

	case OpFinderRegister:
		reg, err := app.Finder.Register(ctx, sess)
		switch {
		case errors.Is(err, finder.ErrAlreadyRegistered):
			return failedResult(reg)
		case errors.Is(err, finder.ErrNotQualified), errors.Is(err, finder.ErrNoRound):
			return failedResult(nil)
		case err != nil:
			return outcome{}, err
		}
		return okResult(reg)
	}

	return outcome{}, errUnknownOp
}

var errUnknownOp = errors.New("unknown operation")

func stats(st colorwar.Stats, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return okResult(st)
}
