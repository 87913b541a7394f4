// Package spinner implements the five color click competition.
//
// All state lives in the database: team counters in teams, per-player
// contribution and won flags in sessions, and the round lifecycle in
// spinner_rounds behind the current_rounds pointer. Each statement commits on
// its own; nothing is cached between requests.
package spinner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/database"
)

// Topic is the broker topic published after every state change.
const Topic = "spinner"

// TopContributors is how many players of the winning team get the won flag.
const TopContributors = 10

const now = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

type Publisher interface {
	Publish(topic string, ev broker.Event)
}

type Game struct {
	db     *sql.DB
	logger *slog.Logger
	events Publisher
}

// New returns a Game. events may be nil.
func New(db *sql.DB, logger *slog.Logger, events Publisher) *Game {
	return &Game{db: db, logger: logger, events: events}
}

type round struct {
	ID        int64
	Status    colorwar.RoundStatus
	Winner    sql.NullInt64
	StartedAt string
	Ended     bool
}

func (g *Game) current(ctx context.Context) (round, bool, error) {
	var r round
	err := g.db.QueryRowContext(ctx, `
		SELECT r.id, r.status, r.winner, r.started_at, r.ended_at IS NOT NULL
		FROM current_rounds c
		JOIN spinner_rounds r ON r.id = c.spinner_round
		WHERE c.id = 1
	`).Scan(&r.ID, &r.Status, &r.Winner, &r.StartedAt, &r.Ended)
	if errors.Is(err, sql.ErrNoRows) {
		return round{}, false, nil
	}
	if err != nil {
		return round{}, false, fmt.Errorf("loading current round: %w", err)
	}
	return r, true, nil
}

func (g *Game) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (g *Game) publish(typ string) {
	if g.events != nil {
		g.events.Publish(Topic, broker.Event{Type: typ})
	}
}

// Start closes the current round and opens a fresh running one. Team
// counters and every player's contribution and won flag are reset.
func (g *Game) Start(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	_, err := g.exec(ctx, `
		UPDATE spinner_rounds SET ended_at = `+now+`
		WHERE id = (SELECT spinner_round FROM current_rounds WHERE id = 1) AND ended_at IS NULL
	`)
	if err != nil {
		return colorwar.Stats{}, fmt.Errorf("closing previous round: %w", err)
	}

	var id int64
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO spinner_rounds (status, started_at) VALUES (?, `+now+`)
		RETURNING id
	`, int(colorwar.StatusRunning)).Scan(&id)
	if err != nil {
		return colorwar.Stats{}, fmt.Errorf("inserting round: %w", err)
	}

	resets := []struct {
		what  string
		query string
		args  []any
	}{
		{"pointing at new round", `UPDATE current_rounds SET spinner_round = ? WHERE id = 1`, []any{id}},
		{"resetting team counters", `UPDATE teams SET counter = 0`, nil},
		{"resetting contributions", `UPDATE sessions SET counter = 0, winner = 0 WHERE counter <> 0 OR winner <> 0`, nil},
	}
	for _, s := range resets {
		if _, err := g.exec(ctx, s.query, s.args...); err != nil {
			return colorwar.Stats{}, fmt.Errorf("%s: %w", s.what, err)
		}
	}

	g.logger.Info("spinner round started", "round", id)
	g.publish("started")
	return g.Stats(ctx, sess)
}

// Click counts one click for the caller's team and the caller, but only
// while the current round is running. The stats snapshot is returned either
// way; RoundActive tells the two cases apart.
func (g *Game) Click(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	r, ok, err := g.current(ctx)
	if err != nil {
		return colorwar.Stats{}, err
	}
	if ok && r.Status == colorwar.StatusRunning {
		if _, err := g.exec(ctx, `UPDATE teams SET counter = counter + 1 WHERE team = ?`, sess.Team); err != nil {
			return colorwar.Stats{}, fmt.Errorf("counting team click: %w", err)
		}
		if _, err := g.exec(ctx, `UPDATE sessions SET counter = counter + 1 WHERE cookie = ?`, sess.Cookie); err != nil {
			return colorwar.Stats{}, fmt.Errorf("counting player click: %w", err)
		}
		g.publish("click")
	}
	return g.Stats(ctx, sess)
}

// Pause stamps the winner and stops the round without closing it.
func (g *Game) Pause(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	if err := g.settle(ctx, false); err != nil {
		return colorwar.Stats{}, err
	}
	return g.Stats(ctx, sess)
}

// Stop stamps the winner and closes the round for good.
func (g *Game) Stop(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	if err := g.settle(ctx, true); err != nil {
		return colorwar.Stats{}, err
	}
	return g.Stats(ctx, sess)
}

func (g *Game) settle(ctx context.Context, end bool) error {
	r, ok, err := g.current(ctx)
	if err != nil || !ok {
		return err
	}

	counters, err := g.teams(ctx)
	if err != nil {
		return err
	}
	winner := colorwar.PickWinner(counters)
	closing := 0
	if end {
		closing = 1
	}

	_, err = g.exec(ctx, `
		UPDATE spinner_rounds
		SET status = ?, winner = ?,
			ended_at = CASE WHEN ? THEN COALESCE(ended_at, `+now+`) ELSE ended_at END
		WHERE id = ?
	`, int(colorwar.StatusStopped), winner, closing, r.ID)
	if err != nil {
		return fmt.Errorf("stamping winner: %w", err)
	}

	if _, err := g.exec(ctx, `UPDATE sessions SET winner = 0 WHERE winner <> 0`); err != nil {
		return fmt.Errorf("clearing won flags: %w", err)
	}
	flagged, err := g.exec(ctx, `
		UPDATE sessions SET winner = 1
		WHERE cookie IN (
			SELECT cookie FROM sessions
			WHERE team = ?
			ORDER BY counter DESC, created_at
			LIMIT ?
		)
	`, winner, TopContributors)
	if err != nil {
		return fmt.Errorf("flagging top contributors: %w", err)
	}

	g.logger.Info("spinner winner", "round", r.ID, "team", winner, "flagged", flagged, "ended", end)
	if end {
		g.publish("stopped")
	} else {
		g.publish("paused")
	}
	return nil
}

// Resume clears the winner and continues the same scoring period. A round
// that was stopped cannot be resumed.
func (g *Game) Resume(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	r, ok, err := g.current(ctx)
	if err != nil {
		return colorwar.Stats{}, err
	}
	if ok {
		n, err := g.exec(ctx, `
			UPDATE spinner_rounds SET status = ?, winner = NULL
			WHERE id = ? AND ended_at IS NULL
		`, int(colorwar.StatusRunning), r.ID)
		if err != nil {
			return colorwar.Stats{}, fmt.Errorf("resuming round: %w", err)
		}
		if n > 0 {
			if _, err := g.exec(ctx, `UPDATE sessions SET winner = 0 WHERE winner <> 0`); err != nil {
				return colorwar.Stats{}, fmt.Errorf("clearing won flags: %w", err)
			}
			g.publish("resumed")
		}
	}
	return g.Stats(ctx, sess)
}

// Show switches the round to the results screen.
func (g *Game) Show(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	return g.setStatus(ctx, sess, "shown", `?`, int(colorwar.StatusShown))
}

// Hide leaves the results screen. A round with a winner stamp (paused or
// closed) goes back to stopped; only Resume clears the stamp and restarts it.
func (g *Game) Hide(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	return g.setStatus(ctx, sess, "hidden",
		`CASE WHEN winner IS NULL AND ended_at IS NULL THEN ? ELSE ? END`,
		int(colorwar.StatusRunning), int(colorwar.StatusStopped))
}

func (g *Game) setStatus(ctx context.Context, sess colorwar.Session, typ, expr string, args ...any) (colorwar.Stats, error) {
	r, ok, err := g.current(ctx)
	if err != nil {
		return colorwar.Stats{}, err
	}
	if ok {
		args = append(args, r.ID)
		if _, err := g.exec(ctx, `UPDATE spinner_rounds SET status = `+expr+` WHERE id = ?`, args...); err != nil {
			return colorwar.Stats{}, fmt.Errorf("setting status: %w", err)
		}
		g.publish(typ)
	}
	return g.Stats(ctx, sess)
}

func (g *Game) teams(ctx context.Context) ([]colorwar.TeamCounter, error) {
	counters := make([]colorwar.TeamCounter, 0, colorwar.TeamCount)
	err := database.Each(ctx, g.db, `SELECT team, counter FROM teams ORDER BY team`, func(rows *sql.Rows) error {
		var c colorwar.TeamCounter
		if err := rows.Scan(&c.Color, &c.Counter); err != nil {
			return err
		}
		counters = append(counters, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading team counters: %w", err)
	}
	return counters, nil
}

// Stats is the read model: team counters, round state and the caller's own
// contribution.
func (g *Game) Stats(ctx context.Context, sess colorwar.Session) (colorwar.Stats, error) {
	counters, err := g.teams(ctx)
	if err != nil {
		return colorwar.Stats{}, err
	}
	st := colorwar.Stats{Colors: counters, Color: sess.Team}

	r, ok, err := g.current(ctx)
	if err != nil {
		return colorwar.Stats{}, err
	}
	if ok {
		st.Status = r.Status
		st.StartTime = r.StartedAt
		st.RoundActive = r.Status == colorwar.StatusRunning
		if r.Winner.Valid {
			st.WinningColor = int(r.Winner.Int64)
		}
	}

	err = g.db.QueryRowContext(ctx, `
		SELECT counter, winner FROM sessions WHERE cookie = ?
	`, sess.Cookie).Scan(&st.Contribution, &st.Winner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return colorwar.Stats{}, fmt.Errorf("loading contribution: %w", err)
	}
	return st, nil
}
