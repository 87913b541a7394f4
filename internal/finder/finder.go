// Package finder implements the beacon scavenger hunt: admins configure a
// round and a set of beacons, players report the signal strength of whatever
// they can hear and claim a finishing place once they have found enough.
package finder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/database"
)

const Topic = "finder"

const now = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

var (
	// ErrNoRound is returned by Register when no round has been started.
	ErrNoRound = errors.New("no current round")
	// ErrNotQualified is returned by Register when the player has found fewer
	// beacons than the round requires.
	ErrNotQualified = errors.New("not enough beacons discovered")
	// ErrAlreadyRegistered is returned by Register together with the place
	// stored by the player's first registration.
	ErrAlreadyRegistered = errors.New("already registered")
)

const (
	statusStopped = 0
	statusRunning = 1
)

type Publisher interface {
	Publish(topic string, ev broker.Event)
}

type Option func(*Game)

// WithHintPicker replaces the random choice of the hint index returned by
// Config. pick receives the number of valid hints, always > 0.
func WithHintPicker(pick func(n int) int) Option {
	return func(g *Game) { g.pickHint = pick }
}

type Game struct {
	db       *sql.DB
	logger   *slog.Logger
	events   Publisher
	pickHint func(n int) int
}

// New returns a Game. events may be nil.
func New(db *sql.DB, logger *slog.Logger, events Publisher, opts ...Option) *Game {
	g := &Game{db: db, logger: logger, events: events, pickHint: rand.IntN}
	for _, o := range opts {
		o(g)
	}
	return g
}

type Status struct {
	StartTime string `json:"startTime"`
	Status    int    `json:"status"`
}

type Config struct {
	Index         int             `json:"index"`
	ActiveBeacons int             `json:"activeBeacons"`
	WinnerCount   int             `json:"winnerCount"`
	Hints         []colorwar.Hint `json:"hints"`
	Facts         []string        `json:"facts"`
}

type Proximity struct {
	Discovered []int           `json:"discovered"`
	Near       []colorwar.Near `json:"near"`
}

type Registration struct {
	Winner            int    `json:"winner"`
	Message           string `json:"message"`
	Place             int    `json:"place"`
	WinnerCount       int    `json:"winnerCount"`
	AlreadyRegistered bool   `json:"alreadyRegistered,omitempty"`
}

type round struct {
	ID     int64
	Status int
	colorwar.RoundConfig
}

func (g *Game) current(ctx context.Context) (round, bool, error) {
	var r round
	err := g.db.QueryRowContext(ctx, `
		SELECT r.id, r.status, r.winner_count, r.winner_message, r.loser_message
		FROM current_rounds c
		JOIN finder_rounds r ON r.id = c.finder_round
		WHERE c.id = 1
	`).Scan(&r.ID, &r.Status, &r.WinnerCount, &r.WinnerMessage, &r.LoserMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return round{}, false, nil
	}
	if err != nil {
		return round{}, false, fmt.Errorf("loading current round: %w", err)
	}
	return r, true, nil
}

func (g *Game) publish(typ string) {
	if g.events != nil {
		g.events.Publish(Topic, broker.Event{Type: typ})
	}
}

// Start closes the current round and opens a new running one.
func (g *Game) Start(ctx context.Context, cfg colorwar.RoundConfig) error {
	if cfg.WinnerCount < 0 {
		return fmt.Errorf("%w: negative winner count", colorwar.ErrMalformedInput)
	}

	_, err := g.db.ExecContext(ctx, `
		UPDATE finder_rounds SET status = ?, ended_at = COALESCE(ended_at, `+now+`)
		WHERE id = (SELECT finder_round FROM current_rounds WHERE id = 1)
	`, statusStopped)
	if err != nil {
		return fmt.Errorf("closing previous round: %w", err)
	}

	var id int64
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO finder_rounds (status, started_at, winner_count, winner_message, loser_message)
		VALUES (?, `+now+`, ?, ?, ?)
		RETURNING id
	`, statusRunning, cfg.WinnerCount, cfg.WinnerMessage, cfg.LoserMessage).Scan(&id)
	if err != nil {
		return fmt.Errorf("inserting round: %w", err)
	}

	if _, err := g.db.ExecContext(ctx, `UPDATE current_rounds SET finder_round = ? WHERE id = 1`, id); err != nil {
		return fmt.Errorf("pointing at new round: %w", err)
	}

	g.logger.Info("finder round started", "round", id, "winner_count", cfg.WinnerCount)
	g.publish("started")
	return nil
}

// Stop ends the current round. Without a round it does nothing.
func (g *Game) Stop(ctx context.Context) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE finder_rounds SET status = ?, ended_at = COALESCE(ended_at, `+now+`)
		WHERE id = (SELECT finder_round FROM current_rounds WHERE id = 1)
	`, statusStopped)
	if err != nil {
		return fmt.Errorf("stopping round: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		g.logger.Info("finder round stopped")
		g.publish("stopped")
	}
	return nil
}

// AddBeacon registers a beacon. The pseudonym clients advertise is derived
// from the name here, never supplied by the caller.
func (g *Game) AddBeacon(ctx context.Context, b colorwar.Beacon) error {
	active := 0
	if b.Active {
		active = 1
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO finder_beacons (code, name, hashed_name, threshold, active)
		VALUES (?, ?, ?, ?, ?)
	`, b.Code, b.Name, colorwar.HashName(b.Name), b.Threshold, active)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: beacon %q already exists", colorwar.ErrMalformedInput, b.Name)
	}
	if err != nil {
		return fmt.Errorf("adding beacon: %w", err)
	}
	g.logger.Info("beacon added", "code", b.Code, "name", b.Name, "active", b.Active)
	return nil
}

func (g *Game) AddHint(ctx context.Context, h colorwar.Hint) error {
	_, err := g.db.ExecContext(ctx, `INSERT INTO finder_hints (code, hint) VALUES (?, ?)`, h.Code, h.Hint)
	if err != nil {
		return fmt.Errorf("adding hint: %w", err)
	}
	return nil
}

func (g *Game) AddFact(ctx context.Context, fact string) error {
	if fact == "" {
		return fmt.Errorf("%w: empty fact", colorwar.ErrMalformedInput)
	}
	_, err := g.db.ExecContext(ctx, `INSERT INTO finder_facts (fact) VALUES (?)`, fact)
	if err != nil {
		return fmt.Errorf("adding fact: %w", err)
	}
	return nil
}

// Status reports the current round's start time and status; the zero value
// when no round was started.
func (g *Game) Status(ctx context.Context) (Status, error) {
	var st Status
	err := g.db.QueryRowContext(ctx, `
		SELECT r.started_at, r.status
		FROM current_rounds c
		JOIN finder_rounds r ON r.id = c.finder_round
		WHERE c.id = 1
	`).Scan(&st.StartTime, &st.Status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Status{}, fmt.Errorf("loading status: %w", err)
	}
	return st, nil
}

// Config returns what clients need to render the hunt: valid hints and
// facts, a random hint index, the active beacon count and the current
// round's winner count.
func (g *Game) Config(ctx context.Context) (Config, error) {
	cfg := Config{Hints: []colorwar.Hint{}, Facts: []string{}}

	err := database.Each(ctx, g.db, `SELECT code, hint FROM finder_hints WHERE valid = 1 ORDER BY id`, func(rows *sql.Rows) error {
		var h colorwar.Hint
		if err := rows.Scan(&h.Code, &h.Hint); err != nil {
			return err
		}
		cfg.Hints = append(cfg.Hints, h)
		return nil
	})
	if err != nil {
		return Config{}, fmt.Errorf("loading hints: %w", err)
	}

	err = database.Each(ctx, g.db, `SELECT fact FROM finder_facts WHERE valid = 1 ORDER BY id`, func(rows *sql.Rows) error {
		var f string
		if err := rows.Scan(&f); err != nil {
			return err
		}
		cfg.Facts = append(cfg.Facts, f)
		return nil
	})
	if err != nil {
		return Config{}, fmt.Errorf("loading facts: %w", err)
	}

	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM finder_beacons WHERE active <> 0`).Scan(&cfg.ActiveBeacons); err != nil {
		return Config{}, fmt.Errorf("counting beacons: %w", err)
	}

	r, ok, err := g.current(ctx)
	if err != nil {
		return Config{}, err
	}
	if ok {
		cfg.WinnerCount = r.WinnerCount
	}

	if n := len(cfg.Hints); n > 0 {
		cfg.Index = g.pickHint(n)
	}
	return cfg, nil
}

func (g *Game) beacons(ctx context.Context, reports []colorwar.Report) ([]colorwar.Beacon, error) {
	seen := make(map[string]bool, len(reports))
	names := make([]any, 0, 2*len(reports))
	for _, r := range reports {
		if !seen[r.Name] {
			seen[r.Name] = true
			names = append(names, r.Name)
		}
	}
	in := database.Placeholders(len(names))
	names = append(names, names...)

	var beacons []colorwar.Beacon
	err := database.Each(ctx, g.db, `
		SELECT code, name, hashed_name, threshold, active FROM finder_beacons
		WHERE hashed_name IN (`+in+`) OR name IN (`+in+`)
		ORDER BY code, id
	`, func(rows *sql.Rows) error {
		var b colorwar.Beacon
		if err := rows.Scan(&b.Code, &b.Name, &b.HashedName, &b.Threshold, &b.Active); err != nil {
			return err
		}
		beacons = append(beacons, b)
		return nil
	}, names...)
	if err != nil {
		return nil, fmt.Errorf("looking up beacons: %w", err)
	}
	return beacons, nil
}

func (g *Game) discoveries(ctx context.Context, cookie string, roundID int64) (map[int]bool, error) {
	found := make(map[int]bool)
	err := database.Each(ctx, g.db, `
		SELECT code FROM finder_results WHERE cookie = ? AND round = ?
	`, func(rows *sql.Rows) error {
		var code int
		if err := rows.Scan(&code); err != nil {
			return err
		}
		found[code] = true
		return nil
	}, cookie, roundID)
	if err != nil {
		return nil, fmt.Errorf("loading discoveries: %w", err)
	}
	return found, nil
}

// Proximity classifies the reported beacons as discovered or near and records
// new discoveries for the current round. Reporting the same beacon again is
// harmless: it stays discovered and no second row is written. Qualifying
// beacons are always reported as discovered, but they are only stored while
// the round is running.
func (g *Game) Proximity(ctx context.Context, sess colorwar.Session, reports []colorwar.Report) (Proximity, error) {
	out := Proximity{Discovered: []int{}, Near: []colorwar.Near{}}
	if len(reports) == 0 {
		return out, nil
	}
	if len(reports) > colorwar.MaxReports {
		return Proximity{}, fmt.Errorf("%w: %d proximity entries, at most %d",
			colorwar.ErrMalformedInput, len(reports), colorwar.MaxReports)
	}

	beacons, err := g.beacons(ctx, reports)
	if err != nil {
		return Proximity{}, err
	}
	discovered, near := colorwar.Partition(beacons, reports)

	r, ok, err := g.current(ctx)
	if err != nil {
		return Proximity{}, err
	}
	previous := map[int]bool{}
	if ok {
		if previous, err = g.discoveries(ctx, sess.Cookie, r.ID); err != nil {
			return Proximity{}, err
		}
	}

	if ok && r.Status == statusRunning {
		stored := 0
		for _, d := range discovered {
			if previous[d.Code] {
				continue
			}
			res, err := g.db.ExecContext(ctx, `
				INSERT INTO finder_results (cookie, code, signal, round, found_at)
				VALUES (?, ?, ?, ?, `+now+`)
				ON CONFLICT (cookie, code, round) DO NOTHING
			`, sess.Cookie, d.Code, d.Signal, r.ID)
			if err != nil {
				return Proximity{}, fmt.Errorf("recording discovery: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				stored++
			}
		}
		if stored > 0 {
			g.logger.Info("beacons discovered", "name", sess.Name, "round", r.ID, "new", stored)
			g.publish("discovered")
		}
	}

	codes, stillNear := colorwar.Merge(discovered, near, previous)
	out.Discovered = codes
	out.Near = append(out.Near, stillNear...)
	return out, nil
}

// Register claims a finishing place for a player who has discovered at least
// WinnerCount beacons in the current round. The place is 1 + the number of
// earlier finishers. A player holds at most one place per round: the second
// claim fails with ErrAlreadyRegistered and returns the stored place.
func (g *Game) Register(ctx context.Context, sess colorwar.Session) (Registration, error) {
	r, ok, err := g.current(ctx)
	if err != nil {
		return Registration{}, err
	}
	if !ok {
		return Registration{}, ErrNoRound
	}
	reg := Registration{WinnerCount: r.WinnerCount}

	var found int
	err = g.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM finder_results WHERE cookie = ? AND round = ?
	`, sess.Cookie, r.ID).Scan(&found)
	if err != nil {
		return Registration{}, fmt.Errorf("counting discoveries: %w", err)
	}
	if found < r.WinnerCount {
		return reg, ErrNotQualified
	}

	var earlier int
	err = g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM finder_winners WHERE round = ?`, r.ID).Scan(&earlier)
	if err != nil {
		return Registration{}, fmt.Errorf("counting winners: %w", err)
	}
	place := earlier + 1

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO finder_winners (cookie, uniq, name, round, place, won_at)
		VALUES (?, ?, ?, ?, ?, `+now+`)
	`, sess.Cookie, fmt.Sprintf("%s_%d", sess.Cookie, r.ID), sess.Name, r.ID, place)
	if database.IsUniqueViolation(err) {
		err = g.db.QueryRowContext(ctx, `
			SELECT place FROM finder_winners WHERE cookie = ? AND round = ?
		`, sess.Cookie, r.ID).Scan(&place)
		if err != nil {
			return Registration{}, fmt.Errorf("loading stored place: %w", err)
		}
		g.logger.Debug("duplicate registration", "name", sess.Name, "round", r.ID, "place", place)
		reg.fill(r.RoundConfig, place)
		reg.AlreadyRegistered = true
		return reg, ErrAlreadyRegistered
	}
	if err != nil {
		return Registration{}, fmt.Errorf("registering winner: %w", err)
	}

	reg.fill(r.RoundConfig, place)
	g.logger.Info("player registered", "name", sess.Name, "round", r.ID, "place", place, "winner", reg.Winner == 1)
	g.publish("registered")
	return reg, nil
}

func (reg *Registration) fill(cfg colorwar.RoundConfig, place int) {
	reg.Place = place
	if place <= cfg.WinnerCount {
		reg.Winner = 1
		reg.Message = cfg.WinnerMessage
	} else {
		reg.Message = cfg.LoserMessage
	}
}
