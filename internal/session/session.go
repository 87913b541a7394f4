// Package session maps the opaque cookie token to a player identity and
// answers whether the caller holds the admin secret.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/colorwar/internal/colorwar"
)

// DefaultName is used when a new player does not supply one.
const DefaultName = "Unknown"

var ErrNotFound = errors.New("session not found")

type Option func(*Manager)

// WithTeamPicker replaces the uniform random team assignment.
func WithTeamPicker(pick func() int) Option {
	return func(m *Manager) { m.pickTeam = pick }
}

// WithHashCost sets the bcrypt cost used by SetAdminSecret.
func WithHashCost(cost int) Option {
	return func(m *Manager) { m.hashCost = cost }
}

type Manager struct {
	db       *sql.DB
	logger   *slog.Logger
	pickTeam func() int
	hashCost int
}

func NewManager(db *sql.DB, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		db:       db,
		logger:   logger,
		pickTeam: func() int { return rand.IntN(colorwar.TeamCount) + 1 },
		hashCost: bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Resolve returns the session for cookie, creating a new one when the cookie
// is empty or unknown. The supplied name only applies to new sessions.
func (m *Manager) Resolve(ctx context.Context, cookie, name, password string) (colorwar.Session, bool, error) {
	if name == "" {
		name = DefaultName
	}

	if cookie != "" {
		sess, err := m.Lookup(ctx, cookie)
		if err == nil {
			sess.Password = password
			return sess, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return colorwar.Session{}, false, err
		}
		m.logger.Info("unknown cookie presented, creating session", "name", name)
	}

	sess, err := m.create(ctx, name)
	if err != nil {
		return colorwar.Session{}, false, err
	}
	sess.Password = password
	return sess, true, nil
}

func (m *Manager) Lookup(ctx context.Context, cookie string) (colorwar.Session, error) {
	sess := colorwar.Session{Cookie: cookie}
	err := m.db.QueryRowContext(ctx, `
		SELECT name, team FROM sessions WHERE cookie = ?
	`, cookie).Scan(&sess.Name, &sess.Team)
	if errors.Is(err, sql.ErrNoRows) {
		return colorwar.Session{}, ErrNotFound
	}
	if err != nil {
		return colorwar.Session{}, fmt.Errorf("looking up session: %w", err)
	}
	return sess, nil
}

func (m *Manager) create(ctx context.Context, name string) (colorwar.Session, error) {
	team := m.pickTeam()
	if team < 1 || team > colorwar.TeamCount {
		return colorwar.Session{}, fmt.Errorf("team %d out of range", team)
	}

	sess := colorwar.Session{Name: name, Team: team}
	err := m.db.QueryRowContext(ctx, `
		INSERT INTO sessions (cookie, name, team)
		VALUES (lower(hex(randomblob(16))), ?, ?)
		RETURNING cookie
	`, name, team).Scan(&sess.Cookie)
	if err != nil {
		return colorwar.Session{}, fmt.Errorf("creating session: %w", err)
	}

	m.logger.Debug("session created", "name", name, "team", team)
	return sess, nil
}

// Touch records the client platform hint last seen for the session.
func (m *Manager) Touch(ctx context.Context, sess colorwar.Session, machine string) error {
	if machine == "" {
		return nil
	}
	_, err := m.db.ExecContext(ctx, `
		UPDATE sessions SET machine = ? WHERE cookie = ? AND machine <> ?
	`, machine, sess.Cookie, machine)
	return err
}

// IsAdmin reports whether the password presented with the request matches
// the stored admin secret. An empty password never matches.
func (m *Manager) IsAdmin(ctx context.Context, sess colorwar.Session) (bool, error) {
	if sess.Password == "" {
		return false, nil
	}

	var hash string
	err := m.db.QueryRowContext(ctx, `
		SELECT secret_hash FROM auth WHERE user = ?
	`, colorwar.AdminUser).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading admin secret: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(sess.Password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("comparing admin secret: %w", err)
	}
}

// SetAdminSecret stores (or replaces) the admin secret for the root user.
func (m *Manager) SetAdminSecret(ctx context.Context, secret string) error {
	if secret == "" {
		return errors.New("admin secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), m.hashCost)
	if err != nil {
		return fmt.Errorf("hashing admin secret: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO auth (user, secret_hash) VALUES (?, ?)
		ON CONFLICT (user) DO UPDATE SET secret_hash = excluded.secret_hash
	`, colorwar.AdminUser, string(hash))
	if err != nil {
		return fmt.Errorf("storing admin secret: %w", err)
	}
	return nil
}
