package spinner_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/database/dbtest"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(topic string, ev broker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, topic+":"+ev.Type)
}

type fixture struct {
	db     *sql.DB
	game   *spinner.Game
	events *recorder
	admin  colorwar.Session
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	events := &recorder{}
	f := &fixture{db: db, game: spinner.New(db, dbtest.Logger(), events), events: events}
	f.admin = f.player(t, 1)
	return f
}

// player creates a session on the given team.
func (f *fixture) player(t *testing.T, team int) colorwar.Session {
	t.Helper()
	m := session.NewManager(f.db, dbtest.Logger(), session.WithTeamPicker(func() int { return team }))
	sess, _, err := m.Resolve(context.Background(), "", "p", "")
	require.NoError(t, err)
	return sess
}

func counter(st colorwar.Stats, team int) int {
	for _, c := range st.Colors {
		if c.Color == team {
			return c.Counter
		}
	}
	return -1
}

func clicks(t *testing.T, g *spinner.Game, sess colorwar.Session, n int) colorwar.Stats {
	t.Helper()
	var st colorwar.Stats
	var err error
	for range n {
		st, err = g.Click(context.Background(), sess)
		require.NoError(t, err)
	}
	return st
}

func TestStatsWithoutRound(t *testing.T) {
	f := setup(t)

	st, err := f.game.Stats(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Len(t, st.Colors, colorwar.TeamCount)
	assert.Equal(t, colorwar.StatusStopped, st.Status)
	assert.False(t, st.RoundActive)
	assert.Equal(t, 1, st.Color)
}

func TestClickIgnoredWithoutRunningRound(t *testing.T) {
	f := setup(t)
	p := f.player(t, 2)

	st := clicks(t, f.game, p, 3)
	assert.Equal(t, 0, counter(st, 2))
	assert.Equal(t, 0, st.Contribution)
	assert.False(t, st.RoundActive)
	assert.Empty(t, f.events.events)
}

func TestClickCountsWhileRunning(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.player(t, 2)

	st, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusRunning, st.Status)
	assert.NotEmpty(t, st.StartTime)

	st = clicks(t, f.game, p, 7)
	assert.Equal(t, 7, counter(st, 2))
	assert.Equal(t, 7, st.Contribution)
	assert.True(t, st.RoundActive)
	assert.Equal(t, 2, st.Color)
	assert.Contains(t, f.events.events, "spinner:click")
}

func TestTwoNewSessionsClickForTheirTeams(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)

	three := f.player(t, 3)
	one := f.player(t, 1)

	_, err = f.game.Click(ctx, three)
	require.NoError(t, err)
	_, err = f.game.Click(ctx, one)
	require.NoError(t, err)

	st3, err := f.game.Stats(ctx, three)
	require.NoError(t, err)
	st1, err := f.game.Stats(ctx, one)
	require.NoError(t, err)

	assert.Equal(t, 1, counter(st3, 3))
	assert.Equal(t, 1, counter(st3, 1))
	assert.Equal(t, 1, st3.Contribution)
	assert.Equal(t, 1, st1.Contribution)
}

func TestPauseResumePreservesCounters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	red := f.player(t, 1)
	blue := f.player(t, 4)

	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	clicks(t, f.game, red, 2)
	clicks(t, f.game, blue, 5)

	st, err := f.game.Pause(ctx, blue)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusStopped, st.Status)
	assert.Equal(t, 4, st.WinningColor)
	assert.Equal(t, 1, st.Winner, "top contributor of the winning team is flagged")

	st = clicks(t, f.game, blue, 3)
	assert.Equal(t, 5, counter(st, 4), "clicks while paused are ignored")

	st, err = f.game.Resume(ctx, blue)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusRunning, st.Status)
	assert.Equal(t, 0, st.WinningColor)
	assert.Equal(t, 0, st.Winner)
	assert.Equal(t, 2, counter(st, 1))
	assert.Equal(t, 5, counter(st, 4))
	assert.Equal(t, 5, st.Contribution)

	st = clicks(t, f.game, red, 1)
	assert.Equal(t, 3, counter(st, 1))
}

func TestStopClosesRoundUntilStart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.player(t, 5)

	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	clicks(t, f.game, p, 4)

	st, err := f.game.Stop(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 5, st.WinningColor)
	assert.Equal(t, 4, counter(st, 5))

	var ended bool
	require.NoError(t, f.db.QueryRow(`
		SELECT ended_at IS NOT NULL FROM spinner_rounds
		WHERE id = (SELECT spinner_round FROM current_rounds)
	`).Scan(&ended))
	assert.True(t, ended)

	st, err = f.game.Resume(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusStopped, st.Status, "a stopped round cannot be resumed")

	st = clicks(t, f.game, p, 2)
	assert.Equal(t, 4, counter(st, 5))

	st, err = f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 0, counter(st, 5), "start is a hard reset")
	st = clicks(t, f.game, p, 1)
	assert.Equal(t, 1, counter(st, 5))
	assert.Equal(t, 1, st.Contribution)
}

func TestStartKeepsSingleCurrentRound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.game.Start(ctx, f.admin)
		require.NoError(t, err)
	}

	var open, total int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM spinner_rounds WHERE ended_at IS NULL`).Scan(&open))
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM spinner_rounds`).Scan(&total))
	assert.Equal(t, 1, open)
	assert.Equal(t, 3, total)
}

func TestWinnerTieBreaksOnLowestTeam(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	green := f.player(t, 3)
	yellow := f.player(t, 2)

	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	clicks(t, f.game, green, 3)
	clicks(t, f.game, yellow, 3)

	st, err := f.game.Pause(ctx, green)
	require.NoError(t, err)
	assert.Equal(t, 2, st.WinningColor)
	assert.Equal(t, 0, st.Winner)
}

func TestOnlyTopTenContributorsWin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)

	players := make([]colorwar.Session, 12)
	for i := range players {
		players[i] = f.player(t, 2)
		clicks(t, f.game, players[i], i+1)
	}

	_, err = f.game.Stop(ctx, f.admin)
	require.NoError(t, err)

	var flagged int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE winner = 1`).Scan(&flagged))
	assert.Equal(t, spinner.TopContributors, flagged)

	low, err := f.game.Stats(ctx, players[0])
	require.NoError(t, err)
	assert.Equal(t, 0, low.Winner)
	high, err := f.game.Stats(ctx, players[11])
	require.NoError(t, err)
	assert.Equal(t, 1, high.Winner)
}

func TestShowHide(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.player(t, 1)

	_, err := f.game.Start(ctx, f.admin)
	require.NoError(t, err)
	clicks(t, f.game, p, 2)

	st, err := f.game.Show(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusShown, st.Status)
	assert.False(t, st.RoundActive)

	st = clicks(t, f.game, p, 2)
	assert.Equal(t, 2, counter(st, 1), "clicks while shown are ignored")

	st, err = f.game.Hide(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusRunning, st.Status)
	assert.Equal(t, 2, counter(st, 1))

	_, err = f.game.Pause(ctx, p)
	require.NoError(t, err)
	_, err = f.game.Show(ctx, p)
	require.NoError(t, err)
	st, err = f.game.Hide(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusStopped, st.Status, "hiding a paused round keeps it paused")
	assert.False(t, st.RoundActive)
	assert.Equal(t, 1, st.WinningColor)
	assert.Equal(t, 1, st.Winner)

	st = clicks(t, f.game, p, 1)
	assert.Equal(t, 2, counter(st, 1), "clicks after hiding a paused round are ignored")

	st, err = f.game.Resume(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusRunning, st.Status)
	assert.Equal(t, 0, st.Winner)

	_, err = f.game.Stop(ctx, p)
	require.NoError(t, err)
	_, err = f.game.Show(ctx, p)
	require.NoError(t, err)
	st, err = f.game.Hide(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, colorwar.StatusStopped, st.Status, "hiding a closed round does not reopen it")
}

func TestAdminOpsWithoutRoundAreNoops(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, op := range []func(context.Context, colorwar.Session) (colorwar.Stats, error){
		f.game.Pause, f.game.Resume, f.game.Stop, f.game.Show, f.game.Hide,
	} {
		st, err := op(ctx, f.admin)
		require.NoError(t, err)
		assert.Equal(t, colorwar.StatusStopped, st.Status)
	}

	var flagged int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE winner = 1`).Scan(&flagged))
	assert.Zero(t, flagged)
}
