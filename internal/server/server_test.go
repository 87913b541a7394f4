package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/colorwar/internal/broker"
	"github.com/playperu/colorwar/internal/database/dbtest"
	"github.com/playperu/colorwar/internal/finder"
	"github.com/playperu/colorwar/internal/session"
	"github.com/playperu/colorwar/internal/spinner"
)

const adminSecret = "s3cret"

type testServer struct {
	handler http.Handler
	events  *broker.Broker
	app     App
}

// newTestServer wires the full router over a fresh database. New sessions
// are assigned teams 1, 2, 3, ... in creation order.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	logger := dbtest.Logger()

	var next atomic.Int64
	sessions := session.NewManager(db, logger,
		session.WithHashCost(bcrypt.MinCost),
		session.WithTeamPicker(func() int { return int(next.Add(1)-1)%5 + 1 }),
	)
	if err := sessions.SetAdminSecret(context.Background(), adminSecret); err != nil {
		t.Fatalf("set admin secret: %v", err)
	}

	events := broker.New()
	app := App{
		Sessions: sessions,
		Spinner:  spinner.New(db, logger, events),
		Finder:   finder.New(db, logger, events, finder.WithHintPicker(func(int) int { return 0 })),
	}
	return &testServer{
		handler: newRouter(Options{}, logger, app, events),
		events:  events,
		app:     app,
	}
}

// player is a client that keeps its session cookie between requests.
type player struct {
	t        *testing.T
	srv      *testServer
	cookie   string
	password string
}

func (s *testServer) player(t *testing.T) *player {
	return &player{t: t, srv: s}
}

func (s *testServer) admin(t *testing.T) *player {
	return &player{t: t, srv: s, password: adminSecret}
}

func (p *player) get(path string, params ...string) (int, map[string]any) {
	p.t.Helper()

	q := url.Values{}
	for i := 0; i+1 < len(params); i += 2 {
		q.Set(params[i], params[i+1])
	}
	if p.password != "" {
		q.Set("password", p.password)
	}
	target := path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if p.cookie != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: p.cookie})
	}
	rec := httptest.NewRecorder()
	p.srv.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			p.cookie = c.Value
		}
	}

	var body map[string]any
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			p.t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return rec.Code, body
}

// mustOK fails unless the call answered 200 with result OK.
func (p *player) mustOK(path string, params ...string) map[string]any {
	p.t.Helper()
	code, body := p.get(path, params...)
	if code != http.StatusOK || body["result"] != resultOK {
		p.t.Fatalf("%s: status %d body %v, want OK", path, code, body)
	}
	return body
}

func num(t *testing.T, body map[string]any, key string) int {
	t.Helper()
	v, ok := body[key].(float64)
	if !ok {
		t.Fatalf("%s missing or not a number in %v", key, body)
	}
	return int(v)
}

func teamCounter(t *testing.T, body map[string]any, team int) int {
	t.Helper()
	colors, _ := body["colors"].([]any)
	for _, c := range colors {
		m := c.(map[string]any)
		if int(m["color"].(float64)) == team {
			return int(m["counter"].(float64))
		}
	}
	t.Fatalf("team %d missing from %v", team, body["colors"])
	return 0
}
