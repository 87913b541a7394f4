// Package colorwar defines the core domain types shared by the spinner and
// finder games. It does no I/O.
package colorwar

import "errors"

// TeamCount is the number of competing colors. Teams are numbered 1..TeamCount.
const TeamCount = 5

// AdminUser is the only identity that can hold the admin secret.
const AdminUser = "root"

var (
	ErrUnauthorized   = errors.New("Unauthorized")
	ErrMalformedInput = errors.New("malformed input")
)

// Session is a player's durable identity as resolved from the cookie.
type Session struct {
	Cookie   string
	Name     string
	Team     int
	Password string
}

// RoundStatus is the state variable of a spinner round. It is three-valued:
// Shown gates result screens and is neither running nor stopped.
type RoundStatus int

const (
	StatusStopped RoundStatus = 0
	StatusRunning RoundStatus = 1
	StatusShown   RoundStatus = 2
)

func (s RoundStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusShown:
		return "shown"
	default:
		return "unknown"
	}
}

type TeamCounter struct {
	Color   int `json:"color"`
	Counter int `json:"counter"`
}

// Stats is the spinner read model returned by every spinner operation.
type Stats struct {
	Colors       []TeamCounter `json:"colors"`
	Status       RoundStatus   `json:"status"`
	StartTime    string        `json:"startTime"`
	RoundActive  bool          `json:"roundActive"`
	WinningColor int           `json:"winningColor,omitempty"`
	Color        int           `json:"color"`
	Contribution int           `json:"contribution"`
	Winner       int           `json:"winner"`
}

// Beacon is a physical marker players search for.
type Beacon struct {
	Code       int
	Name       string
	HashedName string
	Threshold  int
	Active     bool
}

// RoundConfig configures a finder round.
type RoundConfig struct {
	WinnerCount   int
	WinnerMessage string
	LoserMessage  string
}

// Report is one observed beacon signal from a client.
type Report struct {
	Name   string
	Signal int
}

type Hint struct {
	Code int    `json:"code"`
	Hint string `json:"hint"`
}

type Near struct {
	Code     int `json:"code"`
	Strength int `json:"strength"`
}

// PickWinner returns the team with the highest counter, preferring the lowest
// team id on ties. It returns 0 when counters is empty.
func PickWinner(counters []TeamCounter) int {
	winner, best := 0, -1
	for _, c := range counters {
		if c.Counter > best || (c.Counter == best && c.Color < winner) {
			winner, best = c.Color, c.Counter
		}
	}
	return winner
}
