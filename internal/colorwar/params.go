package colorwar

import (
	"fmt"
	"strconv"
	"strings"
)

const fieldSep = "|||"

// ParseRoundConfig parses "winnerCount|||winnerMessage|||loserMessage".
func ParseRoundConfig(s string) (RoundConfig, error) {
	parts := strings.Split(s, fieldSep)
	if len(parts) != 3 {
		return RoundConfig{}, fmt.Errorf("%w: round config has %d fields: %q", ErrMalformedInput, len(parts), s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n < 0 {
		return RoundConfig{}, fmt.Errorf("%w: winner count %q", ErrMalformedInput, parts[0])
	}
	return RoundConfig{WinnerCount: n, WinnerMessage: parts[1], LoserMessage: parts[2]}, nil
}

// ParseBeacon parses "code,name,threshold,active". HashedName is left empty.
func ParseBeacon(s string) (Beacon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Beacon{}, fmt.Errorf("%w: beacon has %d fields: %q", ErrMalformedInput, len(parts), s)
	}
	ints := make([]int, 0, 3)
	for _, idx := range []int{0, 2, 3} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[idx]))
		if err != nil {
			return Beacon{}, fmt.Errorf("%w: beacon field %d %q", ErrMalformedInput, idx, parts[idx])
		}
		ints = append(ints, v)
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return Beacon{}, fmt.Errorf("%w: beacon name is empty", ErrMalformedInput)
	}
	return Beacon{Code: ints[0], Name: name, Threshold: ints[1], Active: ints[2] != 0}, nil
}

// ParseHint parses "code|||text".
func ParseHint(s string) (Hint, error) {
	code, text, ok := strings.Cut(s, fieldSep)
	if !ok {
		return Hint{}, fmt.Errorf("%w: hint %q", ErrMalformedInput, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return Hint{}, fmt.Errorf("%w: hint code %q", ErrMalformedInput, code)
	}
	return Hint{Code: n, Hint: text}, nil
}

// MaxReports bounds the beacon sightings accepted in one proximity report.
const MaxReports = 256

// ParseReports parses "name:signal,name:signal". An empty string yields no
// reports.
func ParseReports(s string) ([]Report, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	if len(fields) > MaxReports {
		return nil, fmt.Errorf("%w: %d proximity entries, at most %d", ErrMalformedInput, len(fields), MaxReports)
	}
	reports := make([]Report, 0, len(fields))
	for _, f := range fields {
		name, signal, ok := strings.Cut(f, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: proximity entry %q", ErrMalformedInput, f)
		}
		n, err := strconv.Atoi(strings.TrimSpace(signal))
		if err != nil {
			return nil, fmt.Errorf("%w: proximity signal %q", ErrMalformedInput, signal)
		}
		reports = append(reports, Report{Name: name, Signal: n})
	}
	return reports, nil
}
