package colorwar

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashName is the stable pseudonym clients advertise instead of a beacon's
// raw name.
func HashName(name string) string {
	return strconv.FormatUint(xxhash.Sum64String(name), 16)
}

// Sighting is a known beacon matched against a report.
type Sighting struct {
	Code   int
	Signal int
}

// Partition splits sightings into discovered (signal at or above threshold)
// and near beacons. Near strength is 100 - (threshold - signal).
func Partition(beacons []Beacon, reports []Report) (discovered []Sighting, near []Near) {
	signals := make(map[string]int, len(reports))
	for _, r := range reports {
		signals[r.Name] = r.Signal
	}

	for _, b := range beacons {
		signal, ok := signals[b.HashedName]
		if !ok {
			signal, ok = signals[b.Name]
		}
		if !ok {
			continue
		}
		if signal >= b.Threshold {
			discovered = append(discovered, Sighting{Code: b.Code, Signal: signal})
		} else {
			near = append(near, Near{Code: b.Code, Strength: 100 - (b.Threshold - signal)})
		}
	}
	return discovered, near
}

// Merge folds previously stored discoveries into the current partition.
// Returned codes are sorted and unique; near drops anything already found.
func Merge(discovered []Sighting, near []Near, previous map[int]bool) ([]int, []Near) {
	codes := make([]int, 0, len(discovered)+len(previous))
	for code := range previous {
		codes = append(codes, code)
	}
	for _, d := range discovered {
		codes = append(codes, d.Code)
	}
	slices.Sort(codes)
	codes = slices.Compact(codes)

	found := make(map[int]bool, len(codes))
	for _, c := range codes {
		found[c] = true
	}
	stillNear := make([]Near, 0, len(near))
	for _, n := range near {
		if !found[n.Code] {
			stillNear = append(stillNear, n)
		}
	}
	return codes, stillNear
}
