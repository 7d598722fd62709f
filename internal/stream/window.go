package stream

import (
	"cellar_monitor/internal/models"
)

// DefaultMaxPoints caps every series when no explicit limit is configured.
const DefaultMaxPoints = 500

// Merge appends the samples of batch whose timestamps are not yet in series,
// keeping batch order, and returns at most maxPoints of the newest entries.
// Neither argument is modified.
func Merge(series models.Series, batch []models.Sample, maxPoints int) models.Series {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	seen := make(map[string]struct{}, len(series)+len(batch))
	for _, s := range series {
		seen[s.Timestamp] = struct{}{}
	}

	out := make(models.Series, len(series), len(series)+len(batch))
	copy(out, series)
	for _, s := range batch {
		if _, dup := seen[s.Timestamp]; dup {
			continue
		}
		seen[s.Timestamp] = struct{}{}
		out = append(out, s)
	}

	if len(out) > maxPoints {
		out = out[len(out)-maxPoints:]
	}
	return out
}

// Store keeps one rolling window per sensor kind. Series returned by Store
// are never mutated afterwards; each Merge swaps in a fresh slice.
type Store struct {
	maxPoints int
	series    map[models.SensorKind]models.Series
}

// NewStore returns an empty store capped at maxPoints per series.
func NewStore(maxPoints int) *Store {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Store{
		maxPoints: maxPoints,
		series:    make(map[models.SensorKind]models.Series, len(models.SensorKinds)),
	}
}

// Merge folds batch into the series of kind and returns the new series.
func (s *Store) Merge(kind models.SensorKind, batch []models.Sample) models.Series {
	next := Merge(s.series[kind], batch, s.maxPoints)
	s.series[kind] = next
	return next
}

// Series returns the current window for kind.
func (s *Store) Series(kind models.SensorKind) models.Series {
	return s.series[kind]
}

// Latest returns the most recently inserted sample for kind.
func (s *Store) Latest(kind models.SensorKind) (models.Sample, bool) {
	return s.series[kind].Last()
}

// Ready reports whether every sensor kind has at least one sample.
func (s *Store) Ready() bool {
	for _, k := range models.SensorKinds {
		if len(s.series[k]) == 0 {
			return false
		}
	}
	return true
}

// MaxPoints returns the configured cap.
func (s *Store) MaxPoints() int { return s.maxPoints }
