package service

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"cellar_monitor/internal/models"
)

// ----------- Simulation constants -----------
const (
	StepFraction      = 0.08 // max random step as a fraction of the band width
	OvershootFraction = 0.5  // how far past the band a reading may wander
	RecvTimeLayout    = "2006-01-02T15:04:05.000Z"
	defaultSimHistory = 20
)

// SimulatorService stands in for the broker: every History call produces one
// new random-walk reading per attribute and returns the last N of them.
type SimulatorService struct {
	mu       sync.Mutex
	rng      *rand.Rand
	now      func() time.Time
	lastN    int
	channels map[string]*simChannel // keyed by broker attribute
}

type simChannel struct {
	value   float64
	lo, hi  float64 // wander limits
	step    float64
	lastTS  time.Time
	history []models.RawRecord
}

// NewSimulatorService seeds one channel per sensor attribute, starting at the
// middle of its band.
func NewSimulatorService(attrs map[models.SensorKind]string, bands map[models.SensorKind]models.ThresholdBand, lastN int, seed int64) *SimulatorService {
	if lastN <= 0 {
		lastN = defaultSimHistory
	}
	s := &SimulatorService{
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		lastN:    lastN,
		channels: make(map[string]*simChannel, len(attrs)),
	}
	for kind, attr := range attrs {
		b := bands[kind]
		span := b.Max - b.Min
		if span <= 0 {
			span = 1
		}
		s.channels[attr] = &simChannel{
			value: b.Min + span/2,
			lo:    b.Min - span*OvershootFraction,
			hi:    b.Max + span*OvershootFraction,
			step:  span * StepFraction,
		}
	}
	return s
}

// History advances attr by one reading and returns its recent records.
func (s *SimulatorService) History(ctx context.Context, attr string) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[attr]
	if !ok {
		return nil, fmt.Errorf("simulator: unknown attribute %q", attr)
	}

	ch.value = clamp(ch.value+(s.rng.Float64()*2-1)*ch.step, ch.lo, ch.hi)

	// Timestamps must stay unique even when polled within the same millisecond.
	ts := s.now().UTC().Truncate(time.Millisecond)
	if !ts.After(ch.lastTS) {
		ts = ch.lastTS.Add(time.Millisecond)
	}
	ch.lastTS = ts

	ch.history = append(ch.history, models.RawRecord{
		RecvTime:  ts.Format(RecvTimeLayout),
		AttrValue: strconv.FormatFloat(ch.value, 'f', 2, 64),
	})
	if len(ch.history) > s.lastN {
		ch.history = ch.history[len(ch.history)-s.lastN:]
	}

	out := make([]models.RawRecord, len(ch.history))
	copy(out, ch.history)
	return out, nil
}

// helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
