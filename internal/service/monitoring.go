package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"cellar_monitor/internal/broker"
	"cellar_monitor/internal/logger"
	"cellar_monitor/internal/models"
	"cellar_monitor/internal/repository"
	"cellar_monitor/internal/scheduler"
	"cellar_monitor/internal/stream"

	"github.com/relvacode/iso8601"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBannerInterval = 3 * time.Second
	defaultTimeFormat     = "02/01 15:04"
	staleIntervals        = 3
)

var ErrMonitorRunning = errors.New("monitor already running")

// MonitorOptions configures the poll/evaluate/banner pipeline.
type MonitorOptions struct {
	Attributes     map[models.SensorKind]string
	Bands          map[models.SensorKind]models.ThresholdBand
	MaxPoints      int
	PollInterval   time.Duration
	BannerInterval time.Duration
	StaleAfter     time.Duration // zero means staleIntervals * PollInterval
	Location       *time.Location
	TimeFormat     string
}

func (o MonitorOptions) withDefaults() MonitorOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BannerInterval <= 0 {
		o.BannerInterval = defaultBannerInterval
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = staleIntervals * o.PollInterval
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = stream.DefaultMaxPoints
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.TimeFormat == "" {
		o.TimeFormat = defaultTimeFormat
	}
	if o.Attributes == nil {
		o.Attributes = map[models.SensorKind]string{}
	}
	if o.Bands == nil {
		o.Bands = map[models.SensorKind]models.ThresholdBand{}
	}
	return o
}

// HistoryFetcher returns the latest raw records of one broker attribute.
type HistoryFetcher interface {
	History(ctx context.Context, attr string) ([]models.RawRecord, error)
}

// cycleResult is what one poll cycle hands to the loop.
type cycleResult struct {
	at      time.Time
	batches map[models.SensorKind][]models.Sample
	err     error
}

// MonitorService owns the rolling windows, statuses and banner. All writes
// happen on the goroutine running Run; readers only see published snapshots.
type MonitorService struct {
	fetcher HistoryFetcher
	events  repository.EventRepo
	log     *logger.Logger
	opts    MonitorOptions
	now     func() time.Time

	results chan cycleResult
	running atomic.Bool

	// loop-owned state
	store        *stream.Store
	statuses     []models.SensorStatus // nil until all series have data
	banner       models.BannerState
	lastUpdated  time.Time
	lastErr      string
	cycles       int
	failedCycles int

	snapshot atomic.Pointer[models.Dashboard]
}

// NewMonitorService returns a monitor with empty windows and a published
// placeholder snapshot.
func NewMonitorService(fetcher HistoryFetcher, events repository.EventRepo, opts MonitorOptions, log *logger.Logger) *MonitorService {
	if log == nil {
		log = logger.Nop()
	}
	opts = opts.withDefaults()
	m := &MonitorService{
		fetcher: fetcher,
		events:  events,
		log:     log,
		opts:    opts,
		now:     time.Now,
		results: make(chan cycleResult),
		store:   stream.NewStore(opts.MaxPoints),
		banner:  stream.PlaceholderBanner(),
	}
	m.publish()
	return m
}

// Run polls the broker and rotates the banner until ctx is cancelled.
// Both timers are released before Run returns.
func (m *MonitorService) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrMonitorRunning
	}
	defer m.running.Store(false)

	poller := scheduler.New("poll", m.opts.PollInterval, m.pollOnce, m.log)
	stop, err := poller.Start(ctx)
	if err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	defer stop()

	rotate := time.NewTicker(m.opts.BannerInterval)
	defer rotate.Stop()

	m.log.Infow("monitor_started",
		"poll_interval", m.opts.PollInterval,
		"banner_interval", m.opts.BannerInterval,
		"max_points", m.opts.MaxPoints,
	)
	for {
		select {
		case <-ctx.Done():
			m.log.Infow("monitor_stopped")
			return nil
		case res := <-m.results:
			if m.handle(ctx, res) {
				rotate.Reset(m.opts.BannerInterval)
			}
		case <-rotate.C:
			m.rotateBanner()
		}
	}
}

// pollOnce runs on the scheduler goroutine: it fetches and hands the result
// to the loop, returning the cycle error so the scheduler logs it.
func (m *MonitorService) pollOnce(ctx context.Context) error {
	res := m.fetchCycle(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.results <- res:
	case <-ctx.Done():
		return ctx.Err()
	}
	return res.err
}

// fetchCycle fetches all three attributes concurrently. If any fetch fails
// the whole cycle fails and no batch is returned; the error is that first
// failure, not the cancellations it caused.
func (m *MonitorService) fetchCycle(ctx context.Context) cycleResult {
	type kindBatch struct {
		kind    models.SensorKind
		samples []models.Sample
	}

	p := pool.NewWithResults[kindBatch]().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, k := range models.SensorKinds {
		kind, attr := k, m.opts.Attributes[k]
		p.Go(func(ctx context.Context) (kindBatch, error) {
			recs, err := m.fetcher.History(ctx, attr)
			if err != nil {
				return kindBatch{}, fmt.Errorf("%s: %w", kind, err)
			}
			return kindBatch{kind: kind, samples: stream.Normalize(recs)}, nil
		})
	}

	got, err := p.Wait()
	res := cycleResult{at: m.now()}
	if err != nil {
		res.err = err
		return res
	}
	res.batches = make(map[models.SensorKind][]models.Sample, len(got))
	for _, b := range got {
		res.batches[b.kind] = b.samples
	}
	return res
}

// handle drops cycles that raced with teardown; their fetches saw a
// cancelled context and there is nothing left to report them to.
func (m *MonitorService) handle(ctx context.Context, res cycleResult) bool {
	if ctx.Err() != nil {
		return false
	}
	return m.apply(ctx, res)
}

// apply folds one cycle into the loop state. It reports whether the banner
// was rebuilt, in which case the rotation timer must be re-armed.
func (m *MonitorService) apply(ctx context.Context, res cycleResult) bool {
	m.cycles++
	if res.err != nil {
		m.failedCycles++
		m.lastErr = res.err.Error()
		m.journal(ctx, models.AlertEvent{
			OccurredAt:  res.at,
			Type:        EventFetchFailed,
			Description: res.err.Error(),
			Metadata:    map[string]any{"kind": classifyFetchError(res.err), "cycle": m.cycles},
		})
		m.publish()
		return false
	}

	for _, k := range models.SensorKinds {
		m.store.Merge(k, res.batches[k])
	}
	m.lastUpdated = res.at
	m.lastErr = ""

	rebuilt := false
	if next, ready := stream.EvaluateAll(m.store, m.opts.Bands); ready && stream.StatusesChanged(m.statuses, next) {
		m.journalTransitions(ctx, res.at, m.statuses, next)
		m.statuses = next
		m.banner = stream.Rebuild(next)
		rebuilt = true
	}
	m.publish()
	return rebuilt
}

func (m *MonitorService) rotateBanner() {
	m.banner = stream.Rotate(m.banner)
	m.publish()
}

// journalTransitions records one STATUS_CHANGE per sensor whose status moved.
func (m *MonitorService) journalTransitions(ctx context.Context, at time.Time, prev, next []models.SensorStatus) {
	before := make(map[models.SensorKind]models.SensorStatus, len(prev))
	for _, st := range prev {
		before[st.Kind] = st
	}
	for _, st := range next {
		old, ok := before[st.Kind]
		if !ok {
			old = stream.Awaiting(st.Kind)
		}
		if old == st {
			continue
		}
		last, _ := m.store.Latest(st.Kind)
		meta := map[string]any{"from": old.Level, "to": st.Level, "timestamp": last.Timestamp}
		if !math.IsNaN(last.Value) {
			meta["value"] = last.Value
		}
		m.log.Infow("sensor_status_changed", "sensor", st.Kind, "from", old.Level, "to", st.Level, "label", st.Label)
		m.journal(ctx, models.AlertEvent{
			OccurredAt:  at,
			Type:        EventStatusChange,
			Sensor:      string(st.Kind),
			Description: st.Label,
			Metadata:    meta,
		})
	}
}

func (m *MonitorService) journal(ctx context.Context, e models.AlertEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Append(ctx, e); err != nil {
		m.log.Errorw("journal_append_failed", "err", err, "type", e.Type)
	}
}

func classifyFetchError(err error) string {
	var (
		ne *broker.NetworkError
		se *broker.ShapeError
	)
	switch {
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &se):
		return "shape"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unknown"
	}
}

// publish builds an immutable snapshot of the loop state.
func (m *MonitorService) publish() {
	d := &models.Dashboard{
		Ready:        m.store.Ready(),
		Sensors:      make([]models.SensorView, 0, len(models.SensorKinds)),
		Banner:       bannerView(m.banner),
		LastError:    m.lastErr,
		Cycles:       m.cycles,
		FailedCycles: m.failedCycles,
		GeneratedAt:  m.now().UTC(),
	}

	if !m.lastUpdated.IsZero() {
		at := m.lastUpdated
		d.LastUpdated = &at
	}

	statuses := make(map[models.SensorKind]models.SensorStatus, len(m.statuses))
	for _, st := range m.statuses {
		statuses[st.Kind] = st
	}
	for _, k := range models.SensorKinds {
		st, ok := statuses[k]
		if !ok {
			st = stream.Awaiting(k)
		}
		d.Sensors = append(d.Sensors, m.sensorView(k, st))
	}
	m.snapshot.Store(d)
}

func (m *MonitorService) sensorView(kind models.SensorKind, st models.SensorStatus) models.SensorView {
	desc := stream.Describe(kind)
	series := m.store.Series(kind)

	v := models.SensorView{
		Kind:   kind,
		Title:  desc.Title,
		Unit:   desc.Unit,
		Status: st.Label,
		Level:  st.Level,
		Band:   m.opts.Bands[kind],
		Points: make([]models.ChartPoint, 0, len(series)),
	}
	if last, ok := series.Last(); ok {
		v.Value = finite(last.Value)
	}
	for _, s := range series {
		v.Points = append(v.Points, models.ChartPoint{
			Timestamp: s.Timestamp,
			Label:     m.displayLabel(s.Timestamp),
			Value:     finite(s.Value),
		})
	}
	return v
}

// displayLabel renders a broker timestamp in the display timezone; tokens
// that are not ISO 8601 are shown verbatim.
func (m *MonitorService) displayLabel(ts string) string {
	t, err := iso8601.ParseString(ts)
	if err != nil {
		return ts
	}
	return t.In(m.opts.Location).Format(m.opts.TimeFormat)
}

func bannerView(b models.BannerState) models.BannerView {
	active := b.Active()
	return models.BannerView{
		Messages:    b.Messages,
		ActiveIndex: b.ActiveIndex,
		Active:      active,
		Alert:       stream.IsAlert(active),
	}
}

// finite returns nil for NaN and infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Snapshot returns the latest published dashboard with staleness computed now.
func (m *MonitorService) Snapshot() models.Dashboard {
	d := *m.snapshot.Load()
	now := m.now()
	switch {
	case d.LastUpdated != nil:
		d.Stale = now.Sub(*d.LastUpdated) > m.opts.StaleAfter
	default:
		d.Stale = d.FailedCycles > 0
	}
	return d
}

// Sensor returns the card and chart series of one sensor kind.
func (m *MonitorService) Sensor(kind models.SensorKind) (models.SensorView, bool) {
	for _, v := range m.snapshot.Load().Sensors {
		if v.Kind == kind {
			return v, true
		}
	}
	return models.SensorView{}, false
}

// Banner returns the banner as currently displayed.
func (m *MonitorService) Banner() models.BannerView {
	return m.snapshot.Load().Banner
}
