package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cellar_monitor/internal/broker"
	"cellar_monitor/internal/logger"
	"cellar_monitor/internal/models"
	"cellar_monitor/internal/stream"
)

// scriptedFetcher serves one scripted response per attribute per cycle.
type scriptedFetcher struct {
	mu    sync.Mutex
	data  map[string][]models.RawRecord
	err   map[string]error
	calls map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		data:  map[string][]models.RawRecord{},
		err:   map[string]error{},
		calls: map[string]int{},
	}
}

func (f *scriptedFetcher) set(attr string, recs ...models.RawRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[attr] = recs
}

func (f *scriptedFetcher) fail(attr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err[attr] = err
}

func (f *scriptedFetcher) History(ctx context.Context, attr string) ([]models.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[attr]++
	if err := f.err[attr]; err != nil {
		return nil, err
	}
	return f.data[attr], nil
}

func rec(ts, v string) models.RawRecord { return models.RawRecord{RecvTime: ts, AttrValue: v} }

func testOptions() MonitorOptions {
	loc := time.FixedZone("-03", -3*60*60) // America/Sao_Paulo, no DST since 2019
	return MonitorOptions{
		Attributes:     simAttrs(),
		Bands:          simBands(),
		MaxPoints:      500,
		PollInterval:   time.Hour,
		BannerInterval: time.Hour,
		Location:       loc,
	}
}

func newTestMonitor(f HistoryFetcher, repo *fakeEventRepo) *MonitorService {
	return NewMonitorService(f, repo, testOptions(), nil)
}

func cycle(t *testing.T, m *MonitorService) bool {
	t.Helper()
	return m.apply(context.Background(), m.fetchCycle(context.Background()))
}

func TestMonitor_InitialSnapshotAwaitsData(t *testing.T) {
	m := newTestMonitor(newScriptedFetcher(), &fakeEventRepo{})

	d := m.Snapshot()
	if d.Ready {
		t.Fatal("must not be ready before any data")
	}
	if len(d.Sensors) != 3 {
		t.Fatalf("expected 3 sensors, got %d", len(d.Sensors))
	}
	for _, s := range d.Sensors {
		if s.Value != nil || s.Status != stream.AwaitingLabel || s.Level != models.LevelUnknown {
			t.Fatalf("placeholder expected for %s, got %+v", s.Kind, s)
		}
	}
	if d.Banner.Active != stream.PlaceholderMessage || d.Banner.Alert {
		t.Fatalf("placeholder banner expected, got %+v", d.Banner)
	}
	if d.Stale {
		t.Fatal("fresh monitor is not stale")
	}
}

func TestMonitor_PartialDataDoesNotEvaluate(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("t1", "30"))
	f.set("umidade", rec("t1", "60"))
	m := newTestMonitor(f, &fakeEventRepo{})

	if cycle(t, m) {
		t.Fatal("banner must not be rebuilt on partial data")
	}
	d := m.Snapshot()
	if d.Ready {
		t.Fatal("luminosity missing, must not be ready")
	}
	temp, _ := m.Sensor(models.Temperature)
	if temp.Value == nil || *temp.Value != 30 {
		t.Fatalf("card shows latest value even before evaluation, got %+v", temp.Value)
	}
	if temp.Status != stream.AwaitingLabel {
		t.Fatalf("status must stay %q, got %q", stream.AwaitingLabel, temp.Status)
	}
	if m.Banner().Active != stream.PlaceholderMessage {
		t.Fatalf("banner must stay placeholder, got %q", m.Banner().Active)
	}
}

func TestMonitor_EvaluatesAndBuildsBanner(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("2025-09-01T15:00:00.000Z", "19.5"))
	f.set("umidade", rec("2025-09-01T15:00:00.000Z", "60"))
	f.set("luminosidade", rec("2025-09-01T15:00:00.000Z", "5"))
	repo := &fakeEventRepo{}
	m := newTestMonitor(f, repo)

	if !cycle(t, m) {
		t.Fatal("first full cycle must rebuild the banner")
	}

	d := m.Snapshot()
	if !d.Ready || d.Cycles != 1 || d.FailedCycles != 0 {
		t.Fatalf("unexpected counters: %+v", d)
	}
	if got := d.Sensors[0]; got.Level != models.LevelHigh || got.Status != "Temperatura Alta" {
		t.Fatalf("temperature: %+v", got)
	}
	if got := d.Sensors[2]; got.Level != models.LevelLow || got.Status != "Ambiente escuro" {
		t.Fatalf("luminosity: %+v", got)
	}
	if len(d.Banner.Messages) != 2 || !d.Banner.Alert {
		t.Fatalf("banner: %+v", d.Banner)
	}
	if d.Sensors[0].Points[0].Label != "01/09 12:00" {
		t.Fatalf("label in display timezone: got %q", d.Sensors[0].Points[0].Label)
	}

	events := repo.appendedEvents()
	if len(events) != 3 {
		t.Fatalf("expected 3 status changes from UNKNOWN, got %d", len(events))
	}
	for _, e := range events {
		if e.Type != EventStatusChange {
			t.Fatalf("unexpected event type %q", e.Type)
		}
	}

	// same data again: idempotent merge, no status change, no rebuild
	if cycle(t, m) {
		t.Fatal("unchanged statuses must not rebuild the banner")
	}
	if got := len(m.Snapshot().Sensors[0].Points); got != 1 {
		t.Fatalf("duplicate timestamps merged twice: %d points", got)
	}
	if len(repo.appendedEvents()) != 3 {
		t.Fatal("no new journal entries expected")
	}
}

func TestMonitor_AllNormalSingleMessage(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("t1", "14"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	m := newTestMonitor(f, &fakeEventRepo{})

	cycle(t, m)

	b := m.Banner()
	if len(b.Messages) != 1 || b.Active != stream.AllNormalMessage || b.Alert {
		t.Fatalf("banner: %+v", b)
	}
}

func TestMonitor_RotationWrapsAndRebuildResets(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("t1", "30"))
	f.set("umidade", rec("t1", "90"))
	f.set("luminosidade", rec("t1", "80"))
	m := newTestMonitor(f, &fakeEventRepo{})
	cycle(t, m)

	m.rotateBanner()
	if m.Banner().ActiveIndex != 1 {
		t.Fatalf("expected index 1, got %d", m.Banner().ActiveIndex)
	}
	m.rotateBanner()
	if m.Banner().ActiveIndex != 0 {
		t.Fatalf("expected wrap to 0, got %d", m.Banner().ActiveIndex)
	}
	m.rotateBanner()

	// humidity back in band: list shrinks to one, index resets
	f.set("umidade", rec("t1", "90"), rec("t2", "60"))
	if !cycle(t, m) {
		t.Fatal("status change must rebuild")
	}
	b := m.Banner()
	if len(b.Messages) != 1 || b.ActiveIndex != 0 {
		t.Fatalf("banner after shrink: %+v", b)
	}
}

func TestMonitor_FailedTickSkipsWholeCycle(t *testing.T) {
	f := newScriptedFetcher()
	repo := &fakeEventRepo{}
	m := newTestMonitor(f, repo)

	// tick 1 succeeds
	f.set("temperatura", rec("t1", "14"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	cycle(t, m)

	// tick 2: one attribute fails, so nothing from this tick is merged
	f.set("temperatura", rec("t1", "14"), rec("t2", "15"))
	f.set("umidade", rec("t1", "60"), rec("t2", "61"))
	f.fail("luminosidade", &broker.NetworkError{Attribute: "luminosidade", Err: errors.New("timeout")})
	cycle(t, m)

	d := m.Snapshot()
	if d.FailedCycles != 1 || d.LastError == "" {
		t.Fatalf("failure not recorded: %+v", d)
	}
	if got := len(d.Sensors[0].Points); got != 1 {
		t.Fatalf("tick 2 data leaked into store: %d temperature points", got)
	}

	// tick 3 succeeds again
	f.fail("luminosidade", nil)
	f.set("temperatura", rec("t3", "16"))
	f.set("umidade", rec("t3", "62"))
	f.set("luminosidade", rec("t3", "81"))
	cycle(t, m)

	d = m.Snapshot()
	var ts []string
	for _, p := range d.Sensors[0].Points {
		ts = append(ts, p.Timestamp)
	}
	if len(ts) != 2 || ts[0] != "t1" || ts[1] != "t3" {
		t.Fatalf("store must reflect ticks 1 and 3 only, got %v", ts)
	}
	if d.LastError != "" || d.Cycles != 3 {
		t.Fatalf("unexpected state after recovery: %+v", d)
	}

	var failed []models.AlertEvent
	for _, e := range repo.appendedEvents() {
		if e.Type == EventFetchFailed {
			failed = append(failed, e)
		}
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 FETCH_FAILED event, got %d", len(failed))
	}
	if meta := failed[0].Metadata.(map[string]any); meta["kind"] != "network" {
		t.Fatalf("fetch failure classification: %v", meta)
	}
}

func TestMonitor_NaNPropagatesAsNull(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("t1", "abc"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	m := newTestMonitor(f, &fakeEventRepo{})

	cycle(t, m)

	temp, ok := m.Sensor(models.Temperature)
	if !ok {
		t.Fatal("temperature view missing")
	}
	if temp.Value != nil || len(temp.Points) != 1 || temp.Points[0].Value != nil {
		t.Fatalf("NaN must be kept as a null point: %+v", temp)
	}
	if temp.Level != models.LevelNormal {
		t.Fatalf("NaN evaluates as normal, got %s", temp.Level)
	}
	if temp.Points[0].Label != "t1" {
		t.Fatalf("non-ISO timestamp shown verbatim, got %q", temp.Points[0].Label)
	}
}

func TestMonitor_StaleAfterMissedPolls(t *testing.T) {
	f := newScriptedFetcher()
	f.fail("temperatura", errors.New("down"))
	m := newTestMonitor(f, &fakeEventRepo{})
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	cycle(t, m)
	if !m.Snapshot().Stale {
		t.Fatal("never-succeeded monitor with failures is stale")
	}

	f.fail("temperatura", nil)
	f.set("temperatura", rec("t1", "14"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	cycle(t, m)
	if m.Snapshot().Stale {
		t.Fatal("fresh data is not stale")
	}

	now = now.Add(4 * time.Hour) // StaleAfter = 3 poll intervals of 1h
	if !m.Snapshot().Stale {
		t.Fatal("old data must be stale")
	}
}

func TestMonitor_JournalFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newScriptedFetcher()
	f.fail("umidade", &broker.ShapeError{Attribute: "umidade", Reason: "missing attributes"})
	repo := &fakeEventRepo{appendErr: errors.New("disk full")}
	m := NewMonitorService(f, repo, testOptions(), logger.FromCore(core))

	cycle(t, m)

	if logs.FilterMessage("journal_append_failed").Len() != 1 {
		t.Fatalf("expected journal failure to be logged, got %v", logs.All())
	}
}

func TestMonitor_RunPollsAndStops(t *testing.T) {
	f := newScriptedFetcher()
	f.set("temperatura", rec("t1", "14"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	opts := testOptions()
	opts.PollInterval = 10 * time.Millisecond
	opts.BannerInterval = 5 * time.Millisecond
	m := NewMonitorService(f, &fakeEventRepo{}, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().Cycles < 2 {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not poll")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := m.Run(ctx); !errors.Is(err, ErrMonitorRunning) {
		t.Fatalf("second Run: got %v, want ErrMonitorRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !m.Snapshot().Ready {
		t.Fatal("expected data after polling")
	}
}

// stallingFetcher fails one attribute at once and holds the others until
// their context is cancelled.
type stallingFetcher struct {
	failAttr string
	err      error
}

func (f *stallingFetcher) History(ctx context.Context, attr string) ([]models.RawRecord, error) {
	if attr == f.failAttr {
		return nil, f.err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMonitor_FailedCycleReportsOnlyTheCause(t *testing.T) {
	cause := &broker.NetworkError{Attribute: "umidade", StatusCode: 503, Err: errors.New("service unavailable")}
	repo := &fakeEventRepo{}
	m := newTestMonitor(&stallingFetcher{failAttr: "umidade", err: cause}, repo)

	cycle(t, m)

	d := m.Snapshot()
	if d.LastError == "" || strings.Contains(d.LastError, context.Canceled.Error()) {
		t.Fatalf("last error must carry only the failing fetch, got %q", d.LastError)
	}
	if !strings.Contains(d.LastError, "humidity") {
		t.Fatalf("last error must name the failing sensor, got %q", d.LastError)
	}
	events := repo.appendedEvents()
	if len(events) != 1 || strings.Contains(events[0].Description, context.Canceled.Error()) {
		t.Fatalf("unexpected journal entries: %+v", events)
	}
}

func TestMonitor_CycleAfterTeardownIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := &fakeEventRepo{}
	m := NewMonitorService(newScriptedFetcher(), repo, testOptions(), logger.FromCore(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if m.handle(ctx, cycleResult{at: time.Now(), err: context.Canceled}) {
		t.Fatal("a dropped cycle must not rebuild the banner")
	}
	if d := m.Snapshot(); d.Cycles != 0 || d.FailedCycles != 0 || d.LastError != "" {
		t.Fatalf("dropped cycle changed state: %+v", d)
	}
	if len(repo.appendedEvents()) != 0 || logs.FilterMessage("journal_append_failed").Len() != 0 {
		t.Fatal("dropped cycle must not touch the journal")
	}

	// pollOnce must not block handing a cancelled cycle to a loop that is gone
	done := make(chan error, 1)
	go func() { done <- m.pollOnce(ctx) }()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("pollOnce: got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pollOnce blocked after cancel")
	}
}

func TestMonitor_LastUpdatedOmittedUntilFirstSuccess(t *testing.T) {
	f := newScriptedFetcher()
	m := newTestMonitor(f, &fakeEventRepo{})

	raw, err := json.Marshal(m.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "last_updated") {
		t.Fatalf("last_updated must be absent before any data: %s", raw)
	}

	f.set("temperatura", rec("t1", "14"))
	f.set("umidade", rec("t1", "60"))
	f.set("luminosidade", rec("t1", "80"))
	cycle(t, m)

	d := m.Snapshot()
	if d.LastUpdated == nil || d.LastUpdated.IsZero() {
		t.Fatalf("last_updated must be set after a good cycle: %+v", d.LastUpdated)
	}
}

func TestMonitorOptions_StaleAfterFollowsPollInterval(t *testing.T) {
	cases := []struct {
		name string
		in   MonitorOptions
		want time.Duration
	}{
		{"default poll", MonitorOptions{}, 3 * defaultPollInterval},
		{"slow poll", MonitorOptions{PollInterval: time.Minute}, 3 * time.Minute},
		{"explicit", MonitorOptions{PollInterval: time.Minute, StaleAfter: 10 * time.Second}, 10 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.withDefaults().StaleAfter; got != tc.want {
				t.Fatalf("StaleAfter = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyFetchError(t *testing.T) {
	cases := map[string]error{
		"network": &broker.NetworkError{Attribute: "a", Err: errors.New("x")},
		"shape":   &broker.ShapeError{Attribute: "a", Reason: "r"},
		"timeout": context.DeadlineExceeded,
		"unknown": errors.New("other"),
	}
	for want, err := range cases {
		if got := classifyFetchError(err); got != want {
			t.Errorf("classifyFetchError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestFinite(t *testing.T) {
	if finite(math.NaN()) != nil || finite(math.Inf(1)) != nil {
		t.Fatal("non-finite values must map to nil")
	}
	if v := finite(1.5); v == nil || *v != 1.5 {
		t.Fatal("finite value must be kept")
	}
}
