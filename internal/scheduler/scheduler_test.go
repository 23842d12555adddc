package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/ledger"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	markets map[string]domain.Market
	failing bool // every operation returns a transient error
}

func newFakeStore(markets ...domain.Market) *fakeStore {
	s := &fakeStore{markets: make(map[string]domain.Market)}
	for _, m := range markets {
		s.markets[m.ID] = m
	}
	return s
}

func (s *fakeStore) Upsert(_ context.Context, m domain.Market) error {
	if s.failing {
		return errors.New("store unavailable")
	}
	s.markets[m.ID] = m
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) ListByStatus(_ context.Context, status domain.MarketStatus) ([]domain.Market, error) {
	if s.failing {
		return nil, errors.New("store unavailable")
	}
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) Advance(_ context.Context, id string, from, to domain.MarketStatus) error {
	if s.failing {
		return errors.New("store unavailable")
	}
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != from {
		return domain.ErrStatusConflict
	}
	m.Status = to
	s.markets[id] = m
	return nil
}

func (s *fakeStore) UpdateStats(_ context.Context, id string, stats domain.PoolStats) error {
	if s.failing {
		return errors.New("store unavailable")
	}
	m, ok := s.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Stats = stats
	s.markets[id] = m
	return nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

func (s *fakeStore) status(t *testing.T, id string) domain.MarketStatus {
	t.Helper()
	m, ok := s.markets[id]
	if !ok {
		t.Fatalf("market %s missing from store", id)
	}
	return m.Status
}

type submission struct {
	function string
	inputs   []string
}

type fakeGateway struct {
	submissions []submission
	// failures maps a function name to how many submissions should fail
	// before succeeding.
	failures map[string]int
	pools    map[string]string // mapping key -> raw struct text
	readErr  map[string]error  // mapping key -> forced read error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failures: make(map[string]int),
		pools:    make(map[string]string),
		readErr:  make(map[string]error),
	}
}

func (g *fakeGateway) SubmitTransition(_ context.Context, function string, inputs []string) (string, error) {
	if g.failures[function] > 0 {
		g.failures[function]--
		return "", &domain.SubmissionError{
			Kind:     domain.SubmissionNetwork,
			Function: function,
			Err:      errors.New("connection reset"),
		}
	}
	g.submissions = append(g.submissions, submission{function: function, inputs: inputs})
	return fmt.Sprintf("at1tx%d", len(g.submissions)), nil
}

func (g *fakeGateway) ReadMapping(_ context.Context, _, key string) (string, bool, error) {
	if err := g.readErr[key]; err != nil {
		return "", false, err
	}
	raw, ok := g.pools[key]
	return raw, ok, nil
}

func (g *fakeGateway) count(function string) int {
	n := 0
	for _, s := range g.submissions {
		if s.function == function {
			n++
		}
	}
	return n
}

// seqProvider returns a scripted sequence of results, then repeats the last.
type seqProvider struct {
	name   string
	values []float64
	errs   []error
	calls  int
}

func (p *seqProvider) Name() string { return p.name }

func (p *seqProvider) FetchValue(context.Context) (float64, error) {
	i := p.calls
	if i >= len(p.values) {
		i = len(p.values) - 1
	}
	p.calls++
	if p.errs[i] != nil {
		return 0, p.errs[i]
	}
	return p.values[i], nil
}

type fakeRegistry map[string]domain.MetricProvider

func (r fakeRegistry) Lookup(name string) (domain.MetricProvider, bool) {
	p, ok := r[name]
	return p, ok
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testNow = time.Unix(1_760_000_000, 0)

func newTestScheduler(store *fakeStore, reg ProviderRegistry, gw *fakeGateway, notifier Notifier) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(store, reg, gw, nil, notifier, Config{
		Interval:  time.Minute,
		OpTimeout: 5 * time.Second,
	}, logger)
	s.now = func() time.Time { return testNow }
	return s
}

func pendingMarket(id string, deadline int64, threshold float64, metricName string) domain.Market {
	return domain.Market{
		ID:           id,
		Deadline:     deadline,
		Threshold:    threshold,
		MetricName:   metricName,
		Status:       domain.MarketStatusPending,
		OptionALabel: "YES",
		OptionBLabel: "NO",
	}
}

func lockedMarket(id string, threshold float64, metricName string) domain.Market {
	m := pendingMarket(id, testNow.Unix()-100, threshold, metricName)
	m.Status = domain.MarketStatusLocked
	return m
}

// ---------------------------------------------------------------------------
// Lock phase
// ---------------------------------------------------------------------------

func TestLockPhaseRespectsDeadline(t *testing.T) {
	early := pendingMarket("early", testNow.Unix()+3600, 100, "eth_price")
	due := pendingMarket("due", testNow.Unix(), 100, "eth_price")
	past := pendingMarket("past", testNow.Unix()-1, 100, "eth_price")

	store := newFakeStore(early, due, past)
	gw := newFakeGateway()
	s := newTestScheduler(store, fakeRegistry{}, gw, nil)

	s.Tick(context.Background())

	if got := store.status(t, "early"); got != domain.MarketStatusPending {
		t.Errorf("early market = %s, want pending before deadline", got)
	}
	// A deadline exactly equal to now is already eligible.
	if got := store.status(t, "due"); got != domain.MarketStatusLocked {
		t.Errorf("due market = %s, want locked", got)
	}
	if got := store.status(t, "past"); got != domain.MarketStatusLocked {
		t.Errorf("past market = %s, want locked", got)
	}
	if n := gw.count(lockFunction); n != 2 {
		t.Errorf("lock submissions = %d, want 2", n)
	}
}

func TestLockInputsAreFieldEncoded(t *testing.T) {
	store := newFakeStore(pendingMarket("m1", testNow.Unix()-1, 100, "eth_price"))
	gw := newFakeGateway()
	s := newTestScheduler(store, fakeRegistry{}, gw, nil)

	s.Tick(context.Background())

	if len(gw.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(gw.submissions))
	}
	sub := gw.submissions[0]
	if sub.function != lockFunction {
		t.Errorf("function = %s", sub.function)
	}
	if len(sub.inputs) != 1 || sub.inputs[0] != ledger.EncodeField("m1") {
		t.Errorf("inputs = %v", sub.inputs)
	}
}

// Scenario D: a lock submission fails once, the market stays pending for one
// extra tick, then reaches locked, never skipping ahead.
func TestLockSubmissionFailureRetriesNextTick(t *testing.T) {
	store := newFakeStore(pendingMarket("m2", testNow.Unix()-1, 100, "eth_price"))
	gw := newFakeGateway()
	gw.failures[lockFunction] = 1

	// No provider registered: resolution cannot accidentally run.
	s := newTestScheduler(store, fakeRegistry{}, gw, nil)

	s.Tick(context.Background())
	if got := store.status(t, "m2"); got != domain.MarketStatusPending {
		t.Fatalf("after failed submission: status = %s, want pending", got)
	}

	s.Tick(context.Background())
	if got := store.status(t, "m2"); got != domain.MarketStatusLocked {
		t.Fatalf("after retry: status = %s, want locked", got)
	}
	if n := gw.count(lockFunction); n != 1 {
		t.Errorf("acknowledged lock submissions = %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Resolve phase
// ---------------------------------------------------------------------------

// Scenario A: metric well above threshold resolves to option A.
func TestResolveAboveThreshold(t *testing.T) {
	store := newFakeStore(lockedMarket("m1", 100, "eth_price"))
	gw := newFakeGateway()
	reg := fakeRegistry{"eth_price": &seqProvider{
		name: "eth_price", values: []float64{150}, errs: []error{nil},
	}}
	notifier := &recordingNotifier{}
	s := newTestScheduler(store, reg, gw, notifier)

	s.Tick(context.Background())

	if got := store.status(t, "m1"); got != domain.MarketStatusResolved {
		t.Fatalf("status = %s, want resolved", got)
	}
	if len(gw.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(gw.submissions))
	}
	sub := gw.submissions[0]
	if sub.function != resolveFunction {
		t.Errorf("function = %s", sub.function)
	}
	want := []string{ledger.EncodeField("m1"), ledger.EncodeU64(uint64(domain.OutcomeA))}
	if len(sub.inputs) != 2 || sub.inputs[0] != want[0] || sub.inputs[1] != want[1] {
		t.Errorf("inputs = %v, want %v", sub.inputs, want)
	}
	if len(notifier.events) == 0 || notifier.events[len(notifier.events)-1] != EventMarketResolved {
		t.Errorf("events = %v, want trailing %s", notifier.events, EventMarketResolved)
	}
}

// Scenario B: a value exactly equal to the threshold resolves to option A.
func TestResolveTieBreakEquality(t *testing.T) {
	store := newFakeStore(lockedMarket("m2", 100, "eth_price"))
	gw := newFakeGateway()
	reg := fakeRegistry{"eth_price": &seqProvider{
		name: "eth_price", values: []float64{100}, errs: []error{nil},
	}}
	s := newTestScheduler(store, reg, gw, nil)

	s.Tick(context.Background())

	if got := store.status(t, "m2"); got != domain.MarketStatusResolved {
		t.Fatalf("status = %s, want resolved", got)
	}
	winner := gw.submissions[0].inputs[1]
	if winner != ledger.EncodeU64(uint64(domain.OutcomeA)) {
		t.Errorf("winner input = %s, want option A on boundary equality", winner)
	}
}

// Scenario C: the provider returns no value for three ticks, then a value
// below the threshold on the fourth.
func TestResolveRetriesUntilValueAvailable(t *testing.T) {
	store := newFakeStore(lockedMarket("m3", 100, "fear_greed"))
	gw := newFakeGateway()
	noValue := fmt.Errorf("upstream: %w", domain.ErrNoValue)
	reg := fakeRegistry{"fear_greed": &seqProvider{
		name:   "fear_greed",
		values: []float64{0, 0, 0, 40},
		errs:   []error{noValue, noValue, noValue, nil},
	}}
	s := newTestScheduler(store, reg, gw, nil)

	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
		if got := store.status(t, "m3"); got != domain.MarketStatusLocked {
			t.Fatalf("tick %d: status = %s, want locked", i+1, got)
		}
		if len(gw.submissions) != 0 {
			t.Fatalf("tick %d: submissions = %d, want none while fetch fails", i+1, len(gw.submissions))
		}
	}

	s.Tick(context.Background())
	if got := store.status(t, "m3"); got != domain.MarketStatusResolved {
		t.Fatalf("tick 4: status = %s, want resolved", got)
	}
	winner := gw.submissions[0].inputs[1]
	if winner != ledger.EncodeU64(uint64(domain.OutcomeB)) {
		t.Errorf("winner input = %s, want option B for 40 < 100", winner)
	}
}

// Scenario E: an unregistered metric on one market must not affect another
// market in the same tick.
func TestUnregisteredMetricSkipsOnlyThatMarket(t *testing.T) {
	good := lockedMarket("good", 50, "eth_price")
	bad := lockedMarket("bad", 50, "typo_metric")

	store := newFakeStore(good, bad)
	gw := newFakeGateway()
	reg := fakeRegistry{"eth_price": &seqProvider{
		name: "eth_price", values: []float64{75}, errs: []error{nil},
	}}
	notifier := &recordingNotifier{}
	s := newTestScheduler(store, reg, gw, notifier)

	s.Tick(context.Background())

	if got := store.status(t, "good"); got != domain.MarketStatusResolved {
		t.Errorf("good market = %s, want resolved", got)
	}
	if got := store.status(t, "bad"); got != domain.MarketStatusLocked {
		t.Errorf("bad market = %s, want still locked", got)
	}
	if n := gw.count(resolveFunction); n != 1 {
		t.Errorf("resolve submissions = %d, want 1", n)
	}

	defect := false
	for _, e := range notifier.events {
		if e == EventConfigDefect {
			defect = true
		}
	}
	if !defect {
		t.Errorf("events = %v, want %s reported", notifier.events, EventConfigDefect)
	}
}

func TestResolveSubmissionFailureLeavesMarketLocked(t *testing.T) {
	store := newFakeStore(lockedMarket("m4", 100, "eth_price"))
	gw := newFakeGateway()
	gw.failures[resolveFunction] = 1
	reg := fakeRegistry{"eth_price": &seqProvider{
		name: "eth_price", values: []float64{150}, errs: []error{nil},
	}}
	s := newTestScheduler(store, reg, gw, nil)

	s.Tick(context.Background())
	if got := store.status(t, "m4"); got != domain.MarketStatusLocked {
		t.Fatalf("after failed submission: status = %s, want locked", got)
	}

	s.Tick(context.Background())
	if got := store.status(t, "m4"); got != domain.MarketStatusResolved {
		t.Fatalf("after retry: status = %s, want resolved", got)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle properties
// ---------------------------------------------------------------------------

// Status is monotone across ticks and no further submissions happen once a
// market is resolved.
func TestNoSubmissionsOnceResolved(t *testing.T) {
	store := newFakeStore(pendingMarket("m5", testNow.Unix()-10, 100, "eth_price"))
	gw := newFakeGateway()
	reg := fakeRegistry{"eth_price": &seqProvider{
		name: "eth_price", values: []float64{200}, errs: []error{nil},
	}}
	s := newTestScheduler(store, reg, gw, nil)

	seen := []domain.MarketStatus{store.status(t, "m5")}
	for i := 0; i < 5; i++ {
		s.Tick(context.Background())
		seen = append(seen, store.status(t, "m5"))
	}

	rank := map[domain.MarketStatus]int{
		domain.MarketStatusPending:  0,
		domain.MarketStatusLocked:   1,
		domain.MarketStatusResolved: 2,
	}
	for i := 1; i < len(seen); i++ {
		if rank[seen[i]] < rank[seen[i-1]] {
			t.Fatalf("status regressed: %v", seen)
		}
	}

	if got := store.status(t, "m5"); got != domain.MarketStatusResolved {
		t.Fatalf("final status = %s, want resolved", got)
	}
	if n := gw.count(lockFunction); n != 1 {
		t.Errorf("lock submissions = %d, want exactly 1", n)
	}
	if n := gw.count(resolveFunction); n != 1 {
		t.Errorf("resolve submissions = %d, want exactly 1", n)
	}
}

func TestTransientStoreFailureDoesNotCrashTick(t *testing.T) {
	store := newFakeStore(pendingMarket("m6", testNow.Unix()-10, 100, "eth_price"))
	store.failing = true
	gw := newFakeGateway()
	s := newTestScheduler(store, fakeRegistry{}, gw, nil)

	// Must not panic and must not submit anything while the store is down.
	s.Tick(context.Background())
	if len(gw.submissions) != 0 {
		t.Errorf("submissions = %d, want none while store is failing", len(gw.submissions))
	}

	store.failing = false
	s.Tick(context.Background())
	if got := store.status(t, "m6"); got != domain.MarketStatusLocked {
		t.Errorf("after store recovery: status = %s, want locked", got)
	}
}

// ---------------------------------------------------------------------------
// Stats sync
// ---------------------------------------------------------------------------

func TestSyncStatsMirrorsLedgerValues(t *testing.T) {
	m1 := pendingMarket("m7", testNow.Unix()+3600, 100, "eth_price")
	m2 := pendingMarket("m8", testNow.Unix()+3600, 100, "eth_price")

	store := newFakeStore(m1, m2)
	gw := newFakeGateway()
	gw.pools[ledger.EncodeField("m7")] = "{ total_staked: 5000000u64, option_a_stakes: 3000000u64, option_b_stakes: 2000000u64 }"
	gw.readErr[ledger.EncodeField("m8")] = errors.New("node timeout")

	s := newTestScheduler(store, fakeRegistry{}, gw, nil)
	s.Tick(context.Background())

	got := store.markets["m7"].Stats
	want := domain.PoolStats{TotalStaked: 5000000, OptionAStakes: 3000000, OptionBStakes: 2000000}
	if got != want {
		t.Errorf("m7 stats = %+v, want %+v", got, want)
	}
	// m8's read failure must not have corrupted anything.
	if store.markets["m8"].Stats != (domain.PoolStats{}) {
		t.Errorf("m8 stats = %+v, want zero", store.markets["m8"].Stats)
	}
}

func TestSyncStatsSkipsPoolsNotYetOnChain(t *testing.T) {
	store := newFakeStore(pendingMarket("m9", testNow.Unix()+3600, 100, "eth_price"))
	gw := newFakeGateway() // no pools configured: mapping reads return absent
	s := newTestScheduler(store, fakeRegistry{}, gw, nil)

	s.Tick(context.Background())

	if store.markets["m9"].Stats != (domain.PoolStats{}) {
		t.Errorf("stats = %+v, want untouched", store.markets["m9"].Stats)
	}
}

// ---------------------------------------------------------------------------
// Loop behavior
// ---------------------------------------------------------------------------

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	store := newFakeStore()
	s := newTestScheduler(store, fakeRegistry{}, newFakeGateway(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunLoop(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunLoop returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}
}

func TestSubmissionErrorMessageNamesFunction(t *testing.T) {
	err := &domain.SubmissionError{
		Kind:     domain.SubmissionRejected,
		Function: resolveFunction,
		Err:      errors.New("pool not open"),
	}
	if !strings.Contains(err.Error(), resolveFunction) {
		t.Errorf("error %q does not name the function", err.Error())
	}
}
