package round

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/territory/grid"
	"github.com/wfunc/territory/models"
	"github.com/wfunc/territory/network"
	"github.com/wfunc/territory/player"
	"github.com/wfunc/territory/timer"
)

// ManualScheduler records timers and fires them on demand.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID int64
	timers map[int64]func()
	delays map[int64]time.Duration
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		nextID: 1,
		timers: make(map[int64]func()),
		delays: make(map[int64]time.Duration),
	}
}

func (s *ManualScheduler) AddTimer(delay, interval time.Duration, callback func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.timers[id] = callback
	s.delays[id] = delay
	return id
}

func (s *ManualScheduler) RemoveTimer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
	delete(s.delays, id)
}

func (s *ManualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Fire runs the callback of a timer registered with the given delay.
func (s *ManualScheduler) Fire(delay time.Duration) bool {
	s.mu.Lock()
	var cb func()
	for id, d := range s.delays {
		if d == delay {
			cb = s.timers[id]
			break
		}
	}
	s.mu.Unlock()
	if cb == nil {
		return false
	}
	cb()
	return true
}

// Capture returns every callback currently registered, for replaying stale
// timers.
func (s *ManualScheduler) Capture() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cbs []func()
	for _, cb := range s.timers {
		cbs = append(cbs, cb)
	}
	return cbs
}

type sentEvent struct {
	Event   string
	Payload interface{}
}

type RecordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *RecordingNotifier) BroadcastToAll(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Event: event, Payload: payload})
}

func (n *RecordingNotifier) Events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

func (n *RecordingNotifier) Names() []string {
	var names []string
	for _, e := range n.Events() {
		names = append(names, e.Event)
	}
	return names
}

func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type fixture struct {
	ctrl     *Controller
	grid     *grid.Store
	players  *player.Registry
	sched    *ManualScheduler
	notifier *RecordingNotifier
	clock    *timer.ManualClock
	mu       *sync.Mutex
	results  []Result
}

const testDuration = time.Minute

func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()
	f := &fixture{
		players:  player.NewRegistry(),
		sched:    NewManualScheduler(),
		notifier: &RecordingNotifier{},
		clock:    timer.NewManualClock(time.UnixMilli(1_700_000_000_000)),
		mu:       &sync.Mutex{},
	}
	f.grid = grid.NewStore(10, grid.DefaultCooldown, f.players, f.clock)
	f.ctrl = NewController(Settings{
		Duration:         testDuration,
		TickInterval:     DefaultTickInterval,
		VictoryThreshold: threshold,
	}, f.grid, f.players, f.sched, f.notifier, f.clock, f.mu)
	f.ctrl.OnEnd = func(r Result) { f.results = append(f.results, r) }
	return f
}

func TestController_InitialWaiting(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)

	if f.ctrl.Active() {
		t.Fatal("controller should start waiting")
	}
	info := f.ctrl.Info()
	if info.RoundNumber != 0 || !info.IsWaiting || info.IsActive || info.StartTime != nil {
		t.Errorf("unexpected initial round info: %+v", info)
	}
	if f.sched.Live() != 0 {
		t.Errorf("no timers should be armed while waiting, got %d", f.sched.Live())
	}
}

func TestController_RequestStart(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	f.players.Register("a")
	if _, err := f.grid.Claim("a", 1, 1); err != nil {
		t.Fatal(err)
	}

	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatalf("RequestStart failed: %v", err)
	}

	snap := f.ctrl.Snapshot()
	if !snap.Active || snap.Number != 1 {
		t.Fatalf("expected active round 1, got %+v", snap)
	}
	if got := snap.EndTime.Sub(snap.StartTime); got != testDuration {
		t.Errorf("expected round duration %s, got %s", testDuration, got)
	}
	if c, _ := f.grid.Cell(1, 1); c.Owned() {
		t.Error("grid should be reset on round start")
	}
	if p, _ := f.players.Get("a"); p.Score != 0 {
		t.Errorf("scores should be reset on round start, got %d", p.Score)
	}
	if f.sched.Live() != 2 {
		t.Errorf("expected end timer and tick armed, got %d timers", f.sched.Live())
	}

	names := f.notifier.Names()
	if len(names) != 2 || names[0] != network.EventRoundStarted || names[1] != network.EventGameStateReset {
		t.Errorf("expected round-started then game-state-reset, got %v", names)
	}
	started := f.notifier.Events()[0].Payload.(models.RoundStarted)
	if started.Duration != testDuration.Milliseconds() || started.RoundNumber != 1 {
		t.Errorf("unexpected round-started payload: %+v", started)
	}
}

func TestController_RequestStartWhileActiveRejected(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	f.players.Register("a")
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(10 * time.Second)
	if _, err := f.grid.Claim("a", 2, 2); err != nil {
		t.Fatal(err)
	}
	f.notifier.Reset()
	before := f.ctrl.Snapshot()

	err := f.ctrl.RequestStart()
	if !errors.Is(err, ErrRoundAlreadyActive) {
		t.Fatalf("expected ErrRoundAlreadyActive, got %v", err)
	}

	after := f.ctrl.Snapshot()
	if after.Number != before.Number || !after.StartTime.Equal(before.StartTime) {
		t.Errorf("round state changed by rejected start: %+v -> %+v", before, after)
	}
	if c, _ := f.grid.Cell(2, 2); c.OwnerID != "a" {
		t.Error("grid changed by rejected start")
	}
	if p, _ := f.players.Get("a"); p.Score != 1 {
		t.Errorf("score changed by rejected start: %d", p.Score)
	}
	if len(f.notifier.Events()) != 0 {
		t.Errorf("rejected start must not broadcast, got %v", f.notifier.Names())
	}
	if f.sched.Live() != 2 {
		t.Errorf("rejected start must not stack timers, got %d", f.sched.Live())
	}
}

func TestController_TimerExpiryEndsRound(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	f.players.Register("a")
	f.players.Register("b")
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.grid.Claim("b", 0, 0); err != nil {
		t.Fatal(err)
	}
	f.notifier.Reset()

	f.clock.Advance(testDuration)
	if !f.sched.Fire(testDuration) {
		t.Fatal("end timer was not armed with the round duration")
	}

	if f.ctrl.Active() {
		t.Fatal("round should have ended")
	}
	if f.sched.Live() != 0 {
		t.Errorf("timers should be cancelled after end, %d live", f.sched.Live())
	}
	events := f.notifier.Events()
	if len(events) != 1 || events[0].Event != network.EventRoundEnded {
		t.Fatalf("expected a single round-ended, got %v", f.notifier.Names())
	}
	ended := events[0].Payload.(models.RoundEnded)
	if ended.Reason != ReasonTime || ended.Winner == nil || ended.Winner.ID != "b" {
		t.Errorf("unexpected round-ended payload: %+v", ended)
	}
	if ended.Message != fmt.Sprintf("Round 1 Winner: %s with 1 tiles!", ended.Winner.Name) {
		t.Errorf("unexpected message %q", ended.Message)
	}
	if len(f.results) != 1 || f.results[0].Reason != ReasonTime {
		t.Errorf("OnEnd should observe the round result, got %+v", f.results)
	}

	info := f.ctrl.Info()
	if info.IsActive || info.Winner == nil || info.EndReason != ReasonTime {
		t.Errorf("late joiners should see the last round's outcome, got %+v", info)
	}
}

func TestController_EndWithoutPlayers(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	f.notifier.Reset()

	if !f.ctrl.End(ReasonTime, nil) {
		t.Fatal("End should succeed on an active round")
	}
	ended := f.notifier.Events()[0].Payload.(models.RoundEnded)
	if ended.Winner != nil || ended.Message != "Time's up!" {
		t.Errorf("expected no winner, got %+v", ended)
	}
}

func TestController_EndIsIdempotent(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	if f.ctrl.End(ReasonTime, nil) {
		t.Error("End while waiting must be a no-op")
	}
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	if !f.ctrl.End(ReasonTime, nil) {
		t.Fatal("first End should succeed")
	}
	f.notifier.Reset()
	if f.ctrl.End(ReasonVictory, nil) {
		t.Error("second End must be a no-op")
	}
	if len(f.notifier.Events()) != 0 {
		t.Errorf("no-op End must not broadcast, got %v", f.notifier.Names())
	}
}

func TestController_StaleTimerIgnored(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	stale := f.sched.Capture()

	f.ctrl.End(ReasonTime, nil)
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	if f.sched.Live() != 2 {
		t.Fatalf("restart must replace, not stack, timers: %d live", f.sched.Live())
	}
	f.notifier.Reset()

	// Callbacks from round 1 racing past cancellation must not touch round 2.
	for _, cb := range stale {
		cb()
	}
	if !f.ctrl.Active() || f.ctrl.Snapshot().Number != 2 {
		t.Fatal("stale timer ended the new round")
	}
	if len(f.notifier.Events()) != 0 {
		t.Errorf("stale timers must not broadcast, got %v", f.notifier.Names())
	}
}

func TestController_TickBroadcastsRemaining(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	f.notifier.Reset()
	f.clock.Advance(20 * time.Second)

	if !f.sched.Fire(DefaultTickInterval) {
		t.Fatal("tick timer not armed")
	}
	events := f.notifier.Events()
	if len(events) != 1 || events[0].Event != network.EventRoundTick {
		t.Fatalf("expected one round-tick, got %v", f.notifier.Names())
	}
	tick := events[0].Payload.(models.RoundTick)
	if tick.TimeRemaining != (testDuration - 20*time.Second).Milliseconds() {
		t.Errorf("unexpected remaining time %d", tick.TimeRemaining)
	}
	if !f.ctrl.Active() {
		t.Error("tick must not change state")
	}
}

func TestController_VictoryEndsRoundEarly(t *testing.T) {
	f := newFixture(t, 3)
	f.players.Register("a")
	f.players.Register("b")
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.grid.Claim("a", i, 0); err != nil {
			t.Fatal(err)
		}
		if f.ctrl.CheckVictory() {
			t.Fatalf("victory declared early at score %d", i+1)
		}
	}
	if _, err := f.grid.Claim("a", 2, 0); err != nil {
		t.Fatal(err)
	}
	f.notifier.Reset()

	if !f.ctrl.CheckVictory() {
		t.Fatal("victory should end the round at the threshold")
	}
	if f.ctrl.Active() {
		t.Fatal("round should be over")
	}
	ended := f.notifier.Events()[0].Payload.(models.RoundEnded)
	if ended.Reason != ReasonVictory || ended.Winner == nil || ended.Winner.ID != "a" || ended.Winner.Score != 3 {
		t.Errorf("unexpected victory payload: %+v", ended)
	}
	if f.sched.Live() != 0 {
		t.Errorf("victory must cancel the round timer, %d live", f.sched.Live())
	}
	if f.ctrl.CheckVictory() {
		t.Error("CheckVictory while waiting must be a no-op")
	}
}

func TestController_RestartResetsEverything(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	f.players.Register("a")
	f.players.Register("b")
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	f.grid.Claim("a", 0, 0)
	f.grid.Claim("b", 1, 0)
	f.players.MarkOffline("b")
	f.ctrl.End(ReasonTime, nil)

	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.Snapshot().Winner != nil {
		t.Error("winner should be cleared on start")
	}
	for _, v := range f.grid.Snapshot() {
		if v.OwnerID != nil {
			t.Fatalf("cell (%d,%d) still owned after restart", v.X, v.Y)
		}
	}
	if p, _ := f.players.Get("a"); p.Score != 0 {
		t.Errorf("score not reset: %d", p.Score)
	}
	if _, ok := f.players.Get("b"); ok {
		t.Error("offline players should be purged at round start")
	}
}

func TestController_ExpireTakesLock(t *testing.T) {
	f := newFixture(t, DefaultVictoryThreshold)
	if err := f.ctrl.RequestStart(); err != nil {
		t.Fatal(err)
	}

	f.mu.Lock()
	done := make(chan struct{})
	go func() {
		f.sched.Fire(testDuration)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("timer callback ran without the critical section")
	case <-time.After(30 * time.Millisecond):
	}
	f.mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer callback never completed")
	}
	f.mu.Lock()
	active := f.ctrl.Active()
	f.mu.Unlock()
	if active {
		t.Error("round should have ended once the lock was released")
	}
}
