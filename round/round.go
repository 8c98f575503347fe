// round/round.go
package round

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/territory/grid"
	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/models"
	"github.com/wfunc/territory/network"
	"github.com/wfunc/territory/player"
	"github.com/wfunc/territory/state"
	"github.com/wfunc/territory/timer"
)

const (
	DefaultDuration         = 10 * time.Minute
	DefaultTickInterval     = 5 * time.Second
	DefaultVictoryThreshold = 1000
)

// End reasons.
const (
	ReasonTime    = models.ReasonTime
	ReasonVictory = models.ReasonVictory
)

var (
	ErrRoundNotActive     = errors.New("round not active")
	ErrRoundAlreadyActive = errors.New("round already active")
)

// Scheduler is the deferred-task facility the controller arms its timers on.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64)
}

// Notifier delivers round events to every connected session.
type Notifier interface {
	BroadcastToAll(event string, payload interface{})
}

type Settings struct {
	Duration         time.Duration
	TickInterval     time.Duration
	VictoryThreshold int
	LeaderboardSize  int
}

// Result describes a round that just ended.
type Result struct {
	Number      int
	Reason      string
	Winner      *player.Player
	Leaderboard []player.Player
	StartedAt   time.Time
	EndedAt     time.Time
}

// Snapshot is a copy of the round state.
type Snapshot struct {
	Number    int
	StartTime time.Time
	EndTime   time.Time
	Active    bool
	Winner    *player.Player
	EndReason string
}

// Controller drives waiting -> active -> waiting. Its exported methods must
// be called with lock held; timer callbacks acquire lock themselves.
type Controller struct {
	settings Settings
	grid     *grid.Store
	players  *player.Registry
	sched    Scheduler
	notifier Notifier
	clock    timer.Clock
	lock     sync.Locker

	machine *state.BaseStateMachine
	waiting *waitingPhase
	active  *activePhase

	number    int
	startTime time.Time
	endTime   time.Time
	winner    *player.Player
	endReason string

	// OnEnd runs after every round end, still inside the critical section.
	OnEnd func(Result)
}

func NewController(settings Settings, store *grid.Store, players *player.Registry, sched Scheduler,
	notifier Notifier, clock timer.Clock, lock sync.Locker) *Controller {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	if settings.Duration <= 0 {
		settings.Duration = DefaultDuration
	}
	if settings.TickInterval <= 0 {
		settings.TickInterval = DefaultTickInterval
	}
	if settings.VictoryThreshold <= 0 {
		settings.VictoryThreshold = DefaultVictoryThreshold
	}
	if settings.LeaderboardSize <= 0 {
		settings.LeaderboardSize = player.DefaultLeaderboardSize
	}
	c := &Controller{
		settings: settings,
		grid:     store,
		players:  players,
		sched:    sched,
		notifier: notifier,
		clock:    clock,
		lock:     lock,
	}
	c.waiting = &waitingPhase{}
	c.active = &activePhase{c: c}
	c.machine = state.NewBaseStateMachine(c.waiting)
	_ = c.machine.AddTransition(c.waiting, c.active, nil)
	_ = c.machine.AddTransition(c.active, c.waiting, nil)
	return c
}

func (c *Controller) Active() bool {
	return c.machine.Is(phaseActive)
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Number:    c.number,
		StartTime: c.startTime,
		EndTime:   c.endTime,
		Active:    c.Active(),
		EndReason: c.endReason,
	}
	if c.winner != nil {
		w := *c.winner
		s.Winner = &w
	}
	return s
}

// Info is the round-info payload for the current state.
func (c *Controller) Info() models.RoundInfo {
	active := c.Active()
	info := models.RoundInfo{
		RoundNumber: c.number,
		IsActive:    active,
		IsWaiting:   !active,
	}
	if c.number > 0 {
		start, end := c.startTime.UnixMilli(), c.endTime.UnixMilli()
		info.StartTime = &start
		info.EndTime = &end
	}
	if !active {
		info.EndReason = c.endReason
		if c.winner != nil {
			w := *c.winner
			info.Winner = &w
		}
	}
	return info
}

// RequestStart begins the next round. It is rejected without side effects
// while a round is active.
func (c *Controller) RequestStart() error {
	if c.Active() {
		return ErrRoundAlreadyActive
	}

	now := c.clock.Now()
	c.number++
	c.startTime = now
	c.endTime = now.Add(c.settings.Duration)
	c.winner = nil
	c.endReason = ""

	c.grid.Initialize()
	c.players.ResetScores()
	if purged := c.players.PurgeOffline(); purged > 0 {
		logger.Log.Debugf("Purged %d offline players before round %d", purged, c.number)
	}

	if err := c.machine.ChangeState(c.active); err != nil {
		return fmt.Errorf("enter active phase: %w", err)
	}

	logger.Log.Infof("Round %d started, ends at %s", c.number, c.endTime.Format(time.RFC3339))

	c.notifier.BroadcastToAll(network.EventRoundStarted, models.RoundStarted{
		RoundNumber: c.number,
		StartTime:   c.startTime.UnixMilli(),
		EndTime:     c.endTime.UnixMilli(),
		Duration:    c.settings.Duration.Milliseconds(),
	})
	c.notifier.BroadcastToAll(network.EventGameStateReset, models.GameStateReset{
		Grid: c.grid.Snapshot(),
	})
	return nil
}

// End finishes the active round. earlyWinner, when set, wins regardless of
// the leaderboard. It reports false if no round was active.
func (c *Controller) End(reason string, earlyWinner *player.Player) bool {
	if !c.Active() {
		return false
	}

	winner := earlyWinner
	if winner == nil {
		if leader, ok := c.players.Leader(); ok {
			winner = &leader
		}
	}
	c.winner = winner
	c.endReason = reason

	if err := c.machine.ChangeState(c.waiting); err != nil {
		logger.Log.Errorf("Round %d could not leave active phase: %v", c.number, err)
		return false
	}

	leaderboard := c.players.Rank(c.settings.LeaderboardSize)
	logger.Log.Infof("Round %d ended: %s", c.number, reason)

	c.notifier.BroadcastToAll(network.EventRoundEnded, models.RoundEnded{
		RoundNumber: c.number,
		Reason:      reason,
		Winner:      winner,
		Leaderboard: leaderboard,
		Message:     endMessage(c.number, winner),
	})

	if c.OnEnd != nil {
		c.OnEnd(Result{
			Number:      c.number,
			Reason:      reason,
			Winner:      winner,
			Leaderboard: leaderboard,
			StartedAt:   c.startTime,
			EndedAt:     c.clock.Now(),
		})
	}
	return true
}

func endMessage(number int, winner *player.Player) string {
	if winner == nil {
		return "Time's up!"
	}
	return fmt.Sprintf("Round %d Winner: %s with %d tiles!", number, winner.Name, winner.Score)
}

// CheckVictory ends the round if the leader reached the victory threshold.
func (c *Controller) CheckVictory() bool {
	if !c.Active() {
		return false
	}
	leader, ok := c.players.Leader()
	if !ok || leader.Score < c.settings.VictoryThreshold {
		return false
	}
	return c.End(ReasonVictory, &leader)
}

// expire is the round-end timer callback. A firing that belongs to an older
// round is ignored.
func (c *Controller) expire(number int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.number != number || !c.Active() {
		return
	}
	c.End(ReasonTime, nil)
}

// tick broadcasts the remaining time; it never mutates state.
func (c *Controller) tick(number int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.number != number || !c.Active() {
		return
	}
	now := c.clock.Now()
	remaining := c.endTime.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	c.notifier.BroadcastToAll(network.EventRoundTick, models.RoundTick{
		CurrentTime:   now.UnixMilli(),
		EndTime:       c.endTime.UnixMilli(),
		TimeRemaining: remaining.Milliseconds(),
	})
}

// Close cancels any armed timers.
func (c *Controller) Close() {
	c.active.cancelTimers()
}
