// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/territory/grid"
	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/models"
	"github.com/wfunc/territory/network"
	"github.com/wfunc/territory/player"
	"github.com/wfunc/territory/round"
	"github.com/wfunc/territory/session"
	"github.com/wfunc/territory/timer"
)

// ErrRateLimited rejects intents arriving faster than the session limit.
var ErrRateLimited = errors.New("too many requests")

// ErrorMessage is the text sent to a client for a rejected intent.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, grid.ErrInvalidCoordinate):
		return "Invalid coordinates"
	case errors.Is(err, grid.ErrOnCooldown):
		return "Cell on cooldown"
	case errors.Is(err, grid.ErrAlreadyOwned):
		return "Already your cell"
	case errors.Is(err, grid.ErrUnknownPlayer):
		return "User not found"
	case errors.Is(err, round.ErrRoundNotActive):
		return "Round not active. Start a round first!"
	case errors.Is(err, round.ErrRoundAlreadyActive):
		return "Round already active"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests"
	default:
		return "Internal error"
	}
}

// rejectionReason is the metrics label for a rejected claim.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, grid.ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, grid.ErrOnCooldown):
		return "cooldown"
	case errors.Is(err, grid.ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, grid.ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, round.ErrRoundNotActive):
		return "round_not_active"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "other"
	}
}

type Options struct {
	GridSize int
	Cooldown time.Duration
	Round    round.Settings
}

// Arena 是整个游戏的上下文: grid, players and round share one lock, and every
// intent and timer firing runs inside it. Events are queued on sessions while
// the lock is held so all peers observe them in the same order.
type Arena struct {
	mu          sync.Mutex
	grid        *grid.Store
	players     *player.Registry
	round       *round.Controller
	sessions    *session.Manager
	broadcaster Broadcaster
	observer    Observer
	recorder    Recorder
	clock       timer.Clock
	boardSize   int
}

func NewArena(opts Options, sched round.Scheduler, sessions *session.Manager, broadcaster Broadcaster, clock timer.Clock) *Arena {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	if opts.GridSize <= 0 {
		opts.GridSize = grid.DefaultSize
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = grid.DefaultCooldown
	}
	if opts.Round.LeaderboardSize <= 0 {
		opts.Round.LeaderboardSize = player.DefaultLeaderboardSize
	}

	a := &Arena{
		players:     player.NewRegistry(),
		sessions:    sessions,
		broadcaster: broadcaster,
		observer:    nopObserver{},
		clock:       clock,
		boardSize:   opts.Round.LeaderboardSize,
	}
	a.grid = grid.NewStore(opts.GridSize, opts.Cooldown, a.players, clock)
	a.round = round.NewController(opts.Round, a.grid, a.players, sched, broadcaster, clock, &a.mu)
	a.round.OnEnd = a.onRoundEnd
	return a
}

// SetObserver installs the metrics sink. Call before serving.
func (a *Arena) SetObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	a.observer = o
}

// SetRecorder installs the round archive. Call before serving.
func (a *Arena) SetRecorder(r Recorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorder = r
}

// Join registers the session's player, sends it the current state and
// announces it to everyone else.
func (a *Arena) Join(s *session.Session) player.Player {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.players.Register(s.ID)
	a.sessions.Add(s)

	a.send(s.ID, network.EventInitialState, models.InitialState{
		Grid:        a.grid.Snapshot(),
		Users:       a.players.All(),
		CurrentUser: p,
	})
	a.send(s.ID, network.EventRoundInfo, a.round.Info())
	a.broadcaster.BroadcastExcept(s.ID, network.EventUserJoined, p)

	a.observer.SetOnlinePlayers(a.players.OnlineCount())
	logger.Log.Infof("Player %s (%s) joined", p.Name, s.ID)
	return p
}

// Leave marks the player offline. Its cells keep their owner and color.
func (a *Arena) Leave(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessions.Remove(sessionID)
	if !a.players.MarkOffline(sessionID) {
		return
	}

	a.broadcaster.BroadcastToAll(network.EventUserLeft, models.UserLeft{UserID: sessionID})
	a.broadcaster.BroadcastToAll(network.EventLeaderboardUpdate, a.players.Rank(a.boardSize))

	a.observer.SetOnlinePlayers(a.players.OnlineCount())
	logger.Log.Infof("Player %s left", sessionID)
}

// StartRound handles a start-round intent. A rejection is reported to the
// sender only.
func (a *Arena) StartRound(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.round.RequestStart(); err != nil {
		logger.Log.Debugf("Start rejected for %s: %v", sessionID, err)
		a.reject(sessionID, network.EventStartRoundError, err)
		return err
	}
	a.observer.RoundStarted(a.round.Snapshot().Number)
	return nil
}

// Claim handles a claim-cell intent. On success every session receives
// cell-claimed followed by leaderboard-update, then the victory check runs.
func (a *Arena) Claim(sessionID string, x, y int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.round.Active() {
		return a.rejectClaim(sessionID, round.ErrRoundNotActive)
	}

	cell, err := a.grid.Claim(sessionID, x, y)
	if err != nil {
		return a.rejectClaim(sessionID, err)
	}

	a.observer.ClaimAccepted()
	a.broadcaster.BroadcastToAll(network.EventCellClaimed, models.NewCellClaimed(cell))
	a.broadcaster.BroadcastToAll(network.EventLeaderboardUpdate, a.players.Rank(a.boardSize))
	a.round.CheckVictory()
	return nil
}

// Reject reports err to one session without touching game state.
func (a *Arena) Reject(sessionID string, event string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if event == network.EventClaimError {
		a.observer.ClaimRejected(rejectionReason(err))
	}
	a.reject(sessionID, event, err)
}

func (a *Arena) rejectClaim(sessionID string, err error) error {
	logger.Log.Debugf("Claim rejected for %s: %v", sessionID, err)
	a.observer.ClaimRejected(rejectionReason(err))
	a.reject(sessionID, network.EventClaimError, err)
	return err
}

func (a *Arena) reject(sessionID string, event string, err error) {
	a.send(sessionID, event, network.ErrorPayload{Error: ErrorMessage(err)})
}

func (a *Arena) send(sessionID string, event string, payload interface{}) {
	if err := a.broadcaster.SendTo(sessionID, event, payload); err != nil {
		logger.Log.Warnf("Failed to send %s to %s: %v", event, sessionID, err)
	}
}

// onRoundEnd runs inside the critical section.
func (a *Arena) onRoundEnd(res round.Result) {
	a.observer.RoundEnded(res.Reason)
	if a.recorder != nil {
		a.recorder.Record(newRoundRecord(res))
	}
}

func newRoundRecord(res round.Result) models.RoundRecord {
	record := models.RoundRecord{
		RoundNumber: res.Number,
		Reason:      res.Reason,
		StartedAt:   res.StartedAt,
		EndedAt:     res.EndedAt,
	}
	for i, p := range res.Leaderboard {
		record.Standings = append(record.Standings, models.Standing{
			Rank:     i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Color:    p.Color,
			Score:    p.Score,
		})
	}
	if res.Winner != nil {
		record.Winner = &models.Standing{
			Rank:     1,
			PlayerID: res.Winner.ID,
			Name:     res.Winner.Name,
			Color:    res.Winner.Color,
			Score:    res.Winner.Score,
		}
	}
	return record
}

// RoundInfo returns the round-info payload.
func (a *Arena) RoundInfo() models.RoundInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.round.Info()
}

// Leaderboard returns the current ranking.
func (a *Arena) Leaderboard() []player.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.players.Rank(a.boardSize)
}

func (a *Arena) Players() []player.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.players.All()
}

// Grid returns a snapshot of every cell.
func (a *Arena) Grid() []grid.CellView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.grid.Snapshot()
}

// Close cancels the round timers.
func (a *Arena) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.round.Close()
}
