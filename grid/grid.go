// grid/grid.go
package grid

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/territory/timer"
)

const (
	DefaultSize     = 50
	DefaultCooldown = 5 * time.Second
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinates")
	ErrOnCooldown        = errors.New("cell on cooldown")
	ErrAlreadyOwned      = errors.New("already your cell")
	ErrUnknownPlayer     = errors.New("user not found")
)

// Roster is the view of the player registry a claim needs.
type Roster interface {
	LiveColor(playerID string) (string, bool)
	AddScore(playerID string, delta int)
}

// Cell is the stored state of one grid unit. Color is copied from the owner
// at claim time and never follows later changes of the owner.
type Cell struct {
	X          int
	Y          int
	OwnerID    string
	CapturedAt time.Time
	Color      string
}

func (c Cell) Owned() bool {
	return c.OwnerID != ""
}

// CellView is the wire projection of a cell. Locked and CooldownRemaining are
// computed at read time.
type CellView struct {
	X                 int     `json:"x"`
	Y                 int     `json:"y"`
	OwnerID           *string `json:"ownerId"`
	CapturedAt        int64   `json:"capturedAt"`
	Color             *string `json:"color"`
	Locked            bool    `json:"locked"`
	CooldownRemaining int64   `json:"cooldownRemaining"`
}

// Store owns the size x size ownership table.
type Store struct {
	size     int
	cooldown time.Duration
	clock    timer.Clock
	roster   Roster
	cells    [][]Cell
	mutex    sync.RWMutex
}

func NewStore(size int, cooldown time.Duration, roster Roster, clock timer.Clock) *Store {
	if clock == nil {
		clock = timer.SystemClock{}
	}
	s := &Store{
		size:     size,
		cooldown: cooldown,
		clock:    clock,
		roster:   roster,
	}
	s.Initialize()
	return s
}

func (s *Store) Size() int {
	return s.size
}

func (s *Store) Cooldown() time.Duration {
	return s.cooldown
}

// Initialize (re)creates every cell unclaimed. Claims wait for it to finish.
func (s *Store) Initialize() {
	cells := make([][]Cell, s.size)
	for x := range cells {
		cells[x] = make([]Cell, s.size)
		for y := range cells[x] {
			cells[x][y] = Cell{X: x, Y: y}
		}
	}

	s.mutex.Lock()
	s.cells = cells
	s.mutex.Unlock()
}

func (s *Store) InBounds(x, y int) bool {
	return x >= 0 && x < s.size && y >= 0 && y < s.size
}

// Claim transfers the cell at (x, y) to playerID and moves one point of score
// from the previous owner to the new one.
func (s *Store) Claim(playerID string, x, y int) (Cell, error) {
	if !s.InBounds(x, y) {
		return Cell{}, ErrInvalidCoordinate
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.clock.Now()
	cell := &s.cells[x][y]

	if cell.Owned() && now.Sub(cell.CapturedAt) < s.cooldown {
		return Cell{}, ErrOnCooldown
	}
	if cell.Owned() && cell.OwnerID == playerID {
		return Cell{}, ErrAlreadyOwned
	}
	color, ok := s.roster.LiveColor(playerID)
	if !ok {
		return Cell{}, ErrUnknownPlayer
	}

	if cell.Owned() {
		s.roster.AddScore(cell.OwnerID, -1)
	}
	cell.OwnerID = playerID
	cell.CapturedAt = now
	cell.Color = color
	s.roster.AddScore(playerID, 1)

	return *cell, nil
}

// Cell returns the stored cell at (x, y).
func (s *Store) Cell(x, y int) (Cell, bool) {
	if !s.InBounds(x, y) {
		return Cell{}, false
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.cells[x][y], true
}

// View projects a cell for clients as of now.
func (s *Store) View(c Cell, now time.Time) CellView {
	v := CellView{X: c.X, Y: c.Y}
	if !c.Owned() {
		return v
	}
	owner, color := c.OwnerID, c.Color
	v.OwnerID = &owner
	v.Color = &color
	v.CapturedAt = c.CapturedAt.UnixMilli()

	if remaining := s.cooldown - now.Sub(c.CapturedAt); remaining > 0 {
		v.Locked = true
		v.CooldownRemaining = remaining.Milliseconds()
		if v.CooldownRemaining == 0 {
			v.CooldownRemaining = 1
		}
	}
	return v
}

// Snapshot returns every cell, column by column.
func (s *Store) Snapshot() []CellView {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.clock.Now()
	views := make([]CellView, 0, s.size*s.size)
	for x := range s.cells {
		for y := range s.cells[x] {
			views = append(views, s.View(s.cells[x][y], now))
		}
	}
	return views
}

// OwnedBy counts the cells currently owned by playerID.
func (s *Store) OwnedBy(playerID string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := 0
	for x := range s.cells {
		for y := range s.cells[x] {
			if s.cells[x][y].OwnerID == playerID {
				n++
			}
		}
	}
	return n
}
