package player

import (
	"fmt"
	"math/rand"
	"sync"
)

// Palette is the fixed rotation of player colours.
var Palette = []string{
	"#EF4444", "#3B82F6", "#10B981", "#F59E0B",
	"#8B5CF6", "#EC4899", "#14B8A6", "#F97316",
}

// Player is a connected (or formerly connected) participant. Its id is the
// connection id and is only valid for the lifetime of that connection.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Score  int    `json:"score"`
	Online bool   `json:"online"`

	seq uint64
}

// Registry owns player identity, colour assignment and score.
type Registry struct {
	players map[string]*Player
	order   []*Player // join order, used as the leaderboard tie-break
	nextSeq uint64
	// colorIndex is never reset so reconnects keep cycling the palette.
	colorIndex uint64
	nameFunc   func() string
	mutex      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		players:  make(map[string]*Player),
		nameFunc: randomName,
	}
}

func randomName() string {
	return fmt.Sprintf("Player%d", rand.Intn(1000))
}

// Register creates an online player with score 0 for connectionID. Registering
// an id twice returns the existing record.
func (r *Registry) Register(connectionID string) Player {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if p, exists := r.players[connectionID]; exists {
		return *p
	}

	p := &Player{
		ID:     connectionID,
		Name:   r.nameFunc(),
		Color:  Palette[r.colorIndex%uint64(len(Palette))],
		Online: true,
		seq:    r.nextSeq,
	}
	r.colorIndex++
	r.nextSeq++

	r.players[connectionID] = p
	r.order = append(r.order, p)
	return *p
}

// MarkOffline flips the player offline but keeps the record so late reads and
// score adjustments stay valid. It reports whether the player was online.
func (r *Registry) MarkOffline(connectionID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, exists := r.players[connectionID]
	if !exists || !p.Online {
		return false
	}
	p.Online = false
	return true
}

func (r *Registry) Get(connectionID string) (Player, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.players[connectionID]
	if !exists {
		return Player{}, false
	}
	return *p, true
}

// All returns every known player in join order, offline ones included.
func (r *Registry) All() []Player {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	players := make([]Player, 0, len(r.order))
	for _, p := range r.order {
		players = append(players, *p)
	}
	return players
}

func (r *Registry) OnlineCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for _, p := range r.order {
		if p.Online {
			n++
		}
	}
	return n
}

// LiveColor returns the colour of an online player.
func (r *Registry) LiveColor(connectionID string) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.players[connectionID]
	if !exists || !p.Online {
		return "", false
	}
	return p.Color, true
}

// AddScore applies delta to the player's score, floored at 0. Offline players
// are adjusted too since their cells stay on the grid.
func (r *Registry) AddScore(connectionID string, delta int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, exists := r.players[connectionID]
	if !exists {
		return
	}
	p.Score += delta
	if p.Score < 0 {
		p.Score = 0
	}
}

// ResetScores zeroes every score; players stay registered.
func (r *Registry) ResetScores() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, p := range r.order {
		p.Score = 0
	}
}

// PurgeOffline drops offline players. Only call it between rounds.
func (r *Registry) PurgeOffline() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	kept := r.order[:0]
	removed := 0
	for _, p := range r.order {
		if p.Online {
			kept = append(kept, p)
			continue
		}
		delete(r.players, p.ID)
		removed++
	}
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept
	return removed
}
