package player

import "sort"

// DefaultLeaderboardSize is the number of entries shown to clients.
const DefaultLeaderboardSize = 10

// Rank returns up to limit online players ordered by score, highest first.
// Equal scores keep join order, so repeated calls on unchanged data agree.
func (r *Registry) Rank(limit int) []Player {
	r.mutex.RLock()
	ranked := make([]Player, 0, len(r.order))
	for _, p := range r.order {
		if p.Online {
			ranked = append(ranked, *p)
		}
	}
	r.mutex.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].seq < ranked[j].seq
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Leader returns the top ranked player, if any.
func (r *Registry) Leader() (Player, bool) {
	top := r.Rank(1)
	if len(top) == 0 {
		return Player{}, false
	}
	return top[0], true
}
