// persistence/memory.go
package persistence

import (
	"sync"

	"github.com/wfunc/territory/models"
)

// Memory keeps the archive in process memory. It is the default driver and
// forgets everything on restart.
type Memory struct {
	records []models.RoundRecord
	nextID  uint
	mutex   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) SaveRoundRecord(record *models.RoundRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	record.ID = m.nextID
	m.nextID++
	m.records = append(m.records, cloneRecord(*record))
	return nil
}

func (m *Memory) LoadRoundRecord(id uint) (*models.RoundRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			c := cloneRecord(r)
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

// RecentRounds returns up to limit records, newest first.
func (m *Memory) RecentRounds(limit int) ([]models.RoundRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]models.RoundRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, cloneRecord(m.records[i]))
	}
	return result, nil
}

func (m *Memory) Summary() (models.RoundSummary, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var s models.RoundSummary
	for _, r := range m.records {
		s.TotalRounds++
		switch r.Reason {
		case models.ReasonVictory:
			s.VictoryRounds++
		case models.ReasonTime:
			s.TimeRounds++
		}
		if r.Winner != nil && int64(r.Winner.Score) > s.BestScore {
			s.BestScore = int64(r.Winner.Score)
		}
	}
	return s, nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneRecord(r models.RoundRecord) models.RoundRecord {
	if r.Winner != nil {
		w := *r.Winner
		r.Winner = &w
	}
	r.Standings = append([]models.Standing(nil), r.Standings...)
	return r
}
