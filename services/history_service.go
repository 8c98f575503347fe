// services/history_service.go
package services

import (
	"context"
	"fmt"

	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/models"
	"github.com/wfunc/territory/persistence"
)

const DefaultHistoryQueue = 64

// HistoryService archives finished rounds. Record only queues, so it can be
// called while the game lock is held; Run does the writes.
type HistoryService struct {
	db    persistence.Database
	queue chan models.RoundRecord
	done  chan struct{}
}

func NewHistoryService(db persistence.Database, queueSize int) *HistoryService {
	if queueSize <= 0 {
		queueSize = DefaultHistoryQueue
	}
	return &HistoryService{
		db:    db,
		queue: make(chan models.RoundRecord, queueSize),
		done:  make(chan struct{}),
	}
}

// Record queues a round for archiving. A full queue drops the record.
func (s *HistoryService) Record(record models.RoundRecord) {
	select {
	case s.queue <- record:
	default:
		logger.Log.Warnf("History queue full, dropping round %d", record.RoundNumber)
	}
}

// Run writes queued rounds until ctx is done, then flushes what is left.
func (s *HistoryService) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case record := <-s.queue:
			s.save(record)
		case <-ctx.Done():
			for {
				select {
				case record := <-s.queue:
					s.save(record)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (s *HistoryService) Done() <-chan struct{} {
	return s.done
}

func (s *HistoryService) save(record models.RoundRecord) {
	if err := s.db.SaveRoundRecord(&record); err != nil {
		logger.Log.Errorf("Failed to archive round %d: %v", record.RoundNumber, err)
		return
	}
	logger.Log.Infof("Archived round %d as record %d", record.RoundNumber, record.ID)
}

// Recent 获取最近的回合记录
func (s *HistoryService) Recent(limit int) ([]models.RoundRecord, error) {
	records, err := s.db.RecentRounds(limit)
	if err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	return records, nil
}

func (s *HistoryService) Get(id uint) (*models.RoundRecord, error) {
	return s.db.LoadRoundRecord(id)
}

func (s *HistoryService) Summary() (models.RoundSummary, error) {
	summary, err := s.db.Summary()
	if err != nil {
		return summary, fmt.Errorf("round summary: %w", err)
	}
	return summary, nil
}
