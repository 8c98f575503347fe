// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/territory/models"
)

// Database 回合归档接口. Game state is never loaded back from it.
type Database interface {
	SaveRoundRecord(record *models.RoundRecord) error
	LoadRoundRecord(id uint) (*models.RoundRecord, error)
	RecentRounds(limit int) ([]models.RoundRecord, error)
	Summary() (models.RoundSummary, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// DefaultRecentLimit caps RecentRounds when limit is not positive.
const DefaultRecentLimit = 20
