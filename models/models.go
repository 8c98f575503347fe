// models/models.go
package models

import (
	"time"
)

// Round end reasons.
const (
	ReasonTime    = "time"
	ReasonVictory = "victory"
)

// RoundRecord is the archived outcome of a finished round.
type RoundRecord struct {
	ID          uint       `json:"id,omitempty"`
	RoundNumber int        `json:"round_number"`
	Reason      string     `json:"reason"`
	Winner      *Standing  `json:"winner,omitempty"`
	Standings   []Standing `json:"standings"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     time.Time  `json:"ended_at"`
}

// Standing 玩家排名（用于回合记录）
type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Score    int    `json:"score"`
}

// RoundSummary aggregates the archive.
type RoundSummary struct {
	TotalRounds   int64 `json:"total_rounds"`
	VictoryRounds int64 `json:"victory_rounds"`
	TimeRounds    int64 `json:"time_rounds"`
	BestScore     int64 `json:"best_score"`
}
