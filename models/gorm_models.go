// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormRoundRecord 回合记录模型
type GormRoundRecord struct {
	gorm.Model
	RoundNumber int            `gorm:"index;not null"`
	Reason      string         `gorm:"size:32;not null"`
	WinnerID    string         `gorm:"size:64"`
	WinnerName  string         `gorm:"size:64"`
	WinnerColor string         `gorm:"size:16"`
	WinnerScore int            `gorm:"default:0"`
	StartedAt   time.Time      `gorm:"not null"`
	EndedAt     time.Time      `gorm:"index;not null"`
	Standings   []GormStanding `gorm:"foreignKey:RoundRecordID;constraint:OnDelete:CASCADE"`
}

func (GormRoundRecord) TableName() string { return "round_records" }

// GormStanding 回合排名模型
type GormStanding struct {
	gorm.Model
	RoundRecordID uint   `gorm:"index;not null"`
	Rank          int    `gorm:"not null"`
	PlayerID      string `gorm:"size:64;not null"`
	Name          string `gorm:"size:64;not null"`
	Color         string `gorm:"size:16"`
	Score         int    `gorm:"default:0"`
}

func (GormStanding) TableName() string { return "round_standings" }

// ToGorm converts an archive record into its ORM rows.
func (r RoundRecord) ToGorm() GormRoundRecord {
	g := GormRoundRecord{
		RoundNumber: r.RoundNumber,
		Reason:      r.Reason,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
	}
	if r.Winner != nil {
		g.WinnerID = r.Winner.PlayerID
		g.WinnerName = r.Winner.Name
		g.WinnerColor = r.Winner.Color
		g.WinnerScore = r.Winner.Score
	}
	for _, s := range r.Standings {
		g.Standings = append(g.Standings, GormStanding{
			Rank:     s.Rank,
			PlayerID: s.PlayerID,
			Name:     s.Name,
			Color:    s.Color,
			Score:    s.Score,
		})
	}
	return g
}

// FromGorm converts ORM rows back into an archive record.
func FromGorm(g GormRoundRecord) RoundRecord {
	r := RoundRecord{
		ID:          g.ID,
		RoundNumber: g.RoundNumber,
		Reason:      g.Reason,
		StartedAt:   g.StartedAt,
		EndedAt:     g.EndedAt,
		Standings:   make([]Standing, 0, len(g.Standings)),
	}
	for _, s := range g.Standings {
		r.Standings = append(r.Standings, Standing{
			Rank:     s.Rank,
			PlayerID: s.PlayerID,
			Name:     s.Name,
			Color:    s.Color,
			Score:    s.Score,
		})
	}
	if g.WinnerID != "" {
		r.Winner = &Standing{PlayerID: g.WinnerID, Name: g.WinnerName, Color: g.WinnerColor, Score: g.WinnerScore}
		for _, s := range r.Standings {
			if s.PlayerID == g.WinnerID {
				r.Winner.Rank = s.Rank
				break
			}
		}
	}
	return r
}
