// models/events.go
package models

import (
	"github.com/wfunc/territory/grid"
	"github.com/wfunc/territory/player"
)

// InitialState is pushed to a session right after it connects.
type InitialState struct {
	Grid        []grid.CellView `json:"grid"`
	Users       []player.Player `json:"users"`
	CurrentUser player.Player   `json:"currentUser"`
}

// RoundInfo describes the current phase. StartTime and EndTime are null
// until the first round starts. Winner and EndReason describe the last
// finished round while waiting.
type RoundInfo struct {
	RoundNumber int            `json:"roundNumber"`
	StartTime   *int64         `json:"startTime"`
	EndTime     *int64         `json:"endTime"`
	IsActive    bool           `json:"isActive"`
	IsWaiting   bool           `json:"isWaiting"`
	Winner      *player.Player `json:"winner,omitempty"`
	EndReason   string         `json:"endReason,omitempty"`
}

type RoundStarted struct {
	RoundNumber int   `json:"roundNumber"`
	StartTime   int64 `json:"startTime"`
	EndTime     int64 `json:"endTime"`
	Duration    int64 `json:"duration"`
}

type GameStateReset struct {
	Grid []grid.CellView `json:"grid"`
}

type RoundTick struct {
	CurrentTime   int64 `json:"currentTime"`
	EndTime       int64 `json:"endTime"`
	TimeRemaining int64 `json:"timeRemaining"`
}

type RoundEnded struct {
	RoundNumber int             `json:"roundNumber"`
	Reason      string          `json:"reason"`
	Winner      *player.Player  `json:"winner"`
	Leaderboard []player.Player `json:"leaderboard"`
	Message     string          `json:"message"`
}

type CellClaimed struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	OwnerID    string `json:"ownerId"`
	Color      string `json:"color"`
	CapturedAt int64  `json:"capturedAt"`
}

// NewCellClaimed builds the broadcast for a successful claim.
func NewCellClaimed(c grid.Cell) CellClaimed {
	return CellClaimed{
		X:          c.X,
		Y:          c.Y,
		OwnerID:    c.OwnerID,
		Color:      c.Color,
		CapturedAt: c.CapturedAt.UnixMilli(),
	}
}

type UserLeft struct {
	UserID string `json:"userId"`
}
