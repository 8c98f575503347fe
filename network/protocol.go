package network

import (
	"encoding/json"
	"math"
)

// Client -> server events.
const (
	EventStartRound = "start-round"
	EventClaimCell  = "claim-cell"
)

// Server -> client events.
const (
	EventInitialState      = "initial-state"
	EventRoundInfo         = "round-info"
	EventRoundStarted      = "round-started"
	EventGameStateReset    = "game-state-reset"
	EventRoundTick         = "round-tick"
	EventRoundEnded        = "round-ended"
	EventCellClaimed       = "cell-claimed"
	EventLeaderboardUpdate = "leaderboard-update"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventClaimError        = "claim-error"
	EventStartRoundError   = "start-round-error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event with payload marshalled as its data.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// ClaimCellRequest is the claim-cell payload. Fields are decoded loosely so
// that fractional or missing values can be rejected as invalid coordinates
// rather than as transport errors.
type ClaimCellRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ParseClaim extracts integer coordinates from a claim-cell payload. ok is
// false for anything that is not a pair of exact integers.
func ParseClaim(data []byte) (x, y int, ok bool) {
	var req ClaimCellRequest
	if len(data) == 0 || json.Unmarshal(data, &req) != nil {
		return 0, 0, false
	}
	x, okX := exactInt(req.X)
	y, okY := exactInt(req.Y)
	return x, y, okX && okY
}

func exactInt(v *float64) (int, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v != math.Trunc(*v) {
		return 0, false
	}
	if *v < math.MinInt32 || *v > math.MaxInt32 {
		return 0, false
	}
	return int(*v), true
}

// ErrorPayload is sent privately with claim-error and start-round-error.
type ErrorPayload struct {
	Error string `json:"error"`
}
