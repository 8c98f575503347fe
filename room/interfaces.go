package room

import "github.com/wfunc/territory/models"

// Broadcaster defines the interface for delivering events to sessions.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToAll(event string, payload interface{})
	BroadcastExcept(sessionID string, event string, payload interface{})
	SendTo(sessionID string, event string, payload interface{}) error
}

// Observer receives game metrics. monitor.Monitor satisfies it.
type Observer interface {
	SetOnlinePlayers(count int)
	RoundStarted(number int)
	RoundEnded(reason string)
	ClaimAccepted()
	ClaimRejected(reason string)
}

// Recorder archives finished rounds. Record is called inside the critical
// section and must not block.
type Recorder interface {
	Record(record models.RoundRecord)
}

type nopObserver struct{}

func (nopObserver) SetOnlinePlayers(int) {}
func (nopObserver) RoundStarted(int)     {}
func (nopObserver) RoundEnded(string)    {}
func (nopObserver) ClaimAccepted()       {}
func (nopObserver) ClaimRejected(string) {}
