// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/network"
	"github.com/wfunc/territory/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSendFailed      = errors.New("session send queue full")
)

// 广播接口
type Broadcaster interface {
	BroadcastToAll(event string, payload interface{})
	BroadcastExcept(sessionID string, event string, payload interface{})
	SendTo(sessionID string, event string, payload interface{}) error
}

// DropObserver is told about every session evicted for not keeping up.
type DropObserver interface {
	IncBroadcastDrops()
}

// SessionBroadcaster fans events out to the live sessions. Each frame is
// encoded once and queued per session; a session whose queue is full is
// evicted in the background instead of slowing the sender down.
type SessionBroadcaster struct {
	sessionManager *session.Manager
	observer       DropObserver
}

func NewSessionBroadcaster(sessionManager *session.Manager, observer DropObserver) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
		observer:       observer,
	}
}

func (b *SessionBroadcaster) BroadcastToAll(event string, payload interface{}) {
	b.BroadcastExcept("", event, payload)
}

func (b *SessionBroadcaster) BroadcastExcept(sessionID string, event string, payload interface{}) {
	frame, err := network.Encode(event, payload)
	if err != nil {
		logger.Log.Errorf("Failed to encode %s: %v", event, err)
		return
	}

	for _, s := range b.sessionManager.All() {
		if s.ID == sessionID {
			continue
		}
		if !s.Send(frame) {
			b.drop(s)
		}
	}
}

func (b *SessionBroadcaster) SendTo(sessionID string, event string, payload interface{}) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}

	frame, err := network.Encode(event, payload)
	if err != nil {
		return err
	}
	if !s.Send(frame) {
		b.drop(s)
		return ErrSendFailed
	}
	return nil
}

// drop evicts a session asynchronously. Closing it ends its read loop, which
// runs the normal disconnect path.
func (b *SessionBroadcaster) drop(s *session.Session) {
	go func() {
		if !b.sessionManager.Remove(s.ID) {
			return
		}
		logger.Log.Warnf("Dropping slow session %s", s.ID)
		if b.observer != nil {
			b.observer.IncBroadcastDrops()
		}
		s.Close()
	}()
}
