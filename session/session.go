// session/session.go
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/territory/network"
)

const DefaultSendBuffer = 256

// Session is one live connection. Outbound frames are queued and written by
// Run so that senders never block on a slow peer.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	limiter    *rate.Limiter
	outbox     chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		outbox:     make(chan []byte, sendBuffer),
		closed:     make(chan struct{}),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// SetRateLimit limits inbound intents to r per second with the given burst.
// A non-positive rate disables limiting.
func (s *Session) SetRateLimit(r float64, burst int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if r <= 0 {
		s.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(r), burst)
}

// Allow consumes one intent token and records activity.
func (s *Session) Allow() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
	return s.limiter == nil || s.limiter.Allow()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Send queues a frame. It returns false when the session is closed or its
// queue is full.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.outbox <- frame:
		return true
	default:
		return false
	}
}

// TryReceive pops a queued frame without writing it.
func (s *Session) TryReceive() ([]byte, bool) {
	select {
	case frame := <-s.outbox:
		return frame, true
	default:
		return nil, false
	}
}

// Run writes queued frames and pings the peer until the session is closed or
// a write fails.
func (s *Session) Run(heartbeat time.Duration) error {
	var ping <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-s.closed:
			return nil
		case frame := <-s.outbox:
			if err := s.Conn.WriteMessage(frame); err != nil {
				return err
			}
		case <-ping:
			if err := s.Conn.Ping(); err != nil {
				return err
			}
		}
	}
}

// Close stops Run and closes the connection. It is safe to call repeatedly.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.Conn.Close()
	})
	return err
}

func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Remove drops the session and reports whether it was present.
func (m *Manager) Remove(sessionID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, exists := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return exists
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// All returns a copy of the live sessions.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session, used on shutdown.
func (m *Manager) CloseAll() {
	for _, s := range m.All() {
		s.Close()
	}
}
