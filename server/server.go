package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/territory/config"
	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/monitor"
	"github.com/wfunc/territory/network"
	"github.com/wfunc/territory/room"
	territory_rpc "github.com/wfunc/territory/rpc"
	"github.com/wfunc/territory/services"
	"github.com/wfunc/territory/session"
)

type GameServer struct {
	cfg            config.ServerConfig
	game           config.GameConfig
	upgrader       websocket.Upgrader
	arena          *room.Arena
	sessionManager *session.Manager
	history        *services.HistoryService
	monitor        *monitor.Monitor
	httpServer     *http.Server
	rpcServer      *territory_rpc.Server
	connections    sync.WaitGroup
}

func NewGameServer(cfg *config.Config, arena *room.Arena, sessionManager *session.Manager,
	history *services.HistoryService, mon *monitor.Monitor) (*GameServer, error) {
	s := &GameServer{
		cfg:            cfg.Server,
		game:           cfg.Game,
		arena:          arena,
		sessionManager: sessionManager,
		history:        history,
		monitor:        mon,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	// 初始化RPC服务器
	if cfg.Server.RPCAddress != "" {
		rpcServer, err := territory_rpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			return nil, err
		}
		// 注册RPC服务
		if err := rpcServer.Register(territory_rpc.NewArenaService(arena, history)); err != nil {
			rpcServer.Stop()
			return nil, err
		}
		s.rpcServer = rpcServer
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// checkOrigin allows every origin when none are configured.
func (s *GameServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true // 允许所有跨域请求
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Handler is the HTTP surface: the websocket endpoint plus read-only APIs.
func (s *GameServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.monitor.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/round", s.handleRoundInfo)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/rounds", s.handleRecentRounds)
		r.Get("/rounds/{id}", s.handleRound)
	})
	return r
}

func (s *GameServer) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}

	logger.Log.Infof("Game server listening on %s", s.cfg.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and waits for
// their handlers to finish.
func (s *GameServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
	s.sessionManager.CloseAll()

	done := make(chan struct{})
	go func() {
		s.connections.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.connections.Add(1)
	defer s.connections.Done()
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.cfg.Heartbeat)

	sess := session.NewSession(uuid.New().String(), wsConn, s.cfg.SendBuffer)
	sess.SetRateLimit(s.game.IntentRate, s.game.IntentBurst)

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
	s.arena.Join(sess)

	go func() {
		if err := sess.Run(s.cfg.Heartbeat); err != nil && !network.IsClosure(err) {
			logger.Log.Warnf("Write to session %s failed: %v", sess.GetID(), err)
		}
		sess.Close()
	}()

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.arena.Leave(sess.GetID())
		sess.Close()
	}()

	for {
		env, err := wsConn.ReadEnvelope()
		if err != nil {
			if errors.Is(err, network.ErrMalformedFrame) {
				logger.Log.Debugf("Session %s sent a malformed frame: %v", sess.GetID(), err)
				continue
			}
			if !network.IsClosure(err) {
				logger.Log.Debugf("Read from session %s failed: %v", sess.GetID(), err)
			}
			return
		}
		s.handleEnvelope(sess, env)
	}
}

func (s *GameServer) handleEnvelope(sess *session.Session, env *network.Envelope) {
	start := time.Now()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	switch env.Event {
	case network.EventStartRound:
		s.monitor.IncMessagesReceived(env.Event)
		if !sess.Allow() {
			s.arena.Reject(sess.GetID(), network.EventStartRoundError, room.ErrRateLimited)
			return
		}
		s.arena.StartRound(sess.GetID())
	case network.EventClaimCell:
		s.monitor.IncMessagesReceived(env.Event)
		if !sess.Allow() {
			s.arena.Reject(sess.GetID(), network.EventClaimError, room.ErrRateLimited)
			return
		}
		x, y, ok := network.ParseClaim(env.Data)
		if !ok {
			// out of range for every grid
			x, y = -1, -1
		}
		s.arena.Claim(sess.GetID(), x, y)
	default:
		s.monitor.IncMessagesReceived("unknown")
		logger.Log.Debugf("Unknown event %q from session %s", env.Event, sess.GetID())
	}
}
