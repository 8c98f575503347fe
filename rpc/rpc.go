package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/models"
	"github.com/wfunc/territory/player"
	"github.com/wfunc/territory/room"
	"github.com/wfunc/territory/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register publishes the receiver's exported methods.
func (s *Server) Register(rcvr interface{}) error {
	return s.rpc.Register(rcvr)
}

// Addr is the address actually bound, useful with port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// ArenaService exposes read-only game state to operators.
type ArenaService struct {
	arena   *room.Arena
	history *services.HistoryService
}

func NewArenaService(arena *room.Arena, history *services.HistoryService) *ArenaService {
	return &ArenaService{arena: arena, history: history}
}

// Args is shared by every ArenaService method.
type Args struct {
	Limit int
}

type RoundInfoReply struct {
	Info models.RoundInfo
}

func (as *ArenaService) RoundInfo(_ *Args, reply *RoundInfoReply) error {
	reply.Info = as.arena.RoundInfo()
	return nil
}

type LeaderboardReply struct {
	Players []player.Player
}

func (as *ArenaService) Leaderboard(args *Args, reply *LeaderboardReply) error {
	board := as.arena.Leaderboard()
	if args.Limit > 0 && args.Limit < len(board) {
		board = board[:args.Limit]
	}
	reply.Players = board
	return nil
}

type RecentRoundsReply struct {
	Rounds  []models.RoundRecord
	Summary models.RoundSummary
}

func (as *ArenaService) RecentRounds(args *Args, reply *RecentRoundsReply) error {
	rounds, err := as.history.Recent(args.Limit)
	if err != nil {
		return err
	}
	summary, err := as.history.Summary()
	if err != nil {
		return err
	}
	reply.Rounds = rounds
	reply.Summary = summary
	return nil
}
