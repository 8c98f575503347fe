package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wfunc/territory/broadcast"
	"github.com/wfunc/territory/config"
	"github.com/wfunc/territory/logger"
	"github.com/wfunc/territory/monitor"
	"github.com/wfunc/territory/persistence"
	"github.com/wfunc/territory/room"
	"github.com/wfunc/territory/round"
	"github.com/wfunc/territory/server"
	"github.com/wfunc/territory/services"
	"github.com/wfunc/territory/session"
	"github.com/wfunc/territory/timer"
)

const shutdownTimeout = 10 * time.Second

func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case config.DriverGorm:
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case config.DriverPostgres:
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewMemory(), nil
	}
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	// Initialize Database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Round archive ready (%s).", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	timers := timer.NewTimerManager(workerCtx, cfg.Game.TimerResolution)
	history := services.NewHistoryService(db, services.DefaultHistoryQueue)
	go history.Run(workerCtx)

	mon := monitor.NewMonitor("territory")
	sessions := session.NewManager()
	arena := room.NewArena(room.Options{
		GridSize: cfg.Game.GridSize,
		Cooldown: cfg.Game.Cooldown,
		Round: round.Settings{
			Duration:         cfg.Game.RoundDuration,
			TickInterval:     cfg.Game.TickInterval,
			VictoryThreshold: cfg.Game.VictoryThreshold,
			LeaderboardSize:  cfg.Game.LeaderboardSize,
		},
	}, timers, sessions, broadcast.NewSessionBroadcaster(sessions, mon), timer.SystemClock{})
	arena.SetObserver(mon)
	arena.SetRecorder(history)

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, arena, sessions, history, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- gameServer.Start() }()

	logger.Log.Infof("Grid %dx%d, round %s, victory at %d tiles. Waiting for players to start the first round.",
		cfg.Game.GridSize, cfg.Game.GridSize, cfg.Game.RoundDuration, cfg.Game.VictoryThreshold)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("Shutdown: %v", err)
	}
	arena.Close()

	stopWorkers()
	<-timers.Done()
	select {
	case <-history.Done():
	case <-shutdownCtx.Done():
		logger.Log.Warn("History worker did not finish in time")
	}
}
