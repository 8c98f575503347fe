package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
}

// GameConfig carries the rule constants of the game. The defaults are the
// values every client expects; override them only for local play-testing.
type GameConfig struct {
	GridSize         int           `mapstructure:"grid_size"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	RoundDuration    time.Duration `mapstructure:"round_duration"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	VictoryThreshold int           `mapstructure:"victory_threshold"`
	LeaderboardSize  int           `mapstructure:"leaderboard_size"`
	TimerResolution  time.Duration `mapstructure:"timer_resolution"`
	IntentRate       float64       `mapstructure:"intent_rate"`
	IntentBurst      int           `mapstructure:"intent_burst"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Database drivers understood by main.
const (
	DriverMemory   = "memory"
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":3000")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.send_buffer", 256)
	v.SetDefault("server.heartbeat", 30*time.Second)

	v.SetDefault("game.grid_size", 50)
	v.SetDefault("game.cooldown", 5*time.Second)
	v.SetDefault("game.round_duration", 10*time.Minute)
	v.SetDefault("game.tick_interval", 5*time.Second)
	v.SetDefault("game.victory_threshold", 1000)
	v.SetDefault("game.leaderboard_size", 10)
	v.SetDefault("game.timer_resolution", 50*time.Millisecond)
	v.SetDefault("game.intent_rate", 20.0)
	v.SetDefault("game.intent_burst", 40)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "territory")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path when present, then applies
// environment overrides. A bare PORT variable sets the listen port.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("port", "PORT"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if port := v.GetString("port"); port != "" {
		cfg.Server.HTTPAddress = ":" + port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	g := c.Game
	switch {
	case g.GridSize <= 0:
		return fmt.Errorf("game.grid_size must be positive, got %d", g.GridSize)
	case g.Cooldown < 0:
		return fmt.Errorf("game.cooldown must not be negative, got %s", g.Cooldown)
	case g.RoundDuration <= 0:
		return fmt.Errorf("game.round_duration must be positive, got %s", g.RoundDuration)
	case g.TickInterval <= 0:
		return fmt.Errorf("game.tick_interval must be positive, got %s", g.TickInterval)
	case g.VictoryThreshold <= 0:
		return fmt.Errorf("game.victory_threshold must be positive, got %d", g.VictoryThreshold)
	case g.LeaderboardSize <= 0:
		return fmt.Errorf("game.leaderboard_size must be positive, got %d", g.LeaderboardSize)
	case g.TimerResolution <= 0:
		return fmt.Errorf("game.timer_resolution must be positive, got %s", g.TimerResolution)
	}
	switch c.Database.Driver {
	case DriverMemory, DriverGorm, DriverPostgres:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
