package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Movement holds the movement validation policy.
type Movement struct {
	MaxSpeed         float64 `yaml:"max_speed"`          // units per second
	MaxDeltaTime     float64 `yaml:"max_delta_time"`     // seconds per command
	MaxPositionDelta float64 `yaml:"max_position_delta"` // units per command
	Epsilon          float64 `yaml:"epsilon"`
}

// DefaultMovement returns the stock movement policy.
func DefaultMovement() Movement {
	return Movement{
		MaxSpeed:         250,
		MaxDeltaTime:     0.5,
		MaxPositionDelta: 150,
		Epsilon:          1e-6,
	}
}

// Simulation holds tick and gameplay parameters of the simulation core.
type Simulation struct {
	TickRate int `yaml:"tick_rate"` // ticks per second
	// Workers bounds the number of instances ticked in parallel (0 = GOMAXPROCS).
	Workers             int           `yaml:"workers"`
	CommandQueueSize    int           `yaml:"command_queue_size"` // per session
	DisconnectGrace     time.Duration `yaml:"disconnect_grace"`
	WarmTTL             time.Duration `yaml:"warm_ttl"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
	TransitionCooldown  time.Duration `yaml:"transition_cooldown"`

	Movement Movement `yaml:"movement"`

	PlayerHalfSize  float64        `yaml:"player_half_size"`
	PlayerMaxHealth float64        `yaml:"player_max_health"`
	InteractRange   float64        `yaml:"interact_range"`
	ReviveFraction  float64        `yaml:"revive_fraction"`
	StartingItems   map[string]int `yaml:"starting_items"`
	// StartingEquipment maps slot names to starting items to put in them.
	StartingEquipment map[string]string `yaml:"starting_equipment"`

	// Seed makes NPC patrol choices reproducible.
	Seed uint64 `yaml:"seed"`
}

// DefaultSimulation returns Simulation config with sensible defaults.
func DefaultSimulation() Simulation {
	return Simulation{
		TickRate:            20,
		CommandQueueSize:    64,
		DisconnectGrace:     30 * time.Second,
		WarmTTL:             60 * time.Second,
		MaintenanceInterval: 5 * time.Second,
		TransitionCooldown:  time.Second,
		Movement:            DefaultMovement(),
		PlayerHalfSize:      8,
		PlayerMaxHealth:     100,
		InteractRange:       40,
		ReviveFraction:      0.5,
		StartingItems:       map[string]int{"arrow": 20, "fruit": 2, "sword": 1, "bow": 1},
		StartingEquipment:   map[string]string{"main_hand": "sword"},
		Seed:                1,
	}
}

// TickInterval returns the duration of one tick.
func (s Simulation) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(s.TickRate)
}

// Validate checks the simulation parameters.
func (s Simulation) Validate() error {
	var errs []error
	if s.TickRate <= 0 || s.TickRate > 240 {
		errs = append(errs, fmt.Errorf("tick_rate %d out of range 1..240", s.TickRate))
	}
	if s.CommandQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("command_queue_size must be positive"))
	}
	if s.WarmTTL <= 0 {
		errs = append(errs, fmt.Errorf("warm_ttl must be positive"))
	}
	if s.MaintenanceInterval <= 0 {
		errs = append(errs, fmt.Errorf("maintenance_interval must be positive"))
	}
	if s.Movement.MaxSpeed <= 0 || s.Movement.MaxDeltaTime <= 0 || s.Movement.MaxPositionDelta <= 0 {
		errs = append(errs, fmt.Errorf("movement limits must be positive"))
	}
	if s.ReviveFraction <= 0 || s.ReviveFraction > 1 {
		errs = append(errs, fmt.Errorf("revive_fraction %v out of range (0,1]", s.ReviveFraction))
	}
	if s.PlayerMaxHealth <= 0 || s.PlayerHalfSize <= 0 {
		errs = append(errs, fmt.Errorf("player_max_health and player_half_size must be positive"))
	}
	return errors.Join(errs...)
}

// Persistence holds paths of the secondary event stores.
type Persistence struct {
	IndexPath  string `yaml:"index_path"`  // sqlite event index ("" = disabled)
	JournalDir string `yaml:"journal_dir"` // zstd tick journal ("" = disabled)
	QueueSize  int    `yaml:"queue_size"`
}

// GameServer holds all configuration for the game server.
type GameServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	LogLevel string `yaml:"log_level"`

	// Static game data
	RegistryPath string `yaml:"registry_path"`

	// Database (player profiles)
	Database DatabaseConfig `yaml:"database"`

	// Write queue / timeouts
	WriteTimeout     time.Duration `yaml:"write_timeout"`     // per-write deadline (default: 5s)
	ReadTimeout      time.Duration `yaml:"read_timeout"`      // idle client disconnect (default: 60s)
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // hello deadline (default: 5s)
	SendQueueSize    int           `yaml:"send_queue_size"`   // per-client outbox capacity (default: 256)

	// Operator endpoints under /admin
	AdminEnabled bool `yaml:"admin_enabled"`

	Simulation  Simulation  `yaml:"simulation"`
	Persistence Persistence `yaml:"persistence"`
}

// DefaultGameServer returns GameServer config with sensible defaults.
func DefaultGameServer() GameServer {
	return GameServer{
		BindAddress:      "0.0.0.0",
		Port:             7777,
		LogLevel:         "info",
		RegistryPath:     "config/registry.yaml",
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      60 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		SendQueueSize:    256,
		AdminEnabled:     true,
		Database: DatabaseConfig{
			Enabled:  true,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "coopsim",
			Password: "coopsim",
			DBName:   "coopsim",
			SSLMode:  "disable",
		},
		Simulation: DefaultSimulation(),
		Persistence: Persistence{
			IndexPath:  "data/events.db",
			JournalDir: "data/journal",
			QueueSize:  4096,
		},
	}
}

// Addr returns the listen address.
func (c GameServer) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// LoadGameServer loads game server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Simulation.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}
