package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGameServer_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadGameServer(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGameServer().Port, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.Simulation.WarmTTL)
	assert.Equal(t, 250.0, cfg.Simulation.Movement.MaxSpeed)
}

func TestLoadGameServer_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	body := `
port: 9000
log_level: debug
simulation:
  tick_rate: 30
  warm_ttl: 90s
  movement:
    max_speed: 300
database:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadGameServer(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30, cfg.Simulation.TickRate)
	assert.Equal(t, 90*time.Second, cfg.Simulation.WarmTTL)
	assert.Equal(t, 300.0, cfg.Simulation.Movement.MaxSpeed)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 0.5, cfg.Simulation.Movement.MaxDeltaTime)
	assert.Equal(t, 5*time.Second, cfg.Simulation.MaintenanceInterval)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadGameServer_InvalidSimulation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  tick_rate: 0\n"), 0o644))

	_, err := LoadGameServer(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_rate")
}

func TestLoadGameServer_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gameserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o644))

	_, err := LoadGameServer(path)
	require.Error(t, err)
}

func TestSimulation_TickInterval(t *testing.T) {
	s := DefaultSimulation()
	assert.Equal(t, 50*time.Millisecond, s.TickInterval())

	s.TickRate = 0
	assert.Equal(t, 50*time.Millisecond, s.TickInterval())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "coop", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/coop?sslmode=disable", d.DSN())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), tt.in)
	}
}

func TestLoadGameServer_SampleConfig(t *testing.T) {
	cfg, err := LoadGameServer(filepath.Join("..", "..", "config", "gameserver.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGameServer(), cfg)
}
