package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, parsed from the environment (with
// an optional .env file for development).
type Config struct {
	// HTTPAddr is the listen address of the HTTP server.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// JWTSecret signs and verifies the bearer tokens that carry the receiver
	// identity on subscribe and notification endpoints.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key"`

	// DBPath is the sqlite database file holding notifications and users.
	DBPath string `env:"DB_PATH" envDefault:"pushhub.db"`

	// ReplayCapacity bounds the in-memory replay buffer.
	ReplayCapacity int `env:"REPLAY_CAPACITY" envDefault:"100"`

	// IdleTimeout closes a push connection that has received no data for this
	// long.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"1h"`

	// HeartbeatInterval is how often keep-alive frames are pushed.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30m"`

	// DispatchWorkers is the number of background dispatch workers.
	DispatchWorkers int `env:"DISPATCH_WORKERS" envDefault:"4"`

	// DispatchQueueSize bounds the dispatch queue. A full queue rejects new
	// work rather than blocking the committing request.
	DispatchQueueSize int `env:"DISPATCH_QUEUE_SIZE" envDefault:"100"`

	// Logging.
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutput   string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogFilePath string `env:"LOG_FILE_PATH"`
}

var dotenvOnce sync.Once

// Load parses the configuration from the environment. A .env file in the
// working directory is loaded once if present.
func Load() (*Config, error) {
	dotenvOnce.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
