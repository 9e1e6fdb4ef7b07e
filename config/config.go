package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config carries settings for both the relay server and the terminal client.
// Everything is environment-driven; defaults are suitable for local development.
type Config struct {
	Port        string `env:"PORT,default=8080"`
	Environment string `env:"ENVIRONMENT,default=development"`

	// Comma-separated list of origins allowed to reach the HTTP/WS surface.
	AllowedOriginsRaw string `env:"ALLOWED_ORIGINS,default=http://localhost:5173"`

	RoomTTL time.Duration `env:"ROOM_TTL,default=24h"`

	Redis RedisConfig

	Client ClientConfig
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST,default=localhost"`
	Port     string `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

// ClientConfig configures the resonance client binary.
type ClientConfig struct {
	RelayURL    string `env:"RELAY_URL,default=ws://localhost:8080"`
	RoomKey     string `env:"ROOM_KEY,default=resonance-lobby"`
	DisplayName string `env:"DISPLAY_NAME,default=Anonymous Peer"`

	// Comma-separated subset of blind,deaf,mute.
	ImpairmentsRaw string `env:"IMPAIRMENTS"`

	SilenceWindow      time.Duration `env:"SILENCE_WINDOW,default=10s"`
	GestureCooldown    time.Duration `env:"GESTURE_COOLDOWN,default=1500ms"`
	ExpressionCooldown time.Duration `env:"EXPRESSION_COOLDOWN,default=3s"`

	ReconnectAttempts int           `env:"RECONNECT_ATTEMPTS,default=3"`
	ReconnectBackoff  time.Duration `env:"RECONNECT_BACKOFF,default=500ms"`
}

// Load reads a .env file if one is present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// AllowedOrigins returns the parsed origin allowlist.
func (c *Config) AllowedOrigins() []string {
	return splitTrim(c.AllowedOriginsRaw)
}

// Impairments returns the parsed impairment list for the client profile.
func (c ClientConfig) Impairments() []string {
	return splitTrim(c.ImpairmentsRaw)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func splitTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
