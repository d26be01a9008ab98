// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/placepick/go/internal/dbconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Store     StoreConfig     `yaml:"store"`
	Users     UsersConfig     `yaml:"users"`
	Database  dbconfig.Config `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RoomsConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	CardSeconds   int           `yaml:"card_seconds"`
	Mode          string        `yaml:"mode"` // timed | browse
	AutoVote      bool          `yaml:"auto_vote"`
	AutoAdvance   bool          `yaml:"auto_advance"`
}

type SuggestConfig struct {
	Provider    string        `yaml:"provider"` // catalog | http
	CatalogFile string        `yaml:"catalog_file"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Backend       string `yaml:"backend"` // memory | redis
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MaxRetries    int    `yaml:"max_retries"`
}

type UsersConfig struct {
	Backend string `yaml:"backend"` // memory | postgres
}

// NATSConfig enables the JetStream event mirror when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type WebSocketConfig struct {
	MaxMessageSize int64         `yaml:"max_message_size"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// Default returns a config that runs everything in memory.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Rooms: RoomsConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
			TickInterval:  time.Second,
			CardSeconds:   30,
			Mode:          "timed",
			AutoVote:      true,
			AutoAdvance:   true,
		},
		Suggest: SuggestConfig{
			Provider: "catalog",
			Timeout:  10 * time.Second,
		},
		Store: StoreConfig{
			Backend:    "memory",
			RedisURL:   "redis://localhost:6379/0",
			MaxRetries: 3,
		},
		Users:    UsersConfig{Backend: "memory"},
		Database: dbconfig.Default(),
		NATS: NATSConfig{
			Stream:        "PLACEPICK_ROOMS",
			SubjectPrefix: "placepick.rooms",
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			SendBuffer:     256,
		},
	}
}

// Load builds the config: defaults, then the YAML file at path (if any),
// then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = getEnvAsDuration("TOKEN_TTL", c.Auth.TokenTTL)

	c.Rooms.TTL = getEnvAsDuration("ROOM_TTL", c.Rooms.TTL)
	c.Rooms.SweepInterval = getEnvAsDuration("ROOM_SWEEP_INTERVAL", c.Rooms.SweepInterval)
	c.Rooms.CardSeconds = getEnvAsInt("CARD_SECONDS", c.Rooms.CardSeconds)
	c.Rooms.Mode = getEnv("CAROUSEL_MODE", c.Rooms.Mode)
	c.Rooms.AutoVote = getEnvAsBool("AUTO_VOTE", c.Rooms.AutoVote)
	c.Rooms.AutoAdvance = getEnvAsBool("AUTO_ADVANCE", c.Rooms.AutoAdvance)

	c.Suggest.Provider = getEnv("SUGGEST_PROVIDER", c.Suggest.Provider)
	c.Suggest.CatalogFile = getEnv("SUGGEST_CATALOG_FILE", c.Suggest.CatalogFile)
	c.Suggest.BaseURL = getEnv("SUGGEST_BASE_URL", c.Suggest.BaseURL)
	c.Suggest.APIKey = getEnv("SUGGEST_API_KEY", c.Suggest.APIKey)
	c.Suggest.Timeout = getEnvAsDuration("SUGGEST_TIMEOUT", c.Suggest.Timeout)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.RedisURL = getEnv("REDIS_URL", c.Store.RedisURL)
	c.Store.RedisPassword = getEnv("REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvAsInt("REDIS_DB", c.Store.RedisDB)

	c.Users.Backend = getEnv("USERS_BACKEND", c.Users.Backend)
	c.Database = c.Database.WithEnv()

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Stream = getEnv("NATS_STREAM", c.NATS.Stream)

	c.WebSocket.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.WebSocket.PingInterval)
	c.WebSocket.SendBuffer = getEnvAsInt("WS_SEND_BUFFER", c.WebSocket.SendBuffer)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var problems []string
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Rooms.TTL <= 0 {
		problems = append(problems, "rooms.ttl must be positive")
	}
	if c.Rooms.CardSeconds < 1 || c.Rooms.CardSeconds > 600 {
		problems = append(problems, "rooms.card_seconds must be between 1 and 600")
	}
	if c.Rooms.Mode != "timed" && c.Rooms.Mode != "browse" {
		problems = append(problems, fmt.Sprintf("unknown carousel mode %q", c.Rooms.Mode))
	}
	switch c.Suggest.Provider {
	case "catalog":
	case "http":
		if c.Suggest.BaseURL == "" {
			problems = append(problems, "suggest.base_url is required for the http provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown suggestion provider %q", c.Suggest.Provider))
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "redis" {
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Users.Backend != "memory" && c.Users.Backend != "postgres" {
		problems = append(problems, fmt.Sprintf("unknown users backend %q", c.Users.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
