package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the system-wide settings tree. Sections mirror the process
// components: HTTP server, SQLite store, WebSocket transport, chat relay and
// token auth.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Chat      *ChatConfig      `json:"chat"`
	Auth      *AuthConfig      `json:"auth"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	PublicBaseURL string        `json:"public_base_url"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// ChatConfig holds the relay's allow-listed recruiter identity and the
// in-memory history bound per conversation.
type ChatConfig struct {
	RecruiterEmail string `json:"recruiter_email"`
	RecruiterName  string `json:"recruiter_name"`
	HistoryLimit   int    `json:"history_limit"`
}

type AuthConfig struct {
	AccessSecret  string        `json:"access_secret"`
	RefreshSecret string        `json:"refresh_secret"`
	AccessTTL     time.Duration `json:"access_ttl"`
	RefreshTTL    time.Duration `json:"refresh_ttl"`
	AdminEmail    string        `json:"admin_email"`
}

// DefaultConfig returns production-ready defaults: SQLite on the local
// filesystem, HTTP on 8080, 30s WebSocket heartbeat, 15m access tokens.
// Secrets have no default and must come from the environment or a file.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./resumehub.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			PublicBaseURL: "http://localhost:8080",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Chat: &ChatConfig{
			RecruiterEmail: "recruiter@resumehub.local",
			RecruiterName:  "Recruiter",
			HistoryLimit:   500,
		},
		Auth: &AuthConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
	}
}

// Validate catches invalid configurations before any component starts.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.RecruiterEmail == "" {
		return fmt.Errorf("chat recruiter email cannot be empty")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat history limit must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return fmt.Errorf("auth token secrets cannot be empty")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("auth token lifetimes must be positive")
	}

	return nil
}

// LoadFromEnv overlays environment variables onto the defaults. Unparseable
// values fall back silently so a bad variable cannot take the process down.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("RESUMEHUB_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("RESUMEHUB_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if base := os.Getenv("RESUMEHUB_PUBLIC_BASE_URL"); base != "" {
		config.HTTP.PublicBaseURL = base
	}
	if dbPath := os.Getenv("RESUMEHUB_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if v := os.Getenv("RESUMEHUB_DATABASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Database.Timeout = d
		}
	}
	if v := os.Getenv("RESUMEHUB_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("RESUMEHUB_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("RESUMEHUB_WEBSOCKET_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("RESUMEHUB_WEBSOCKET_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("RESUMEHUB_WEBSOCKET_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("RESUMEHUB_WEBSOCKET_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.WebSocket.BufferSize = n
		}
	}
	if v := os.Getenv("RESUMEHUB_RECRUITER_EMAIL"); v != "" {
		config.Chat.RecruiterEmail = v
	}
	if v := os.Getenv("RESUMEHUB_RECRUITER_NAME"); v != "" {
		config.Chat.RecruiterName = v
	}
	if v := os.Getenv("RESUMEHUB_CHAT_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Chat.HistoryLimit = n
		}
	}
	if v := os.Getenv("RESUMEHUB_ACCESS_TOKEN_SECRET"); v != "" {
		config.Auth.AccessSecret = v
	}
	if v := os.Getenv("RESUMEHUB_REFRESH_TOKEN_SECRET"); v != "" {
		config.Auth.RefreshSecret = v
	}
	if v := os.Getenv("RESUMEHUB_ACCESS_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Auth.AccessTTL = d
		}
	}
	if v := os.Getenv("RESUMEHUB_REFRESH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Auth.RefreshTTL = d
		}
	}
	if v := os.Getenv("RESUMEHUB_ADMIN_EMAIL"); v != "" {
		config.Auth.AdminEmail = v
	}

	return config
}

// configFile mirrors Config with string durations so JSON files stay
// human-writable ("30s" instead of nanosecond integers).
type configFile struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Host          string `json:"host"`
		Port          int    `json:"port"`
		ReadTimeout   string `json:"read_timeout"`
		WriteTimeout  string `json:"write_timeout"`
		PublicBaseURL string `json:"public_base_url"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Chat *struct {
		RecruiterEmail string `json:"recruiter_email"`
		RecruiterName  string `json:"recruiter_name"`
		HistoryLimit   int    `json:"history_limit"`
	} `json:"chat"`
	Auth *struct {
		AccessSecret  string `json:"access_secret"`
		RefreshSecret string `json:"refresh_secret"`
		AccessTTL     string `json:"access_ttl"`
		RefreshTTL    string `json:"refresh_ttl"`
		AdminEmail    string `json:"admin_email"`
	} `json:"auth"`
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// LoadFromFile reads a JSON configuration file on top of the environment
// overlay, then validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := LoadFromEnv()

	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		setDuration(&config.Database.Timeout, file.Database.Timeout)
	}
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if file.HTTP.PublicBaseURL != "" {
			config.HTTP.PublicBaseURL = file.HTTP.PublicBaseURL
		}
		setDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		setDuration(&config.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&config.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
	}
	if file.Chat != nil {
		if file.Chat.RecruiterEmail != "" {
			config.Chat.RecruiterEmail = file.Chat.RecruiterEmail
		}
		if file.Chat.RecruiterName != "" {
			config.Chat.RecruiterName = file.Chat.RecruiterName
		}
		if file.Chat.HistoryLimit > 0 {
			config.Chat.HistoryLimit = file.Chat.HistoryLimit
		}
	}
	if file.Auth != nil {
		if file.Auth.AccessSecret != "" {
			config.Auth.AccessSecret = file.Auth.AccessSecret
		}
		if file.Auth.RefreshSecret != "" {
			config.Auth.RefreshSecret = file.Auth.RefreshSecret
		}
		if file.Auth.AdminEmail != "" {
			config.Auth.AdminEmail = file.Auth.AdminEmail
		}
		setDuration(&config.Auth.AccessTTL, file.Auth.AccessTTL)
		setDuration(&config.Auth.RefreshTTL, file.Auth.RefreshTTL)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return config, nil
}

// Load resolves configuration with precedence file > environment > defaults.
// A missing or unreadable file is not fatal; environment and defaults still
// apply.
func Load(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}
