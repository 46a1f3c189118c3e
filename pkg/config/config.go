package config

import (
	"fmt"
	"strings"
	"time"

	"eduadvise-backend/pkg/env"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cassandra CassandraConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	SMTP      SMTPConfig
	JWT       JWTConfig
	WebRTC    WebRTCConfig
	Call      CallConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	AllowedOrigins []string
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CassandraConfig holds Cassandra configuration
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// SMTPConfig holds SMTP configuration for offline notifications
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// WebRTCConfig holds ICE server configuration handed to clients
type WebRTCConfig struct {
	StunURL        string
	TurnURL        string
	TurnUsername   string
	TurnCredential string
}

// CallConfig holds call lifecycle tuning
type CallConfig struct {
	// RingTimeout is how long a call may ring before the system marks it missed
	RingTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", 8080),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", "eduadvise-api"),
			AllowedOrigins: splitOrigins(env.GetString("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "eduadvise"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
		},
		Cassandra: CassandraConfig{
			Hosts:    strings.Split(env.GetString("CASSANDRA_HOSTS", "localhost"), ","),
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "eduadvise_ks"),
			Username: env.GetStringFromFile("CASSANDRA_USER", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "eduadvise-files"),
		},
		SMTP: SMTPConfig{
			Host:     env.GetString("SMTP_HOST", "localhost"),
			Port:     env.GetInt("SMTP_PORT", 587),
			Username: env.GetString("SMTP_USERNAME", ""),
			Password: env.GetStringFromFile("SMTP_PASSWORD", ""),
			From:     env.GetString("SMTP_FROM", "noreply@eduadvise.com"),
			Enabled:  env.GetBool("SMTP_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:             env.GetStringFromFile("JWT_SECRET", ""),
			AccessTokenExpiry:  env.GetDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: env.GetDuration("JWT_REFRESH_EXPIRY", 720*time.Hour),
		},
		WebRTC: WebRTCConfig{
			StunURL:        env.GetString("WEBRTC_STUN_URL", "stun:stun.l.google.com:19302"),
			TurnURL:        env.GetString("WEBRTC_TURN_URL", ""),
			TurnUsername:   env.GetString("WEBRTC_TURN_USERNAME", ""),
			TurnCredential: env.GetStringFromFile("WEBRTC_TURN_CREDENTIAL", ""),
		},
		Call: CallConfig{
			RingTimeout: env.GetDuration("CALL_RING_TIMEOUT", 60*time.Second),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}

	if c.Call.RingTimeout <= 0 {
		return fmt.Errorf("CALL_RING_TIMEOUT must be positive")
	}

	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// ICEServers builds the iceServers payload returned to WebRTC clients
func (c *WebRTCConfig) ICEServers() []map[string]any {
	servers := []map[string]any{
		{"urls": c.StunURL},
	}
	if c.TurnURL != "" {
		servers = append(servers, map[string]any{
			"urls":       c.TurnURL,
			"username":   c.TurnUsername,
			"credential": c.TurnCredential,
		})
	}
	return servers
}
