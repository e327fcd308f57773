package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReplayDir is where recordings are written and resolved from.
	DefaultReplayDir = "replays"
	// DefaultDesyncDir receives desync reports produced during playback.
	DefaultDesyncDir = "desyncs"
	// DefaultIndexPath is the SQLite replay index location.
	DefaultIndexPath = "parkrep.db"
	// DefaultChecksumInterval samples an entity checksum every tick for normal recordings.
	DefaultChecksumInterval = 1
	// DefaultSilentChecksumInterval samples less often for background recordings.
	DefaultSilentChecksumInterval = 40
	// DefaultCompressionLevel is the zstd level used for replay payloads.
	DefaultCompressionLevel = 3
	// DefaultTickRate is the simulation frequency in ticks per second.
	DefaultTickRate = 40.0

	// DefaultWebSocketAddr is where the notification hub listens.
	DefaultWebSocketAddr = ":43127"
	// DefaultGRPCAddr is where the replay inspection service listens.
	DefaultGRPCAddr = ":43128"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultAdminRateLimit caps admin recording requests per minute.
	DefaultAdminRateLimit = 6

	// DefaultRetentionMaxReplays bounds how many replays the cleaner keeps.
	DefaultRetentionMaxReplays = 50
	// DefaultRetentionMaxAge removes replays older than this.
	DefaultRetentionMaxAge = 14 * 24 * time.Hour
	// DefaultRetentionInterval is the delay between retention sweeps.
	DefaultRetentionInterval = time.Hour

	// DefaultLogLevel controls verbosity for logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "parkrep.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables.
type Config struct {
	ReplayDir              string          `yaml:"replay_dir"`
	DesyncDir              string          `yaml:"desync_dir"`
	IndexPath              string          `yaml:"index_path"`
	ChecksumInterval       uint32          `yaml:"checksum_interval"`
	SilentChecksumInterval uint32          `yaml:"silent_checksum_interval"`
	CompressionLevel       int             `yaml:"compression_level"`
	AsyncWrites            bool            `yaml:"async_writes"`
	NetworkEnabled         bool            `yaml:"network_enabled"`
	TickRate               float64         `yaml:"tick_rate"`
	WebSocketAddr          string          `yaml:"websocket_addr"`
	AllowedOrigins         []string        `yaml:"allowed_origins"`
	PingInterval           time.Duration   `yaml:"ping_interval"`
	GRPCAddr               string          `yaml:"grpc_addr"`
	GRPCSharedSecret       string          `yaml:"grpc_shared_secret"`
	GRPCServerCertPath     string          `yaml:"grpc_server_cert"`
	GRPCServerKeyPath      string          `yaml:"grpc_server_key"`
	GRPCClientCAPath       string          `yaml:"grpc_client_ca"`
	WebSocketAuthSecret    string          `yaml:"websocket_auth_secret"`
	AdminToken             string          `yaml:"admin_token"`
	AdminRateLimit         int             `yaml:"admin_rate_limit"`
	Retention              RetentionConfig `yaml:"retention"`
	Logging                LoggingConfig   `yaml:"logging"`
}

// RetentionConfig bounds how many replay artefacts stay on disk.
type RetentionConfig struct {
	MaxReplays int           `yaml:"max_replays"`
	MaxAge     time.Duration `yaml:"max_age"`
	Interval   time.Duration `yaml:"interval"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		ReplayDir:              DefaultReplayDir,
		DesyncDir:              DefaultDesyncDir,
		IndexPath:              DefaultIndexPath,
		ChecksumInterval:       DefaultChecksumInterval,
		SilentChecksumInterval: DefaultSilentChecksumInterval,
		CompressionLevel:       DefaultCompressionLevel,
		NetworkEnabled:         true,
		TickRate:               DefaultTickRate,
		WebSocketAddr:          DefaultWebSocketAddr,
		PingInterval:           DefaultPingInterval,
		AdminRateLimit:         DefaultAdminRateLimit,
		GRPCAddr:               DefaultGRPCAddr,
		Retention: RetentionConfig{
			MaxReplays: DefaultRetentionMaxReplays,
			MaxAge:     DefaultRetentionMaxAge,
			Interval:   DefaultRetentionInterval,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and environment
// variables, in that order of precedence. Invalid overrides are reported together.
//
// File search order: PARKREP_CONFIG -> ~/.parkrep/config.yaml -> ./configs/parkrep.yaml.
func Load() (*Config, error) {
	cfg := Default()
	if err := applyFile(cfg, strings.TrimSpace(os.Getenv("PARKREP_CONFIG"))); err != nil {
		return nil, err
	}

	var problems []string

	cfg.ReplayDir = getString("PARKREP_REPLAY_DIR", cfg.ReplayDir)
	cfg.DesyncDir = getString("PARKREP_DESYNC_DIR", cfg.DesyncDir)
	cfg.IndexPath = getString("PARKREP_INDEX_PATH", cfg.IndexPath)
	cfg.WebSocketAddr = getString("PARKREP_WS_ADDR", cfg.WebSocketAddr)
	cfg.GRPCAddr = getString("PARKREP_GRPC_ADDR", cfg.GRPCAddr)
	cfg.GRPCSharedSecret = getString("PARKREP_GRPC_SHARED_SECRET", cfg.GRPCSharedSecret)
	cfg.GRPCServerCertPath = getString("PARKREP_GRPC_SERVER_CERT", cfg.GRPCServerCertPath)
	cfg.GRPCServerKeyPath = getString("PARKREP_GRPC_SERVER_KEY", cfg.GRPCServerKeyPath)
	cfg.GRPCClientCAPath = getString("PARKREP_GRPC_CLIENT_CA", cfg.GRPCClientCAPath)
	cfg.WebSocketAuthSecret = getString("PARKREP_WS_AUTH_SECRET", cfg.WebSocketAuthSecret)
	cfg.AdminToken = getString("PARKREP_ADMIN_TOKEN", cfg.AdminToken)
	cfg.Logging.Level = getString("PARKREP_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Path = getString("PARKREP_LOG_PATH", cfg.Logging.Path)
	if origins := parseList(os.Getenv("PARKREP_ALLOWED_ORIGINS")); origins != nil {
		cfg.AllowedOrigins = origins
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_CHECKSUM_INTERVAL")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || value == 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_CHECKSUM_INTERVAL must be a positive integer, got %q", raw))
		} else {
			cfg.ChecksumInterval = uint32(value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_SILENT_CHECKSUM_INTERVAL")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || value == 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_SILENT_CHECKSUM_INTERVAL must be a positive integer, got %q", raw))
		} else {
			cfg.SilentChecksumInterval = uint32(value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_COMPRESSION_LEVEL")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 || value > 22 {
			problems = append(problems, fmt.Sprintf("PARKREP_COMPRESSION_LEVEL must be between 1 and 22, got %q", raw))
		} else {
			cfg.CompressionLevel = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_ASYNC_WRITES")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("PARKREP_ASYNC_WRITES must be a boolean value, got %q", raw))
		} else {
			cfg.AsyncWrites = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_NETWORK_ENABLED")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("PARKREP_NETWORK_ENABLED must be a boolean value, got %q", raw))
		} else {
			cfg.NetworkEnabled = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_TICK_RATE")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_TICK_RATE must be a positive number, got %q", raw))
		} else {
			cfg.TickRate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_ADMIN_RATE_LIMIT")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_ADMIN_RATE_LIMIT must be a non-negative integer, got %q", raw))
		} else {
			cfg.AdminRateLimit = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_RETENTION_MAX_REPLAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_RETENTION_MAX_REPLAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Retention.MaxReplays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_RETENTION_MAX_AGE")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_RETENTION_MAX_AGE must be a non-negative duration, got %q", raw))
		} else {
			cfg.Retention.MaxAge = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("PARKREP_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("PARKREP_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("PARKREP_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if cfg.ChecksumInterval == 0 || cfg.SilentChecksumInterval == 0 {
		problems = append(problems, "checksum intervals must be positive")
	}

	tlsPaths := 0
	for _, path := range []string{cfg.GRPCServerCertPath, cfg.GRPCServerKeyPath, cfg.GRPCClientCAPath} {
		if path != "" {
			tlsPaths++
		}
	}
	if tlsPaths != 0 && tlsPaths != 3 {
		problems = append(problems, "gRPC mTLS needs a server certificate, key and client CA together")
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

// applyFile overlays the first YAML file found in the search order onto cfg.
// An explicit path must exist; the implicit locations are optional.
func applyFile(cfg *Config, customPath string) error {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return nil
	}
	for _, candidate := range []string{userConfigPath("config.yaml"), filepath.Join("configs", "parkrep.yaml")} {
		if candidate == "" {
			continue
		}
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".parkrep", filename)
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
