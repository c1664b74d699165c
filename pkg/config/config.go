package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port   string
	Env    string // development, staging, production
	Server ServerConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Files on disk (master CSV, regime tables, model artifacts, results)
	Paths PathsConfig

	// NSE bhavcopy source
	NSE NSEConfig

	// StrategyFile points at the strategy policy YAML
	StrategyFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring: /metrics is served on the API port when enabled
	MetricsEnabled bool
}

// ServerConfig holds API server timeouts
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	KeyPrefix   string // cache and rate-limit namespace
	DialTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PathsConfig holds file locations used by the batch pipeline
type PathsConfig struct {
	DataDir     string
	MasterCSV   string
	LiveDir     string // downloaded bhavcopy archives
	RegimeTable string
	MacroMap    string
	ModelDir    string
	ResultsDir  string
}

// NSEConfig holds the bhavcopy download settings
type NSEConfig struct {
	BaseURL     string
	ArchiveURL  string
	Timeout     time.Duration
	RequestsSec float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),
		Server: ServerConfig{
			ReadTimeout:     getEnvAsDuration("API_READ_TIMEOUT", "15s"),
			WriteTimeout:    getEnvAsDuration("API_WRITE_TIMEOUT", "15s"),
			ShutdownTimeout: getEnvAsDuration("API_SHUTDOWN_TIMEOUT", "30s"),
		},

		// Database
		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "quantmon"),
			User:            getEnv("DB_USER", "quantmon"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),

			KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "quantmon"),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", "3s"),
		},

		Paths: PathsConfig{
			DataDir:     dataDir,
			MasterCSV:   getEnv("MASTER_CSV", filepath.Join(dataDir, "master", "FNO_MASTER.csv")),
			LiveDir:     getEnv("LIVE_BHAVCOPY_DIR", filepath.Join(dataDir, "live_bhavcopy")),
			RegimeTable: getEnv("REGIME_TABLE", filepath.Join(dataDir, "regimes", "regimes_from_breakpoints.csv")),
			MacroMap:    getEnv("MACRO_MAP", filepath.Join(dataDir, "regimes", "regime_to_macro_mapping.csv")),
			ModelDir:    getEnv("MODEL_DIR", "models"),
			ResultsDir:  getEnv("RESULTS_DIR", "results"),
		},

		NSE: NSEConfig{
			BaseURL:     getEnv("NSE_BASE_URL", "https://www.nseindia.com"),
			ArchiveURL:  getEnv("NSE_ARCHIVE_URL", "https://nsearchives.nseindia.com"),
			Timeout:     getEnvAsDuration("NSE_TIMEOUT", "30s"),
			RequestsSec: getEnvAsFloat("NSE_REQUESTS_PER_SEC", 0.5),
		},

		StrategyFile: getEnv("STRATEGY_FILE", filepath.Join("config", "strategy", "nse_regime.yaml")),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required only when Postgres storage is switched on
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("API_SHUTDOWN_TIMEOUT must be > 0")
	}

	if c.NSE.RequestsSec <= 0 {
		return fmt.Errorf("NSE_REQUESTS_PER_SEC must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
