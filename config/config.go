package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// minWriteTimeout leaves room for the interactive retry backoff.
const minWriteTimeout = time.Minute

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`
	Env          string        `json:"env"`

	// Application paths
	LogDir   string `json:"log_dir"`
	LogLevel string `json:"log_level"`
	TempDir  string `json:"temp_dir"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	JWTSecret string `json:"-"`

	CORS      CORSConfig      `json:"cors"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Database  DatabaseConfig  `json:"database"`
	Storage   StorageConfig   `json:"storage"`
	AI        AIConfig        `json:"ai"`
	Fetch     FetchConfig     `json:"fetch"`
	Video     VideoConfig     `json:"video"`
}

type DatabaseConfig struct {
	// URL selects PostgreSQL when set; otherwise Path is a SQLite file.
	URL                string        `json:"-"`
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

func (d DatabaseConfig) Driver() string {
	if d.URL != "" {
		return "pgx"
	}
	return "sqlite3"
}

type StorageConfig struct {
	UploadDir       string        `json:"upload_dir"`
	UploadURLPrefix string        `json:"upload_url_prefix"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	AccessKeyID     string        `json:"-"`
	SecretAccessKey string        `json:"-"`
	Endpoint        string        `json:"endpoint"`
	URLExpiry       time.Duration `json:"url_expiry"`
}

// UseObjectStore reports whether uploads go to S3 instead of local disk.
func (s StorageConfig) UseObjectStore() bool {
	return s.Bucket != ""
}

type AIConfig struct {
	APIKey            string        `json:"-"`
	Model             string        `json:"model"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	PollInterval      time.Duration `json:"poll_interval"`
	PollTimeout       time.Duration `json:"poll_timeout"`
}

func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

type FetchConfig struct {
	YtDlpPath string        `json:"ytdlp_path"`
	Proxy     string        `json:"proxy"`
	Cookies   string        `json:"-"`
	Timeout   time.Duration `json:"timeout"`
}

type VideoConfig struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	ProcessTimeout time.Duration `json:"process_timeout"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 11*time.Minute),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),
		Env:          getEnv("ENV", "development"),

		LogDir:   getEnv("LOG_DIR", "./logs"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TempDir:  getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "vidqa")),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
		},

		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Path:               getEnv("DB_PATH", "./data/app.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		Storage: StorageConfig{
			UploadDir:       getEnv("UPLOAD_DIR", "./static/uploads"),
			UploadURLPrefix: getEnv("UPLOAD_URL_PREFIX", "/static/uploads"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 100*1024*1024),
			Bucket:          getEnv("AWS_BUCKET_NAME", ""),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_ENDPOINT_URL", ""),
			URLExpiry:       getEnvAsDuration("S3_URL_EXPIRY", time.Hour),
		},

		AI: AIConfig{
			APIKey:            getEnv("GOOGLE_API_KEY", ""),
			Model:             getEnv("AI_MODEL", "gemini-2.0-flash"),
			RequestsPerSecond: getEnvAsFloat("AI_REQUESTS_PER_SECOND", 2),
			Burst:             getEnvAsInt("AI_BURST", 4),
			PollInterval:      getEnvAsDuration("AI_FILE_POLL_INTERVAL", 2*time.Second),
			PollTimeout:       getEnvAsDuration("AI_FILE_POLL_TIMEOUT", 5*time.Minute),
		},

		Fetch: FetchConfig{
			YtDlpPath: getEnv("YTDLP_PATH", "yt-dlp"),
			Proxy:     getEnv("YOUTUBE_PROXY", ""),
			Cookies:   getEnv("YOUTUBE_COOKIES", ""),
			Timeout:   getEnvAsDuration("FETCH_TIMEOUT", 10*time.Minute),
		},

		Video: VideoConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 100),
			ProcessTimeout: getEnvAsDuration("VIDEO_PROCESS_TIMEOUT", 30*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
	}
	if !c.Storage.UseObjectStore() {
		paths = append(paths, struct {
			path string
			name string
		}{c.Storage.UploadDir, "upload directory"})
	}
	if c.Database.URL == "" {
		paths = append(paths, struct {
			path string
			name string
		}{filepath.Dir(c.Database.Path), "database directory"})
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	// Fetching a URL and retrying an interactive AI call both happen inside
	// the request, so the response deadline has to outlast them.
	if c.WriteTimeout < minWriteTimeout {
		return fmt.Errorf("write timeout must be at least %s", minWriteTimeout)
	}
	if c.WriteTimeout <= c.Fetch.Timeout {
		return fmt.Errorf("write timeout must exceed fetch timeout (%s)", c.Fetch.Timeout)
	}
	if c.Video.ProcessTimeout <= 0 {
		return fmt.Errorf("video process timeout must be positive")
	}
	if c.AI.PollInterval <= 0 {
		return fmt.Errorf("ai poll interval must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Video.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive")
	}
	if c.Video.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.AI.RequestsPerSecond <= 0 || c.AI.Burst <= 0 {
		return fmt.Errorf("ai rate limit must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}
