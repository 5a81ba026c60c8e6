package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Recording ceiling bounds for a single voice turn.
const (
	MinRecording = 5 * time.Second
	MaxRecording = 30 * time.Second
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	JWTSecret    string
	JWTTTL       time.Duration
	AuthRequired bool
	CORSOrigins  []string

	KafkaBrokers     []string
	KafkaTopicTicket string

	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
		Path     string
	}

	// Base URLs of the remote services; each is configured independently.
	Services struct {
		Auth       string
		User       string
		Ticket     string
		Media      string
		Automation string
		GenAI      string
	}

	SessionFile string

	Voice struct {
		MaxRecording     time.Duration
		CompletionPhrase string
		ArchiveRate      int
		ArchiveMaxBytes  int
		QuietLevel       float64
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8097"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		JWTSecret:        getEnv("JWT_SECRET", "spoved-dev-secret"),
		AuthRequired:     getBool("AUTH_REQUIRED", true),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket: getEnv("KAFKA_TOPIC_TICKET", "ticket-events"),
		SessionFile:      getEnv("SESSION_FILE", defaultSessionFile()),
	}
	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.DB.Driver = getEnv("DB_DRIVER", DriverPostgres)
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "spoved")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Path = getEnv("DB_PATH", "spoved.db")

	api := "http://localhost:" + cfg.HTTPPort + "/api/v1"
	cfg.Services.Auth = strings.TrimRight(getEnv("AUTH_API_URL", api), "/")
	cfg.Services.User = strings.TrimRight(getEnv("USER_API_URL", api), "/")
	cfg.Services.Ticket = strings.TrimRight(getEnv("TICKET_API_URL", api), "/")
	cfg.Services.Media = strings.TrimRight(getEnv("MEDIA_API_URL", api), "/")
	cfg.Services.Automation = strings.TrimRight(getEnv("AUTOMATION_API_URL", ""), "/")
	cfg.Services.GenAI = strings.TrimRight(getEnv("GENAI_API_URL", "http://localhost:8000"), "/")

	if cfg.Voice.MaxRecording, err = getDuration("VOICE_MAX_RECORDING", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.Voice.MaxRecording = ClampRecording(cfg.Voice.MaxRecording)
	cfg.Voice.CompletionPhrase = getEnv("VOICE_COMPLETION_PHRASE", "I am creating a ticket for you")
	if cfg.Voice.ArchiveRate, err = getInt("VOICE_ARCHIVE_RATE", 16000); err != nil {
		return nil, err
	}
	if cfg.Voice.ArchiveMaxBytes, err = getInt("VOICE_ARCHIVE_MAX_BYTES", 10<<20); err != nil {
		return nil, err
	}
	if cfg.Voice.QuietLevel, err = getFloat("VOICE_QUIET_LEVEL", 0.02); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.AppEnv == "production" && c.JWTSecret == "spoved-dev-secret" {
		return errors.New("config: in production JWT_SECRET is required")
	}
	if c.Voice.ArchiveRate <= 0 {
		return errors.New("config: VOICE_ARCHIVE_RATE must be positive")
	}
	return nil
}

func (c *Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return c.DB.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ClampRecording bounds a recording ceiling to [MinRecording, MaxRecording].
func ClampRecording(d time.Duration) time.Duration {
	if d < MinRecording {
		return MinRecording
	}
	if d > MaxRecording {
		return MaxRecording
	}
	return d
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "spoved-session.toml"
	}
	return filepath.Join(dir, "spoved", "session.toml")
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// splitList splits "a,b , c" into its non-empty trimmed parts.
func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
