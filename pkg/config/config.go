package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	CORS     CORSConfig
	LLM      LLMConfig
	Chat     ChatConfig
	Reports  ReportsConfig
	Import   ImportConfig
	Export   ExportConfig
	Admin    AdminConfig
}

// ExportConfig governs background export generation.
type ExportConfig struct {
	Dir         string
	DownloadTTL time.Duration
	FileTTL     time.Duration
}

// AdminConfig seeds the initial admin account on startup.
type AdminConfig struct {
	Username string
	Password string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LLMConfig points the advisory facade at a local Ollama server.
type LLMConfig struct {
	Host        string
	Model       string
	VisionModel string
	Timeout     time.Duration
}

// ChatConfig tunes the advisory conversation memory.
type ChatConfig struct {
	HistoryLimit int
}

// ReportsConfig governs read-side caching for report endpoints.
type ReportsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ImportConfig bounds spreadsheet ingestion.
type ImportConfig struct {
	MaxRows           int
	DefaultCourseCode string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	cfg.LLM = LLMConfig{
		Host:        v.GetString("OLLAMA_HOST"),
		Model:       v.GetString("OLLAMA_TEXT_MODEL"),
		VisionModel: v.GetString("OLLAMA_VISION_MODEL"),
		Timeout:     parseDuration(v.GetString("OLLAMA_TIMEOUT"), 2*time.Minute),
	}

	cfg.Chat = ChatConfig{
		HistoryLimit: v.GetInt("CHAT_HISTORY_LIMIT"),
	}

	cfg.Reports = ReportsConfig{
		CacheEnabled: v.GetBool("ENABLE_REPORT_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REPORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Import = ImportConfig{
		MaxRows:           v.GetInt("IMPORT_MAX_ROWS"),
		DefaultCourseCode: v.GetString("IMPORT_DEFAULT_COURSE_CODE"),
	}

	cfg.Export = ExportConfig{
		Dir:         v.GetString("EXPORT_DIR"),
		DownloadTTL: parseDuration(v.GetString("EXPORT_DOWNLOAD_TTL"), time.Hour),
		FileTTL:     parseDuration(v.GetString("EXPORT_FILE_TTL"), 24*time.Hour),
	}

	cfg.Admin = AdminConfig{
		Username: v.GetString("ADMIN_USERNAME"),
		Password: v.GetString("ADMIN_PASSWORD"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "homeroom")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("OLLAMA_TEXT_MODEL", "gemma3:4b")
	v.SetDefault("OLLAMA_VISION_MODEL", "llava:7b")
	v.SetDefault("OLLAMA_TIMEOUT", "2m")

	v.SetDefault("CHAT_HISTORY_LIMIT", 10)

	v.SetDefault("ENABLE_REPORT_CACHE", false)
	v.SetDefault("REPORT_CACHE_TTL", "5m")

	v.SetDefault("IMPORT_MAX_ROWS", 2000)
	v.SetDefault("IMPORT_DEFAULT_COURSE_CODE", "34")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_DOWNLOAD_TTL", "1h")
	v.SetDefault("EXPORT_FILE_TTL", "24h")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
