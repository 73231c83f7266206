package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"llmquery/validation"
)

type Config struct {
	Port        string
	Log         LogConfig
	LLM         LLMConfig
	Database    DatabaseConfig
	Dialect     string
	SchemaFile  string
	Security    SecurityConfig
	Cache       CacheConfig
	Audit       AuditConfig
	HistoryPath string
	CORS        CORSConfig
}

type LogConfig struct {
	Level slog.Level
	JSON  bool
}

type LLMConfig struct {
	Endpoint           string
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	Timeout            time.Duration
	MinRequestInterval time.Duration
}

// DatabaseConfig describes the reporting database. Use a user with SELECT
// privileges only; validation is a second line of defense, not the first.
type DatabaseConfig struct {
	Driver       string // "mysql", "sqlserver" or "sqlite"
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	Charset      string
	Encrypt      bool
	Path         string // sqlite file
	QueryTimeout time.Duration
	MaxRows      int
}

type SecurityConfig struct {
	ForbiddenKeywords    []string
	AllowedTablePrefixes []string
}

type CacheConfig struct {
	Enabled bool
	Backend string // "file" or "memory"
	Dir     string
	TTL     time.Duration
}

type AuditConfig struct {
	Enabled bool
	File    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// NewViper returns a viper instance with every key defaulted and environment
// lookup enabled. Keys map to env vars by upper-casing and replacing dots,
// so llm.api_key is read from LLM_API_KEY. configFile is optional.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("llm.endpoint", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "qwen/qwen3-coder")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.min_request_interval", "500ms")

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.name", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.charset", "utf8mb4")
	v.SetDefault("db.encrypt", true)
	v.SetDefault("db.path", "./data/reporting.db")
	v.SetDefault("db.query_timeout", "30s")
	v.SetDefault("db.max_rows", 1000)

	v.SetDefault("dialect", "MySQL 8")
	v.SetDefault("schema_file", "./db_schema.sql")

	v.SetDefault("security.forbidden_keywords", strings.Join(validation.DefaultForbiddenKeywords, ","))
	v.SetDefault("security.allowed_table_prefixes", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "./cache/llm")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.file", "./logs/llm_queries.log")

	v.SetDefault("history_path", "./data/badger")
	v.SetDefault("cors.allowed_origins", "")
}

// Load builds a Config from v. It is called once at process start and the
// result is passed to every component.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port: strings.TrimSpace(v.GetString("port")),
		Log: LogConfig{
			JSON: v.GetBool("log.json"),
		},
		LLM: LLMConfig{
			Endpoint:           strings.TrimSpace(v.GetString("llm.endpoint")),
			APIKey:             strings.TrimSpace(v.GetString("llm.api_key")),
			Model:              strings.TrimSpace(v.GetString("llm.model")),
			Temperature:        v.GetFloat64("llm.temperature"),
			MaxTokens:          v.GetInt("llm.max_tokens"),
			Timeout:            v.GetDuration("llm.timeout"),
			MinRequestInterval: v.GetDuration("llm.min_request_interval"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("db.driver"))),
			Host:         v.GetString("db.host"),
			Port:         v.GetString("db.port"),
			Name:         v.GetString("db.name"),
			User:         v.GetString("db.user"),
			Password:     v.GetString("db.password"),
			Charset:      v.GetString("db.charset"),
			Encrypt:      v.GetBool("db.encrypt"),
			Path:         v.GetString("db.path"),
			QueryTimeout: v.GetDuration("db.query_timeout"),
			MaxRows:      v.GetInt("db.max_rows"),
		},
		Dialect:    strings.TrimSpace(v.GetString("dialect")),
		SchemaFile: v.GetString("schema_file"),
		Security: SecurityConfig{
			ForbiddenKeywords:    splitList(v.GetString("security.forbidden_keywords")),
			AllowedTablePrefixes: splitList(v.GetString("security.allowed_table_prefixes")),
		},
		Cache: CacheConfig{
			Enabled: v.GetBool("cache.enabled"),
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("cache.backend"))),
			Dir:     v.GetString("cache.dir"),
			TTL:     v.GetDuration("cache.ttl"),
		},
		Audit: AuditConfig{
			Enabled: v.GetBool("audit.enabled"),
			File:    v.GetString("audit.file"),
		},
		HistoryPath: v.GetString("history_path"),
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
	}

	if err := cfg.Log.Level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("invalid log.level: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GetConfig loads configuration from defaults and the environment only.
func GetConfig() (Config, error) {
	v, err := NewViper("")
	if err != nil {
		return Config{}, err
	}
	return Load(v)
}

func (c Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch c.Database.Driver {
	case "mysql", "sqlserver", "sqlite":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.Database.Driver)
	}
	if c.Database.MaxRows <= 0 {
		return fmt.Errorf("db.max_rows must be positive, got %d", c.Database.MaxRows)
	}
	switch c.Cache.Backend {
	case "file", "memory":
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}

// DatabaseConfigured reports whether enough settings are present to open a
// connection to the reporting database.
func (c Config) DatabaseConfigured() bool {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path != ""
	}
	return c.Database.Host != "" && c.Database.Name != ""
}

// splitList parses a comma-separated setting. Blank entries are dropped.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
