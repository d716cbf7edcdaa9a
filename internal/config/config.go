package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Moderation ModerationConfig `yaml:"moderation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	CORS       CORSConfig       `yaml:"cors"`
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Mode     string `yaml:"mode"` // debug, release, test
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig MySQL 연결 설정
type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN returns the MySQL DSN
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// RedisConfig Redis 설정. Enabled=false면 캐시/이벤트 전달 없이 동작
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BreakerConfig circuit breaker settings for the analyzer client
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// AnalyzerConfig OpenAI 호환 프록시 설정
type AnalyzerConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint64        `yaml:"max_retries"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// ModerationConfig lifecycle and policy settings
type ModerationConfig struct {
	AutoRejectThreshold int           `yaml:"auto_reject_threshold"`
	MaxAppealsPerFlag   int           `yaml:"max_appeals_per_flag"` // 0 = unlimited
	PointsPerRejection  int           `yaml:"points_per_rejection"`
	ReanalysisInterval  time.Duration `yaml:"reanalysis_interval"`
	ReanalysisBatch     int           `yaml:"reanalysis_batch"`
	SchedulerTick       time.Duration `yaml:"scheduler_tick"`
	RecommendationTTL   time.Duration `yaml:"recommendation_ttl"`
}

// RateLimitConfig write endpoint rate limit
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// CORSConfig CORS 설정 (쉼표 구분)
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// Default returns a configuration usable for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8090, Mode: "debug", Env: "local", LogLevel: "info"},
		Database: DatabaseConfig{
			Host: "localhost", Port: 3306, User: "root", DBName: "angple",
			MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: 3600,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		Analyzer: AnalyzerConfig{
			Model:      "gpt-4o-mini",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			Breaker: BreakerConfig{
				MaxRequests:         3,
				Interval:            60 * time.Second,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 5,
			},
		},
		Moderation: ModerationConfig{
			AutoRejectThreshold: domain.AutoRejectThreshold,
			MaxAppealsPerFlag:   0,
			PointsPerRejection:  10,
			ReanalysisInterval:  5 * time.Minute,
			ReanalysisBatch:     50,
			SchedulerTick:       30 * time.Second,
			RecommendationTTL:   10 * time.Minute,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60, Burst: 10},
		CORS:      CORSConfig{AllowOrigins: "http://localhost:3000"},
	}
}

// Load reads configuration from the YAML file at path on top of Default(),
// then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	m := c.Moderation
	if m.AutoRejectThreshold < 0 || m.AutoRejectThreshold > 100 {
		return fmt.Errorf("moderation.auto_reject_threshold must be within 0..100, got %d", m.AutoRejectThreshold)
	}
	if m.MaxAppealsPerFlag < 0 {
		return fmt.Errorf("moderation.max_appeals_per_flag must not be negative")
	}
	if m.PointsPerRejection < 0 {
		return fmt.Errorf("moderation.points_per_rejection must not be negative")
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be positive")
	}
	return nil
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// 환경 변수가 YAML 값보다 우선
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setDuration := func(key string, dst *time.Duration) error {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	setString("APP_ENV", &cfg.Server.Env)
	setString("LOG_LEVEL", &cfg.Server.LogLevel)
	setString("DB_HOST", &cfg.Database.Host)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.DBName)
	setString("REDIS_HOST", &cfg.Redis.Host)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setString("ANALYZER_URL", &cfg.Analyzer.URL)
	setString("ANALYZER_API_KEY", &cfg.Analyzer.APIKey)
	setString("ANALYZER_MODEL", &cfg.Analyzer.Model)
	setString("CORS_ALLOW_ORIGINS", &cfg.CORS.AllowOrigins)

	for key, dst := range map[string]*int{
		"SERVER_PORT":                      &cfg.Server.Port,
		"DB_PORT":                          &cfg.Database.Port,
		"REDIS_PORT":                       &cfg.Redis.Port,
		"MODERATION_AUTO_REJECT_THRESHOLD": &cfg.Moderation.AutoRejectThreshold,
		"MODERATION_MAX_APPEALS_PER_FLAG":  &cfg.Moderation.MaxAppealsPerFlag,
		"MODERATION_POINTS_PER_REJECTION":  &cfg.Moderation.PointsPerRejection,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if err := setDuration("ANALYZER_TIMEOUT", &cfg.Analyzer.Timeout); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("REDIS_ENABLED"); ok {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	return nil
}

// LogResolved prints the effective configuration without secrets
func LogResolved(cfg *Config, log *zerolog.Logger) {
	log.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Bool("redis", cfg.Redis.Enabled).
		Str("analyzer_url", cfg.Analyzer.URL).
		Bool("analyzer_key_set", cfg.Analyzer.APIKey != "").
		Int("auto_reject_threshold", cfg.Moderation.AutoRejectThreshold).
		Int("max_appeals_per_flag", cfg.Moderation.MaxAppealsPerFlag).
		Msg("configuration resolved")
}
