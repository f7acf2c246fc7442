package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"Civic_Report/internal/pkg"

	"github.com/joho/godotenv"
)

// Config 启动时从环境变量读取一次，之后只读
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	MySQLDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers      []string
	GamificationTopic string

	JWTSecret string

	SMTP pkg.SMTPConfig

	Points PointsConfig

	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	RepairLockTTL      time.Duration

	OutboxInterval  time.Duration
	OutboxBatchSize int
	OutboxMaxRetry  int
}

// PointsConfig 各类行为对应的积分
type PointsConfig struct {
	PostIssue     int64
	IssueResolved int64
	IssueFake     int64
	FollowIssue   int64
}

// DefaultPoints 默认积分规则
func DefaultPoints() PointsConfig {
	return PointsConfig{
		PostIssue:     10,
		IssueResolved: 20,
		IssueFake:     -15,
		FollowIssue:   0,
	}
}

// Load 非 production 环境先加载 .env 文件，必填项缺失时返回错误
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	cfg := &Config{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MySQLDSN: os.Getenv("MYSQL_DSN"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		GamificationTopic: getEnv("GAMIFICATION_TOPIC", "civic.gamification"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		SMTP: pkg.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "Civic Report <no-reply@example.com>"),
		},

		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 0),
		ReconcileBatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 500),
		RepairLockTTL:      getEnvDuration("REPAIR_LOCK_TTL", 10*time.Minute),

		OutboxInterval:  getEnvDuration("OUTBOX_INTERVAL", time.Second),
		OutboxBatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 200),
		OutboxMaxRetry:  getEnvInt("OUTBOX_MAX_RETRY", 5),
	}

	def := DefaultPoints()
	cfg.Points = PointsConfig{
		PostIssue:     getEnvInt64("POINTS_POST_ISSUE", def.PostIssue),
		IssueResolved: getEnvInt64("POINTS_ISSUE_RESOLVED", def.IssueResolved),
		IssueFake:     getEnvInt64("POINTS_ISSUE_FAKE", def.IssueFake),
		FollowIssue:   getEnvInt64("POINTS_FOLLOW_ISSUE", def.FollowIssue),
	}

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if cfg.ReconcileBatchSize <= 0 {
		return nil, fmt.Errorf("RECONCILE_BATCH_SIZE must be positive, got %d", cfg.ReconcileBatchSize)
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
