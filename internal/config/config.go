package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Compute   ComputeConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers         []string
	PositionsTopic  string
	AnalyticsTopic  string
	ConsumerGroupID string
}

// RedisConfig holds the result cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ComputeConfig tunes the accelerated backend
type ComputeConfig struct {
	AcceleratedEnabled bool
	Workers            int
	ChunkSize          int
	LoadTimeout        time.Duration
}

// AnalyticsConfig holds defaults for analytics requests
type AnalyticsConfig struct {
	RiskFreeRate    float64
	BenchmarkSymbol string
	LookbackDays    int
	Environment     string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "portfolio_analytics"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:         getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			PositionsTopic:  getEnv("KAFKA_POSITIONS_TOPIC", "trading.positions"),
			AnalyticsTopic:  getEnv("KAFKA_ANALYTICS_TOPIC", "portfolio.analytics"),
			ConsumerGroupID: getEnv("KAFKA_CONSUMER_GROUP", "portfolio-analytics"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Compute: ComputeConfig{
			AcceleratedEnabled: getEnvBool("COMPUTE_ACCELERATED", true),
			Workers:            getEnvInt("COMPUTE_WORKERS", 0),
			ChunkSize:          getEnvInt("COMPUTE_CHUNK_SIZE", 4096),
			LoadTimeout:        getEnvDuration("COMPUTE_LOAD_TIMEOUT", 5*time.Second),
		},
		Analytics: AnalyticsConfig{
			RiskFreeRate:    getEnvFloat("RISK_FREE_RATE", 0.0),
			BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "SPY"),
			LookbackDays:    getEnvInt("RISK_LOOKBACK_DAYS", 365),
			Environment:     getEnv("APP_ENV", "production"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
