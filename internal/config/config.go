package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	API        APIConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Geo        GeoConfig
	Risk       RiskConfig
	Identity   IdentityConfig
	Velocity   VelocityConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
	Events     EventsConfig
	Monitoring MonitoringConfig
}

type APIConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	URL          string
	MaxConns     int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// VisitorTTL is how long a persisted visitor id survives without being
	// read again.
	VisitorTTL time.Duration
}

type GeoConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RiskConfig carries the decision-policy thresholds. The point values were
// chosen empirically; they are surfaced here so operators can tune them
// without a deploy.
type RiskConfig struct {
	BlockThreshold      int
	ReviewThreshold     int
	HighValueAmount     float64
	EmailWeight         float64
	TorBlockScore       int
	DeviceBlockVelocity int
}

type IdentityConfig struct {
	FuzzyThreshold     int
	FuzzyDiscount      float64
	FingerprintWindow  time.Duration
	FuzzyWindow        time.Duration
	CandidateLimit     int
	BaselineConfidence int
}

type VelocityConfig struct {
	WindowSize int
}

type RateLimitConfig struct {
	Requests          int
	Window            time.Duration
	RequestsByVisitor int
	VisitorWindow     time.Duration
}

type SecurityConfig struct {
	CORSOrigins    []string
	TrustedProxies []string
}

type EventsConfig struct {
	Brokers []string
	Topic   string
}

type MonitoringConfig struct {
	EnableMetrics bool
	LogLevel      string
}

func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			Port:        getEnv("API_PORT", "8080"),
			Host:        getEnv("API_HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", "postgresql://stayguard:@localhost:5432/stayguard?sslmode=disable"),
			MaxConns:     getEnvInt("DB_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			VisitorTTL: getEnvDuration("VISITOR_ID_TTL", 365*24*time.Hour),
		},
		Geo: GeoConfig{
			BaseURL: getEnv("GEO_BASE_URL", "http://ip-api.com/json"),
			Timeout: getEnvDuration("GEO_TIMEOUT", 5*time.Second),
		},
		Risk: RiskConfig{
			BlockThreshold:      getEnvInt("RISK_BLOCK_THRESHOLD", 85),
			ReviewThreshold:     getEnvInt("RISK_REVIEW_THRESHOLD", 60),
			HighValueAmount:     getEnvFloat("RISK_HIGH_VALUE_AMOUNT", 2000),
			EmailWeight:         getEnvFloat("RISK_EMAIL_WEIGHT", 0.3),
			TorBlockScore:       getEnvInt("RISK_TOR_BLOCK_SCORE", 50),
			DeviceBlockVelocity: getEnvInt("RISK_DEVICE_BLOCK_VELOCITY", 5),
		},
		Identity: IdentityConfig{
			FuzzyThreshold:     getEnvInt("FUZZY_MATCH_THRESHOLD", 70),
			FuzzyDiscount:      getEnvFloat("FUZZY_MATCH_DISCOUNT", 0.9),
			FingerprintWindow:  getEnvDuration("FINGERPRINT_MATCH_WINDOW", 90*24*time.Hour),
			FuzzyWindow:        getEnvDuration("FUZZY_MATCH_WINDOW", 30*24*time.Hour),
			CandidateLimit:     getEnvInt("FUZZY_CANDIDATE_LIMIT", 100),
			BaselineConfidence: getEnvInt("BASELINE_CONFIDENCE", 50),
		},
		Velocity: VelocityConfig{
			WindowSize: getEnvInt("VELOCITY_WINDOW_SIZE", 200),
		},
		RateLimit: RateLimitConfig{
			Requests:          getEnvInt("RATE_LIMIT_REQUESTS", 300),
			Window:            getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RequestsByVisitor: getEnvInt("RATE_LIMIT_BY_VISITOR", 60),
			VisitorWindow:     getEnvDuration("RATE_LIMIT_VISITOR_WINDOW", 1*time.Hour),
		},
		Security: SecurityConfig{
			CORSOrigins:    getEnvSlice("CORS_ORIGINS", []string{"*"}),
			TrustedProxies: getEnvSlice("TRUSTED_PROXIES", []string{}),
		},
		Events: EventsConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{}),
			Topic:   getEnv("KAFKA_RISK_TOPIC", "stayguard.risk-assessments"),
		},
		Monitoring: MonitoringConfig{
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Identity.FuzzyThreshold < 0 || c.Identity.FuzzyThreshold > 100 {
		return fmt.Errorf("FUZZY_MATCH_THRESHOLD must be between 0 and 100")
	}
	if c.Risk.BlockThreshold < c.Risk.ReviewThreshold {
		return fmt.Errorf("RISK_BLOCK_THRESHOLD must not be below RISK_REVIEW_THRESHOLD")
	}
	if c.Risk.EmailWeight < 0 || c.Risk.EmailWeight > 1 {
		return fmt.Errorf("RISK_EMAIL_WEIGHT must be between 0 and 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				result = append(result, item)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
