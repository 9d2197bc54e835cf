package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config gathers process configuration. FromEnv builds it from environment
// variables so main stays lean.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     RedisConfig
	Kafka     Kafka
	Issuer    Issuer
	Booster   Booster
	Lockout   Lockout
	RuleFlags RuleFlags
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Postgres holds the UVCI store connection settings.
type Postgres struct {
	DSN string
}

// RedisConfig holds rule-cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka holds telemetry publisher settings.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Issuer identifies the certificate issuing authority.
type Issuer struct {
	Country   string
	Authority string
	// P5CertificateExpiryInHours caps expiry for subjects below the highest
	// identity-proofing tier.
	P5CertificateExpiryInHours int
	// UvciInsertAttempts bounds retries on UVCI uniqueness conflicts.
	UvciInsertAttempts int
}

// Booster holds the temporal windows for booster dose validity.
type Booster struct {
	MinimumPeriodBetweenPrimaryCourseAndBooster time.Duration
	GracePeriodBetweenPrimaryCourseAndBooster   time.Duration
}

// Lockout holds the positive-test lockout windows, in days.
type Lockout struct {
	LockoutPeriodDays      int
	StackingPeriodDays     int
	NegationTestPeriodDays int
}

// RuleFlags selects which rule configuration blob is loaded.
type RuleFlags struct {
	Container       string
	MandatoryOnly   bool
	IncludeBoosters bool
}

// RuleCacheTTL enforces retention for cached rule configuration.
var RuleCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("HEALTHCERT_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("TELEMETRY_TOPIC", "healthcert.issuance"),
		},
		Issuer: Issuer{
			Country:                    envOr("ISSUER_COUNTRY", "GB"),
			Authority:                  envOr("ISSUER_AUTHORITY", "NHSX"),
			P5CertificateExpiryInHours: envInt("P5_CERTIFICATE_EXPIRY_HOURS", 72),
			UvciInsertAttempts:         envInt("UVCI_INSERT_ATTEMPTS", 5),
		},
		Booster: Booster{
			MinimumPeriodBetweenPrimaryCourseAndBooster: envDuration("BOOSTER_MINIMUM_PERIOD", 8*7*24*time.Hour),
			GracePeriodBetweenPrimaryCourseAndBooster:   envDuration("BOOSTER_GRACE_PERIOD", 6*30*24*time.Hour),
		},
		Lockout: Lockout{
			LockoutPeriodDays:      envInt("LOCKOUT_PERIOD_DAYS", 10),
			StackingPeriodDays:     envInt("LOCKOUT_STACKING_DAYS", 35),
			NegationTestPeriodDays: envInt("LOCKOUT_NEGATION_DAYS", 5),
		},
		RuleFlags: RuleFlags{
			Container:       envOr("RULES_CONTAINER", "eligibility-configuration"),
			MandatoryOnly:   os.Getenv("RULES_MANDATORY_ONLY") == "true",
			IncludeBoosters: os.Getenv("RULES_INCLUDE_BOOSTERS") == "true",
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
