package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "ecocert/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PaymentGatedIssuance blocks certificate issuance until the
	// certification fee payment has settled.
	PaymentGatedIssuance bool

	// CertificateValidity is how long an issued certificate stays valid.
	CertificateValidity time.Duration

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
}

// RedisConfig holds connection settings for the certificate render cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds connection settings for the workflow event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RenderCacheTTL bounds how long rendered certificate documents stay cached.
var RenderCacheTTL = 15 * time.Minute

// DefaultCertificateValidity matches the regulatory validity period for
// e-waste treatment certificates.
const DefaultCertificateValidity = 365 * 24 * time.Hour

// DefaultWorkflowTopic is the Kafka topic workflow events are published to.
const DefaultWorkflowTopic = "ecocert.workflow.events"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ECOCERT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	validity := DefaultCertificateValidity
	if raw := os.Getenv("CERTIFICATE_VALIDITY_DAYS"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			validity = time.Duration(days) * 24 * time.Hour
		}
	}

	topic := os.Getenv("KAFKA_WORKFLOW_TOPIC")
	if topic == "" {
		topic = DefaultWorkflowTopic
	}

	brokers := strutil.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ","))

	return Server{
		Addr:                 addr,
		JWTSigningKey:        jwtSigningKey,
		PaymentGatedIssuance: os.Getenv("PAYMENT_GATED_ISSUANCE") == "true",
		CertificateValidity:  validity,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
