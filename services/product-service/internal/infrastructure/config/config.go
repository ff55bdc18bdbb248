package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/postgres"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	HTTPPort  int
	GRPCPort  int
	DB        DBConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Scheduler SchedulerConfig
	Outbox    OutboxConfig
	JWT       JWTConfig
	TLS       TLSConfig
	LogLevel  string
	LogFormat string

	// CalendarID names the holiday calendar attached to every account.
	CalendarID     string
	// GRPCReflection registers the reflection service.
	GRPCReflection bool
	// CORSOrigins enables CORS on the HTTP API for these origins.
	CORSOrigins    []string
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres converts the settings for pkg/postgres.
func (c DBConfig) Postgres() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Name,
		SSLMode:         c.SSLMode,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

// KafkaConfig holds Kafka connection parameters and topic names.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	EventsTopic   string
	TriggerTopic  string
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
	TLS           bool
	SASLEnabled   bool
}

// Kafka converts the settings for pkg/kafka.
func (c KafkaConfig) Kafka() kafka.Config {
	return kafka.Config{
		Brokers:       c.Brokers,
		ConsumerGroup: c.ConsumerGroup,
		TLS:           c.TLS,
		SASLEnabled:   c.SASLEnabled,
		SASLMechanism: c.SASLMechanism,
		SASLUsername:  c.SASLUsername,
		SASLPassword:  c.SASLPassword,
	}
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
	OTLPInsecure bool
}

// SchedulerConfig controls the due-schedule sweep.
type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Enabled      bool
}

// OutboxConfig controls the outbox relay.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// JWTConfig holds token validation settings for the gRPC API.
type JWTConfig struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
}

// TLSConfig points at the server key pair shared by the gRPC and HTTP
// listeners. Empty files serve plaintext. ClientCAFile turns on mutual TLS.
type TLSConfig struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// Enabled reports whether both files are set.
func (c TLSConfig) Enabled() bool { return c.CertFile != "" && c.KeyFile != "" }

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		HTTPPort: getEnvInt("HTTP_PORT", 8090),
		GRPCPort: getEnvInt("GRPC_PORT", 9090),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "bib"),
			Password:        getEnv("DB_PASSWORD", "bib_dev_password"),
			Name:            getEnv("DB_NAME", "bib_product"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "product-service"),
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "bib.product.events"),
			TriggerTopic:  getEnv("KAFKA_TRIGGER_TOPIC", "bib.product.schedule-triggers"),
			TLS:           getEnvBool("KAFKA_TLS", false),
			SASLEnabled:   getEnvBool("KAFKA_SASL_ENABLED", false),
			SASLMechanism: getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:  getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:  getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName:  "product-service",
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("SCHEDULER_ENABLED", true),
			PollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second),
			BatchSize:    getEnvInt("SCHEDULER_BATCH_SIZE", 100),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", ""),
			PublicKeyPEM: getEnv("JWT_PUBLIC_KEY", ""),
			Issuer:       getEnv("JWT_ISSUER", "bib"),
		},
		TLS: TLSConfig{
			CertFile:     getEnv("TLS_CERT_FILE", ""),
			KeyFile:      getEnv("TLS_KEY_FILE", ""),
			ClientCAFile: getEnv("TLS_CLIENT_CA_FILE", ""),
		},
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		CalendarID:     getEnv("CALENDAR_ID", "default"),
		GRPCReflection: getEnvBool("GRPC_REFLECTION", false),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", ""),
	}
}

// Validate checks required configuration values.
func (c Config) Validate() error {
	if c.JWT.Secret == "" && c.JWT.PublicKeyPEM == "" {
		return errors.New("JWT_SECRET or JWT_PUBLIC_KEY is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.Scheduler.PollInterval <= 0 || c.Outbox.PollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key, defaultVal string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, defaultVal), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
