package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	LogLevel    string

	StoreBackend             string
	PostgresDSN              string
	RunMigrations            bool
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	KafkaBrokers             []string

	JWTSecret            string
	BallotDefinitionPath string
	CallTimeout          time.Duration

	WorkerPollInterval         time.Duration
	NotificationBatchSize      int
	NotificationMaxAttempts    int
	EnableNotificationConsumer bool
	EnableRoleReconciler       bool
	EnablePhaseFlagRefresher   bool

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "campusvote"),
		HTTPPort:    envString("HTTP_PORT", "8080"),
		LogLevel:    envString("LOG_LEVEL", "info"),

		StoreBackend:             strings.ToLower(envString("STORE_BACKEND", StoreMemory)),
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		RunMigrations:            envBool("RUN_MIGRATIONS", true),
		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		KafkaBrokers:             brokers,

		JWTSecret:            os.Getenv("JWT_SECRET"),
		BallotDefinitionPath: os.Getenv("BALLOT_DEFINITION_PATH"),
		CallTimeout:          envDuration("CALL_TIMEOUT", 5*time.Second),

		WorkerPollInterval:         envDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		NotificationBatchSize:      envInt("NOTIFICATION_BATCH_SIZE", 100),
		NotificationMaxAttempts:    envInt("NOTIFICATION_MAX_ATTEMPTS", 5),
		EnableNotificationConsumer: envBool("ENABLE_NOTIFICATION_CONSUMER", true),
		EnableRoleReconciler:       envBool("ENABLE_ROLE_RECONCILER", true),
		EnablePhaseFlagRefresher:   envBool("ENABLE_PHASE_FLAG_REFRESHER", true),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envString("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     envString("SMTP_FROM", "elections@localhost"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the composition root cannot build.
func (c Config) Validate() error {
	var problems []string
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			problems = append(problems, "POSTGRES_DSN is required for the postgres store")
		}
	case StoreFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is required for the firestore store")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND %q is not one of memory, postgres, firestore", c.StoreBackend))
	}
	if len(strings.TrimSpace(c.JWTSecret)) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	if c.CallTimeout <= 0 {
		problems = append(problems, "CALL_TIMEOUT must be positive")
	}
	if c.WorkerPollInterval <= 0 {
		problems = append(problems, "WORKER_POLL_INTERVAL must be positive")
	}
	if c.NotificationBatchSize <= 0 {
		problems = append(problems, "NOTIFICATION_BATCH_SIZE must be positive")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func envString(name string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
