package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/voltgrid/identity/internal/models"
)

type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Registration RegistrationConfig
	IdP          IdPConfig
	Email        EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port          string
	Env           string
	LogLevel      string
	SweepInterval time.Duration
}

// RegistrationConfig carries the verification lifecycle policy parameters.
// Defaults: 24h TTL, 3 resends, 15min cooldown, role "user".
type RegistrationConfig struct {
	VerificationTTL time.Duration
	MaxResends      int
	ResendCooldown  time.Duration
	TokenLength     int
	DefaultRole     models.Role
	InvitationTTL   time.Duration
	Retention       time.Duration // how long terminal rows are kept before purge
}

// IdPConfig points at the external identity provider (Keycloak-compatible).
type IdPConfig struct {
	BaseURL        string
	Realm          string
	ClientID       string
	ClientSecret   string
	Issuer         string
	JWKSRefresh    time.Duration
	RequestTimeout time.Duration
}

type EmailConfig struct {
	AWSRegion           string
	FromAddress         string
	VerificationURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "identity"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Env:           env,
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 1*time.Hour),
		},
		Registration: RegistrationConfig{
			VerificationTTL: time.Duration(getEnvAsInt("VERIFICATION_TTL_HOURS", 24)) * time.Hour,
			MaxResends:      getEnvAsInt("MAX_RESEND_ATTEMPTS", 3),
			ResendCooldown:  time.Duration(getEnvAsInt("RESEND_COOLDOWN_MINUTES", 15)) * time.Minute,
			TokenLength:     getEnvAsInt("VERIFICATION_TOKEN_LENGTH", 32),
			DefaultRole:     models.Role(getEnv("DEFAULT_ROLE", "user")),
			InvitationTTL:   time.Duration(getEnvAsInt("INVITATION_TTL_HOURS", 168)) * time.Hour,
			Retention:       time.Duration(getEnvAsInt("REGISTRATION_RETENTION_DAYS", 30)) * 24 * time.Hour,
		},
		IdP: IdPConfig{
			BaseURL:        getEnv("IDP_BASE_URL", ""),
			Realm:          getEnv("IDP_REALM", "voltgrid"),
			ClientID:       getEnv("IDP_CLIENT_ID", ""),
			ClientSecret:   getEnv("IDP_CLIENT_SECRET", ""),
			Issuer:         getEnv("IDP_ISSUER", ""),
			JWKSRefresh:    getEnvAsDuration("IDP_JWKS_REFRESH", 1*time.Hour),
			RequestTimeout: getEnvAsDuration("IDP_REQUEST_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
			FromAddress:         getEnv("EMAIL_FROM_ADDRESS", "no-reply@voltgrid.io"),
			VerificationURLBase: getEnv("VERIFICATION_URL_BASE", "http://localhost:8080"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.IdP.BaseURL == "" {
		return nil, fmt.Errorf("IDP_BASE_URL is required")
	}
	if cfg.IdP.ClientID == "" || cfg.IdP.ClientSecret == "" {
		return nil, fmt.Errorf("IDP_CLIENT_ID and IDP_CLIENT_SECRET are required")
	}
	if cfg.IdP.Issuer == "" {
		cfg.IdP.Issuer = fmt.Sprintf("%s/realms/%s", cfg.IdP.BaseURL, cfg.IdP.Realm)
	}

	if !cfg.Registration.DefaultRole.IsValid() {
		return nil, fmt.Errorf("DEFAULT_ROLE %q is not a known role", cfg.Registration.DefaultRole)
	}
	if cfg.Registration.MaxResends < 0 {
		return nil, fmt.Errorf("MAX_RESEND_ATTEMPTS must be >= 0")
	}
	if cfg.Registration.TokenLength < 16 {
		return nil, fmt.Errorf("VERIFICATION_TOKEN_LENGTH must be at least 16 bytes")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
