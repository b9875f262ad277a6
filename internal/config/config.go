package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Izipay   IzipayConfig
	App      AppConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	PaymentFulfilled string
	PaymentDeclined  string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	Enabled      bool
}

type IzipayConfig struct {
	Endpoint    string
	JSURL       string
	SiteID      string
	APIPassword string
	SHAKey      string
	PublicKey   string
}

type AppConfig struct {
	BaseURL        string
	AllowedOrigin  string
	AdminJWTSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "payments_user"),
			Password:     getEnv("DB_PASSWORD", "payments_pass"),
			Database:     getEnv("DB_NAME", "ms_payments"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				PaymentFulfilled: getEnv("KAFKA_TOPIC_FULFILLED", "payments.fulfilled"),
				PaymentDeclined:  getEnv("KAFKA_TOPIC_DECLINED", "payments.declined"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", "tickets@example.com"),
			Enabled:      getEnvBool("EMAIL_ENABLED", true),
		},
		Izipay: IzipayConfig{
			Endpoint:    getEnv("IZIPAY_ENDPOINT", "https://api.micuentaweb.pe"),
			JSURL:       getEnv("IZIPAY_JS_URL", "https://static.micuentaweb.pe/static/js/krypton-client/V4.0/stable/kr-payment-form.min.js"),
			SiteID:      getEnv("IZIPAY_SITE_ID", ""),
			APIPassword: getEnv("IZIPAY_API_PASSWORD", ""),
			SHAKey:      getEnv("IZIPAY_SHA_KEY", ""),
			PublicKey:   getEnv("IZIPAY_PUBLIC_KEY", ""),
		},
		App: AppConfig{
			BaseURL:        getEnv("APP_BASE_URL", "http://localhost:8080"),
			AllowedOrigin:  getEnv("ALLOWED_ORIGIN", "*"),
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
	}
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// EmailEnabled reports whether outgoing mail is both switched on and
// minimally configured.
func (c *Config) EmailEnabled() bool {
	return c.Email.Enabled && c.Email.SMTPHost != "" && c.Email.From != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
