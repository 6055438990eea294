// Package config carrega as configurações do serviço a partir de variáveis de
// ambiente (com suporte a arquivo .env).
//
// # Variáveis de Ambiente
//
// ## Serviço
//   - SERVICE_NAME: nome do serviço (default: portal-moncoes)
//   - SERVICE_VERSION: versão publicada (default: dev)
//   - ENVIRONMENT: development | staging | production (default: development)
//   - LOG_LEVEL: nível do zerolog (default: info)
//   - PUBLIC_BASE_URL: URL base usada nos links das notificações (default: http://localhost:3000)
//
// ## Servidores
//   - HTTP_PORT (default: 8080), GRPC_PORT (default: 9090)
//   - CORS_ALLOWED_ORIGINS: origens permitidas separadas por vírgula (vazio permite todas)
//   - SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT, SERVER_IDLE_TIMEOUT, SERVER_SHUTDOWN_TIMEOUT (duração Go)
//
// ## Banco de dados
//   - DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE
//   - DB_MAX_CONNS, DB_MIN_CONNS, DB_MAX_CONN_TIME, DB_MAX_IDLE_TIME, DB_HEALTH_CHECK
//   - DB_AUTO_MIGRATE: aplica as migrações embutidas na inicialização (default: true)
//   - STORE_DRIVER: postgres | memory (default: postgres)
//
// ## Integrações
//   - NATS_URL: servidor NATS para eventos de notificação (vazio desativa)
//   - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (SMTP_HOST vazio desativa e-mails)
//   - STORAGE_ENDPOINT, STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY, STORAGE_BUCKET, STORAGE_USE_SSL
//     (STORAGE_ENDPOINT vazio usa armazenamento em memória)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: coletor OTLP gRPC (vazio desativa tracing)
//
// ## Workflow
//   - WORKFLOW_QUOTE_VALIDITY_DAYS: validade das cotações solicitadas (default: 7)
//   - WORKFLOW_MAX_SIGNED_DOCUMENT_BYTES: tamanho máximo do PDF assinado (default: 10485760)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	SMTP     SMTPConfig
	Storage  StorageConfig
	Tracing  TracingConfig
	Workflow WorkflowConfig
}

type ServiceConfig struct {
	Name          string
	Version       string
	Environment   string
	LogLevel      string
	PublicBaseURL string
}

type ServerConfig struct {
	Port            int
	GRPCPort        int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
	HealthCheck time.Duration
	AutoMigrate bool
}

type NATSConfig struct {
	URL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type TracingConfig struct {
	Endpoint string
}

// Enabled reports whether an OTLP collector was configured.
func (t TracingConfig) Enabled() bool { return t.Endpoint != "" }

type WorkflowConfig struct {
	QuoteValidityDays      int
	MaxSignedDocumentBytes int64
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:          getEnv("SERVICE_NAME", "portal-moncoes"),
			Version:       getEnv("SERVICE_VERSION", "dev"),
			Environment:   getEnv("ENVIRONMENT", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("HTTP_PORT", 8080),
			GRPCPort:        getEnvInt("GRPC_PORT", 9090),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 20*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("STORE_DRIVER", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Database:    getEnv("DB_NAME", "portal_moncoes"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns:    int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnTime: getEnvDuration("DB_MAX_CONN_TIME", time.Hour),
			MaxIdleTime: getEnvDuration("DB_MAX_IDLE_TIME", 30*time.Minute),
			HealthCheck: getEnvDuration("DB_HEALTH_CHECK", time.Minute),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "nao-responda@moncoes.sp.gov.br"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:    getEnv("STORAGE_BUCKET", "service-order-attachments"),
			UseSSL:    getEnvBool("STORAGE_USE_SSL", false),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Workflow: WorkflowConfig{
			QuoteValidityDays:      getEnvInt("WORKFLOW_QUOTE_VALIDITY_DAYS", 7),
			MaxSignedDocumentBytes: int64(getEnvInt("WORKFLOW_MAX_SIGNED_DOCUMENT_BYTES", 10<<20)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 || c.Server.GRPCPort <= 0 {
		return fmt.Errorf("HTTP_PORT and GRPC_PORT must be positive")
	}
	if c.Workflow.QuoteValidityDays <= 0 {
		return fmt.Errorf("WORKFLOW_QUOTE_VALIDITY_DAYS must be positive")
	}
	if c.Workflow.MaxSignedDocumentBytes <= 0 {
		return fmt.Errorf("WORKFLOW_MAX_SIGNED_DOCUMENT_BYTES must be positive")
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
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
