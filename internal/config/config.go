package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cryptosim/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Market   MarketConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - секрет для шифрования биржевых API ключей.
	// Если длина не равна 32 байтам, из него выводится AES-256 ключ
	// через PBKDF2 с солью EncryptionSalt.
	EncryptionKey  string
	EncryptionSalt string
}

// MarketConfig - настройки источника рыночных данных
type MarketConfig struct {
	// RelayURL - endpoint relay, мультиплексирующего одно upstream
	// соединение на множество процессов. Пустая строка отключает relay,
	// остаётся только прямое подключение.
	RelayURL string

	// UpstreamURL - прямое подключение к combined stream биржи
	UpstreamURL string

	ConnectTimeout   time.Duration
	RelayRetryDelay  time.Duration
	DirectRetryDelay time.Duration
	HealthInterval   time.Duration
	DataTimeout      time.Duration

	// TickerBroadcastFreq - частота рассылки среза рынка WebSocket клиентам
	TickerBroadcastFreq time.Duration

	// RESTPollInterval - интервал резервного REST опроса тикеров,
	// пока оба WebSocket транспорта недоступны
	RESTPollInterval time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "cryptosim"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			EncryptionSalt: getEnv("ENCRYPTION_SALT", "cryptosim-api-keys"),
		},
		Market: MarketConfig{
			RelayURL:    getEnv("RELAY_WS_URL", ""),
			UpstreamURL: getEnv("UPSTREAM_WS_URL", "wss://stream.binance.com:9443/ws/!ticker@arr"),

			ConnectTimeout:   getEnvAsDuration("WS_CONNECT_TIMEOUT", 10*time.Second),
			RelayRetryDelay:  getEnvAsDuration("RELAY_RETRY_DELAY", 10*time.Second),
			DirectRetryDelay: getEnvAsDuration("DIRECT_RETRY_DELAY", 3*time.Second),
			HealthInterval:   getEnvAsDuration("WS_HEALTH_INTERVAL", 15*time.Second),
			DataTimeout:      getEnvAsDuration("WS_DATA_TIMEOUT", 45*time.Second),

			TickerBroadcastFreq: getEnvAsDuration("TICKER_BROADCAST_FREQ", 1*time.Second),
			RESTPollInterval:    getEnvAsDuration("REST_POLL_INTERVAL", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей бирж
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(c.Security.EncryptionKey) < 16 {
		return fmt.Errorf("ENCRYPTION_KEY must be at least 16 characters")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Market.UpstreamURL == "" && c.Market.RelayURL == "" {
		return fmt.Errorf("at least one of UPSTREAM_WS_URL and RELAY_WS_URL must be set")
	}

	if c.Market.DataTimeout <= 0 {
		return fmt.Errorf("WS_DATA_TIMEOUT must be positive, got %v", c.Market.DataTimeout)
	}

	if c.Market.TickerBroadcastFreq <= 0 {
		return fmt.Errorf("TICKER_BROADCAST_FREQ must be positive, got %v", c.Market.TickerBroadcastFreq)
	}

	if c.Market.RESTPollInterval <= 0 {
		return fmt.Errorf("REST_POLL_INTERVAL must be positive, got %v", c.Market.RESTPollInterval)
	}

	return nil
}

// EncryptionKeyBytes возвращает 32-байтный ключ AES-256.
// Ключ длиной ровно 32 байта используется как есть, любой другой
// пропускается через PBKDF2.
func (s SecurityConfig) EncryptionKeyBytes() []byte {
	if len(s.EncryptionKey) == 32 {
		return []byte(s.EncryptionKey)
	}
	return crypto.DeriveKey(s.EncryptionKey, []byte(s.EncryptionSalt))
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
