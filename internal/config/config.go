package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kimpdash/pkg/crypto"
)

// Поддерживаемые бэкенды хранилища состояния аварийной остановки
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendMemory   = "memory"
)

// ErrInvalidConfig - базовая ошибка валидации конфигурации
var ErrInvalidConfig = errors.New("invalid configuration")

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Telegram TelegramConfig `yaml:"telegram"`
	Market   MarketConfig   `yaml:"market"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// StoreConfig - хранилище флага аварийной остановки
type StoreConfig struct {
	Backend      string        `yaml:"backend"`
	BadgerPath   string        `yaml:"badger_path"` // пусто = in-memory
	Timeout      time.Duration `yaml:"timeout"`
	WriteRetries int           `yaml:"write_retries"`
}

// TelegramConfig - уведомления об аварийной остановке
type TelegramConfig struct {
	BotToken      string        `yaml:"bot_token"`
	ChatID        int64         `yaml:"chat_id"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// Enabled - заданы ли токен и чат
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// MarketConfig - параметры расчетов и проверок бирж
type MarketConfig struct {
	FeeRate    float64       `yaml:"fee_rate"`
	APITimeout time.Duration `yaml:"api_timeout"`
	UpbitURL   string        `yaml:"upbit_url"`
	BinanceURL string        `yaml:"binance_url"`
}

// SecurityConfig - защита /metrics и лимиты на аварийные эндпоинты
type SecurityConfig struct {
	MetricsUsername     string  `yaml:"metrics_username"`
	MetricsPasswordHash string  `yaml:"metrics_password_hash"`
	EmergencyRate       float64 `yaml:"emergency_rate"` // запросов в секунду на IP
	EmergencyBurst      int     `yaml:"emergency_burst"`

	// SecretsKey - ключ для значений enc:v1:..., только из окружения
	SecretsKey string `yaml:"-"`
}

// MetricsAuthEnabled - включена ли basic auth для /metrics
func (s SecurityConfig) MetricsAuthEnabled() bool {
	return s.MetricsUsername != "" && s.MetricsPasswordHash != ""
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8502,
			Host:            "0.0.0.0",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "kimp",
			User:     "kimp",
			Password: "",
			SSLMode:  "disable",
		},
		Store: StoreConfig{
			Backend:      BackendPostgres,
			Timeout:      3 * time.Second,
			WriteRetries: 3,
		},
		Telegram: TelegramConfig{
			NotifyTimeout: 10 * time.Second,
		},
		Market: MarketConfig{
			FeeRate:    0.0038,
			APITimeout: 10 * time.Second,
			UpbitURL:   "https://api.upbit.com/v1/ticker?markets=KRW-BTC",
			BinanceURL: "https://api.binance.com/api/v3/ping",
		},
		Security: SecurityConfig{
			EmergencyRate:  1,
			EmergencyBurst: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// Load загружает конфигурацию: .env, затем YAML файл из CONFIG_FILE (если задан),
// затем переменные окружения поверх
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.openSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile накладывает YAML файл на текущие значения
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv переопределяет значения из переменных окружения
func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", getEnvAsInt("SERVER_PORT", c.Server.Port))
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)

	c.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", c.Store.Backend))
	c.Store.BadgerPath = getEnv("BADGER_PATH", c.Store.BadgerPath)
	c.Store.Timeout = getEnvAsDuration("STORE_TIMEOUT", c.Store.Timeout)
	c.Store.WriteRetries = getEnvAsInt("STORE_WRITE_RETRIES", c.Store.WriteRetries)

	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = getEnvAsInt64("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.Telegram.NotifyTimeout = getEnvAsDuration("NOTIFY_TIMEOUT", c.Telegram.NotifyTimeout)

	c.Market.FeeRate = getEnvAsFloat("FEE_RATE", c.Market.FeeRate)
	c.Market.APITimeout = getEnvAsSeconds("API_TIMEOUT", c.Market.APITimeout)
	c.Market.UpbitURL = getEnv("UPBIT_HEALTH_URL", c.Market.UpbitURL)
	c.Market.BinanceURL = getEnv("BINANCE_HEALTH_URL", c.Market.BinanceURL)

	c.Security.MetricsUsername = getEnv("METRICS_USERNAME", c.Security.MetricsUsername)
	c.Security.MetricsPasswordHash = getEnv("METRICS_PASSWORD_HASH", c.Security.MetricsPasswordHash)
	c.Security.EmergencyRate = getEnvAsFloat("EMERGENCY_RATE_LIMIT", c.Security.EmergencyRate)
	c.Security.EmergencyBurst = getEnvAsInt("EMERGENCY_RATE_BURST", c.Security.EmergencyBurst)
	c.Security.SecretsKey = getEnv("SECRETS_KEY", c.Security.SecretsKey)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
	c.Logging.MaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", c.Logging.MaxSizeMB)
	c.Logging.MaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", c.Logging.MaxBackups)
	c.Logging.MaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", c.Logging.MaxAgeDays)
}

// openSecrets расшифровывает TELEGRAM_BOT_TOKEN и DB_PASSWORD, если они
// заданы в виде enc:v1:... (см. emergencyctl seal-secret)
func (c *Config) openSecrets() error {
	secrets := []struct {
		name  string
		value *string
	}{
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"DB_PASSWORD", &c.Database.Password},
	}

	var key []byte
	for _, s := range secrets {
		if !crypto.IsSealed(*s.value) {
			continue
		}
		if key == nil {
			if c.Security.SecretsKey == "" {
				return fmt.Errorf("%w: %s is sealed but SECRETS_KEY is not set", ErrInvalidConfig, s.name)
			}
			k, err := crypto.ParseKey(c.Security.SecretsKey)
			if err != nil {
				return fmt.Errorf("%w: SECRETS_KEY: %v", ErrInvalidConfig, err)
			}
			key = k
		}
		plain, err := crypto.Open(*s.value, key)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, s.name, err)
		}
		*s.value = plain
	}
	return nil
}

// Validate проверяет конфигурацию целиком
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateRanges()
}

// validateStore проверяет выбор бэкенда хранилища
func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendPostgres, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("%w: STORE_BACKEND must be one of postgres, badger, memory, got %q",
			ErrInvalidConfig, c.Store.Backend)
	}

	if c.Store.Timeout <= 0 {
		return fmt.Errorf("%w: STORE_TIMEOUT must be positive, got %v", ErrInvalidConfig, c.Store.Timeout)
	}

	if c.Store.WriteRetries < 1 || c.Store.WriteRetries > 10 {
		return fmt.Errorf("%w: STORE_WRITE_RETRIES must be between 1 and 10, got %d",
			ErrInvalidConfig, c.Store.WriteRetries)
	}

	return nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Логин и хеш задаются только вместе
	if (c.Security.MetricsUsername == "") != (c.Security.MetricsPasswordHash == "") {
		return fmt.Errorf("%w: METRICS_USERNAME and METRICS_PASSWORD_HASH must be set together", ErrInvalidConfig)
	}

	if c.Security.MetricsPasswordHash != "" {
		if err := crypto.ValidateHash(c.Security.MetricsPasswordHash); err != nil {
			return fmt.Errorf("%w: METRICS_PASSWORD_HASH: %v", ErrInvalidConfig, err)
		}
	}

	if c.Security.EmergencyRate <= 0 {
		return fmt.Errorf("%w: EMERGENCY_RATE_LIMIT must be positive, got %v", ErrInvalidConfig, c.Security.EmergencyRate)
	}

	if c.Security.EmergencyBurst < 1 {
		return fmt.Errorf("%w: EMERGENCY_RATE_BURST must be at least 1, got %d", ErrInvalidConfig, c.Security.EmergencyBurst)
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: SERVER_PORT must be between 1 and 65535, got %d", ErrInvalidConfig, c.Server.Port)
	}

	if c.Store.Backend == BackendPostgres && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("%w: DB_PORT must be between 1 and 65535, got %d", ErrInvalidConfig, c.Database.Port)
	}

	// Комиссия задается долей: 0.0038 = 0.38%
	if c.Market.FeeRate < 0 || c.Market.FeeRate >= 1 {
		return fmt.Errorf("%w: FEE_RATE must be in [0, 1), got %v", ErrInvalidConfig, c.Market.FeeRate)
	}

	if c.Market.APITimeout <= 0 {
		return fmt.Errorf("%w: API_TIMEOUT must be positive, got %v", ErrInvalidConfig, c.Market.APITimeout)
	}

	if c.Telegram.NotifyTimeout <= 0 {
		return fmt.Errorf("%w: NOTIFY_TIMEOUT must be positive, got %v", ErrInvalidConfig, c.Telegram.NotifyTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT must be positive, got %v", ErrInvalidConfig, c.Server.ShutdownTimeout)
	}

	return nil
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
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

// getEnvAsSeconds принимает как "10", так и "10s"
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return getEnvAsDuration(key, defaultValue)
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
