package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"post-purge/internal/models/entities"
)

// Имена приемников журнала результатов
const (
	SinkJSON     = "json"
	SinkPostgres = "postgres"
	SinkNATS     = "nats"
)

// Config содержит настройки приложения
type Config struct {
	// Логирование
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`

	// Настройки HTTP-сервера
	ServerPort           int           `validate:"gt=0,lte=65535"`
	StatusStreamInterval time.Duration `validate:"gt=0"`

	// Учетные данные платформы
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	APITimeout        time.Duration `validate:"gt=0"`

	// Настройки удаления
	ItemsPerBatch          int           `validate:"gt=0"`
	InterBatchDelayMinutes int           `validate:"gte=0"`
	InterItemDelaySeconds  int           `validate:"gte=0"`
	MaxItemsPerRun         int           `validate:"gt=0"`
	RateLimitBufferMinutes int           `validate:"gte=0"`
	RateLimitFallbackWait  time.Duration `validate:"gt=0"`
	MaxListLimit           int           `validate:"gt=0,lte=3200"`

	// Журнал результатов
	OutcomeSinks   []string `validate:"min=1,dive,oneof=json postgres nats"`
	OutcomeLogPath string
	OutcomeTable   string

	// Настройки базы данных
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Настройки пула соединений
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Настройки NATS
	NATSURL     string
	NATSSubject string
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	// Загружаем .env файл, если он существует
	_ = godotenv.Load()

	config := &Config{
		// Значения по умолчанию
		ServerPort:             8080,
		StatusStreamInterval:   time.Second,
		APITimeout:             30 * time.Second,
		ItemsPerBatch:          5,
		InterBatchDelayMinutes: 90,
		InterItemDelaySeconds:  2,
		MaxItemsPerRun:         50,
		RateLimitBufferMinutes: 1,
		RateLimitFallbackWait:  15 * time.Minute,
		MaxListLimit:           200,
		OutcomeSinks:           []string{SinkJSON},
		OutcomeLogPath:         "deleted_posts.json",
		OutcomeTable:           "post_purge_outcomes",
		DBPort:                 5432,
		DBMaxOpenConns:         4,
		DBMaxIdleConns:         2,
		DBConnMaxLifetime:      5 * time.Minute,
		NATSURL:                "nats://127.0.0.1:4222",
		NATSSubject:            "post_purge.runs.completed",
	}

	config.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))

	// Сервер
	config.ServerPort = getEnvInt("SERVER_PORT", config.ServerPort)
	config.StatusStreamInterval = getEnvDuration("STATUS_STREAM_INTERVAL", config.StatusStreamInterval)

	// Платформа
	config.ConsumerKey = os.Getenv("TWITTER_CONSUMER_KEY")
	config.ConsumerSecret = os.Getenv("TWITTER_CONSUMER_SECRET")
	config.AccessToken = os.Getenv("TWITTER_ACCESS_TOKEN")
	config.AccessTokenSecret = os.Getenv("TWITTER_ACCESS_TOKEN_SECRET")
	config.APITimeout = getEnvDuration("API_TIMEOUT", config.APITimeout)

	// Удаление
	config.ItemsPerBatch = getEnvInt("ITEMS_PER_BATCH", config.ItemsPerBatch)
	config.InterBatchDelayMinutes = getEnvInt("INTER_BATCH_DELAY_MINUTES", config.InterBatchDelayMinutes)
	config.InterItemDelaySeconds = getEnvInt("INTER_ITEM_DELAY_SECONDS", config.InterItemDelaySeconds)
	config.MaxItemsPerRun = getEnvInt("MAX_ITEMS_PER_RUN", config.MaxItemsPerRun)
	config.RateLimitBufferMinutes = getEnvInt("RATE_LIMIT_BUFFER_MINUTES", config.RateLimitBufferMinutes)
	config.RateLimitFallbackWait = getEnvDuration("RATE_LIMIT_FALLBACK_WAIT", config.RateLimitFallbackWait)
	config.MaxListLimit = getEnvInt("MAX_LIST_LIMIT", config.MaxListLimit)

	// Журнал
	if val := os.Getenv("OUTCOME_SINKS"); val != "" {
		config.OutcomeSinks = splitList(val)
	}
	config.OutcomeLogPath = getEnv("OUTCOME_LOG_PATH", config.OutcomeLogPath)
	config.OutcomeTable = getEnv("OUTCOME_TABLE", config.OutcomeTable)

	// База данных
	config.DBHost = getEnv("DB_HOST", "localhost")
	config.DBPort = getEnvInt("DB_PORT", config.DBPort)
	config.DBUser = getEnv("DB_USER", "postgres")
	config.DBPassword = getEnv("DB_PASSWORD", "postgres")
	config.DBName = getEnv("DB_NAME", "postgres")
	config.DBSSLMode = getEnv("DB_SSL_MODE", "disable")
	config.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", config.DBMaxOpenConns)
	config.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", config.DBMaxIdleConns)
	config.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", config.DBConnMaxLifetime)

	// NATS
	config.NATSURL = getEnv("NATS_URL", config.NATSURL)
	config.NATSSubject = getEnv("NATS_SUBJECT", config.NATSSubject)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.HasSink(SinkJSON) && c.OutcomeLogPath == "" {
		return fmt.Errorf("invalid configuration: OUTCOME_LOG_PATH is required for the %s sink", SinkJSON)
	}

	return nil
}

// ValidateCredentials проверяет, что заданы все учетные данные платформы
func (c *Config) ValidateCredentials() error {
	missing := []string{}
	for key, value := range map[string]string{
		"TWITTER_CONSUMER_KEY":        c.ConsumerKey,
		"TWITTER_CONSUMER_SECRET":     c.ConsumerSecret,
		"TWITTER_ACCESS_TOKEN":        c.AccessToken,
		"TWITTER_ACCESS_TOKEN_SECRET": c.AccessTokenSecret,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// BatchConfig возвращает параметры пакетов для планировщика
func (c *Config) BatchConfig() entities.BatchConfig {
	return entities.BatchConfig{
		ItemsPerBatch:   c.ItemsPerBatch,
		InterBatchDelay: time.Duration(c.InterBatchDelayMinutes) * time.Minute,
		InterItemDelay:  time.Duration(c.InterItemDelaySeconds) * time.Second,
	}
}

// RateLimitPolicy возвращает политику ожидания при ограничении частоты
func (c *Config) RateLimitPolicy() entities.RateLimitPolicy {
	return entities.RateLimitPolicy{
		Buffer:       time.Duration(c.RateLimitBufferMinutes) * time.Minute,
		FallbackWait: c.RateLimitFallbackWait,
	}
}

// HasSink сообщает, включен ли приемник журнала
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.OutcomeSinks, name)
}

// GetDBConnString возвращает строку подключения к PostgreSQL
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// Вспомогательная функция для получения переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			return p
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
