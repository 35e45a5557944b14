package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Thread   ThreadConfig
	Log      LogConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Host        string
	Port        string
	CORSOrigins []string
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит настройки кэша веток. Пустой URL отключает кэш.
type RedisConfig struct {
	URL       string
	ThreadTTL time.Duration
}

// ThreadConfig содержит настройки веток комментариев
type ThreadConfig struct {
	// MaxReplyDepth - глубина, начиная с которой ответить уже нельзя
	MaxReplyDepth    int
	MaxCommentLength int
}

type LogConfig struct {
	Level string
}

// Load загружает конфигурацию из переменных окружения
// Приоритет: переменные окружения системы > .env файл > значения по умолчанию
func Load() (*Config, error) {
	// Загружаем .env файл, если он существует (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	ttl, err := getEnvDuration("THREAD_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	maxDepth, err := getEnvInt("MAX_REPLY_DEPTH", 3)
	if err != nil {
		return nil, err
	}
	maxLength, err := getEnvInt("MAX_COMMENT_LENGTH", 10000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "localhost"),
			Port:        getEnv("SERVER_PORT", "8080"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "pulth"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			ThreadTTL: ttl,
		},
		Thread: ThreadConfig{
			MaxReplyDepth:    maxDepth,
			MaxCommentLength: maxLength,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Thread.MaxReplyDepth < 1 {
		return nil, fmt.Errorf("MAX_REPLY_DEPTH must be at least 1, got %d", cfg.Thread.MaxReplyDepth)
	}
	if cfg.Thread.MaxCommentLength < 1 {
		return nil, fmt.Errorf("MAX_COMMENT_LENGTH must be at least 1, got %d", cfg.Thread.MaxCommentLength)
	}

	return cfg, nil
}

// Addr возвращает адрес для прослушивания
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// DSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// getEnvDuration принимает длительность Go ("90s") или число секунд
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
