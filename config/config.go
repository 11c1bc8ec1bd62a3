package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port        int
		CORSOrigin  string
		RateLimit   int // запросов в минуту с одного IP
		LogDir      string
		ExternalURL string
	}
	DB struct {
		Host          string
		Port          int
		User          string
		Password      string
		DBName        string
		SSLMode       string
		MigrationsDir string
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
		Enabled  bool
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
	Cache struct {
		TTL time.Duration
	}
	Scheduler struct {
		Interval time.Duration
	}
}

// defaults значения по умолчанию, ключ viper -> значение
var defaults = map[string]any{
	"server.port":         8080,
	"server.cors_origin":  "*",
	"server.rate_limit":   120,
	"server.log_dir":      "logs",
	"server.external_url": "",
	"db.host":             "localhost",
	"db.port":             5432,
	"db.user":             "postgres",
	"db.password":         "postgres",
	"db.name":             "microfinance",
	"db.sslmode":          "disable",
	"db.migrations_dir":   "migrations",
	"jwt.secret_key":      "your-secret-key-here",
	"jwt.expires_in":      24,
	"smtp.host":           "smtp.gmail.com",
	"smtp.port":           587,
	"smtp.username":       "",
	"smtp.password":       "",
	"smtp.from":           "no-reply@microfinance.local",
	"smtp.enabled":        false,
	"redis.addr":          "",
	"redis.password":      "",
	"redis.db":            0,
	"redis.prefix":        "microfinance:",
	"cache.ttl":           "5m",
	"scheduler.interval":  "1h",
}

// aliases переменные окружения, имена которых не выводятся из ключа
var aliases = map[string]string{
	"server.rate_limit":  "RATE_LIMIT_PER_MINUTE",
	"server.cors_origin": "CORS_ORIGIN",
	"server.log_dir":     "LOG_DIR",
	"db.name":            "DB_NAME",
	"db.migrations_dir":  "MIGRATIONS_DIR",
}

// NewConfig создает новый экземпляр конфигурации.
// Источники по приоритету: переменные окружения, файл из MF_CONFIG, значения по умолчанию.
func NewConfig() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// SERVER_PORT -> server.port и т.д.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range aliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной %s: %w", env, err)
		}
	}

	// Необязательный файл конфигурации
	if path := os.Getenv("MF_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	var err error

	// Настройки сервера
	if cfg.Server.Port, err = intValue(v, "server.port"); err != nil {
		return nil, err
	}
	if cfg.Server.RateLimit, err = intValue(v, "server.rate_limit"); err != nil {
		return nil, err
	}
	cfg.Server.CORSOrigin = v.GetString("server.cors_origin")
	cfg.Server.LogDir = v.GetString("server.log_dir")
	cfg.Server.ExternalURL = v.GetString("server.external_url")

	// Настройки базы данных
	cfg.DB.Host = v.GetString("db.host")
	if cfg.DB.Port, err = intValue(v, "db.port"); err != nil {
		return nil, err
	}
	cfg.DB.User = v.GetString("db.user")
	cfg.DB.Password = v.GetString("db.password")
	cfg.DB.DBName = v.GetString("db.name")
	cfg.DB.SSLMode = v.GetString("db.sslmode")
	cfg.DB.MigrationsDir = v.GetString("db.migrations_dir")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("jwt.secret_key")
	if cfg.JWT.ExpiresIn, err = intValue(v, "jwt.expires_in"); err != nil {
		return nil, err
	}

	// Настройки SMTP
	cfg.SMTP.Host = v.GetString("smtp.host")
	if cfg.SMTP.Port, err = intValue(v, "smtp.port"); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = v.GetString("smtp.username")
	cfg.SMTP.Password = v.GetString("smtp.password")
	cfg.SMTP.From = v.GetString("smtp.from")
	cfg.SMTP.Enabled = v.GetBool("smtp.enabled")

	// Настройки Redis
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	if cfg.Redis.DB, err = intValue(v, "redis.db"); err != nil {
		return nil, err
	}
	cfg.Redis.Prefix = v.GetString("redis.prefix")

	// Кэш и планировщик
	if cfg.Cache.TTL, err = durationValue(v, "cache.ttl"); err != nil {
		return nil, err
	}
	if cfg.Scheduler.Interval, err = durationValue(v, "scheduler.interval"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN строка подключения к postgres для gorm
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// MigrationURL строка подключения для golang-migrate
func (c *Config) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode)
}

func intValue(v *viper.Viper, key string) (int, error) {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("неверный формат числа %s: %q", key, raw)
	}
	return n, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("неверный формат длительности %s: %q", key, raw)
	}
	return d, nil
}
