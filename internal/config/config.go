// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	SMTP                    SMTP            `yaml:"smtp"`
	Enrollment              Enrollment      `yaml:"enrollment"`
	Admin                   Admin           `yaml:"admin"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Redis хранит сессии и кэш ответов /api/my-plan.
type RedisConnection struct {
	Addr         string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout      time.Duration `yaml:"timeoutredis" env-default:"3s"`
	PlanCacheTTL time.Duration `yaml:"plan_cache_ttl" env-default:"30s"`
}

// JWTToken структура для работы с jwt-токеном. TokenTTL также задаёт время жизни сессии.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ — подключение к брокеру. Пустой URL отключает публикацию событий.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"coaching"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP — параметры отправки писем сервисом sender.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

// Enrollment — правила зачисления клиентов и жизненного цикла статусов.
// AllowAnyTransition отключает проверку таблицы переходов статусов.
type Enrollment struct {
	AllowAnyTransition bool          `yaml:"allow_any_transition"`
	PlanDurationWeeks  int           `yaml:"plan_duration_weeks" env-default:"4"`
	Timezone           string        `yaml:"timezone" env-default:"UTC"`
	ClaimBaseURL       string        `yaml:"claim_base_url" env-default:"http://localhost:3000/claim"`
	ClaimTTL           time.Duration `yaml:"claim_ttl" env-default:"168h"`
	LifecycleSchedule  string        `yaml:"lifecycle_schedule" env-default:"@every 1h"`
}

// Admin — учётная запись администратора, создаваемая при старте, если её нет.
type Admin struct {
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

// RateLimit — ограничение частоты запросов на вход.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// ErrConfigPathNotSet возвращается, если переменная CONFIG_PATH пуста.
var ErrConfigPathNotSet = errors.New("CONFIG_PATH is not set")

// Load читает конфиг из файла path и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if path == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrConfigPathNotSet)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Validate проверяет значения, без которых сервис не может работать.
func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("jwttoken.jwt_secret_key is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("jwttoken.token_ttl must be positive")
	}
	if c.Enrollment.PlanDurationWeeks <= 0 {
		return errors.New("enrollment.plan_duration_weeks must be positive")
	}
	if _, err := time.LoadLocation(c.Enrollment.Timezone); err != nil {
		return fmt.Errorf("enrollment.timezone: %w", err)
	}
	return nil
}

// Location возвращает часовой пояс, в котором считаются даты программы.
func (e Enrollment) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  PlanCacheTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"Enrollment:\n"+
			"  AllowAnyTransition: %t\n"+
			"  PlanDurationWeeks: %d\n"+
			"  Timezone: %s\n"+
			"  LifecycleSchedule: %s\n",
		c.Env,
		redact(c.StorageConnectionString),
		c.Redis.Addr,
		c.Redis.DB,
		c.Redis.PlanCacheTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.RabbitMQ.Exchange,
		c.Enrollment.AllowAnyTransition,
		c.Enrollment.PlanDurationWeeks,
		c.Enrollment.Timezone,
		c.Enrollment.LifecycleSchedule,
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
