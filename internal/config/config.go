// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
//
// Конфигурация загружается один раз при старте процесса и дальше
// передаётся компонентам по значению; после старта она не меняется.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Поддерживаемые бэкенды хранилища токенов.
const (
	TokensBackendPostgres = "postgres"
	TokensBackendRedis    = "redis"
)

// MinPasswordCost — нижняя граница стоимости bcrypt.
const MinPasswordCost = 8

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Tokens   TokensConfig  `yaml:"tokens"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/v1"`
	// PublicURL — внешний адрес API, из него собираются ссылки в письмах.
	PublicURL string `yaml:"public_url" env:"HTTP_PUBLIC_URL" env-default:"http://localhost:8080"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"JWT_ACCESS_TTL" env-default:"30m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"JWT_REFRESH_TTL" env-default:"720h"`
	ResetTokenTTL   time.Duration `yaml:"reset_token_ttl" env:"JWT_RESET_PASSWORD_TTL" env-default:"10m"`
	VerifyTokenTTL  time.Duration `yaml:"verify_token_ttl" env:"JWT_VERIFY_EMAIL_TTL" env-default:"10m"`
	PasswordCost    int           `yaml:"password_cost" env:"PASSWORD_COST" env-default:"10"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	// SkipMigrations отключает применение goose-миграций на старте.
	SkipMigrations bool `yaml:"skip_migrations" env:"DB_SKIP_MIGRATIONS"`
}

// TokensConfig — выбор и настройки хранилища токенов.
type TokensConfig struct {
	Backend       string        `yaml:"backend" env:"TOKENS_BACKEND" env-default:"postgres"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	RedisPrefix   string        `yaml:"redis_prefix" env:"REDIS_PREFIX" env-default:"auth:tok:"`
	JanitorPeriod time.Duration `yaml:"janitor_period" env:"TOKENS_JANITOR_PERIOD" env-default:"30m"`
}

// Validate проверяет инварианты, которые cleanenv не выражает тегами.
func (c *Config) Validate() error {
	const op = "config.Validate"

	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret must not be empty"))
	}

	ttls := map[string]time.Duration{
		"auth.access_token_ttl":  c.Auth.AccessTokenTTL,
		"auth.refresh_token_ttl": c.Auth.RefreshTokenTTL,
		"auth.reset_token_ttl":   c.Auth.ResetTokenTTL,
		"auth.verify_token_ttl":  c.Auth.VerifyTokenTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, ttl))
		}
	}

	if c.Auth.PasswordCost < MinPasswordCost {
		errs = append(errs, fmt.Errorf("auth.password_cost must be >= %d, got %d", MinPasswordCost, c.Auth.PasswordCost))
	}

	switch c.Tokens.Backend {
	case TokensBackendPostgres:
	case TokensBackendRedis:
		if c.Tokens.RedisURL == "" {
			errs = append(errs, errors.New("tokens.redis_url is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tokens.backend %q", c.Tokens.Backend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML,
// итог проверяется через Validate.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
