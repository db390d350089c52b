// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"
)

// Способы доставки уведомлений.
const (
	TransportDirect   = "direct"
	TransportRabbitMQ = "rabbitmq"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local dev prod"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" validate:"required"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Telegram                `yaml:"telegram"`
	Subscription            `yaml:"subscription"`
	Scheduler               `yaml:"scheduler"`
	Broadcast               `yaml:"broadcast"`
	Notifications           `yaml:"notifications"`
	HTTPServer              `yaml:"http_server"`
}

// HTTPServer структура для настройки служебного HTTP-сервера
type HTTPServer struct {
	AddressHTTP    string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP    time.Duration `yaml:"timeouthttp" env-default:"4s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env-default:"10"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env-default:"20"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" validate:"required"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	StatusTTL    time.Duration `yaml:"status_ttl" env-default:"1h"`
}

// RabbitMQ структура для подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL   string        `yaml:"url" env:"RABBITMQ_URL"`
	ConnRetries   int           `yaml:"conn_retries" env-default:"5"`
	RetryDelay    time.Duration `yaml:"retry_delay" env-default:"3s"`
	ConsumerLimit int           `yaml:"consumer_limit" env-default:"10"`
}

// Telegram структура с настройками бота и платежей
type Telegram struct {
	BotToken      string  `yaml:"bot_token" env:"BOT_TOKEN" validate:"required"`
	BotUsername   string  `yaml:"bot_username" env:"BOT_USERNAME"`
	ProviderToken string  `yaml:"provider_token" env:"PROVIDER_TOKEN"`
	AdminIDs      []int64 `yaml:"admin_ids" env:"ADMIN_IDS" env-separator:","`
	Workers       int     `yaml:"workers" env-default:"4" validate:"min=1"`
	PollTimeout   int     `yaml:"poll_timeout" env-default:"60"`
}

// Subscription структура с ценами и сроками тарифов
type Subscription struct {
	Currency      string `yaml:"currency" env-default:"RUB"`
	AnnualPrice   int    `yaml:"annual_price" env:"PRICE_YEAR" env-default:"290000" validate:"gt=0"`
	MonthlyPrice  int    `yaml:"monthly_price" env:"PRICE_MONTH" env-default:"20000" validate:"gt=0"`
	AnnualMonths  int    `yaml:"annual_months" env-default:"12" validate:"gt=0"`
	MonthlyMonths int    `yaml:"monthly_months" env-default:"1" validate:"gt=0"`
}

// Scheduler структура для настройки планировщика напоминаний
type Scheduler struct {
	Enabled          bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	InitialDelay     time.Duration `yaml:"initial_delay" env-default:"5m"`
	Interval         time.Duration `yaml:"interval" env-default:"1h" validate:"gt=0"`
	Timezone         string        `yaml:"timezone" env:"TIMEZONE" env-default:"Asia/Yekaterinburg"`
	RemindDaysBefore int           `yaml:"remind_days_before" env-default:"3" validate:"gt=0"`
	ReminderMarkTTL  time.Duration `yaml:"reminder_mark_ttl" env-default:"48h"`
}

// Broadcast структура для настройки рассылок
type Broadcast struct {
	SendDelay time.Duration `yaml:"send_delay" env-default:"30ms"`
}

// Notifications структура выбора транспорта уведомлений
type Notifications struct {
	Transport string `yaml:"transport" env:"NOTIFICATIONS_TRANSPORT" env-default:"direct" validate:"oneof=direct rabbitmq"`
}

// MustLoad функция для загрузки конфига из файла CONFIG_PATH с переопределением из окружения
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по указанному пути.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Transport == TransportRabbitMQ && c.RabbitMQURL == "" {
		return fmt.Errorf("rabbitmq url is required for transport %q", TransportRabbitMQ)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location возвращает часовой пояс, в котором считаются календарные даты.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsAdmin сообщает, входит ли чат в список администраторов.
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"Redis: %s db=%d\n"+
			"RabbitMQ: transport=%s\n"+
			"Telegram: admins=%d workers=%d\n"+
			"Subscription: annual=%d monthly=%d %s\n"+
			"Scheduler: enabled=%t delay=%s interval=%s tz=%s\n"+
			"HTTPServer: %s\n",
		c.Env,
		c.MigrationsPath,
		c.AddressRedis, c.DB,
		c.Transport,
		len(c.AdminIDs), c.Workers,
		c.AnnualPrice, c.MonthlyPrice, c.Currency,
		c.Enabled, c.InitialDelay, c.Interval, c.Timezone,
		c.AddressHTTP,
	)
}
