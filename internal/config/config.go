// Package config loads server configuration from an optional YAML file and
// COMMUNITY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix     = "COMMUNITY_"
	EnvConfigPath = "COMMUNITY_CONFIG"
)

type HTTPConfig struct {
	ListenAddr      string        `env:"LISTEN_ADDR" yaml:"listen_addr"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
}

type DBConfig struct {
	DSN string `env:"DSN" yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" yaml:"addr"`
	Password string `env:"PASSWORD" yaml:"password"`
	DB       int    `env:"DB" yaml:"db"`
}

type JWTConfig struct {
	AccessSecret  string `env:"ACCESS_SECRET" yaml:"access_secret"`
	RefreshSecret string `env:"REFRESH_SECRET" yaml:"refresh_secret"`
}

type StripeConfig struct {
	SecretKey     string `env:"SECRET_KEY" yaml:"secret_key"`
	WebhookSecret string `env:"WEBHOOK_SECRET" yaml:"webhook_secret"`
	Currency      string `env:"CURRENCY" yaml:"currency"`
}

// KafkaConfig 为空时 outbox 只写日志
type KafkaConfig struct {
	Brokers []string `env:"BROKERS" envSeparator:"," yaml:"brokers"`
	Topic   string   `env:"TOPIC" yaml:"topic"`
}

// SMTPConfig Host 为空时不发邮件
type SMTPConfig struct {
	Host     string `env:"HOST" yaml:"host"`
	Port     int    `env:"PORT" yaml:"port"`
	Username string `env:"USERNAME" yaml:"username"`
	Password string `env:"PASSWORD" yaml:"password"`
	From     string `env:"FROM" yaml:"from"`
}

type OutboxConfig struct {
	Interval  time.Duration `env:"INTERVAL" yaml:"interval"`
	BatchSize int           `env:"BATCH_SIZE" yaml:"batch_size"`
	MaxRetry  int           `env:"MAX_RETRY" yaml:"max_retry"`
}

type LogConfig struct {
	Level string `env:"LEVEL" yaml:"level"`
}

type Config struct {
	HTTP   HTTPConfig   `envPrefix:"HTTP_" yaml:"http"`
	DB     DBConfig     `envPrefix:"DB_" yaml:"db"`
	Redis  RedisConfig  `envPrefix:"REDIS_" yaml:"redis"`
	JWT    JWTConfig    `envPrefix:"JWT_" yaml:"jwt"`
	Stripe StripeConfig `envPrefix:"STRIPE_" yaml:"stripe"`
	Kafka  KafkaConfig  `envPrefix:"KAFKA_" yaml:"kafka"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_" yaml:"smtp"`
	Outbox OutboxConfig `envPrefix:"OUTBOX_" yaml:"outbox"`
	Log    LogConfig    `envPrefix:"LOG_" yaml:"log"`
	Debug  bool         `env:"DEBUG" yaml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			DSN: "root:root@tcp(127.0.0.1:3306)/community?charset=utf8mb4&parseTime=True&loc=Local",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Stripe: StripeConfig{
			Currency: "usd",
		},
		Kafka: KafkaConfig{
			Topic: "membership-events",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Outbox: OutboxConfig{
			Interval:  time.Second,
			BatchSize: 200,
			MaxRetry:  10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 默认值 -> YAML 文件（可选）-> 环境变量，最后校验
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 同 Load 但不校验，migrate 这类只需要部分配置的命令使用
func Parse(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close() // nolint: errcheck
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	return nil
}

// Validate 检查必填项，并规整可选项
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.ListenAddr == "" {
		errs = append(errs, errors.New("http.listen_addr is required"))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("jwt.access_secret and jwt.refresh_secret are required"))
	} else if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("jwt access and refresh secrets must differ"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("stripe.secret_key is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("stripe.webhook_secret is required"))
	}
	c.Stripe.Currency = strings.ToLower(strings.TrimSpace(c.Stripe.Currency))
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "usd"
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, errors.New("smtp.from is required when smtp.host is set"))
	}
	if c.Outbox.Interval <= 0 {
		c.Outbox.Interval = time.Second
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 200
	}
	if c.Outbox.MaxRetry <= 0 {
		c.Outbox.MaxRetry = 10
	}
	return errors.Join(errs...)
}
