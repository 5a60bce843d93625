package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	SMS       SMSConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Webhook   WebhookConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	ReportEmail string `mapstructure:"report_email"`
}

type SMSConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	Sender     string `mapstructure:"sender"`
}

type QueueConfig struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

type SchedulerConfig struct {
	SweepHour        int     `mapstructure:"sweep_hour"`
	ReminderHour     int     `mapstructure:"reminder_hour"`
	AlertWeekday     int     `mapstructure:"alert_weekday"`
	AlertLookbackDays int    `mapstructure:"alert_lookback_days"`
	DepletionHours   float64 `mapstructure:"depletion_hours"`
	ExpiryWindowDays int     `mapstructure:"expiry_window_days"`
	LogRetentionDays int     `mapstructure:"log_retention_days"`
}

type WebhookConfig struct {
	PaymentSecret string `mapstructure:"payment_secret"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.batch_size", 50)
	viper.SetDefault("queue.poll_interval", 5*time.Second)
	viper.SetDefault("queue.max_attempts", 3)
	viper.SetDefault("queue.retry_base_wait", 30*time.Second)
	viper.SetDefault("scheduler.sweep_hour", 4)
	viper.SetDefault("scheduler.reminder_hour", 9)
	viper.SetDefault("scheduler.alert_weekday", 1)
	viper.SetDefault("scheduler.alert_lookback_days", 7)
	viper.SetDefault("scheduler.depletion_hours", 2.0)
	viper.SetDefault("scheduler.expiry_window_days", 14)
	viper.SetDefault("scheduler.log_retention_days", 90)
}

// WorkerEnv carries environment overrides for the worker binary
type WorkerEnv struct {
	QueueWorkers int    `envconfig:"QUEUE_WORKERS"`
	HealthPort   int    `envconfig:"HEALTH_PORT" default:"8081"`
	MetricsPort  int    `envconfig:"METRICS_PORT" default:"9091"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

func LoadWorkerEnv() (*WorkerEnv, error) {
	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to process worker env: %w", err)
	}
	return &env, nil
}
