package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger         `mapstructure:"logger"`
	DB           Database       `mapstructure:"database"`
	API          API            `mapstructure:"api"`
	YahooFinance YahooFinance   `mapstructure:"yahoo_finance"`
	Cache        Cache          `mapstructure:"cache"`
	Pricing      Pricing        `mapstructure:"pricing"`
	Scheduler    Scheduler      `mapstructure:"scheduler"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
}

type YahooFinance struct {
	ChartBaseURL        string        `mapstructure:"chart_base_url"`
	OptionsBaseURL      string        `mapstructure:"options_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	QuoteExpiration   time.Duration `mapstructure:"quote_expiration"`
	RateExpiration    time.Duration `mapstructure:"rate_expiration"`
}

type Pricing struct {
	DefaultRiskFreeRate float64 `mapstructure:"default_risk_free_rate"`
	RiskFreeRateSymbol  string  `mapstructure:"risk_free_rate_symbol"`
	DefaultHistoryRange string  `mapstructure:"default_history_range"`
	MispriceThreshold   float64 `mapstructure:"misprice_threshold"`
}

type Scheduler struct {
	CronSpec        string        `mapstructure:"cron_spec"`
	Watchlist       []string      `mapstructure:"watchlist"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("yahoo_finance.chart_base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	viper.SetDefault("yahoo_finance.options_base_url", "https://query1.finance.yahoo.com/v7/finance/options")
	viper.SetDefault("yahoo_finance.timeout", 15*time.Second)
	viper.SetDefault("yahoo_finance.max_request_per_minute", 60)
	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("cache.quote_expiration", time.Minute)
	viper.SetDefault("cache.rate_expiration", time.Hour)
	viper.SetDefault("pricing.default_risk_free_rate", 0.05)
	viper.SetDefault("pricing.risk_free_rate_symbol", "^IRX")
	viper.SetDefault("pricing.default_history_range", "1y")
	viper.SetDefault("pricing.misprice_threshold", 0.15)
	viper.SetDefault("scheduler.max_concurrency", 4)
	viper.SetDefault("scheduler.timeout_duration", 2*time.Minute)
}
