package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// FeedConfig 描述上游行情接口。
type FeedConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// StrategyConfig 为选品打分与缓存刷新的策略参数。
type StrategyConfig struct {
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	SkipCooldown     time.Duration `mapstructure:"skip_cooldown"`
	MinProfitPerItem int           `mapstructure:"min_profit_per_item"`
	MinROI           float64       `mapstructure:"min_roi"`
	MinTotalVolume   int           `mapstructure:"min_total_volume"`
	MarketTaxRate    float64       `mapstructure:"market_tax_rate"`
	PriceMemoryTTL   time.Duration `mapstructure:"price_memory_ttl"`
}

// ServerConfig 控制 HTTP 服务。
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string      `mapstructure:"level"`
	Encoding         string      `mapstructure:"encoding"`
	Development      bool        `mapstructure:"development"`
	OutputPaths      []string    `mapstructure:"output_paths"`
	ErrorOutputPaths []string    `mapstructure:"error_output_paths"`
	File             FileLogging `mapstructure:"file"`
}

// FileLogging 控制滚动日志文件，Path 为空时不落盘。
type FileLogging struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// TracingConfig 控制链路追踪。
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	PrettyPrint bool   `mapstructure:"pretty_print"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Feed.BaseURL == "" {
		err = multierr.Append(err, errors.New("feed.base_url 不能为空"))
	}
	if c.Feed.Timeout <= 0 {
		err = multierr.Append(err, errors.New("feed.timeout 必须大于0"))
	}
	if c.Feed.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("feed.retry.max_attempts 必须大于0"))
	}
	if c.Feed.Retry.MinDelay <= 0 || c.Feed.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("feed.retry.delay 必须为正"))
	}
	if c.Feed.Retry.MinDelay > c.Feed.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("feed.retry.min_delay 不能大于 max_delay"))
	}
	if c.Strategy.RefreshInterval <= 0 {
		err = multierr.Append(err, errors.New("strategy.refresh_interval 必须大于0"))
	}
	if c.Strategy.SkipCooldown < 0 {
		err = multierr.Append(err, errors.New("strategy.skip_cooldown 不能为负"))
	}
	if c.Strategy.PriceMemoryTTL < 0 {
		err = multierr.Append(err, errors.New("strategy.price_memory_ttl 不能为负"))
	}
	if c.Strategy.MinTotalVolume < 0 {
		err = multierr.Append(err, errors.New("strategy.min_total_volume 不能为负"))
	}
	if c.Strategy.MinROI < 0 {
		err = multierr.Append(err, errors.New("strategy.min_roi 不能为负"))
	}
	if c.Strategy.MarketTaxRate < 0 || c.Strategy.MarketTaxRate >= 1 {
		err = multierr.Append(err, errors.New("strategy.market_tax_rate 必须位于[0,1)"))
	}
	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr 不能为空"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout 必须大于0"))
	}
	if c.Server.SessionTTL < 0 {
		err = multierr.Append(err, errors.New("server.session_ttl 不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		err = multierr.Append(err, errors.New("tracing.service_name 不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
