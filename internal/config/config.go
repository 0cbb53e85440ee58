package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "flips"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 配置文件不存在时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	// .env 只是可选的环境变量来源
	_ = godotenv.Load()

	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if missing && explicit {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		if !missing {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("feed.base_url", "https://prices.runescape.wiki/api/v1/osrs")
	v.SetDefault("feed.user_agent", "flip-advisor/1.0")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.retry.max_attempts", 3)
	v.SetDefault("feed.retry.min_delay", "250ms")
	v.SetDefault("feed.retry.max_delay", "2s")

	v.SetDefault("strategy.refresh_interval", "60s")
	v.SetDefault("strategy.skip_cooldown", "600s")
	v.SetDefault("strategy.min_profit_per_item", 3)
	v.SetDefault("strategy.min_roi", 0.0005)
	v.SetDefault("strategy.min_total_volume", 50)
	v.SetDefault("strategy.market_tax_rate", 0.02)
	v.SetDefault("strategy.price_memory_ttl", "2h")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.session_ttl", "6h")

	v.SetDefault("database.path", "data/flip_advisor.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_backups", 3)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "flip-advisor")
	v.SetDefault("tracing.pretty_print", false)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
