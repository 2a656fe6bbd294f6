package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the marketplace service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Market   MarketConfig   `mapstructure:"market"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MarketConfig seeds the persisted market state on first boot. Fee
// percentage bounds and receivers are deployment configuration, not code.
type MarketConfig struct {
	FeePercentage  int64  `mapstructure:"fee_percentage"`
	MinFee         int64  `mapstructure:"min_fee"`
	MaxFee         int64  `mapstructure:"max_fee"`
	FlatServiceFee int64  `mapstructure:"flat_service_fee"`
	FeeReceiverA   string `mapstructure:"fee_receiver_a"`
	FeeReceiverB   string `mapstructure:"fee_receiver_b"`
	SeedAdmin      string `mapstructure:"seed_admin"`
	SweepInterval  string `mapstructure:"sweep_interval"`
}

// Load reads configuration in priority order: defaults, then an optional
// market.yaml in the working directory (or the given path), then MARKET_*
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("market")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine, defaults and env apply
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "market.db")
	v.SetDefault("auth.jwt_secret", "market-secret-key")
	v.SetDefault("market.fee_percentage", 5)
	v.SetDefault("market.min_fee", 1)
	v.SetDefault("market.max_fee", 70)
	v.SetDefault("market.flat_service_fee", 1200)
	v.SetDefault("market.fee_receiver_a", "fee-receiver-a")
	v.SetDefault("market.fee_receiver_b", "fee-receiver-b")
	v.SetDefault("market.seed_admin", "market-admin")
	v.SetDefault("market.sweep_interval", "5m")
}

func validate(cfg *Config) error {
	if cfg.Market.MinFee < 0 || cfg.Market.MaxFee < cfg.Market.MinFee {
		return fmt.Errorf("invalid fee bounds [%d, %d]", cfg.Market.MinFee, cfg.Market.MaxFee)
	}
	if cfg.Market.FeePercentage < cfg.Market.MinFee || cfg.Market.FeePercentage > cfg.Market.MaxFee {
		return fmt.Errorf("fee percentage %d outside bounds [%d, %d]",
			cfg.Market.FeePercentage, cfg.Market.MinFee, cfg.Market.MaxFee)
	}
	if cfg.Market.FeeReceiverA == "" || cfg.Market.FeeReceiverB == "" {
		return fmt.Errorf("fee receivers must be configured")
	}
	if cfg.Market.SeedAdmin == "" {
		return fmt.Errorf("seed admin principal must be configured")
	}
	return nil
}
