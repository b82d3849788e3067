package config

// Package config provides a reusable loader for objectchain node
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.2.0

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"objectchain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config represents the unified configuration for an objectchain replica. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		ID          string `mapstructure:"id" json:"id"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
		ListenAddr  string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"network" json:"network"`

	// Miner carries the miner and chain-parameter keys (spec §6). Only
	// interval_seconds is read, by the mine command. Nothing passes the
	// others to the core: name rent runs every rentCyclePeriod blocks
	// (core/handlers_name.go) whatever rent_cycle says, and miners_group,
	// max_auction_stop_interval and union_withdraw_interval are parsed but
	// not used.
	Miner struct {
		MinersGroup            string `mapstructure:"miners_group" json:"miners_group"`
		IntervalSeconds        int    `mapstructure:"interval_seconds" json:"interval_seconds"`
		RentCycle              int64  `mapstructure:"rent_cycle" json:"rent_cycle"`
		MaxAuctionStopInterval int64  `mapstructure:"max_auction_stop_interval" json:"max_auction_stop_interval"`
		UnionWithdrawInterval  int64  `mapstructure:"union_withdraw_interval" json:"union_withdraw_interval"`
	} `mapstructure:"miner" json:"miner"`

	Storage struct {
		DataDir          string `mapstructure:"data_dir" json:"data_dir"`
		SnapshotInterval int    `mapstructure:"snapshot_interval" json:"snapshot_interval"`
		PruneInterval    int    `mapstructure:"prune_interval" json:"prune_interval"`
	} `mapstructure:"storage" json:"storage"`

	ObjectMap struct {
		CacheEntries int `mapstructure:"cache_entries" json:"cache_entries"`
	} `mapstructure:"objectmap" json:"objectmap"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("OBJC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up OBJC_* overrides, e.g. OBJC_MINER_INTERVAL_SECONDS

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the OBJC_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("OBJC_ENV", ""))
}
