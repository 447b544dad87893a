// Package config provides configuration management for the quarkdrive CLI.
package config

import "time"

// Config represents the quarkdrive CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Mount   MountConfig   `mapstructure:"mount"`
}

// StorageConfig holds engine storage settings.
type StorageConfig struct {
	DataRoot         string `mapstructure:"data_root"`
	CompressionLevel int    `mapstructure:"compression_level"`
}

// CacheConfig holds hybrid cache settings.
type CacheConfig struct {
	Root           string        `mapstructure:"root"`
	RAMRatio       float64       `mapstructure:"ram_ratio"`
	RAMBudget      uint64        `mapstructure:"ram_budget"`
	WriteBackDelay time.Duration `mapstructure:"write_back_delay"`
	DiskBudget     uint64        `mapstructure:"disk_budget"`
}

// MountConfig holds mount settings.
type MountConfig struct {
	MountPoint string `mapstructure:"mount_point"`
}
