// Package cli implements the quarkdrive command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quarkdrive/quarkdrive"
	"github.com/quarkdrive/quarkdrive/cmd/quarkdrive/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfgFile is the path to the config file (set via --config flag).
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quarkdrive",
	Short: "Deduplicating, compressing local storage engine",
	Long: `QuarkDrive is a local content-addressed storage engine.

Files stored through it are deduplicated by content digest and compressed
with zstd; each unique byte sequence is kept exactly once. Reads are served
through a hybrid RAM+disk cache. The engine can also be presented as a
virtual volume through a native mount driver.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("data-root", "", "root directory for blobs and metadata")
	rootCmd.PersistentFlags().String("cache-root", "", "directory for the disk cache tier")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose debug logging")

	// Bind flags to Viper (errors only occur if flag doesn't exist, which can't happen here)
	//nolint:errcheck // flags are defined above, so Lookup will never return nil
	viper.BindPFlag("storage.data_root", rootCmd.PersistentFlags().Lookup("data-root"))
	//nolint:errcheck
	viper.BindPFlag("cache.root", rootCmd.PersistentFlags().Lookup("cache-root"))
	//nolint:errcheck
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Set defaults
	viper.SetDefault("storage.compression_level", 5)
	viper.SetDefault("cache.ram_ratio", 0.10)
	viper.SetDefault("cache.write_back_delay", "2s")

	rootCmd.Version = version
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := config.Dir()
		if err == nil {
			viper.AddConfigPath(configDir)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables: QUARKDRIVE_STORAGE_DATA_ROOT, QUARKDRIVE_VERBOSE, etc.
	viper.SetEnvPrefix("QUARKDRIVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Config file is optional - don't fail if missing
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config:", viper.ConfigFileUsed())
		}
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// newLogger builds the CLI logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine builds an Engine from the resolved configuration.
func openEngine() (*quarkdrive.Engine, error) {
	dataRoot := viper.GetString("storage.data_root")
	if dataRoot == "" {
		var err error
		dataRoot, err = config.DataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
	}
	cacheRoot := viper.GetString("cache.root")
	if cacheRoot == "" {
		var err error
		cacheRoot, err = config.CacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
	}

	opts := []quarkdrive.Option{
		quarkdrive.WithDataRoot(dataRoot),
		quarkdrive.WithCacheRoot(cacheRoot),
		quarkdrive.WithLogger(newLogger()),
	}
	if level := viper.GetInt("storage.compression_level"); level != 0 {
		opts = append(opts, quarkdrive.WithCompressionLevel(level))
	}
	if ratio := viper.GetFloat64("cache.ram_ratio"); ratio != 0 {
		opts = append(opts, quarkdrive.WithRAMRatio(ratio))
	}
	if budget := viper.GetUint64("cache.ram_budget"); budget != 0 {
		opts = append(opts, quarkdrive.WithRAMBudget(budget))
	}
	if delay := viper.GetDuration("cache.write_back_delay"); delay != 0 {
		opts = append(opts, quarkdrive.WithWriteBackDelay(delay))
	}
	if budget := viper.GetUint64("cache.disk_budget"); budget != 0 {
		opts = append(opts, quarkdrive.WithDiskCacheBudget(budget))
	}
	return quarkdrive.Open(opts...)
}
