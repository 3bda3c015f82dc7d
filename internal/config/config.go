// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Platform keys recognized by the per-OS lookup tables. These mirror the
// values reported by the orchestration environment: "posix" for
// Linux/macOS hosts and "nt" for Windows hosts.
const (
	PlatformPosix = "posix"
	PlatformNT    = "nt"
)

// Config holds the entire tool-settings document. Each field is a
// namespace read by exactly one subsystem, so a subsystem receives only
// its own slice of the configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	CheckFile CheckFileConfig `mapstructure:"checkfile" yaml:"checkfile"`
	CUDA      CUDAConfig      `mapstructure:"cuda" yaml:"cuda"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CheckFileConfig is the namespace read by the dataset checker. The
// command tables are keyed by platform: the first entry is the fetch
// tool, the second the archive removal tool.
type CheckFileConfig struct {
	BlockName       string              `mapstructure:"block_name" yaml:"block_name"`
	OSDir           map[string]string   `mapstructure:"os_dir" yaml:"os_dir"`
	DownloadCommand map[string][]string `mapstructure:"download_command" yaml:"download_command"`
	DatasetURL      string              `mapstructure:"dataset_url" yaml:"dataset_url"`
	DatasetRoot     string              `mapstructure:"dataset_root" yaml:"dataset_root"`
	Splits          []string            `mapstructure:"splits" yaml:"splits"`
}

// CUDAConfig is the namespace read by the CUDA device manager.
type CUDAConfig struct {
	BlockName                string `mapstructure:"block_name" yaml:"block_name"`
	MemoryUtilizationCommand string `mapstructure:"memory_utilization_command" yaml:"memory_utilization_command"`
}

// ModelConfig is the namespace read by the model reporting layer.
type ModelConfig struct {
	BlockName string   `mapstructure:"block_name" yaml:"block_name"`
	Columns   []string `mapstructure:"columns" yaml:"columns"`
}

// SetDefaults initializes default values for every settings namespace.
// The defaults are a complete, working document; a settings file only
// needs to state overrides.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "divan")
	v.SetDefault("logger.log_file", "divan.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Dataset checker --
	v.SetDefault("checkfile.block_name", "check_file")
	v.SetDefault("checkfile.os_dir", map[string]string{
		PlatformPosix: "Linux",
		PlatformNT:    "Windows",
	})
	v.SetDefault("checkfile.download_command", map[string][]string{
		PlatformPosix: {"wget", "rm"},
		PlatformNT:    {"curl", "del"},
	})
	v.SetDefault("checkfile.dataset_url", "https://cchsu.info/files/images.zip")
	v.SetDefault("checkfile.dataset_root", "dataset")
	v.SetDefault("checkfile.splits", []string{"train", "val", "test"})

	// -- CUDA manager --
	v.SetDefault("cuda.block_name", "cuda_ready")
	v.SetDefault("cuda.memory_utilization_command", "nvidia-smi --query-gpu=memory.free --format=csv")

	// -- Model reporting --
	v.SetDefault("model.block_name", "model")
	v.SetDefault("model.columns", []string{"idx", "from", "repeats", "module", "arguments"})
}

// NewDefault creates a configuration populated with default values only.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a configuration instance from a viper object and
// validates it.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.CheckFile.Validate(); err != nil {
		return fmt.Errorf("checkfile configuration invalid: %w", err)
	}
	if err := c.CUDA.Validate(); err != nil {
		return fmt.Errorf("cuda configuration invalid: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the dataset checker namespace. The OS lookup tables
// must carry exactly the two supported platform keys.
func (c *CheckFileConfig) Validate() error {
	if err := validatePlatformKeys("checkfile.os_dir", keysOf(c.OSDir)); err != nil {
		return err
	}
	if err := validatePlatformKeys("checkfile.download_command", keysOf(c.DownloadCommand)); err != nil {
		return err
	}
	for platform, command := range c.DownloadCommand {
		if len(command) != 2 {
			return fmt.Errorf("checkfile.download_command.%s must list a fetch tool and a removal tool", platform)
		}
	}
	if c.DatasetRoot == "" {
		return fmt.Errorf("checkfile.dataset_root must not be empty")
	}
	if len(c.Splits) == 0 {
		return fmt.Errorf("checkfile.splits must name at least one dataset split")
	}
	return nil
}

// Validate checks the CUDA manager namespace.
func (c *CUDAConfig) Validate() error {
	if c.MemoryUtilizationCommand == "" {
		return fmt.Errorf("cuda.memory_utilization_command must not be empty")
	}
	return nil
}

// Validate checks the model reporting namespace.
func (c *ModelConfig) Validate() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("model.columns must name at least one column header")
	}
	return nil
}

func validatePlatformKeys(key string, got []string) error {
	if len(got) != 2 {
		return fmt.Errorf("%s must contain exactly the %q and %q platform keys", key, PlatformPosix, PlatformNT)
	}
	for _, k := range got {
		if k != PlatformPosix && k != PlatformNT {
			return fmt.Errorf("%s contains unsupported platform key %q", key, k)
		}
	}
	return nil
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
