package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "ELCHI_DECOMPILER"
	defaultConfigDir  = "/etc/elchi-decompiler"
	DefaultMode       = "outline"
	DefaultToolsDir   = "tools"
	DefaultJavaBinary = "java"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Engines   EnginesConfig   `mapstructure:"engines" yaml:"engines"`
	Tools     []ToolConfig    `mapstructure:"tools" yaml:"tools,omitempty"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// EnginesConfig controls engine selection, external tools and scratch space
type EnginesConfig struct {
	DefaultMode      string        `mapstructure:"default_mode" yaml:"default_mode"`
	ToolsDir         string        `mapstructure:"tools_dir" yaml:"tools_dir"`
	JavaPath         string        `mapstructure:"java_path" yaml:"java_path"`
	ScratchDir       string        `mapstructure:"scratch_dir" yaml:"scratch_dir"`
	ToolTimeout      time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	CompressionLevel int           `mapstructure:"compression_level" yaml:"compression_level"`
	JadxThreads      int           `mapstructure:"jadx_threads" yaml:"jadx_threads"`
	Workers          int           `mapstructure:"workers" yaml:"workers"`
	WatchTools       bool          `mapstructure:"watch_tools" yaml:"watch_tools"`
}

// ToolConfig declares or overrides an external tool definition
type ToolConfig struct {
	ID       string   `mapstructure:"id" yaml:"id"`
	Aliases  []string `mapstructure:"aliases" yaml:"aliases,omitempty"`
	File     string   `mapstructure:"file" yaml:"file"`
	Launcher string   `mapstructure:"launcher" yaml:"launcher"`
	Args     []string `mapstructure:"args" yaml:"args"`
	Output   string   `mapstructure:"output" yaml:"output"`
}

// ArtifactsConfig configures optional publication of finished archives
type ArtifactsConfig struct {
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Enabled reports whether archive publication is configured.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Address returns the listen address of the HTTP server.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_upload_mb", 256)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 50)
	v.SetDefault("server.max_concurrent", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_age", 14)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.compress", true)

	v.SetDefault("engines.default_mode", DefaultMode)
	v.SetDefault("engines.tools_dir", DefaultToolsDir)
	v.SetDefault("engines.java_path", DefaultJavaBinary)
	v.SetDefault("engines.scratch_dir", "")
	v.SetDefault("engines.tool_timeout", "2m")
	v.SetDefault("engines.probe_timeout", "5s")
	v.SetDefault("engines.compression_level", 1)
	v.SetDefault("engines.jadx_threads", 0)
	v.SetDefault("engines.workers", 4)
	v.SetDefault("engines.watch_tools", true)

	v.SetDefault("artifacts.s3.region", "us-east-1")
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.elchi-decompiler")
		v.AddConfigPath(defaultConfigDir)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := initLogger(&config.Logging); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would otherwise fail late, at request time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be positive")
	}
	if strings.TrimSpace(c.Engines.DefaultMode) == "" {
		return fmt.Errorf("engines.default_mode is required")
	}
	if c.Engines.ToolTimeout <= 0 {
		return fmt.Errorf("engines.tool_timeout must be positive")
	}
	if c.Engines.CompressionLevel < 0 || c.Engines.CompressionLevel > 9 {
		return fmt.Errorf("engines.compression_level must be between 0 and 9, got %d", c.Engines.CompressionLevel)
	}
	for i, tool := range c.Tools {
		if strings.TrimSpace(tool.ID) == "" {
			return fmt.Errorf("tools[%d]: id is required", i)
		}
		if strings.TrimSpace(tool.File) == "" {
			return fmt.Errorf("tools[%d] (%s): file is required", i, tool.ID)
		}
	}
	if c.Artifacts.S3.Enabled() && strings.TrimSpace(c.Artifacts.S3.Bucket) == "" {
		return fmt.Errorf("artifacts.s3.bucket is required when an endpoint is set")
	}
	return nil
}

// initLogger initializes the logger with the provided configuration
func initLogger(cfg *LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Module:     "main",
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadMB:     256,
			RateLimit:       20,
			RateBurst:       50,
			MaxConcurrent:   10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxAge:     14,
			MaxBackups: 5,
			Compress:   true,
		},
		Engines: EnginesConfig{
			DefaultMode:      DefaultMode,
			ToolsDir:         DefaultToolsDir,
			JavaPath:         DefaultJavaBinary,
			ToolTimeout:      2 * time.Minute,
			ProbeTimeout:     5 * time.Second,
			CompressionLevel: 1,
			Workers:          4,
			WatchTools:       true,
		},
		Artifacts: ArtifactsConfig{
			S3: S3Config{Region: "us-east-1"},
		},
	}
}
