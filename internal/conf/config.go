package conf

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/akuzmenko/blogpix/internal/pkg/database"
	"github.com/akuzmenko/blogpix/internal/pkg/logger"
	"github.com/akuzmenko/blogpix/internal/pkg/workerpool"
)

// Config is the root application configuration
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Log      logger.Config   `mapstructure:"log"`
	Media    MediaConfig     `mapstructure:"media"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MediaConfig configures the asset pipeline
type MediaConfig struct {
	// Root is the storage root, shared by every service instance.
	// Local directory or a network mount, must be writable.
	Root string `mapstructure:"root"`

	// PublicBaseURL prefixes stored relative paths in returned URLs
	PublicBaseURL string `mapstructure:"public_base_url"`

	// MaxUploadBytes is the upload size ceiling, default 10 MiB
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// JPEGQuality is the encode quality for JPEG derivatives
	JPEGQuality int `mapstructure:"jpeg_quality"`

	// EagerSizes are the derivative sizes materialized at upload time
	// for owner kinds with the eager policy (post images)
	EagerSizes []SizeConfig `mapstructure:"eager_sizes"`

	// Pool sizes the transform worker pool
	Pool workerpool.Config `mapstructure:"pool"`
}

type SizeConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// LoadConfig reads configuration from the given file, with env overrides
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "console"
	}
	if c.Media.Root == "" {
		c.Media.Root = "static"
	}
	if c.Media.PublicBaseURL == "" {
		c.Media.PublicBaseURL = "/media/"
	}
	if c.Media.MaxUploadBytes == 0 {
		c.Media.MaxUploadBytes = 10 << 20
	}
	if c.Media.JPEGQuality == 0 {
		c.Media.JPEGQuality = 85
	}
	if len(c.Media.EagerSizes) == 0 {
		c.Media.EagerSizes = []SizeConfig{{Width: 300, Height: 300}}
	}
	if c.Media.Pool.Workers <= 0 {
		c.Media.Pool.Workers = workerpool.DefaultConfig().Workers
	}
	if c.Media.Pool.QueueDepth <= 0 {
		c.Media.Pool.QueueDepth = workerpool.DefaultConfig().QueueDepth
	}
}
