package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var config Config
	config.applyDefaults()

	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "static", config.Media.Root)
	assert.Equal(t, "/media/", config.Media.PublicBaseURL)
	assert.Equal(t, int64(10<<20), config.Media.MaxUploadBytes)
	assert.Equal(t, 85, config.Media.JPEGQuality)
	assert.Equal(t, []SizeConfig{{Width: 300, Height: 300}}, config.Media.EagerSizes)

	// an omitted pool section must still produce a bounded queue
	assert.Greater(t, config.Media.Pool.Workers, 0)
	assert.Greater(t, config.Media.Pool.QueueDepth, 0)
}

func TestConfig_ApplyDefaultsKeepsExplicitValues(t *testing.T) {
	config := Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 9000},
	}
	config.Media.Pool.Workers = 2
	config.Media.Pool.QueueDepth = 8

	config.applyDefaults()

	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, 2, config.Media.Pool.Workers)
	assert.Equal(t, 8, config.Media.Pool.QueueDepth)
}
