package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes the integration scenario from the environment, so a
// slow CI can stretch the timeouts without touching the test.
type Config struct {
	EventTimeout time.Duration `envconfig:"TEST_EVENT_TIMEOUT" default:"2s"`
	BufferSize   int           `envconfig:"TEST_BUFFER_SIZE" default:"64"`
	SinkTimeout  time.Duration `envconfig:"TEST_SINK_TIMEOUT" default:"500ms"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
