package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TEST_READ_TIMEOUT bounds every frame read so a missing broadcast
	// fails the scenario instead of hanging it.
	ReadTimeout  time.Duration `envconfig:"TEST_READ_TIMEOUT" default:"2s"`
	BufferSize   int           `envconfig:"TEST_CONNECTION_BUFFER_SIZE" default:"64"`
	HistoryLimit int           `envconfig:"TEST_HISTORY_LIMIT" default:"50"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
