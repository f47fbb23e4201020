package main

import "time"

type Config struct {
	Addr                 string        `env:"ADDR,default=:8080"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	LeavePrefixLen       int           `env:"LEAVE_PREFIX_LEN,default=6"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=5m"`
	GiphyAPIKey          string        `env:"GIPHY_API_KEY"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}
