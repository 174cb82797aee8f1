package internal

import (
	"fmt"
	"time"
)

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=4000"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	TombstoneCapacity    int           `env:"TOMBSTONE_CAPACITY,default=10000"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`

	OrsAPIKey      string        `env:"ORS_API_KEY"`
	OrsBaseURL     string        `env:"ORS_BASE_URL,default=https://api.openrouteservice.org"`
	RoutingTimeout time.Duration `env:"ROUTING_TIMEOUT,default=5s"`

	StoreBackend   string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,default=./data/badger"`
	RedisAddr      string        `env:"REDIS_ADDR,default=localhost:6379"`
	RoomTTL        time.Duration `env:"ROOM_TTL,default=24h"`
	MessageTTL     time.Duration `env:"MESSAGE_TTL,default=24h"`
	LimitMessages  *int          `env:"LIMIT_MESSAGES"`
}

// Validate rejects combinations go-env can't check on its own.
func (c Config) Validate() error {
	if c.StoreBackend != BackendBadger && c.StoreBackend != BackendRedis {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendBadger, BackendRedis, c.StoreBackend)
	}
	if c.BufferSize <= 0 || c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
