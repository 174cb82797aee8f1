package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL      string        `envconfig:"TESTER_URL" default:"ws://localhost:4000/ws"`
	Room     string        `envconfig:"TESTER_ROOM"`
	Walkers  int           `envconfig:"TESTER_WALKERS" default:"3"`
	Steps    int           `envconfig:"TESTER_STEPS" default:"10"`
	Interval time.Duration `envconfig:"TESTER_INTERVAL" default:"500ms"`
	// Center of the simulated walk, defaults to Paris
	Lat float64 `envconfig:"TESTER_LAT" default:"48.8566"`
	Lng float64 `envconfig:"TESTER_LNG" default:"2.3522"`
	// TESTER_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"TESTER_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
