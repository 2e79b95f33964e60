package machine

import (
	"github.com/caarlos0/env/v6"
)

// Config holds the runtime tunables, read from SEQ_* environment
// variables.
type Config struct {
	// StackSlots is the number of value slots each strand's stack gets.
	StackSlots int `env:"SEQ_STACK_SLOTS" envDefault:"65536"`
	// ArenaBlock is the block size of the strand-local string arena.
	ArenaBlock int `env:"SEQ_ARENA_BLOCK" envDefault:"65536"`
	// YieldInterval is how many yield probes pass between actual yields.
	YieldInterval int `env:"SEQ_YIELD_INTERVAL" envDefault:"64"`
}

// LoadConfig parses the runtime configuration from the environment.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func defaultConfig() Config {
	c, err := LoadConfig()
	if err != nil {
		return Config{StackSlots: 65536, ArenaBlock: 65536, YieldInterval: 64}
	}
	return c
}
