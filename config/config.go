// Package config loads windowrouter's tunables the way aistore loads
// cmn.Config: a plain struct, validated at construction, that every
// component takes a reference to instead of reaching for globals.
//
// Values can be supplied as a struct literal (library callers) or
// populated from the environment via FromEnv, following the pattern
// telepresence uses sethvargo/go-envconfig for its own daemon config.
package config

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every tunable named in spec.md §6.
type Config struct {
	// ItemSize is the byte width of one opaque stream item.
	ItemSize int `env:"ROUTER_ITEM_SIZE, default=4"`
	// Window is W, the number of items per window (nominally 1024).
	Window int `env:"ROUTER_WINDOW, default=1024"`
	// QueueCapacity is K, the bounded window-queue capacity.
	QueueCapacity int `env:"ROUTER_QUEUE_CAPACITY, default=1025"`
	// PreserveIndex honors/emits "i" stream tags instead of a private counter.
	PreserveIndex bool `env:"ROUTER_PRESERVE_INDEX, default=false"`
	// Order enforces index-sequential emission at the queue-source.
	Order bool `env:"ROUTER_ORDER, default=true"`
	// ThroughputLimit caps root-sender throughput in items/sec; 0 disables it.
	ThroughputLimit float64 `env:"ROUTER_THROUGHPUT_LIMIT, default=0"`
	// Port is the root's listening TCP port.
	Port int `env:"ROUTER_PORT, default=8080"`
	// Children is N, the number of child workers the root expects.
	Children int `env:"ROUTER_CHILDREN, default=1"`
	// Compression enables LZ4 payload compression on the wire.
	Compression bool `env:"ROUTER_COMPRESSION, default=false"`
	// Verbose raises logging to debug level.
	Verbose bool `env:"ROUTER_VERBOSE, default=false"`
}

// Default returns the nominal configuration (spec.md §3, §6).
func Default() *Config {
	return &Config{
		ItemSize:      4,
		Window:        1024,
		QueueCapacity: 1025,
		PreserveIndex: false,
		Order:         true,
		Port:          8080,
		Children:      1,
	}
}

// FromEnv populates a Config from the process environment, falling
// back to Default's values for anything unset.
func FromEnv(ctx context.Context) (*Config, error) {
	c := Default()
	if err := envconfig.Process(ctx, c); err != nil {
		return nil, errors.Wrap(err, "config: process environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces spec.md §7's "Configuration" error class: invalid
// capacity, item size, etc. are surfaced at construction.
func (c *Config) Validate() error {
	switch {
	case c.ItemSize <= 0:
		return fmt.Errorf("config: item_size must be positive, got %d", c.ItemSize)
	case c.Window <= 0:
		return fmt.Errorf("config: window (W) must be positive, got %d", c.Window)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("config: queue_capacity must be positive, got %d", c.QueueCapacity)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port must be in 1..65535, got %d", c.Port)
	case c.Children <= 0:
		return fmt.Errorf("config: children must be positive, got %d", c.Children)
	case c.ThroughputLimit < 0:
		return fmt.Errorf("config: throughput_limit must be >= 0, got %f", c.ThroughputLimit)
	}
	return nil
}
