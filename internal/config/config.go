package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Well-known inbound message keys. Entries under these names additionally
// configure the telemetry match signatures.
const (
	KeyTelemetry         = "TELEMETRY"
	KeyInverterTelemetry = "INVERTER_TELEMETRY"
)

// BusConfig selects the physical CAN adapter.
type BusConfig struct {
	Interface string `toml:"interface"`
	Channel   string `toml:"channel"` // empty means auto-detect, resolved by the adapter
	Bitrate   int    `toml:"bitrate"`
}

// MessageConfig is one raw entry of the [messages] table, before schema
// compilation. ID may be a TOML integer (including 0x literals) or a
// decimal/hex string. Exactly one of Data / DataTemplate should be set.
type MessageConfig struct {
	ID           any   `toml:"id"`
	Extended     *bool `toml:"extended"` // nil means unset; well-known inbound keys default to true
	Data         []int `toml:"data"`
	DataTemplate []any `toml:"data_template"`
}

// Config is the parsed engine configuration file.
type Config struct {
	Bus      BusConfig                `toml:"bus"`
	Messages map[string]MessageConfig `toml:"messages"`
}

// Load reads and validates the bus+messages config. Message entries are only
// shape-checked here; schema.Compile owns per-entry semantics.
func Load(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Bus.Interface == "" {
		cfg.Bus.Interface = "socketcan"
	}
	if cfg.Bus.Bitrate == 0 {
		cfg.Bus.Bitrate = 250000
	}
	if cfg.Messages == nil {
		cfg.Messages = map[string]MessageConfig{}
	}
	if err := ValidateBus(cfg.Bus); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateBus(bus BusConfig) error {
	if strings.TrimSpace(bus.Interface) == "" {
		return fmt.Errorf("bus config missing interface")
	}
	if bus.Bitrate <= 0 {
		return fmt.Errorf("bus config invalid bitrate %d", bus.Bitrate)
	}
	return nil
}
