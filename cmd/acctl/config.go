package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ametov/acctl/internal/config"
)

// acctl overlay key mapping onto the bus settings from the messages file.
type busOverlay struct {
	Interface string `toml:"interface"`
	Channel   string `toml:"channel"`
	Bitrate   int    `toml:"bitrate"`
}

// applyOverlay layers a CLI-side bus config on top of the loaded one. Only
// keys actually present in the file override.
func applyOverlay(path string, bus *config.BusConfig) error {
	var raw busOverlay
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load bus overlay: %w", err)
	}

	if meta.IsDefined("interface") {
		bus.Interface = strings.TrimSpace(raw.Interface)
	}
	if meta.IsDefined("channel") {
		bus.Channel = strings.TrimSpace(raw.Channel)
	}
	if meta.IsDefined("bitrate") {
		bus.Bitrate = raw.Bitrate
	}
	return config.ValidateBus(*bus)
}
