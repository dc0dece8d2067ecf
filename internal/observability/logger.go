package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns a named child of the global logger for one component
// (client, transport, sim). internal/logging owns level and output setup.
func Logger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// InitLogger builds a standalone console logger and installs it globally.
// Used by binaries that skip logging.Configure (tooling, examples).
func InitLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
