package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the starter messages config to path. Refuses to
// clobber an existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(messagesTemplate), 0o600)
}

const messagesTemplate = `[bus]
interface = "socketcan"
channel = "can0"
bitrate = 250000

# Inbound signatures. Omitting these keys (or their ids) falls back to the
# built-in 0x5E0100 / 0x5E0200 extended defaults.
[messages.TELEMETRY]
id = 0x5E0100
extended = true

[messages.INVERTER_TELEMETRY]
id = 0x5E0200
extended = true

# Commands carry their setpoint in the final payload byte; SET additionally
# carries the mode byte at offset 2.
[messages.START]
id = 0x5E0001
extended = true
data_template = [0x01, 0, 0, 0, 0, 0, 0, { field = "value" }]

[messages.STOP]
id = 0x5E0001
extended = true
data_template = [0x02, 0, 0, 0, 0, 0, 0, { field = "value" }]

[messages.SET]
id = 0x5E0002
extended = true
data_template = [0x01, 0, { field = "mode" }, 0, 0, 0, 0, { field = "value" }]

[messages.PARAMS_SPEED]
id = 0x5E0003
extended = true
data_template = [
    { field = "c1" }, { field = "c2" }, { field = "c3" },
    { field = "e1" }, { field = "e2" }, { field = "e3" },
]

[messages.PARAMS_TEMP]
id = 0x5E0004
extended = true
data_template = [
    { field = "t1" }, { field = "t2" }, { field = "t3" }, { field = "t4" },
]

[messages.PING]
id = 0x5E00FF
extended = true
data = [0xAA, 0x55]
`
