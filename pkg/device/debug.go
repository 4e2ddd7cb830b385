package device

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/link"
)

// Expander turns the compact payload of a debug line into readable text.
type Expander interface {
	Expand(payload string) (string, error)
}

// ExpandFunc is func type of Expander.
type ExpandFunc func(string) (string, error)

// Expand implements Expander.
func (f ExpandFunc) Expand(payload string) (string, error) {
	return f(payload)
}

// logMessage is the compact form of a firmware log entry.
type logMessage struct {
	Type   string        `json:"logType"`
	ID     int           `json:"logID"`
	Values []interface{} `json:"V"`
}

var logTypes = map[string]string{
	"E": "error",
	"W": "warning",
	"I": "info",
	"D": "debug",
}

// Messages maps log IDs to format strings, %v verbs consume values in order.
type Messages map[int]string

// Expand implements Expander. Unknown IDs are rendered with their raw values.
func (m Messages) Expand(payload string) (string, error) {
	var msg logMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", fmt.Errorf("decode log message: %w", err)
	}
	kind := logTypes[msg.Type]
	if kind == "" {
		kind = msg.Type
	}
	format, ok := m[msg.ID]
	if !ok {
		values := make([]string, len(msg.Values))
		for n, v := range msg.Values {
			values[n] = fmt.Sprint(v)
		}
		return fmt.Sprintf("%s %d: %s", kind, msg.ID, strings.Join(values, " ")), nil
	}
	return kind + ": " + fmt.Sprintf(format, msg.Values...), nil
}

// DefaultMessages are the log messages shared by all firmware versions.
var DefaultMessages = Messages{
	0: "Arduino restarted. Starting control.",
	1: "Temperature sensor %v could not be found.",
	2: "EEPROM initialized with defaults.",
	3: "Device %v installed in slot %v.",
}

// DebugLogger logs expanded debug lines. A failing expansion is logged with
// the raw payload and never interrupts the caller.
func DebugLogger(e Expander) link.DebugHandler {
	return link.HandleDebugFunc(func(line link.Line) {
		text, err := e.Expand(line.Payload)
		if err != nil {
			glog.Warningf("expand log message %q: %v", line.Payload, err)
			text = line.Payload
		}
		glog.Infof("device debug message: %s", text)
	})
}
