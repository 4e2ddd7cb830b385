// Package snapshot captures the configuration stored on a device.
package snapshot

import (
	"bytes"
	"encoding/json"
)

// Domain is one category of device configuration.
type Domain int

// Domains captured from the device.
const (
	DomainConstants Domain = iota
	DomainSettings
	DomainDevices
)

// String implements fmt.Stringer.
func (d Domain) String() string {
	switch d {
	case DomainConstants:
		return "control constants"
	case DomainSettings:
		return "control settings"
	case DomainDevices:
		return "installed devices"
	default:
		return "unknown domain"
	}
}

// Values maps configuration keys to their JSON encoded values as sent by the
// device, so restoring sends back exactly what was read.
type Values map[string]json.RawMessage

func (v Values) clone() Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	for key, val := range v {
		c[key] = append(json.RawMessage(nil), val...)
	}
	return c
}

// Snapshot is the configuration read from a device before flashing.
// A domain which was never received is not captured, which is different
// from captured and empty. Snapshot values are immutable: accessors return
// copies.
type Snapshot struct {
	constants Values
	settings  Values
	devices   []json.RawMessage

	captured [3]bool
}

// New creates a Snapshot. A nil argument leaves that domain uncaptured.
func New(constants, settings Values, devices []json.RawMessage) Snapshot {
	var s Snapshot
	if constants != nil {
		s.constants, s.captured[DomainConstants] = constants.clone(), true
	}
	if settings != nil {
		s.settings, s.captured[DomainSettings] = settings.clone(), true
	}
	if devices != nil {
		s.devices, s.captured[DomainDevices] = cloneDevices(devices), true
	}
	return s
}

func cloneDevices(devices []json.RawMessage) []json.RawMessage {
	c := make([]json.RawMessage, len(devices))
	for n, d := range devices {
		c[n] = append(json.RawMessage(nil), d...)
	}
	return c
}

// Captured indicates the domain was received from the device.
func (s Snapshot) Captured(d Domain) bool {
	if d < DomainConstants || d > DomainDevices {
		return false
	}
	return s.captured[d]
}

// Constants returns a copy of the control constants.
func (s Snapshot) Constants() Values {
	return s.constants.clone()
}

// Settings returns a copy of the control settings.
func (s Snapshot) Settings() Values {
	return s.settings.clone()
}

// Devices returns a copy of the installed device descriptors in order.
func (s Snapshot) Devices() []json.RawMessage {
	if !s.captured[DomainDevices] {
		return nil
	}
	return cloneDevices(s.devices)
}

// DeviceCount returns the number of captured device descriptors.
func (s Snapshot) DeviceCount() int {
	return len(s.devices)
}

// Empty indicates nothing was captured.
func (s Snapshot) Empty() bool {
	return !s.captured[DomainConstants] && !s.captured[DomainSettings] && !s.captured[DomainDevices]
}

type wireSnapshot struct {
	Meta             *Meta              `json:"meta,omitempty"`
	ControlConstants *Values            `json:"controlConstants,omitempty"`
	ControlSettings  *Values            `json:"controlSettings,omitempty"`
	InstalledDevices *[]json.RawMessage `json:"installedDevices,omitempty"`
}

func (s Snapshot) wire() wireSnapshot {
	var w wireSnapshot
	if s.captured[DomainConstants] {
		v := s.Constants()
		w.ControlConstants = &v
	}
	if s.captured[DomainSettings] {
		v := s.Settings()
		w.ControlSettings = &v
	}
	if s.captured[DomainDevices] {
		v := s.Devices()
		w.InstalledDevices = &v
	}
	return w
}

// snapshot rebuilds a Snapshot. Values are compacted as indented files would
// otherwise send multi-line payloads to the device.
func (w wireSnapshot) snapshot() Snapshot {
	var constants, settings Values
	var devices []json.RawMessage
	if w.ControlConstants != nil {
		constants = compactValues(*w.ControlConstants)
	}
	if w.ControlSettings != nil {
		settings = compactValues(*w.ControlSettings)
	}
	if w.InstalledDevices != nil {
		devices = make([]json.RawMessage, len(*w.InstalledDevices))
		for n, d := range *w.InstalledDevices {
			devices[n] = compact(d)
		}
	}
	return New(constants, settings, devices)
}

func compactValues(v Values) Values {
	c := make(Values, len(v))
	for key, val := range v {
		c[key] = compact(val)
	}
	return c
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = w.snapshot()
	return nil
}
