package link

import "bytes"

// Tag identifies the payload kind of a line received from the firmware.
type Tag byte

// Tags understood by the host. Anything else parses as TagUnknown.
const (
	TagUnknown      Tag = 0
	TagVersion      Tag = 'N'
	TagConstants    Tag = 'C'
	TagSettings     Tag = 'S'
	TagDevices      Tag = 'd'
	TagDebug        Tag = 'D'
	TagDeviceUpdate Tag = 'U'
)

// Delimiter separates the tag from the payload.
const Delimiter byte = ':'

// TagOf maps a raw tag byte to a known Tag.
func TagOf(b byte) Tag {
	switch t := Tag(b); t {
	case TagVersion, TagConstants, TagSettings, TagDevices, TagDebug, TagDeviceUpdate:
		return t
	default:
		return TagUnknown
	}
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	switch t {
	case TagVersion:
		return "version"
	case TagConstants:
		return "constants"
	case TagSettings:
		return "settings"
	case TagDevices:
		return "devices"
	case TagDebug:
		return "debug"
	case TagDeviceUpdate:
		return "device-update"
	default:
		return "unknown"
	}
}

// Line is one parsed line from the firmware.
type Line struct {
	Tag Tag
	// Raw is the tag byte as received, kept for diagnostics of unknown tags.
	Raw     byte
	Payload string
}

// ParseLine parses a line without its terminator.
// Lines without the delimiter after the tag byte are TagUnknown.
func ParseLine(raw []byte) Line {
	raw = bytes.TrimRight(raw, "\r\n")
	if len(raw) == 0 {
		return Line{}
	}
	l := Line{Raw: raw[0]}
	if len(raw) < 2 || raw[1] != Delimiter {
		l.Payload = string(raw[1:])
		return l
	}
	l.Tag, l.Payload = TagOf(raw[0]), string(raw[2:])
	return l
}

// String returns the line in wire format.
func (l Line) String() string {
	if l.Raw == 0 {
		return ""
	}
	return string([]byte{l.Raw, Delimiter}) + l.Payload
}
