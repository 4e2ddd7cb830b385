package link

import (
	"encoding/json"
	"io"
)

// Command codes sent from host to firmware.
const (
	CmdVersion       byte = 'n'
	CmdConstants     byte = 'c'
	CmdSettings      byte = 's'
	CmdDevices       byte = 'd'
	CmdSetSettings   byte = 'j'
	CmdInstallDevice byte = 'U'
)

// Command is a single command written to the firmware.
type Command struct {
	Code    byte
	Payload []byte
}

// NewCommand encodes payload as JSON. A nil payload sends the code alone.
func NewCommand(code byte, payload interface{}) (*Command, error) {
	cmd := &Command{Code: code}
	if payload == nil {
		return cmd, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		cmd.Payload = raw
		return cmd, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	cmd.Payload = data
	return cmd, nil
}

// Bytes returns encoded bytes for sending.
func (c *Command) Bytes() []byte {
	b := make([]byte, len(c.Payload)+1)
	b[0] = c.Code
	copy(b[1:], c.Payload)
	return b
}

// WriteTo writes encoded bytes in a single Write.
func (c *Command) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Bytes())
	return int64(n), err
}

// String implements fmt.Stringer.
func (c *Command) String() string {
	return string(c.Bytes())
}
