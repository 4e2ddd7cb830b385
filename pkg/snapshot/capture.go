package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/link"
)

// DecodeError is reported when a response line carries a malformed payload.
// The line is skipped, other lines of the same batch are still processed.
type DecodeError struct {
	Tag     link.Tag
	Payload string
	Err     error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload %q: %v", e.Tag, e.Payload, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Builder accumulates response lines into a Snapshot.
type Builder struct {
	constants Values
	settings  Values
	devices   []json.RawMessage
}

// Add decodes a single line. Lines not carrying configuration are ignored.
// A later line of the same domain replaces the earlier one.
func (b *Builder) Add(line link.Line) error {
	switch line.Tag {
	case link.TagConstants:
		v, err := decodeValues(line)
		if err != nil {
			return err
		}
		b.constants = v
	case link.TagSettings:
		v, err := decodeValues(line)
		if err != nil {
			return err
		}
		b.settings = v
	case link.TagDevices:
		var devices []json.RawMessage
		if err := json.Unmarshal([]byte(line.Payload), &devices); err != nil {
			return &DecodeError{Tag: line.Tag, Payload: line.Payload, Err: err}
		}
		if devices == nil {
			devices = []json.RawMessage{}
		}
		b.devices = devices
	}
	return nil
}

func decodeValues(line link.Line) (Values, error) {
	var v Values
	if err := json.Unmarshal([]byte(line.Payload), &v); err != nil {
		return nil, &DecodeError{Tag: line.Tag, Payload: line.Payload, Err: err}
	}
	if v == nil {
		return nil, &DecodeError{Tag: line.Tag, Payload: line.Payload, Err: fmt.Errorf("not an object")}
	}
	return v, nil
}

// Snapshot returns what has been accumulated so far.
func (b *Builder) Snapshot() Snapshot {
	return New(b.constants, b.settings, b.devices)
}

// Capture requests every configuration domain
// and collects responses until the device goes quiet. A domain without a
// valid response stays uncaptured. Only transport failures are returned as
// errors, along with whatever was captured before the failure.
func Capture(ctx context.Context, l *link.Link, dh link.DebugHandler) (Snapshot, error) {
	var b Builder
	for _, code := range []byte{link.CmdDevices, link.CmdConstants, link.CmdSettings} {
		if err := ctx.Err(); err != nil {
			return b.Snapshot(), err
		}
		if err := l.SendCommand(code, struct{}{}); err != nil {
			return b.Snapshot(), err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return b.Snapshot(), err
		}
		line, err := l.ReadLine()
		if err == link.ErrTimeout {
			break
		}
		if err != nil {
			return b.Snapshot(), err
		}
		switch line.Tag {
		case link.TagDebug:
			if dh != nil {
				dh.HandleDebug(line)
			}
		case link.TagConstants, link.TagSettings, link.TagDevices:
			if err := b.Add(line); err != nil {
				glog.Warningf("skipping line: %v", err)
			}
		default:
			glog.V(1).Infof("ignoring %s while capturing", line)
		}
	}
	snap := b.Snapshot()
	glog.Infof("captured %s", Summary(snap))
	return snap, nil
}

// Summary describes what a Snapshot holds.
func Summary(s Snapshot) string {
	describe := func(d Domain, n int) string {
		if !s.Captured(d) {
			return d.String() + " missing"
		}
		return fmt.Sprintf("%d %s", n, d)
	}
	return describe(DomainConstants, len(s.constants)) + ", " +
		describe(DomainSettings, len(s.settings)) + ", " +
		describe(DomainDevices, len(s.devices))
}
