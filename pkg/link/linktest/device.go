// Package linktest provides a scripted in-memory firmware for tests.
package linktest

import (
	"os"
	"sync"
	"time"

	"github.com/robotalks/reflash/pkg/link"
)

// Responder returns the lines queued in reply to a command.
type Responder func(code byte, payload string) []string

// Device is an in-memory port. Every Write is one command; Read returns
// queued bytes, or nothing (a read timeout) when the queue is empty.
type Device struct {
	Responder Responder

	lock     sync.Mutex
	pending  []byte
	commands []string
	closed   bool
}

// New creates a Device answering commands with r, which may be nil.
func New(r Responder) *Device {
	return &Device{Responder: r}
}

// Queue appends lines the firmware sends unprompted.
func (d *Device) Queue(lines ...string) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.queue(lines)
}

func (d *Device) queue(lines []string) {
	for _, line := range lines {
		d.pending = append(d.pending, line...)
		d.pending = append(d.pending, '\n')
	}
}

// Read implements io.Reader.
func (d *Device) Read(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return 0, os.ErrClosed
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return 0, os.ErrClosed
	}
	d.commands = append(d.commands, string(p))
	if d.Responder != nil && len(p) > 0 {
		d.queue(d.Responder(p[0], string(p[1:])))
	}
	return len(p), nil
}

// Close implements io.Closer.
func (d *Device) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.closed
}

// Commands returns all commands written so far.
func (d *Device) Commands() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.commands...)
}

// CommandsWithCode returns written commands starting with code.
func (d *Device) CommandsWithCode(code byte) []string {
	var cmds []string
	for _, cmd := range d.Commands() {
		if len(cmd) > 0 && cmd[0] == code {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Link wraps the Device in a Link with a short timeout.
func (d *Device) Link() *link.Link {
	l := link.New(d)
	l.Timeout, l.ReadTimeout = 10*time.Millisecond, true
	return l
}
