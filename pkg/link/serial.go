package link

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// Serial defaults.
const (
	DefaultBaud        = 57600
	DefaultSettleDelay = time.Second
	TouchBaud          = 1200
)

// Open opens a serial port and wraps it as a Link.
func Open(port string, baud int, timeout time.Duration) (*Link, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud, ReadTimeout: timeout})
	if err != nil {
		return nil, &LinkError{Port: port, Err: err}
	}
	l := New(s)
	l.Timeout, l.ReadTimeout = timeout, true
	return l, nil
}

// Touch opens and immediately closes the port at baud. Boards with a
// native USB bootloader enter it on this pulse at 1200 bps.
func Touch(port string, baud int) error {
	s, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return &LinkError{Port: port, Err: err}
	}
	return s.Close()
}

// Opener opens a Link to a named port.
type Opener interface {
	Open(port string) (*Link, error)
}

// Releaser is told when a port was released by something other than a Link,
// like the programmer or the reset pulse.
type Releaser interface {
	Released(port string)
}

// Dialer opens serial Links and keeps closing and reopening the same port
// at least SettleDelay apart. Boards resetting on port close would otherwise
// still be booting when the port is opened again.
type Dialer struct {
	Baud        int
	Timeout     time.Duration
	SettleDelay time.Duration

	// OpenFunc replaces Open, mainly for tests.
	OpenFunc func(port string, baud int, timeout time.Duration) (*Link, error)

	lock      sync.Mutex
	lastClose map[string]time.Time
}

// NewDialer creates a Dialer with defaults.
func NewDialer() *Dialer {
	return &Dialer{
		Baud:        DefaultBaud,
		Timeout:     DefaultTimeout,
		SettleDelay: DefaultSettleDelay,
	}
}

// Open implements Opener.
func (d *Dialer) Open(port string) (*Link, error) {
	d.lock.Lock()
	closedAt, ok := d.lastClose[port]
	d.lock.Unlock()
	if ok {
		if wait := d.SettleDelay - time.Since(closedAt); wait > 0 {
			glog.V(2).Infof("waiting %v for %s to settle", wait, port)
			time.Sleep(wait)
		}
	}
	open := d.OpenFunc
	if open == nil {
		open = Open
	}
	l, err := open(port, d.Baud, d.Timeout)
	if err != nil {
		return nil, err
	}
	l.onClose = func() { d.Released(port) }
	return l, nil
}

// Released implements Releaser. The next Open of port waits SettleDelay
// from now.
func (d *Dialer) Released(port string) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.lastClose == nil {
		d.lastClose = make(map[string]time.Time)
	}
	d.lastClose[port] = time.Now()
}
