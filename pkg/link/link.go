package link

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultTimeout is the read timeout used when none is configured.
const DefaultTimeout = time.Second

// DebugHandler is called for every debug line drained from the firmware.
type DebugHandler interface {
	HandleDebug(Line)
}

// HandleDebugFunc is func type of DebugHandler.
type HandleDebugFunc func(Line)

// HandleDebug implements DebugHandler.
func (f HandleDebugFunc) HandleDebug(l Line) {
	f(l)
}

// Link exchanges tagged lines with the firmware.
// A Link is owned by a single control flow and is not safe for concurrent use.
type Link struct {
	ReadWriter  io.ReadWriter
	Timeout     time.Duration
	ReadTimeout bool // set to true if ReadWriter already supports timeout with Read

	buf     []byte
	chunk   []byte
	dataCh  chan []byte
	errCh   chan error
	doneCh  chan struct{}
	err     error
	onClose func()
	closer  sync.Once
}

// New creates a Link over rw.
func New(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter: rw,
		Timeout:    DefaultTimeout,
	}
}

// SendCommand writes a command code followed by the JSON encoding of payload.
// No acknowledgement is awaited.
func (l *Link) SendCommand(code byte, payload interface{}) error {
	cmd, err := NewCommand(code, payload)
	if err != nil {
		return err
	}
	glog.V(2).Infof("SND %s", cmd)
	_, err = cmd.WriteTo(l.ReadWriter)
	return err
}

// ReadLine reads one line. It returns ErrTimeout when nothing arrives within
// Timeout. A partial line pending at timeout is returned as a line, the same
// way a serial readline with a timeout behaves.
func (l *Link) ReadLine() (Line, error) {
	for {
		if pos := bytes.IndexByte(l.buf, '\n'); pos >= 0 {
			line := ParseLine(l.buf[:pos])
			l.buf = l.buf[pos+1:]
			if line.Raw == 0 {
				continue
			}
			glog.V(2).Infof("RCV %s", line)
			return line, nil
		}
		if err := l.fill(); err != nil {
			if err == ErrTimeout && len(bytes.TrimSpace(l.buf)) > 0 {
				line := ParseLine(l.buf)
				l.buf = nil
				glog.V(2).Infof("RCV (partial) %s", line)
				return line, nil
			}
			return Line{}, err
		}
	}
}

// DrainDebug reads lines until quiescence. Debug lines go to h, all other
// lines are returned in arrival order.
func (l *Link) DrainDebug(h DebugHandler) ([]Line, error) {
	var lines []Line
	for {
		line, err := l.ReadLine()
		if err == ErrTimeout {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		if line.Tag == TagDebug {
			if h != nil {
				h.HandleDebug(line)
			}
			continue
		}
		lines = append(lines, line)
	}
}

// Close releases the underlying transport.
func (l *Link) Close() (err error) {
	l.closer.Do(func() {
		if l.doneCh != nil {
			close(l.doneCh)
		}
		if closer, ok := l.ReadWriter.(io.Closer); ok {
			err = closer.Close()
		}
		if l.onClose != nil {
			l.onClose()
		}
	})
	return
}

func (l *Link) fill() error {
	if l.err != nil {
		return l.err
	}
	if l.ReadTimeout {
		return l.fillDirect()
	}
	return l.fillAsync()
}

func (l *Link) fillDirect() error {
	if l.chunk == nil {
		l.chunk = make([]byte, 256)
	}
	n, err := l.ReadWriter.Read(l.chunk)
	if n > 0 {
		l.buf = append(l.buf, l.chunk[:n]...)
		return nil
	}
	if err == nil || err == io.EOF || os.IsTimeout(err) {
		return ErrTimeout
	}
	l.err = err
	return err
}

func (l *Link) fillAsync() error {
	if l.dataCh == nil {
		l.dataCh, l.errCh = make(chan []byte), make(chan error, 1)
		if l.doneCh == nil {
			l.doneCh = make(chan struct{})
		}
		go l.readLoop(l.dataCh, l.errCh, l.doneCh)
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	select {
	case data := <-l.dataCh:
		l.buf = append(l.buf, data...)
		return nil
	case err := <-l.errCh:
		if err == io.EOF {
			err = ErrClosed
		}
		l.err = err
		return err
	case <-time.After(timeout):
		return ErrTimeout
	}
}

func (l *Link) readLoop(dataCh chan<- []byte, errCh chan<- error, doneCh <-chan struct{}) {
	for {
		buf := make([]byte, 256)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case dataCh <- buf[:n]:
			case <-doneCh:
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}
