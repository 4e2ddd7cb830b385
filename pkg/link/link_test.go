package link

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// chunkReadWriter returns one chunk per Read and (0, nil) once drained,
// like a serial port whose read timed out.
type chunkReadWriter struct {
	chunks  [][]byte
	written bytes.Buffer
	reads   int
	closed  bool
}

func (c *chunkReadWriter) Read(p []byte) (int, error) {
	c.reads++
	if len(c.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	if c.chunks[0] = c.chunks[0][n:]; len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkReadWriter) Write(p []byte) (int, error) {
	return c.written.Write(p)
}

func (c *chunkReadWriter) Close() error {
	c.closed = true
	return nil
}

func newChunkLink(chunks ...string) (*Link, *chunkReadWriter) {
	rw := &chunkReadWriter{}
	for _, chunk := range chunks {
		rw.chunks = append(rw.chunks, []byte(chunk))
	}
	l := New(rw)
	l.ReadTimeout = true
	return l, rw
}

func TestReadLine(t *testing.T) {
	testCases := []struct {
		name   string
		chunks []string
		expect []Line
	}{
		{
			name:   "single line",
			chunks: []string{"N:0.2.0\n"},
			expect: []Line{{Tag: TagVersion, Raw: 'N', Payload: "0.2.0"}},
		},
		{
			name:   "split across reads",
			chunks: []string{"C:{\"a\"", ":1}\nS:{", "}\n"},
			expect: []Line{
				{Tag: TagConstants, Raw: 'C', Payload: `{"a":1}`},
				{Tag: TagSettings, Raw: 'S', Payload: "{}"},
			},
		},
		{
			name:   "blank lines skipped",
			chunks: []string{"\r\n\nD:hello\r\n"},
			expect: []Line{{Tag: TagDebug, Raw: 'D', Payload: "hello"}},
		},
		{
			name:   "partial line at timeout",
			chunks: []string{"d:[{\"i\":0}]"},
			expect: []Line{{Tag: TagDevices, Raw: 'd', Payload: `[{"i":0}]`}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newChunkLink(tc.chunks...)
			for _, expect := range tc.expect {
				line, err := l.ReadLine()
				require.NoError(t, err)
				require.Equal(t, expect, line)
			}
			_, err := l.ReadLine()
			require.Equal(t, ErrTimeout, err)
		})
	}
}

func TestSendCommand(t *testing.T) {
	l, rw := newChunkLink()
	require.NoError(t, l.SendCommand(CmdVersion, nil))
	require.NoError(t, l.SendCommand(CmdConstants, struct{}{}))
	require.NoError(t, l.SendCommand(CmdSetSettings, map[string]int{"mode": 1}))
	require.Equal(t, `nc{}j{"mode":1}`, rw.written.String())
}

func TestDrainDebug(t *testing.T) {
	l, _ := newChunkLink("D:one\nU:{\"i\":1}\nX:ignored\nD:two\n")
	var debug []string
	lines, err := l.DrainDebug(HandleDebugFunc(func(line Line) {
		debug = append(debug, line.Payload)
	}))
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, debug)
	require.Len(t, lines, 2)
	require.Equal(t, TagDeviceUpdate, lines[0].Tag)
	require.Equal(t, TagUnknown, lines[1].Tag)
}

func TestReadError(t *testing.T) {
	rw := &failingReadWriter{err: errors.New("broken pipe")}
	l := New(rw)
	l.ReadTimeout = true
	_, err := l.ReadLine()
	require.EqualError(t, err, "broken pipe")
	_, err = l.ReadLine()
	require.EqualError(t, err, "broken pipe")
	require.Equal(t, 1, rw.reads)
}

type failingReadWriter struct {
	err   error
	reads int
}

func (f *failingReadWriter) Read([]byte) (int, error) {
	f.reads++
	return 0, f.err
}

func (f *failingReadWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func TestReadLineAsync(t *testing.T) {
	r, w := io.Pipe()
	l := New(struct {
		io.Reader
		io.Writer
	}{r, io.Discard})
	l.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := l.ReadLine()
	require.Equal(t, ErrTimeout, err)
	require.True(t, time.Since(start) >= l.Timeout)

	go w.Write([]byte("N:0.1.3\n"))
	line, err := l.ReadLine()
	require.NoError(t, err)
	require.Equal(t, TagVersion, line.Tag)

	w.Close()
	_, err = l.ReadLine()
	require.Equal(t, ErrClosed, err)
	require.NoError(t, l.Close())
}

func TestClose(t *testing.T) {
	l, rw := newChunkLink()
	var closed int
	l.onClose = func() { closed++ }
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	require.True(t, rw.closed)
	require.Equal(t, 1, closed)
}

func TestDialerSettle(t *testing.T) {
	var opened []time.Time
	d := NewDialer()
	d.SettleDelay = 30 * time.Millisecond
	d.OpenFunc = func(port string, baud int, timeout time.Duration) (*Link, error) {
		require.Equal(t, "/dev/ttyACM0", port)
		require.Equal(t, DefaultBaud, baud)
		opened = append(opened, time.Now())
		l, _ := newChunkLink()
		return l, nil
	}

	l, err := d.Open("/dev/ttyACM0")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	l, err = d.Open("/dev/ttyACM0")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	require.Len(t, opened, 2)
	require.True(t, opened[1].Sub(opened[0]) >= d.SettleDelay)
}

func TestDialerReleased(t *testing.T) {
	d := NewDialer()
	d.SettleDelay = 30 * time.Millisecond
	d.OpenFunc = func(port string, baud int, timeout time.Duration) (*Link, error) {
		l, _ := newChunkLink()
		return l, nil
	}
	var opener Opener = d
	d.Released("/dev/ttyACM0")
	releasedAt := time.Now()
	l, err := opener.Open("/dev/ttyACM0")
	require.NoError(t, err)
	require.True(t, time.Since(releasedAt) >= d.SettleDelay)
	require.NoError(t, l.Close())

	start := time.Now()
	l, err = d.Open("/dev/ttyUSB0")
	require.NoError(t, err)
	require.True(t, time.Since(start) < d.SettleDelay)
	require.NoError(t, l.Close())
}

func TestDialerOpenError(t *testing.T) {
	d := NewDialer()
	d.OpenFunc = func(port string, baud int, timeout time.Duration) (*Link, error) {
		return nil, &LinkError{Port: port, Err: errors.New("device busy")}
	}
	_, err := d.Open("/dev/ttyUSB0")
	var linkErr *LinkError
	require.True(t, errors.As(err, &linkErr))
	require.Equal(t, "open serial port /dev/ttyUSB0: device busy", err.Error())
}
