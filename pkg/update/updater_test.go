package update

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/reflash/pkg/alias"
	"github.com/robotalks/reflash/pkg/flash"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/link/linktest"
	"github.com/robotalks/reflash/pkg/snapshot"
)

type fakeOpener struct {
	devices []*linktest.Device
	opened  int
	err     error
}

func (o *fakeOpener) Open(port string) (*link.Link, error) {
	if o.err != nil {
		return nil, o.err
	}
	if o.opened >= len(o.devices) {
		return nil, &link.LinkError{Port: port, Err: errors.New("no such device")}
	}
	dev := o.devices[o.opened]
	o.opened++
	return dev.Link(), nil
}

type fakeFlasher struct {
	calls    int
	check    func()
	duration time.Duration
	err      error
	returned time.Time
}

func (f *fakeFlasher) Flash(ctx context.Context, hexFile string) (*flash.Result, error) {
	f.calls++
	if f.check != nil {
		f.check()
	}
	time.Sleep(f.duration)
	defer func() { f.returned = time.Now() }()
	if f.err != nil {
		return nil, f.err
	}
	return &flash.Result{ImageSize: 1024, MaxSize: 32256}, nil
}

func firmware(version string, replies map[byte][]string) linktest.Responder {
	return func(code byte, payload string) []string {
		switch code {
		case link.CmdVersion:
			if version == "" {
				return nil
			}
			return []string{"N:" + version}
		case link.CmdInstallDevice:
			return []string{"U:" + payload}
		}
		return replies[code]
	}
}

var oldReplies = map[byte][]string{
	link.CmdDevices:   {`d:[{"i":0,"c":1}]`},
	link.CmdConstants: {`C:{"Kp":20}`},
	link.CmdSettings:  {`S:{"beerSet":19}`},
}

var newReplies = map[byte][]string{
	link.CmdConstants: {`C:{"Kp":5}`},
	link.CmdSettings:  {`D:{"logType":"I","logID":0,"V":[]}`, `S:{"beerSet":20}`},
}

func newUpdater(opener link.Opener, flasher Flasher, states *[]State) *Updater {
	opts := DefaultOptions()
	opts.Port, opts.HexFile = "/dev/ttyACM0", "/tmp/brewpi.hex"
	opts.ProbeRetries, opts.ProbeRetriesAfter = 2, 3
	opts.DeviceSettle = 0
	return &Updater{
		Opener:  opener,
		Flasher: flasher,
		Table:   alias.Default(),
		Observer: ObserverFunc(func(e Event) {
			*states = append(*states, e.To)
		}),
		Options: opts,
	}
}

func TestUpdate(t *testing.T) {
	oldDev := linktest.New(firmware("0.2.0,standard,revC", oldReplies))
	newDev := linktest.New(firmware("0.2.1,standard,revC", newReplies))
	flasher := &fakeFlasher{check: func() {
		require.True(t, oldDev.Closed())
		require.Empty(t, newDev.Commands())
	}}
	var states []State
	u := newUpdater(&fakeOpener{devices: []*linktest.Device{oldDev, newDev}}, flasher, &states)
	u.Options.SnapshotDir = t.TempDir()

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.Equal(t, []State{
		ProbingBefore, CapturingSnapshot, Flashing, ProbingAfter,
		RestoringSettings, RestoringDevices, Done,
	}, states)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, "0.2.0,standard,revC", res.Before.String())
	require.Equal(t, 1, res.After.Build)
	require.Equal(t, alias.Tag("0.2-0.2"), res.Plan.Tag)
	require.NoError(t, res.RestoreErr)
	require.Equal(t, 1, res.Devices.Acked)

	require.Equal(t, []string{"n", "d{}", "c{}", "s{}"}, oldDev.Commands())
	require.Equal(t, []string{"n", "c{}", "s{}", `j{"Kp":20,"beerSet":19}`, `U{"i":0,"c":1}`}, newDev.Commands())
	require.True(t, newDev.Closed())

	saved, meta, err := snapshot.Load(res.SnapshotFile)
	require.NoError(t, err)
	require.Equal(t, 1, saved.DeviceCount())
	require.Equal(t, "0.2.0,standard,revC", meta.Firmware)
	require.Equal(t, "/dev/ttyACM0", meta.Port)
}

func TestUpdateSettlesAfterProgrammer(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"flashed", nil},
		{"programmer failed", &flash.FlashFailedError{Output: "avrdude: error"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			devices := []*linktest.Device{
				linktest.New(firmware("0.2.0", oldReplies)),
				linktest.New(firmware("0.2.0", newReplies)),
			}
			var openedAt []time.Time
			dialer := link.NewDialer()
			dialer.SettleDelay = 50 * time.Millisecond
			dialer.OpenFunc = func(port string, baud int, timeout time.Duration) (*link.Link, error) {
				openedAt = append(openedAt, time.Now())
				dev := devices[0]
				devices = devices[1:]
				return dev.Link(), nil
			}
			flasher := &fakeFlasher{duration: 2 * dialer.SettleDelay, err: tc.err}
			var states []State
			res, _ := newUpdater(dialer, flasher, &states).Run(context.Background())
			require.Equal(t, 1, flasher.calls)

			dialer.OpenFunc = func(port string, baud int, timeout time.Duration) (*link.Link, error) {
				openedAt = append(openedAt, time.Now())
				return linktest.New(nil).Link(), nil
			}
			if res.State == Failed {
				l, err := dialer.Open("/dev/ttyACM0")
				require.NoError(t, err)
				l.Close()
			}
			require.Len(t, openedAt, 2)
			require.True(t, openedAt[1].Sub(flasher.returned) >= dialer.SettleDelay,
				"reopened %v after the programmer released the port", openedAt[1].Sub(flasher.returned))
		})
	}
}

func TestUpdateUnknownBefore(t *testing.T) {
	oldDev := linktest.New(firmware("", oldReplies))
	newDev := linktest.New(firmware("0.2.0", newReplies))
	var states []State
	u := newUpdater(&fakeOpener{devices: []*linktest.Device{oldDev, newDev}}, &fakeFlasher{}, &states)

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.False(t, res.Before.Known())
	require.Equal(t, []string{"n", "n", "d{}", "c{}", "s{}"}, oldDev.Commands())
	require.True(t, res.Snapshot.Captured(snapshot.DomainDevices))

	require.Equal(t, alias.Tag("?-0.2"), res.Plan.Tag)
	require.False(t, res.Plan.Settings)
	require.True(t, res.Plan.Devices)
	require.Empty(t, newDev.CommandsWithCode(link.CmdSetSettings))
	require.Len(t, newDev.CommandsWithCode(link.CmdInstallDevice), 1)
}

func TestUpdateUnknownAfter(t *testing.T) {
	oldDev := linktest.New(firmware("0.2.0", oldReplies))
	newDev := linktest.New(firmware("", newReplies))
	var states []State
	u := newUpdater(&fakeOpener{devices: []*linktest.Device{oldDev, newDev}}, &fakeFlasher{}, &states)

	res, err := u.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Done, res.State)
	require.False(t, res.Plan.Supported)
	require.Equal(t, []string{"n", "n", "n"}, newDev.Commands())
}

func TestUpdateFailures(t *testing.T) {
	testCases := []struct {
		name    string
		opener  *fakeOpener
		flasher *fakeFlasher
		ctx     func() context.Context
		flashed int
		states  []State
	}{
		{
			name:   "port absent",
			opener: &fakeOpener{err: &link.LinkError{Port: "/dev/ttyACM0", Err: errors.New("no such file")}},
			states: []State{ProbingBefore, Failed},
		},
		{
			name: "image too large",
			opener: &fakeOpener{devices: []*linktest.Device{
				linktest.New(firmware("0.2.0", oldReplies)),
				linktest.New(firmware("0.2.0", newReplies)),
			}},
			flasher: &fakeFlasher{err: &flash.ImageTooLargeError{Size: 40000, MaxSize: 32256}},
			flashed: 1,
			states:  []State{ProbingBefore, CapturingSnapshot, Flashing, Failed},
		},
		{
			name: "reopen fails",
			opener: &fakeOpener{devices: []*linktest.Device{
				linktest.New(firmware("0.2.0", oldReplies)),
			}},
			flashed: 1,
			states:  []State{ProbingBefore, CapturingSnapshot, Flashing, ProbingAfter, Failed},
		},
		{
			name: "canceled",
			opener: &fakeOpener{devices: []*linktest.Device{
				linktest.New(firmware("0.2.0", oldReplies)),
			}},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			states: []State{ProbingBefore, Failed},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flasher := tc.flasher
			if flasher == nil {
				flasher = &fakeFlasher{}
			}
			ctx := context.Background()
			if tc.ctx != nil {
				ctx = tc.ctx()
			}
			var states []State
			res, err := newUpdater(tc.opener, flasher, &states).Run(ctx)
			require.Error(t, err)
			require.Equal(t, err, res.Err)
			require.Equal(t, Failed, res.State)
			require.Equal(t, tc.states, states)
			require.Equal(t, tc.flashed, flasher.calls)
		})
	}
}

func TestStateString(t *testing.T) {
	for s := Idle; s <= Failed; s++ {
		parsed, ok := ParseState(s.String())
		require.True(t, ok)
		require.Equal(t, s, parsed)
	}
	require.Equal(t, "unknown", State(42).String())

	out, err := json.Marshal(map[string]State{"state": RestoringDevices})
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"restoring-devices"}`, string(out))
	var st State
	require.NoError(t, st.UnmarshalText([]byte("probing-after")))
	require.Equal(t, ProbingAfter, st)
	require.Error(t, st.UnmarshalText([]byte("rebooting")))
	require.True(t, Done.Terminal())
	require.False(t, Flashing.Terminal())
}
