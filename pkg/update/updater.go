// Package update re-flashes a device and carries its configuration over to
// the new firmware.
package update

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/reflash/pkg/alias"
	"github.com/robotalks/reflash/pkg/device"
	fx "github.com/robotalks/reflash/pkg/framework"
	"github.com/robotalks/reflash/pkg/flash"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/restore"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// Flasher writes an image to the device. The port is closed while it runs.
type Flasher interface {
	Flash(ctx context.Context, hexFile string) (*flash.Result, error)
}

// Options configures one update run.
type Options struct {
	Port    string
	Board   string
	HexFile string
	Intent  restore.Intent

	ProbeRetries      int
	ProbeRetriesAfter int
	DeviceSettle      time.Duration

	// SnapshotDir receives the snapshot file. Empty disables writing it.
	SnapshotDir string
	// Host identifies this machine in snapshot files.
	Host string
}

// DefaultOptions returns Options with default retries and delays.
func DefaultOptions() Options {
	return Options{
		Intent:            restore.Intent{Settings: true, Devices: true},
		ProbeRetries:      device.DefaultProbeRetries,
		ProbeRetriesAfter: device.DefaultProbeRetriesAfter,
		DeviceSettle:      restore.DefaultDeviceSettle,
	}
}

// Result is the outcome of an update run.
type Result struct {
	RunID        string
	State        State
	Before       device.Identity
	After        device.Identity
	Snapshot     snapshot.Snapshot
	SnapshotFile string
	Flash        *flash.Result
	Plan         restore.Plan
	Settings     restore.Settings
	Devices      *restore.DeviceReport
	// RestoreErr collects failures while restoring, which don't fail the run.
	RestoreErr error
	Err        error
}

// Updater drives update runs.
type Updater struct {
	// Opener is told through link.Releaser, when it implements it, that the
	// programmer has released the port.
	Opener   link.Opener
	Flasher  Flasher
	Table    alias.Table
	Debug    link.DebugHandler
	Observer Observer

	Options Options
}

type run struct {
	*Updater
	result *Result
	state  State
}

func (r *run) enter(state State, format string, args ...interface{}) {
	evt := Event{
		RunID:   r.result.RunID,
		Port:    r.Options.Port,
		From:    r.state,
		To:      state,
		Time:    time.Now(),
		Message: fmt.Sprintf(format, args...),
	}
	r.state, r.result.State = state, state
	glog.V(1).Infof("run %s: %s -> %s", evt.RunID, evt.From, evt.To)
	if r.Observer != nil {
		r.Observer.OnEvent(evt)
	}
}

func (r *run) fail(err error) (*Result, error) {
	r.result.Err = err
	glog.Errorf("update failed in %s: %v", r.state, err)
	evt := Event{
		RunID:   r.result.RunID,
		Port:    r.Options.Port,
		From:    r.state,
		To:      Failed,
		Time:    time.Now(),
		Message: err.Error(),
		Err:     err,
	}
	r.state, r.result.State = Failed, Failed
	if r.Observer != nil {
		r.Observer.OnEvent(evt)
	}
	return r.result, err
}

// Run performs a complete update. The returned error is non-nil only when the
// run ends in Failed. ctx is honored until the programmer starts: once the
// old firmware is being overwritten, the run continues to restore whatever
// it can.
func (u *Updater) Run(ctx context.Context) (*Result, error) {
	r := &run{Updater: u, result: &Result{RunID: uuid.NewString()}}
	opts := u.Options
	glog.Infof("updating %s with %s (restore %s)", opts.Port, opts.HexFile, opts.Intent)

	r.enter(ProbingBefore, "probing %s", opts.Port)
	l, err := u.Opener.Open(opts.Port)
	if err != nil {
		return r.fail(err)
	}
	before, err := device.Probe(ctx, l, opts.ProbeRetries, u.Debug)
	if err != nil {
		l.Close()
		return r.fail(err)
	}
	r.result.Before = before

	r.enter(CapturingSnapshot, "found %s", before.Describe())
	snap, err := snapshot.Capture(ctx, l, u.Debug)
	l.Close()
	if err != nil {
		return r.fail(fmt.Errorf("capture settings: %w", err))
	}
	r.result.Snapshot = snap
	if opts.SnapshotDir != "" {
		fn, err := snapshot.Save(opts.SnapshotDir, snap, snapshot.Meta{
			Host:     opts.Host,
			Port:     opts.Port,
			Board:    opts.Board,
			Firmware: before.String(),
		})
		if err != nil {
			return r.fail(err)
		}
		glog.Infof("saved settings to %s", fn)
		r.result.SnapshotFile = fn
	}

	if err = ctx.Err(); err != nil {
		return r.fail(err)
	}
	r.enter(Flashing, "captured %s", snapshot.Summary(snap))
	res, err := u.Flasher.Flash(ctx, opts.HexFile)
	if rel, ok := u.Opener.(link.Releaser); ok {
		rel.Released(opts.Port)
	}
	r.result.Flash = res
	if err != nil {
		return r.fail(err)
	}

	// the old firmware is gone, restore regardless of cancellation
	ctx = context.WithoutCancel(ctx)
	r.enter(ProbingAfter, "flashed %d bytes", res.ImageSize)
	if l, err = u.Opener.Open(opts.Port); err != nil {
		return r.fail(fmt.Errorf("reopen after flashing: %w", err))
	}
	defer l.Close()
	if _, err = l.DrainDebug(u.Debug); err != nil {
		return r.fail(err)
	}
	after, err := device.Probe(ctx, l, opts.ProbeRetriesAfter, u.Debug)
	if err != nil {
		return r.fail(err)
	}
	r.result.After = after

	plan := restore.PlanRestore(u.Table, before, after, snap, opts.Intent)
	r.result.Plan = plan
	var errs fx.AggregatedError

	if plan.Settings {
		r.enter(RestoringSettings, "restoring settings for %s", plan.Tag)
		r.result.Settings, err = restore.RestoreSettings(ctx, l, plan.Transition, snap, u.Debug)
		errs.Add(err)
	} else {
		glog.Warningf("not restoring settings: %s", plan.SettingsReason)
		r.enter(RestoringSettings, "skipped: %s", plan.SettingsReason)
	}

	if plan.Devices {
		r.enter(RestoringDevices, "restoring %d devices", snap.DeviceCount())
		r.result.Devices, err = restore.RestoreDevices(ctx, l, snap, opts.DeviceSettle, u.Debug)
		errs.Add(err)
	} else {
		glog.Warningf("not restoring devices: %s", plan.DevicesReason)
		r.enter(RestoringDevices, "skipped: %s", plan.DevicesReason)
	}

	if r.result.RestoreErr = errs.Aggregate(); r.result.RestoreErr != nil {
		glog.Warningf("restore incomplete: %v", r.result.RestoreErr)
		r.enter(Done, "updated to %s, restore incomplete", after.Describe())
	} else {
		r.enter(Done, "updated to %s", after.Describe())
	}
	return r.result, nil
}
