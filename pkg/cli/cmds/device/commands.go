package device

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/reflash/pkg/cli/sh"
	dev "github.com/robotalks/reflash/pkg/device"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/restore"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// identityView is the JSON output of an identity.
type identityView struct {
	Known   bool   `json:"known"`
	Version string `json:"version,omitempty"`
	Board   string `json:"board,omitempty"`
	Shield  string `json:"shield,omitempty"`
}

func viewOf(id dev.Identity) identityView {
	if !id.Known() {
		return identityView{}
	}
	return identityView{Known: true, Version: id.SemVer(), Board: id.Board, Shield: id.Shield}
}

var (
	// ProbeCmd requests the firmware version.
	ProbeCmd = ishell.Cmd{
		Name:    "probe",
		Aliases: []string{"version", "v"},
		Help:    "show the firmware version and board",
		Func: sh.WithLink(func(c *ishell.Context, l *link.Link) {
			s := sh.ShellFrom(c)
			id, err := dev.Probe(s.Context(), l, s.Env.Config.ProbeRetries, s.Env.Debug)
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, viewOf(id), id.Describe())
		}),
	}

	// CaptureCmd reads and saves the configuration without flashing.
	CaptureCmd = ishell.Cmd{
		Name:    "capture",
		Aliases: []string{"backup"},
		Help:    "save the device configuration to a snapshot file",
		Func: sh.WithLink(func(c *ishell.Context, l *link.Link) {
			s := sh.ShellFrom(c)
			conf := s.Env.Config
			id, err := dev.Probe(s.Context(), l, conf.ProbeRetries, s.Env.Debug)
			if err != nil {
				c.Err(err)
				return
			}
			snap, err := snapshot.Capture(s.Context(), l, s.Env.Debug)
			if err != nil {
				c.Err(err)
				return
			}
			fn, err := snapshot.Save(conf.SnapshotDir, snap, snapshot.Meta{
				Host:     s.Env.Host,
				Port:     conf.Port,
				Board:    conf.Board,
				Firmware: id.String(),
			})
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, map[string]string{"file": fn}, fmt.Sprintf("%s saved to %s", snapshot.Summary(snap), fn))
		}),
	}

	// RestoreCmd pushes a saved snapshot to the running firmware.
	RestoreCmd = ishell.Cmd{
		Name: "restore",
		Help: "SNAPSHOT-FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("SNAPSHOT-FILE required"))
				return
			}
			snap, meta, err := snapshot.Load(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			before, err := dev.ParseIdentity(meta.Firmware)
			if err != nil {
				before = dev.Unknown
			}
			sh.WithLink(func(c *ishell.Context, l *link.Link) {
				restoreSnapshot(c, l, before, snap)
			})(c)
		},
	}
)

func restoreSnapshot(c *ishell.Context, l *link.Link, before dev.Identity, snap snapshot.Snapshot) {
	s := sh.ShellFrom(c)
	env := s.Env
	ctx := s.Context()
	after, err := dev.Probe(ctx, l, env.Config.ProbeRetriesAfter, env.Debug)
	if err != nil {
		c.Err(err)
		return
	}
	plan := restore.PlanRestore(env.Table, before, after, snap, env.Config.Intent())
	if !plan.Settings && !plan.Devices {
		c.Err(fmt.Errorf("nothing to restore: settings %s, devices %s", plan.SettingsReason, plan.DevicesReason))
		return
	}
	result := map[string]interface{}{"tag": plan.Tag}
	if plan.Settings {
		settings, err := restore.RestoreSettings(ctx, l, plan.Transition, snap, env.Debug)
		if err != nil {
			c.Err(err)
			return
		}
		result["settings"] = settings.Keys()
		if !s.OutputJSON {
			c.Printf("restored settings: %v\n", settings.Keys())
		}
	}
	if plan.Devices {
		report, err := restore.RestoreDevices(ctx, l, snap, env.Config.DeviceSettle, env.Debug)
		if err != nil {
			c.Err(err)
		}
		result["devices"] = report
		if !s.OutputJSON {
			c.Printf("restored devices: %d sent, %d acknowledged\n", report.Sent, report.Acked)
		}
	}
	if s.OutputJSON {
		s.Output(c, result, "")
	}
}

func init() {
	sh.AddCmds(
		&ProbeCmd,
		&CaptureCmd,
		&RestoreCmd,
	)
}
