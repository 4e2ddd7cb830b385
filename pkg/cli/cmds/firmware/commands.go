package firmware

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/reflash/pkg/cli/sh"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// DefaultHistoryLimit is the number of runs listed by the history command.
const DefaultHistoryLimit = 10

var (
	// FlashCmd writes an image without touching the configuration.
	FlashCmd = ishell.Cmd{
		Name: "flash",
		Help: "HEX-FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX-FILE required"))
				return
			}
			s := sh.ShellFrom(c)
			profile, err := s.Env.LoadProfile()
			if err != nil {
				c.Err(err)
				return
			}
			res, err := s.Env.NewFlasher(profile).Flash(s.Context(), c.Args[0])
			s.Env.Dialer.Released(s.Env.Config.Port)
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, res, fmt.Sprintf("flashed %d of %d bytes", res.ImageSize, res.MaxSize))
		},
	}

	// UpdateCmd flashes an image and restores the configuration.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "HEX-FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HEX-FILE required"))
				return
			}
			s := sh.ShellFrom(c)
			res, err := s.Env.Update(s.Context(), c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			view := map[string]interface{}{
				"runId":    res.RunID,
				"state":    res.State.String(),
				"before":   res.Before.String(),
				"after":    res.After.String(),
				"tag":      res.Plan.Tag,
				"snapshot": res.SnapshotFile,
			}
			text := fmt.Sprintf("%s: %s -> %s", res.State, res.Before, res.After)
			if res.RestoreErr != nil {
				view["restoreError"] = res.RestoreErr.Error()
				text += fmt.Sprintf(" (restore incomplete: %v)", res.RestoreErr)
			}
			s.Output(c, view, text)
		},
	}

	// HistoryCmd lists recent update runs.
	HistoryCmd = ishell.Cmd{
		Name:    "history",
		Aliases: []string{"h"},
		Help:    "[LIMIT]",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if s.Env.History == nil {
				c.Err(fmt.Errorf("history disabled"))
				return
			}
			limit := DefaultHistoryLimit
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n <= 0 {
					c.Err(fmt.Errorf("invalid LIMIT %q", c.Args[0]))
					return
				}
				limit = n
			}
			runs, err := s.Env.History.Recent(s.Context(), limit)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				s.Output(c, runs, "")
				return
			}
			var buf bytes.Buffer
			w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FINISHED\tPORT\tSTATE\tBEFORE\tAFTER\tSETTINGS\tDEVICES")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
					run.FinishedAt.Format("2006-01-02 15:04:05"), run.Port, run.State,
					run.Before, run.After, run.SettingsRestored, run.DevicesRestored)
			}
			w.Flush()
			c.Print(buf.String())
		},
	}

	// SnapshotCmd lists saved snapshots or shows one.
	SnapshotCmd = ishell.Cmd{
		Name:    "snapshot",
		Aliases: []string{"snap"},
		Help:    "[FILE]",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if len(c.Args) == 0 {
				files, err := snapshot.List(s.Env.Config.SnapshotDir)
				if err != nil {
					c.Err(err)
					return
				}
				if s.OutputJSON {
					s.Output(c, files, "")
					return
				}
				for _, fn := range files {
					c.Println(fn)
				}
				return
			}
			snap, meta, err := snapshot.Load(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, snap, fmt.Sprintf("%s from %s on %s (firmware %s): %s",
				meta.TakenAt.Format("2006-01-02 15:04:05"), meta.Port, meta.Host, meta.Firmware,
				snapshot.Summary(snap)))
		},
	}
)

func init() {
	sh.AddCmds(
		&FlashCmd,
		&UpdateCmd,
		&HistoryCmd,
		&SnapshotCmd,
	)
}
