package config

import (
	"context"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/alias"
	"github.com/robotalks/reflash/pkg/device"
	"github.com/robotalks/reflash/pkg/events"
	fx "github.com/robotalks/reflash/pkg/framework"
	"github.com/robotalks/reflash/pkg/flash"
	"github.com/robotalks/reflash/pkg/history"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/update"
)

// Env is the runtime assembled from a Config.
type Env struct {
	Config    *Config
	Host      string
	Dialer    *link.Dialer
	Table     alias.Table
	Debug     link.DebugHandler
	History   *history.Store
	Publisher *events.Publisher
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	env := &Env{
		Config: c,
		Host:   MachineID(),
		Dialer: link.NewDialer(),
		Table:  alias.Default(),
		Debug:  device.DebugLogger(device.DefaultMessages),
	}
	env.Dialer.Baud, env.Dialer.Timeout, env.Dialer.SettleDelay = c.Baud, c.Timeout, c.SettleDelay

	if c.HistoryDB != "" {
		store, err := history.Open(c.HistoryDB)
		if err != nil {
			return nil, err
		}
		env.History = store
	}
	if c.MQTTBrokerURL != "" {
		pub, err := events.NewPublisher(c.MQTTBrokerURL, env.Host)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Publisher = pub
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Close releases the history database and the broker connection.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	if e.History != nil {
		errs.Add(e.History.Close())
	}
	if e.Publisher != nil {
		errs.Add(e.Publisher.Close())
	}
	return errs.Aggregate()
}

// Observer returns the observers of update runs.
func (e *Env) Observer() update.Observer {
	observers := update.Observers{events.Logger{}}
	if e.History != nil {
		observers = append(observers, e.History)
	}
	if e.Publisher != nil {
		observers = append(observers, e.Publisher)
	}
	return observers
}

// LoadProfile reads the configured board from boards.txt.
func (e *Env) LoadProfile() (flash.Profile, error) {
	return flash.LoadBoards(e.Config.ArduinoHome, e.Config.Board)
}

// NewFlasher creates a Flasher for the configured port and tools.
func (e *Env) NewFlasher(profile flash.Profile) *flash.Flasher {
	f := flash.New(e.Config.Port, profile)
	f.ProgrammerPath = e.Config.ProgrammerPath()
	f.ProgrammerConf = e.Config.ProgrammerConf()
	f.SizeToolPath = e.Config.SizeToolPath()
	f.Touch = func(port string, baud int) error {
		defer e.Dialer.Released(port)
		return link.Touch(port, baud)
	}
	return f
}

// Options returns the update options for flashing hexFile.
func (e *Env) Options(hexFile string) update.Options {
	c := e.Config
	opts := update.DefaultOptions()
	opts.Port, opts.Board, opts.HexFile = c.Port, c.Board, hexFile
	opts.Intent = c.Intent()
	opts.ProbeRetries, opts.ProbeRetriesAfter = c.ProbeRetries, c.ProbeRetriesAfter
	opts.DeviceSettle = c.DeviceSettle
	opts.SnapshotDir = c.SnapshotDir
	opts.Host = e.Host
	return opts
}

// NewUpdater creates an Updater flashing hexFile.
func (e *Env) NewUpdater(hexFile string) (*update.Updater, error) {
	profile, err := e.LoadProfile()
	if err != nil {
		return nil, err
	}
	return &update.Updater{
		Opener:   e.Dialer,
		Flasher:  e.NewFlasher(profile),
		Table:    e.Table,
		Debug:    e.Debug,
		Observer: e.Observer(),
		Options:  e.Options(hexFile),
	}, nil
}

// Update runs a complete update and records it in the history.
func (e *Env) Update(ctx context.Context, hexFile string) (*update.Result, error) {
	u, err := e.NewUpdater(hexFile)
	if err != nil {
		return nil, err
	}
	res, err := u.Run(ctx)
	if e.History != nil {
		if recErr := e.History.Record(context.WithoutCancel(ctx), u.Options, res); recErr != nil {
			glog.Warningf("record history: %v", recErr)
		}
	}
	return res, err
}
