// Package config provides common options for the reflash commands.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/device"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/restore"
)

// DefaultFile is the configuration file read when REFLASH_CONFIG is not set.
const DefaultFile = "/etc/reflash.toml"

// Config holds the options of the serial port, tools and restore behavior.
type Config struct {
	Port    string        `toml:"port"`
	Baud    int           `toml:"baud"`
	Timeout time.Duration `toml:"timeout"`
	Board   string        `toml:"boardType"`

	// ArduinoHome is the Arduino installation holding boards.txt and, unless
	// AvrdudeHome is set, the programmer.
	ArduinoHome string `toml:"arduinoHome"`
	AvrdudeHome string `toml:"avrdudeHome"`
	// AvrsizeHome is the directory of avr-size, empty for PATH lookup.
	AvrsizeHome string `toml:"avrsizeHome"`
	AvrConf     string `toml:"avrConf"`
	// HexSize measures images by reading the hex file instead of running
	// avr-size.
	HexSize bool `toml:"hexSize"`

	RestoreSettings   bool          `toml:"restoreSettings"`
	RestoreDevices    bool          `toml:"restoreDevices"`
	ProbeRetries      int           `toml:"probeRetries"`
	ProbeRetriesAfter int           `toml:"probeRetriesAfter"`
	DeviceSettle      time.Duration `toml:"deviceSettle"`
	SettleDelay       time.Duration `toml:"settleDelay"`

	SnapshotDir string `toml:"snapshotDir"`
	HistoryDB   string `toml:"historyDB"`

	// MQTTBrokerURL specifies the MQTT broker receiving progress events.
	// e.g. mqtt://host:port/topic-prefix, empty disables publishing.
	MQTTBrokerURL string `toml:"mqttURL"`
}

var defaultConfig = Config{
	Port:              "/dev/ttyACM0",
	Baud:              link.DefaultBaud,
	Timeout:           link.DefaultTimeout,
	Board:             "uno",
	ArduinoHome:       "/usr/share/arduino/",
	RestoreSettings:   true,
	RestoreDevices:    true,
	ProbeRetries:      device.DefaultProbeRetries,
	ProbeRetriesAfter: device.DefaultProbeRetriesAfter,
	DeviceSettle:      restore.DefaultDeviceSettle,
	SettleDelay:       link.DefaultSettleDelay,
	SnapshotDir:       ".",
}

func init() {
	fn := os.Getenv("REFLASH_CONFIG")
	if fn == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			fn = DefaultFile
		}
	}
	if fn != "" {
		if err := defaultConfig.LoadFile(fn); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	defaultConfig.ApplyEnv()
}

// ApplyEnv overrides options from environment variables.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("REFLASH_PORT"); val != "" {
		c.Port = val
	}
	if val := os.Getenv("REFLASH_BOARD"); val != "" {
		c.Board = val
	}
	if val := os.Getenv("ARDUINO_HOME"); val != "" {
		c.ArduinoHome = val
	}
	if val := os.Getenv("REFLASH_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := os.Getenv("REFLASH_HISTORY_DB"); val != "" {
		c.HistoryDB = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the controller")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Serial read timeout")
	flag.StringVar(&defaultConfig.Board, "board", defaultConfig.Board, "Board type in boards.txt")
	flag.StringVar(&defaultConfig.ArduinoHome, "arduino-home", defaultConfig.ArduinoHome, "Arduino installation directory")
	flag.StringVar(&defaultConfig.AvrdudeHome, "avrdude-home", defaultConfig.AvrdudeHome, "Directory of avrdude")
	flag.StringVar(&defaultConfig.AvrsizeHome, "avrsize-home", defaultConfig.AvrsizeHome, "Directory of avr-size")
	flag.StringVar(&defaultConfig.AvrConf, "avrconf", defaultConfig.AvrConf, "avrdude configuration file")
	flag.BoolVar(&defaultConfig.HexSize, "hex-size", defaultConfig.HexSize, "Measure images from the hex file instead of running avr-size")
	flag.BoolVar(&defaultConfig.RestoreSettings, "restore-settings", defaultConfig.RestoreSettings, "Restore control settings after flashing")
	flag.BoolVar(&defaultConfig.RestoreDevices, "restore-devices", defaultConfig.RestoreDevices, "Restore installed devices after flashing")
	flag.StringVar(&defaultConfig.SnapshotDir, "snapshot-dir", defaultConfig.SnapshotDir, "Directory of settings snapshots")
	flag.StringVar(&defaultConfig.HistoryDB, "history", defaultConfig.HistoryDB, "Update history database, empty to disable")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for progress events")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overlays options found in a TOML file.
func (c *Config) LoadFile(fn string) error {
	md, err := toml.DecodeFile(fn, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", fn, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		glog.Warningf("unknown options in %s: %v", fn, keys)
	}
	return nil
}

func dir(path string) string {
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// ResolvedAvrdudeHome returns AvrdudeHome, defaulting to the Arduino tools.
func (c *Config) ResolvedAvrdudeHome() string {
	if c.AvrdudeHome != "" {
		return dir(c.AvrdudeHome)
	}
	return dir(c.ArduinoHome) + "hardware/tools/"
}

// ProgrammerPath returns the avrdude executable.
func (c *Config) ProgrammerPath() string {
	return c.ResolvedAvrdudeHome() + "avrdude"
}

// ProgrammerConf returns the avrdude configuration file.
func (c *Config) ProgrammerConf() string {
	if c.AvrConf != "" {
		return c.AvrConf
	}
	return c.ResolvedAvrdudeHome() + "avrdude.conf"
}

// SizeToolPath returns the avr-size executable, found in PATH unless
// AvrsizeHome is set, or empty when images are measured in-process.
func (c *Config) SizeToolPath() string {
	if c.HexSize {
		return ""
	}
	return dir(c.AvrsizeHome) + "avr-size"
}

// Intent returns what is restored after flashing.
func (c *Config) Intent() restore.Intent {
	return restore.Intent{Settings: c.RestoreSettings, Devices: c.RestoreDevices}
}
