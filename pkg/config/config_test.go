package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/reflash/pkg/flash"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/link/linktest"
)

func TestToolPaths(t *testing.T) {
	testCases := []struct {
		name       string
		conf       Config
		programmer string
		avrConf    string
		sizeTool   string
	}{
		{
			name:       "defaults",
			conf:       Config{ArduinoHome: "/usr/share/arduino/"},
			programmer: "/usr/share/arduino/hardware/tools/avrdude",
			avrConf:    "/usr/share/arduino/hardware/tools/avrdude.conf",
			sizeTool:   "avr-size",
		},
		{
			name:       "home without slash, hex size",
			conf:       Config{ArduinoHome: "/opt/arduino", HexSize: true},
			programmer: "/opt/arduino/hardware/tools/avrdude",
			avrConf:    "/opt/arduino/hardware/tools/avrdude.conf",
		},
		{
			name: "explicit tools",
			conf: Config{
				ArduinoHome: "/opt/arduino/",
				AvrdudeHome: "/usr/bin",
				AvrsizeHome: "/usr/local/bin/",
				AvrConf:     "/etc/avrdude.conf",
			},
			programmer: "/usr/bin/avrdude",
			avrConf:    "/etc/avrdude.conf",
			sizeTool:   "/usr/local/bin/avr-size",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.programmer, tc.conf.ProgrammerPath())
			require.Equal(t, tc.avrConf, tc.conf.ProgrammerConf())
			require.Equal(t, tc.sizeTool, tc.conf.SizeToolPath())
		})
	}
}

func TestLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "reflash.toml")
	require.NoError(t, os.WriteFile(fn, []byte(`
port = "/dev/ttyUSB1"
boardType = "leonardo"
arduinoHome = "/opt/arduino/"
restoreDevices = false
deviceSettle = "2s"
`), 0644))

	conf := NewConfig()
	conf.RestoreSettings, conf.RestoreDevices = true, true
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, "/dev/ttyUSB1", conf.Port)
	require.Equal(t, "leonardo", conf.Board)
	require.Equal(t, 2*time.Second, conf.DeviceSettle)
	require.True(t, conf.Intent().Settings)
	require.False(t, conf.Intent().Devices)

	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REFLASH_PORT", "/dev/ttyS3")
	t.Setenv("REFLASH_MQTT_URL", "mqtt://broker:1883/brewpi/")
	conf := NewConfig()
	conf.ApplyEnv()
	require.Equal(t, "/dev/ttyS3", conf.Port)
	require.Equal(t, "mqtt://broker:1883/brewpi/", conf.MQTTBrokerURL)
}

func TestDefaultSizeTool(t *testing.T) {
	conf := NewConfig()
	conf.HexSize, conf.AvrsizeHome = false, ""
	require.Equal(t, "avr-size", conf.SizeToolPath())

	fn := filepath.Join(t.TempDir(), "reflash.toml")
	require.NoError(t, os.WriteFile(fn, []byte("hexSize = true\n"), 0644))
	require.NoError(t, conf.LoadFile(fn))
	require.Empty(t, conf.SizeToolPath())
}

func TestNewConfigCopies(t *testing.T) {
	conf := NewConfig()
	conf.Port = "/dev/null"
	require.NotEqual(t, "/dev/null", Default().Port)
}

func TestEnvOptions(t *testing.T) {
	conf := NewConfig()
	conf.HistoryDB, conf.MQTTBrokerURL = "", ""
	conf.SnapshotDir = t.TempDir()
	env, err := conf.NewEnv()
	require.NoError(t, err)
	defer env.Close()

	opts := env.Options("/tmp/brewpi.hex")
	require.Equal(t, conf.Port, opts.Port)
	require.Equal(t, "/tmp/brewpi.hex", opts.HexFile)
	require.Equal(t, conf.SnapshotDir, opts.SnapshotDir)
	require.NotEmpty(t, opts.Host)
	require.Equal(t, conf.Baud, env.Dialer.Baud)

	conf.ArduinoHome = t.TempDir()
	_, err = env.NewUpdater("/tmp/brewpi.hex")
	require.Error(t, err)
}

func TestTouchReleasesPort(t *testing.T) {
	conf := NewConfig()
	conf.HistoryDB, conf.MQTTBrokerURL = "", ""
	conf.SettleDelay = 30 * time.Millisecond
	env, err := conf.NewEnv()
	require.NoError(t, err)
	defer env.Close()

	port := filepath.Join(t.TempDir(), "ttyACM9")
	require.Error(t, env.NewFlasher(flash.Profile{}).Touch(port, link.TouchBaud))
	releasedAt := time.Now()

	env.Dialer.OpenFunc = func(port string, baud int, timeout time.Duration) (*link.Link, error) {
		return linktest.New(nil).Link(), nil
	}
	l, err := env.Dialer.Open(port)
	require.NoError(t, err)
	defer l.Close()
	require.True(t, time.Since(releasedAt) >= conf.SettleDelay)
}
