package config

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the ID identifying this machine in snapshots and
// events. It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID("reflash")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}
