package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/reflash/pkg/framework"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// DefaultDeviceSettle is the time given to the device to apply installs.
const DefaultDeviceSettle = time.Second

// DeviceReport summarizes a device restore.
type DeviceReport struct {
	Sent  int
	Acked int
	// Updates holds the payloads of the acknowledgements.
	Updates []string
}

// RestoreDevices sends every captured device descriptor in order, waits
// settle, then collects acknowledgements. A failed send does not stop the
// remaining descriptors; all failures are returned together.
func RestoreDevices(ctx context.Context, l *link.Link, old snapshot.Snapshot, settle time.Duration, dh link.DebugHandler) (*DeviceReport, error) {
	report := &DeviceReport{}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	devices := old.Devices()
	if len(devices) == 0 {
		glog.Info("no installed devices to restore")
		return report, nil
	}

	var errs fx.AggregatedError
	for n, dev := range devices {
		glog.Infof("restoring device: %s", dev)
		if err := l.SendCommand(link.CmdInstallDevice, dev); err != nil {
			errs.Add(fmt.Errorf("device %d: %w", n, err))
			continue
		}
		report.Sent++
	}
	time.Sleep(settle)

	lines, err := l.DrainDebug(dh)
	errs.Add(err)
	for _, line := range lines {
		if line.Tag == link.TagDeviceUpdate {
			glog.Infof("device updated to: %s", line.Payload)
			report.Acked++
			report.Updates = append(report.Updates, line.Payload)
		}
	}
	glog.Infof("restored devices: %d sent, %d acknowledged", report.Sent, report.Acked)
	return report, errs.Aggregate()
}
