package device

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/link"
)

// Retry caps used around flashing. Freshly flashed firmware can take a few
// seconds to boot, so the probe after flashing waits longer.
const (
	DefaultProbeRetries      = 5
	DefaultProbeRetriesAfter = 10
)

// Probe requests the version until a version line arrives or maxRetries
// consecutive read timeouts pass. Firmware predating version reporting never
// answers; that yields Unknown, not an error.
// Debug lines seen while waiting go to dh, which may be nil.
func Probe(ctx context.Context, l *link.Link, maxRetries int, dh link.DebugHandler) (Identity, error) {
	if err := l.SendCommand(link.CmdVersion, nil); err != nil {
		return Unknown, err
	}
	for retries := 0; ; {
		if err := ctx.Err(); err != nil {
			return Unknown, err
		}
		line, err := l.ReadLine()
		switch {
		case err == link.ErrTimeout:
			if retries++; retries >= maxRetries {
				glog.Warningf("no version received after %d attempts; firmware is missing or predates version reporting", retries)
				return Unknown, nil
			}
			if err := l.SendCommand(link.CmdVersion, nil); err != nil {
				return Unknown, err
			}
			continue
		case err != nil:
			return Unknown, err
		}

		switch line.Tag {
		case link.TagVersion:
			id, err := ParseIdentity(line.Payload)
			if err != nil {
				glog.Warningf("ignoring malformed version line %q: %v", line.Payload, err)
				continue
			}
			glog.Infof("found %s", id.Describe())
			return id, nil
		case link.TagDebug:
			if dh != nil {
				dh.HandleDebug(line)
			}
		default:
			glog.V(2).Infof("probe ignoring %s line", line.Tag)
		}
	}
}
