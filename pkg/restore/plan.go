// Package restore carries configuration captured before flashing over to the
// new firmware.
package restore

import (
	"fmt"

	"github.com/robotalks/reflash/pkg/alias"
	"github.com/robotalks/reflash/pkg/device"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// Intent is what the user asked to restore.
type Intent struct {
	Settings bool
	Devices  bool
}

// String implements fmt.Stringer.
func (i Intent) String() string {
	return fmt.Sprintf("settings=%v devices=%v", i.Settings, i.Devices)
}

// Plan decides which domains are restored after flashing.
type Plan struct {
	Tag        alias.Tag
	Supported  bool
	Transition alias.Transition

	Settings bool
	Devices  bool

	// SettingsReason and DevicesReason explain a skipped step.
	SettingsReason string
	DevicesReason  string
}

// TagFor builds the transition tag of a firmware change. It returns false
// when the new firmware is not identified.
func TagFor(before, after device.Identity) (alias.Tag, bool) {
	if !after.Known() {
		return "", false
	}
	if !before.Known() {
		return alias.UnknownTag(after.Major, after.Minor), true
	}
	return alias.MakeTag(before.Major, before.Minor, after.Major, after.Minor), true
}

// PlanRestore decides what can be restored. Settings and devices are decided
// independently: each needs the user's intent, the transition's permission
// and its domain captured before flashing.
func PlanRestore(table alias.Table, before, after device.Identity, snap snapshot.Snapshot, intent Intent) Plan {
	var p Plan
	tag, ok := TagFor(before, after)
	if !ok {
		p.SettingsReason = "new firmware version unknown"
		p.DevicesReason = p.SettingsReason
		return p
	}
	p.Tag = tag
	if p.Transition, p.Supported = table.Lookup(tag); !p.Supported {
		p.SettingsReason = fmt.Sprintf("no compatibility entry for %s", tag)
		p.DevicesReason = p.SettingsReason
		return p
	}

	switch {
	case !intent.Settings:
		p.SettingsReason = "not requested"
	case !p.Transition.RestoresSettings():
		p.SettingsReason = fmt.Sprintf("settings are not compatible for %s", tag)
	case !snap.Captured(snapshot.DomainConstants) && !snap.Captured(snapshot.DomainSettings):
		p.SettingsReason = "settings were not captured"
	default:
		p.Settings = true
	}

	switch {
	case !intent.Devices:
		p.DevicesReason = "not requested"
	case !p.Transition.Devices:
		p.DevicesReason = fmt.Sprintf("devices are not compatible for %s", tag)
	case !snap.Captured(snapshot.DomainDevices):
		p.DevicesReason = "devices were not captured"
	default:
		p.Devices = true
	}
	return p
}
