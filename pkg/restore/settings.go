package restore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/golang/glog"

	"github.com/robotalks/reflash/pkg/alias"
	"github.com/robotalks/reflash/pkg/link"
	"github.com/robotalks/reflash/pkg/snapshot"
)

// Settings maps new keys to the old values sent back to the device.
type Settings map[string]json.RawMessage

// Keys returns the keys in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Resolve picks the old value of every new key. New constants are looked up
// in the old constants and new settings in the old settings, trying aliases
// in order of preference. A key without a matching alias is left out.
func Resolve(tr alias.Transition, old snapshot.Snapshot, newConstants, newSettings snapshot.Values) Settings {
	restored := make(Settings)
	resolveDomain(restored, tr, old.Constants(), newConstants)
	resolveDomain(restored, tr, old.Settings(), newSettings)
	return restored
}

func resolveDomain(restored Settings, tr alias.Transition, old, current snapshot.Values) {
	for key := range current {
		for _, name := range tr.Aliases(key) {
			if val, ok := old[name]; ok {
				restored[key] = val
				break
			}
		}
	}
}

// RestoreSettings reads the defaults of the new firmware, resolves the old
// values against them and sends them in one bulk update.
func RestoreSettings(ctx context.Context, l *link.Link, tr alias.Transition, old snapshot.Snapshot, dh link.DebugHandler) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, code := range []byte{link.CmdConstants, link.CmdSettings} {
		if err := l.SendCommand(code, struct{}{}); err != nil {
			return nil, err
		}
	}
	lines, err := l.DrainDebug(dh)
	if err != nil {
		return nil, err
	}
	var b snapshot.Builder
	for _, line := range lines {
		if line.Tag != link.TagConstants && line.Tag != link.TagSettings {
			continue
		}
		if err := b.Add(line); err != nil {
			glog.Warningf("skipping line: %v", err)
		}
	}
	current := b.Snapshot()
	restored := Resolve(tr, old, current.Constants(), current.Settings())

	payload, err := json.Marshal(restored)
	if err != nil {
		return nil, err
	}
	glog.Infof("restoring settings: %s", payload)
	if err = l.SendCommand(link.CmdSetSettings, json.RawMessage(payload)); err != nil {
		return nil, err
	}
	if _, err = l.DrainDebug(dh); err != nil {
		return restored, err
	}
	return restored, nil
}
