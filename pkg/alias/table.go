// Package alias maps configuration keys of one firmware version to the keys
// of another.
package alias

import (
	"fmt"
	"sort"
)

// Tag identifies a firmware transition: "<oldMajor>.<oldMinor>-<newMajor>.<newMinor>".
// An old firmware which never reported its version is written as "?".
type Tag string

// MakeTag builds the tag for a transition between two known versions.
func MakeTag(oldMajor, oldMinor, newMajor, newMinor int) Tag {
	return Tag(fmt.Sprintf("%d.%d-%d.%d", oldMajor, oldMinor, newMajor, newMinor))
}

// UnknownTag builds the tag for a transition from an unidentified firmware.
func UnknownTag(newMajor, newMinor int) Tag {
	return Tag(fmt.Sprintf("?-%d.%d", newMajor, newMinor))
}

// Entry lists the old keys equivalent to one new key, most preferred first.
type Entry []string

// Transition describes what can be carried over for one Tag.
type Transition struct {
	// Settings maps new constant/setting keys to their old aliases.
	// Empty means settings cannot be restored.
	Settings map[string]Entry
	// Devices indicates installed device descriptors are compatible.
	Devices bool
}

// Aliases returns the aliases of a new key.
func (t Transition) Aliases(key string) Entry {
	return t.Settings[key]
}

// RestoresSettings indicates any setting can be restored.
func (t Transition) RestoresSettings() bool {
	return len(t.Settings) > 0
}

// Table holds all supported transitions. It is read-only once built.
type Table map[Tag]Transition

// Lookup finds the transition for tag.
func (t Table) Lookup(tag Tag) (Transition, bool) {
	tr, ok := t[tag]
	return tr, ok
}

// Tags lists the supported transitions in sorted order.
func (t Table) Tags() []Tag {
	tags := make([]Tag, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Identity builds settings aliases mapping every key to itself.
func Identity(keys ...string) map[string]Entry {
	m := make(map[string]Entry, len(keys))
	for _, key := range keys {
		m[key] = Entry{key}
	}
	return m
}
