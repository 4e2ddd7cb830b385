// Package device identifies the firmware running on a controller.
package device

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FieldSeparator separates the fields of a version line payload:
// <version>[,<board>[,<shield>]].
const FieldSeparator = ","

// Identity describes the board and firmware version reported by a device.
// The zero value is Unknown.
type Identity struct {
	Board   string
	Shield  string
	Version string
	Major   int
	Minor   int
	Build   int
}

// Unknown is the identity of a device which never reported a version.
var Unknown = Identity{}

// ParseIdentity parses the payload of a version line.
func ParseIdentity(payload string) (Identity, error) {
	fields := strings.Split(strings.TrimSpace(payload), FieldSeparator)
	version := strings.TrimSpace(fields[0])
	if version == "" {
		return Unknown, fmt.Errorf("empty version in %q", payload)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return Unknown, fmt.Errorf("invalid version %q: %w", version, err)
	}
	id := Identity{
		Version: version,
		Major:   int(v.Major()),
		Minor:   int(v.Minor()),
		Build:   int(v.Patch()),
	}
	if len(fields) > 1 {
		id.Board = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		id.Shield = strings.TrimSpace(fields[2])
	}
	return id, nil
}

// Known indicates the identity was reported by the device.
func (id Identity) Known() bool {
	return id.Version != ""
}

// SemVer returns the numeric version as major.minor.build.
func (id Identity) SemVer() string {
	return fmt.Sprintf("%d.%d.%d", id.Major, id.Minor, id.Build)
}

// String re-serializes the identity in version line payload format.
func (id Identity) String() string {
	if !id.Known() {
		return "unknown"
	}
	fields := []string{id.SemVer()}
	if id.Board != "" || id.Shield != "" {
		fields = append(fields, id.Board)
	}
	if id.Shield != "" {
		fields = append(fields, id.Shield)
	}
	return strings.Join(fields, FieldSeparator)
}

// Describe returns a human readable description.
func (id Identity) Describe() string {
	if !id.Known() {
		return "unknown firmware"
	}
	board, shield := id.Board, id.Shield
	if board == "" {
		board = "unknown board"
	}
	if shield == "" {
		shield = "unknown"
	}
	return fmt.Sprintf("%s with a %s shield, running version %d.%d build %d",
		board, shield, id.Major, id.Minor, id.Build)
}
