// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/reflash/pkg/cli/cmds/device"
	_ "github.com/robotalks/reflash/pkg/cli/cmds/firmware"
)
