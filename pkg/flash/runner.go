package flash

import (
	"os/exec"
)

//go:generate mockgen -destination=mocks/runner.go -package=mocks github.com/robotalks/reflash/pkg/flash CommandRunner

// CommandRunner runs an external tool in dir and returns its combined output.
type CommandRunner interface {
	Run(dir, name string, args []string) ([]byte, error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(dir, name string, args []string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
