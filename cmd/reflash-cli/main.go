package main

import (
	"github.com/robotalks/reflash/pkg/cli/sh"

	_ "github.com/robotalks/reflash/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
