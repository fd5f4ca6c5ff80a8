package main

import (
	"os"

	"github.com/sumprime/sumprime/cmd/sumprime/cmds"
	"github.com/sumprime/sumprime/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.SumprimeVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
