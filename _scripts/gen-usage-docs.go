//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra/doc"

	"github.com/sumprime/sumprime/cmd/sumprime/cmds"
	"github.com/sumprime/sumprime/cmd/sumprime/cmds/helphelpers"
)

const defaultUsageDir = "./Documentation/usage"

func main() {
	usageDir := defaultUsageDir
	if len(os.Args) > 1 {
		usageDir = os.Args[1]
	}
	if err := os.MkdirAll(usageDir, 0755); err != nil {
		log.Fatal(err)
	}
	root := cmds.New()

	cmdnames := []string{}
	for _, subcmd := range root.Commands() {
		cmdnames = append(cmdnames, subcmd.Name())
	}
	helphelpers.Prepare(root)
	if err := doc.GenMarkdownTree(root, usageDir); err != nil {
		log.Fatal(err)
	}
	root = nil
	// GenMarkdownTree ignores additional help topic commands, so we have to do this manually
	for _, cmdname := range cmdnames {
		cmd, _, _ := cmds.New().Find([]string{cmdname})
		helphelpers.Prepare(cmd)
		if err := doc.GenMarkdownTree(cmd, usageDir); err != nil {
			log.Fatal(err)
		}
	}
	fh, err := os.OpenFile(filepath.Join(usageDir, "sumprime.md"), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("appending to sumprime.md: %v", err)
	}
	defer fh.Close()
	fmt.Fprintln(fh, "* [sumprime clock](sumprime_clock.md)\t - Help about the `--clock` flag")
	fmt.Fprintln(fh, "* [sumprime log](sumprime_log.md)\t - Help about logging flags")
}
