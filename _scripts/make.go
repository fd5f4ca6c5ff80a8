package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

const SumprimeMainPackagePath = "github.com/sumprime/sumprime/cmd/sumprime"

var Verbose bool
var TestSet, TestRegex string

func NewMakeCommands() *cobra.Command {
	RootCommand := &cobra.Command{
		Use:   "make.go",
		Short: "make script for sumprime.",
	}

	RootCommand.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build sumprime",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "build", buildFlags(), SumprimeMainPackagePath)
		},
	})

	RootCommand.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Installs sumprime",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "install", buildFlags(), SumprimeMainPackagePath)
		},
	})

	RootCommand.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Uninstalls sumprime",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "clean", "-i", SumprimeMainPackagePath)
		},
	})

	test := &cobra.Command{
		Use:   "test",
		Short: "Tests sumprime",
		Long: `Tests sumprime.

Use the flags -s and -r to specify which tests to run. Specifying nothing will run all tests.
`,
		Run: testCmd,
	}
	test.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Verbose tests")
	test.PersistentFlags().StringVarP(&TestSet, "test-set", "s", "", `Select the set of tests to run, one of either:
	all		tests all packages
	basic		tests prime, timing and report
	integration 	tests github.com/sumprime/sumprime/service/test
	package-name	test the specified package only
`)
	test.PersistentFlags().StringVarP(&TestRegex, "test-run", "r", "", `Only runs the tests matching the specified regex. This option can only be specified if testset is a single package`)
	RootCommand.AddCommand(test)

	RootCommand.AddCommand(&cobra.Command{
		Use:   "gen-usage-docs",
		Short: "Regenerates Documentation/usage",
		Run: func(cmd *cobra.Command, args []string) {
			execute("go", "run", "_scripts/gen-usage-docs.go")
		},
	})

	return RootCommand
}

func strflatten(v []interface{}) []string {
	r := []string{}
	for _, s := range v {
		switch s := s.(type) {
		case []string:
			r = append(r, s...)
		case string:
			if s != "" {
				r = append(r, s)
			}
		}
	}
	return r
}

func executeq(cmd string, args ...interface{}) {
	x := exec.Command(cmd, strflatten(args)...)
	x.Stdout = os.Stdout
	x.Stderr = os.Stderr
	x.Env = os.Environ()
	err := x.Run()
	if x.ProcessState != nil && !x.ProcessState.Success() {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func execute(cmd string, args ...interface{}) {
	fmt.Printf("%s %s\n", cmd, strings.Join(quotemaybe(strflatten(args)), " "))
	executeq(cmd, args...)
}

func quotemaybe(args []string) []string {
	for i := range args {
		if strings.Index(args[i], " ") >= 0 {
			args[i] = fmt.Sprintf("%q", args[i])
		}
	}
	return args
}

// buildFlags stamps the git revision into main.Build, if there is one.
func buildFlags() []string {
	buildSHA, err := exec.Command("git", "rev-parse", "HEAD").CombinedOutput()
	if err != nil {
		return nil
	}
	return []string{fmt.Sprintf("-ldflags=-X main.Build=%s", strings.TrimSpace(string(buildSHA)))}
}

func testFlags() []string {
	testFlags := []string{"-count", "1"}
	if Verbose {
		testFlags = append(testFlags, "-v")
	}
	return testFlags
}

func testCmd(cmd *cobra.Command, args []string) {
	if TestSet == "" {
		if TestRegex != "" {
			fmt.Printf("Can not use --test-run without --test-set\n")
			os.Exit(1)
		}
		TestSet = "all"
	}

	testPackages := testSetToPackages(TestSet)
	if len(testPackages) == 0 {
		fmt.Printf("Unknown test set %q\n", TestSet)
		os.Exit(1)
	}
	if TestRegex != "" && len(testPackages) != 1 {
		fmt.Printf("Can not use test-run with test set %q\n", TestSet)
		os.Exit(1)
	}
	var runFlag string
	if TestRegex != "" {
		runFlag = "-run=" + TestRegex
	}
	execute("go", "test", testFlags(), testPackages, runFlag)
}

func testSetToPackages(testSet string) []string {
	switch testSet {
	case "", "all":
		return []string{"./..."}

	case "basic":
		return []string{"github.com/sumprime/sumprime/pkg/prime", "github.com/sumprime/sumprime/pkg/timing", "github.com/sumprime/sumprime/pkg/report"}

	case "integration":
		return []string{"github.com/sumprime/sumprime/service/test"}

	default:
		for _, pkg := range strings.Fields(getoutput("go", "list", "./...")) {
			if pkg == testSet || strings.HasSuffix(pkg, "/"+testSet) {
				return []string{pkg}
			}
		}
		return nil
	}
}

func getoutput(cmd string, args ...interface{}) string {
	x := exec.Command(cmd, strflatten(args)...)
	x.Env = os.Environ()
	out, err := x.Output()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing %s %v\n", cmd, args)
		log.Fatal(err)
	}
	if !x.ProcessState.Success() {
		fmt.Fprintf(os.Stderr, "Error executing %s %v\n", cmd, args)
		os.Exit(1)
	}
	return string(out)
}

func main() {
	NewMakeCommands().Execute()
}
