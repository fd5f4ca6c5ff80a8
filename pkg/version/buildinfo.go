package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"text/tabwriter"
)

// moduleBuildInfo lists the main module, its dependencies and the version
// control settings recorded in the binary.
func moduleBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "not built in module mode"
	}

	buf := new(strings.Builder)
	w := tabwriter.NewWriter(buf, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, " mod\t%s\t%s\n", info.Main.Path, info.Main.Version)
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			fmt.Fprintf(w, " dep\t%s\t%s\t=> %s %s\n", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version)
			continue
		}
		fmt.Fprintf(w, " dep\t%s\t%s\n", dep.Path, dep.Version)
	}
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			fmt.Fprintf(w, " build\t%s\t%s\n", s.Key, s.Value)
		}
	}
	w.Flush()
	return buf.String()
}
