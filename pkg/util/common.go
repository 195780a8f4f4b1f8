// Package util provides utility functions for the binaries.
package util

import (
	"fmt"
	"io"
)

// na returns "N/A" if the input string is empty, otherwise it returns the input string.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// PrintBuildInfo writes the binary name and the version, date and commit
// baked in through -ldflags. Unset values print as N/A.
func PrintBuildInfo(w io.Writer, name, buildVersion, buildDate, buildCommit string) {
	fmt.Fprintf(w, "%s build version: %s\n", name, na(buildVersion))
	fmt.Fprintf(w, "%s build date: %s\n", name, na(buildDate))
	fmt.Fprintf(w, "%s build commit: %s\n", name, na(buildCommit))
}
