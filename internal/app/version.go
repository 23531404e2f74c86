package app

import (
	"fmt"
	"io"
)

// SoftwareName is reported to SondeHub and APRS-IS
const SoftwareName = "wsprbridge"

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ShowVersion displays version information
func ShowVersion(w io.Writer) {
	fmt.Fprintf(w, "wsprbridge WSPR balloon telemetry bridge\n")
	fmt.Fprintf(w, "Version: %s\n", Version)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
}
