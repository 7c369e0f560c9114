package app

import "fmt"

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// ProgramName identifies this receiver in the raw-port metadata header
// line, alongside version and fecfix.
const ProgramName = "uat978"

// ShowVersion displays version information
func ShowVersion() {
	fmt.Printf("%s UAT 978 MHz Receiver\n", ProgramName)
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
