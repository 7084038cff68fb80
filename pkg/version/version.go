package version

import "fmt"

// Set at build time with
// -ldflags "-X github.com/jichu20/sleuth-go/pkg/version.Version=v0.2.0 -X ...Commit=abc123".
var (
	Version = "v0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
	// ReportID identifies the test report published with the build, if any.
	ReportID = ""
)

// GetHumanVersion return version
func GetHumanVersion() string {
	return fmt.Sprintf("sleuth-go %s", Version)
}
