package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var Version string

// Get returns the released version of the api server
func Get() string {
	return strings.TrimSpace(Version)
}

// Revision returns the VCS revision the binary was built from, if recorded
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
