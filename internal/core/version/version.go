// Package version reports what build of the service is running
package version

import "runtime/debug"

// ldflags raw material, e.g.
//
//	go build -ldflags "-X dupehound/internal/core/version.version=v0.3.0"
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// BuildInfo is the shape the version endpoint serves
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info assembles build information. Fields not injected through ldflags fall
// back to the module's embedded vcs stamp when one exists
func Info() BuildInfo {
	bi := BuildInfo{
		Service: "dupehound-server",
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	if rbi, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range rbi.Settings {
			switch kv.Key {
			case "vcs.revision":
				if bi.Commit == "" {
					bi.Commit = kv.Value
				}
			case "vcs.time":
				if bi.Date == "" {
					bi.Date = kv.Value
				}
			}
		}
	}
	if bi.Commit == "" {
		bi.Commit = "none"
	}
	if bi.Date == "" {
		bi.Date = "unknown"
	}
	return bi
}
