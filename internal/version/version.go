package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Name of the application
	AppName = "QuillBox"

	// Version of the application
	Version = "0.3.0-dev"

	// Git commit hash of the application
	Revision = "HEAD"

	// Build date of the application
	BuildDate = ""
)

func init() {
	resolveFromBuildInfo()
}

// resolveFromBuildInfo populates Version/Revision/BuildDate from Go build
// metadata when ldflags didn't provide real values.
func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	settings := map[string]string{}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if Version == "" || strings.HasSuffix(Version, "-dev") {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		if t := settings["vcs.time"]; t != "" {
			BuildDate = t
		}
	}
}

func shortRevision() string {
	if len(Revision) > 8 {
		return Revision[:8]
	}
	return Revision
}

// Detailed returns the version with revision, e.g. "0.3.0 (a1b2c3d4)".
func Detailed() string {
	return fmt.Sprintf("%s (%s)", Version, shortRevision())
}

// DetailedWithApp returns the full human-readable version banner.
func DetailedWithApp() string {
	return fmt.Sprintf("%s %s (%s; %s/%s; %s)", AppName, Version, shortRevision(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}
