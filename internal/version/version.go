// Package version carries build metadata stamped at link time.
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// Commit is the short git revision.
	Commit = ""
)

// GetInfo renders the version line printed at startup.
func GetInfo() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
