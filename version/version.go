// Package version exposes the build-time semantic version of kanti.
package version

import (
	"fmt"

	"github.com/Masterminds/semver"
)

// Version is overridden at build time via -ldflags.
var Version = "1.0.0"

// GetHumanVersion returns the human-readable "kanti <version>" string
// printed by the `version` subcommand. Version is parsed through
// Masterminds/semver and printed in its normalized form; a build-time
// override that does not parse as semver is printed unchanged.
func GetHumanVersion() string {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Sprintf("kanti %s", Version)
	}
	return fmt.Sprintf("kanti %s", v.String())
}
