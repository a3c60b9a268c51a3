// Package paths provides the default on-disk locations used by vdist.
package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Name used for directory naming.
const appName = "vdist"

// Directory holding fresh build directories.
//
//	Linux:   $XDG_CACHE_HOME/vdist/builds or ~/.cache/vdist/builds
//	macOS:   ~/Library/Caches/vdist/builds
func BuildRoot() string {
	return filepath.Join(xdg.CacheHome, appName, "builds")
}

// Default path to the user's custom profiles file.
//
//	Linux:   $XDG_CONFIG_HOME/vdist/profiles.yml or ~/.config/vdist/profiles.yml
//	macOS:   ~/Library/Application Support/vdist/profiles.yml
func ProfilesFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "profiles.yml")
}
