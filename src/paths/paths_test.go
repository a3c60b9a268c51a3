package paths

import (
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	// Registered first so it runs after the environment is restored.
	t.Cleanup(xdg.Reload)

	cache := t.TempDir()
	conf := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("XDG_CONFIG_HOME", conf)
	xdg.Reload()

	assert.Equal(t, filepath.Join(cache, "vdist", "builds"), BuildRoot())
	assert.Equal(t, filepath.Join(conf, "vdist", "profiles.yml"), ProfilesFile())
}
