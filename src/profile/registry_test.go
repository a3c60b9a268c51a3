package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfiles(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	for _, name := range []string{"ubuntu-lts", "centos", "centos7", "archlinux", "ubuntu-lts-custom"} {
		p, err := reg.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.NoError(t, p.validate())
	}

	p, err := reg.Lookup("centos7")
	require.NoError(t, err)
	assert.Equal(t, FormatRPM, p.PackageFormat)
	assert.Equal(t, FamilyRedHat, p.DistributionFamily)
}

func TestLookupUnknown(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Lookup("solaris")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestNamesSorted(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	names := reg.Names()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "debian")
}

func TestCustomProfileOverridesBuiltin(t *testing.T) {
	reg, err := NewRegistry(Profile{
		Name:               "ubuntu-lts",
		DistributionFamily: FamilyDebian,
		BaseImage:          "registry.example.test/ubuntu:24.04",
		PackageFormat:      FormatDeb,
	})
	require.NoError(t, err)

	p, err := reg.Lookup("ubuntu-lts")
	require.NoError(t, err)
	assert.Equal(t, "registry.example.test/ubuntu:24.04", p.BaseImage)
	assert.Equal(t, BackendFPM, p.PackagingBackend)
}

func TestCustomProfileValidation(t *testing.T) {
	_, err := NewRegistry(
		Profile{Name: "bad", DistributionFamily: "gentoo", PackageFormat: "ebuild"},
		Profile{DistributionFamily: FamilyDebian},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown distribution_family "gentoo"`)
	assert.Contains(t, err.Error(), "base_image is required")
	assert.Contains(t, err.Error(), `unknown package_format "ebuild"`)
	assert.Contains(t, err.Error(), "custom profile without a name")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  fedora:
    distribution_family: redhat
    base_image: fedora:40
    package_format: rpm
  alpine-deb:
    distribution_family: debian
    base_image: debian:bookworm
    packaging_backend: fpm
    package_format: deb
`), 0o644))

	profiles, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alpine-deb", profiles[0].Name)
	assert.Equal(t, "fedora", profiles[1].Name)
	assert.Equal(t, "fedora:40", profiles[1].BaseImage)

	reg, err := NewRegistry(profiles...)
	require.NoError(t, err)
	_, err = reg.Lookup("fedora")
	assert.NoError(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	profiles, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestArtifactPattern(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatDeb, "sample_1.0_*.deb"},
		{FormatRPM, "sample-1.0-1.*.rpm"},
		{FormatPacman, "sample-1.0-1-*.pkg.tar.*"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			p := Profile{PackageFormat: tt.format}
			assert.Equal(t, tt.want, p.ArtifactPattern("sample", "1.0"))

			matched, err := filepath.Match(tt.want, map[string]string{
				FormatDeb:    "sample_1.0_amd64.deb",
				FormatRPM:    "sample-1.0-1.x86_64.rpm",
				FormatPacman: "sample-1.0-1-x86_64.pkg.tar.xz",
			}[tt.format])
			require.NoError(t, err)
			assert.True(t, matched)
		})
	}
}
