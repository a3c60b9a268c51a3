// Package profile holds the named build flavors vdist can target.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Distribution families.
const (
	FamilyDebian    = "debian"
	FamilyRedHat    = "redhat"
	FamilyArchLinux = "archlinux"
)

// Package formats understood by fpm.
const (
	FormatDeb    = "deb"
	FormatRPM    = "rpm"
	FormatPacman = "pacman"
)

// BackendFPM is the only packaging backend.
const BackendFPM = "fpm"

// ErrUnknownProfile is returned by Lookup for names not in the registry.
var ErrUnknownProfile = errors.New("unknown build profile")

// Profile is an immutable build flavor: which sandbox image to build in and
// which package format to produce.
type Profile struct {
	Name               string `yaml:"-" toml:"-"`
	DistributionFamily string `yaml:"distribution_family" toml:"distribution_family"`
	BaseImage          string `yaml:"base_image" toml:"base_image"`
	PackagingBackend   string `yaml:"packaging_backend" toml:"packaging_backend"`
	PackageFormat      string `yaml:"package_format" toml:"package_format"`
}

// ArtifactPattern returns a glob matching the package file fpm names for
// app and version. The architecture part is left open because fpm resolves
// "native" inside the sandbox.
func (p Profile) ArtifactPattern(app, version string) string {
	switch p.PackageFormat {
	case FormatDeb:
		return fmt.Sprintf("%s_%s_*.deb", app, version)
	case FormatRPM:
		return fmt.Sprintf("%s-%s-1.*.rpm", app, version)
	case FormatPacman:
		return fmt.Sprintf("%s-%s-1-*.pkg.tar.*", app, version)
	default:
		return fmt.Sprintf("%s*%s*", app, version)
	}
}

// validate checks a profile's fields against the supported values.
func (p Profile) validate() error {
	var errs []error
	if p.BaseImage == "" {
		errs = append(errs, errors.New("base_image is required"))
	}
	if !validFamilies[p.DistributionFamily] {
		errs = append(errs, fmt.Errorf("unknown distribution_family %q (supported: %s)", p.DistributionFamily, keys(validFamilies)))
	}
	if p.PackagingBackend != BackendFPM {
		errs = append(errs, fmt.Errorf("unknown packaging_backend %q (supported: %s)", p.PackagingBackend, BackendFPM))
	}
	if !validFormats[p.PackageFormat] {
		errs = append(errs, fmt.Errorf("unknown package_format %q (supported: %s)", p.PackageFormat, keys(validFormats)))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return nil
}

var validFamilies = map[string]bool{
	FamilyDebian:    true,
	FamilyRedHat:    true,
	FamilyArchLinux: true,
}

var validFormats = map[string]bool{
	FormatDeb:    true,
	FormatRPM:    true,
	FormatPacman: true,
}

func keys(m map[string]bool) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
