package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry is a read-only set of profiles keyed by name.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns the built-in profiles overlaid with custom ones. A
// custom profile with a built-in name replaces the built-in.
func NewRegistry(custom ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(builtin)+len(custom))}
	for _, p := range builtin {
		r.profiles[p.Name] = p
	}

	var errs []error
	for _, p := range custom {
		if p.Name == "" {
			errs = append(errs, errors.New("custom profile without a name"))
			continue
		}
		if p.PackagingBackend == "" {
			p.PackagingBackend = BackendFPM
		}
		if err := p.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		r.profiles[p.Name] = p
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the named profile.
func (r *Registry) Lookup(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns all profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadFile reads custom profiles from a YAML file of the form
//
//	profiles:
//	  my-distro:
//	    distribution_family: debian
//	    base_image: registry.example.com/builder:latest
//	    package_format: deb
//
// A missing file yields no profiles.
func LoadFile(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes the profiles section of a YAML document.
func Parse(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}
	return FromMap(f.Profiles), nil
}

// FromMap turns a name-keyed profile map into a slice sorted by name.
func FromMap(m map[string]Profile) []Profile {
	profiles := make([]Profile, 0, len(m))
	for name, p := range m {
		p.Name = name
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}
