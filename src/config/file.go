package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/androiddrew/vdist/src/profile"
)

// DefaultFile is the build file read when no path is given.
const DefaultFile = ".vdist.yml"

// File is a parsed build file: custom profiles plus named raw builds.
type File struct {
	Path     string
	Profiles []profile.Profile
	Builds   []Build
}

// Build is one named, not yet validated build from a build file.
type Build struct {
	Name string
	Raw  map[string]any
}

type fileDoc struct {
	Profiles map[string]profile.Profile `yaml:"profiles" toml:"profiles"`
	Builds   map[string]map[string]any  `yaml:"builds" toml:"builds"`
}

// Load reads a YAML or TOML build file, chosen by extension. If path is
// empty the default file is tried and its absence is not an error.
// Relative output_folder and source paths are taken relative to the file.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &File{}, nil
		}
		return nil, err
	}

	var doc fileDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(abs)

	f := &File{
		Path:     abs,
		Profiles: profile.FromMap(doc.Profiles),
	}
	for name, raw := range doc.Builds {
		if raw == nil {
			raw = map[string]any{}
		}
		anchorPaths(raw, base)
		f.Builds = append(f.Builds, Build{Name: name, Raw: raw})
	}
	sort.Slice(f.Builds, func(i, j int) bool { return f.Builds[i].Name < f.Builds[j].Name })
	return f, nil
}

// Select returns the builds with the given names, or all builds when names
// is empty.
func (f *File) Select(names ...string) ([]Build, error) {
	if len(names) == 0 {
		return f.Builds, nil
	}
	byName := make(map[string]Build, len(f.Builds))
	for _, b := range f.Builds {
		byName[b.Name] = b
	}
	var (
		out     []Build
		missing []string
	)
	for _, n := range names {
		b, ok := byName[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out = append(out, b)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown build(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func anchorPaths(raw map[string]any, base string) {
	if s, ok := raw[KeyOutputFolder].(string); ok && s != "" && !filepath.IsAbs(s) {
		raw[KeyOutputFolder] = filepath.Join(base, s)
	}
	if src, ok := raw[KeySource].(map[string]any); ok {
		if s, ok := src["path"].(string); ok && s != "" && !filepath.IsAbs(s) {
			src["path"] = filepath.Join(base, s)
		}
	}
}
