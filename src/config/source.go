package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/androiddrew/vdist/src/source"
)

var sourceKeys = map[source.Kind][]string{
	source.KindGit:          {"type", "uri", "ref"},
	source.KindGitDirectory: {"type", "path", "ref"},
	source.KindDirectory:    {"type", "path"},
}

// parseSource accepts a source.Descriptor or its mapping form
//
//	{type: git, uri: ..., ref: ...}
//	{type: git_directory, path: ..., ref: ...}
//	{type: directory, path: ...}
//
// and reports every problem found.
func parseSource(raw any) (source.Descriptor, []string) {
	switch s := raw.(type) {
	case source.Git:
		return s, checkDescriptor(s)
	case source.GitDirectory:
		return s, checkDescriptor(s)
	case source.Directory:
		return s, checkDescriptor(s)
	case map[string]any:
		return parseSourceMap(s)
	case nil:
		return nil, []string{"is required"}
	default:
		return nil, []string{fmt.Sprintf("expected a mapping with a type, got %T", raw)}
	}
}

func parseSourceMap(m map[string]any) (source.Descriptor, []string) {
	var problems []string
	get := func(key string) string {
		val, ok := m[key]
		if !ok || val == nil {
			return ""
		}
		s, ok := val.(string)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: expected string, got %T", key, val))
			return ""
		}
		return strings.TrimSpace(s)
	}

	kind := source.Kind(get("type"))
	allowed, ok := sourceKeys[kind]
	if !ok {
		kinds := make([]string, 0, len(sourceKeys))
		for k := range sourceKeys {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		return nil, append(problems, fmt.Sprintf("type %q is not one of %s", kind, strings.Join(kinds, ", ")))
	}

	var extra []string
	for k := range m {
		if !slices.Contains(allowed, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		problems = append(problems, fmt.Sprintf("%s: not valid for type %s", k, kind))
	}

	var d source.Descriptor
	switch kind {
	case source.KindGit:
		d = source.Git{URI: get("uri"), Ref: get("ref")}
	case source.KindGitDirectory:
		d = source.GitDirectory{Path: get("path"), Ref: get("ref")}
	case source.KindDirectory:
		d = source.Directory{Path: get("path")}
	}
	return d, append(problems, checkDescriptor(d)...)
}

func checkDescriptor(d source.Descriptor) []string {
	var problems []string
	switch s := d.(type) {
	case source.Git:
		if s.URI == "" {
			problems = append(problems, "git source requires uri")
		}
		if s.Ref == "" {
			problems = append(problems, "git source requires ref (branch or tag)")
		}
	case source.GitDirectory:
		if s.Path == "" {
			problems = append(problems, "git_directory source requires path")
		}
		if s.Ref == "" {
			problems = append(problems, "git_directory source requires ref (branch or tag)")
		}
	case source.Directory:
		if s.Path == "" {
			problems = append(problems, "directory source requires path")
		}
	}
	return problems
}
