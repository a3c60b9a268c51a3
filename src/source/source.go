// Package source describes where application code comes from and
// materializes it into a local directory.
package source

import "fmt"

// Kind names a descriptor variant.
type Kind string

const (
	KindGit          Kind = "git"
	KindGitDirectory Kind = "git_directory"
	KindDirectory    Kind = "directory"
)

// Descriptor is one of Git, GitDirectory or Directory.
type Descriptor interface {
	Kind() Kind
	String() string
	descriptor()
}

// Git is a remote repository cloned at Ref (branch or tag).
type Git struct {
	URI string
	Ref string
}

// GitDirectory is a local working copy that gets Ref checked out before use.
type GitDirectory struct {
	Path string
	Ref  string
}

// Directory is a plain local directory used as is.
type Directory struct {
	Path string
}

func (Git) Kind() Kind          { return KindGit }
func (GitDirectory) Kind() Kind { return KindGitDirectory }
func (Directory) Kind() Kind    { return KindDirectory }

func (g Git) String() string          { return fmt.Sprintf("git %s@%s", g.URI, g.Ref) }
func (g GitDirectory) String() string { return fmt.Sprintf("git_directory %s@%s", g.Path, g.Ref) }
func (d Directory) String() string    { return fmt.Sprintf("directory %s", d.Path) }

func (Git) descriptor()          {}
func (GitDirectory) descriptor() {}
func (Directory) descriptor()    {}
