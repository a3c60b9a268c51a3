package config

import (
	"fmt"
	"strings"
)

// Validation rules, in the order they are checked.
const (
	RuleKnownKeys    = 0 // no unknown keys, values of the expected type
	RuleRequired     = 1 // required fields present, profile known, output folder usable
	RuleInterpreter  = 2 // exactly one interpreter strategy
	RuleSource       = 3 // source is one well-formed variant
	RuleDependencies = 4 // dependency lists hold non-empty names
	RuleInstallPath  = 5 // install path is absolute
	RulePaths        = 6 // fpm_args parse, relative paths stay inside the tree
)

// Violation is one broken rule.
type Violation struct {
	Rule    int
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (rule %d)", v.Field, v.Message, v.Rule)
}

// ConfigurationError aggregates every violation found in one validation
// pass so they can all be fixed at once.
type ConfigurationError struct {
	Violations []Violation
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid build configuration: " + strings.Join(parts, "; ")
}

// Violated reports whether rule was broken for field. An empty field
// matches any field.
func (e *ConfigurationError) Violated(rule int, field string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule && (field == "" || v.Field == field) {
			return true
		}
	}
	return false
}
