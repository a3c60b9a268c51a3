package output

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/androiddrew/vdist/src/builder"
	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/profile"
)

// BuildSummary renders one section listing every build, its packages and
// their digests, followed by the total.
func BuildSummary(w io.Writer, reports []builder.Report, elapsed time.Duration, color bool) {
	sec := NewSection(w, "Summary", elapsed, color)
	status := StatusSuccess
	for i, r := range reports {
		if i > 0 {
			sec.Separator()
		}
		if r.Err != nil {
			status = StatusFailed
			SummaryRow(w, r.Name, StatusFailed, failureReason(r.Err), color)
			continue
		}
		res := r.Result
		SummaryRow(w, r.Name, StatusSuccess,
			fmt.Sprintf("%s %s on %s  %s", res.App, res.Version, res.Profile, Dimmed(formatElapsed(res.Duration), color)), color)
		for _, a := range res.Artifacts {
			sec.Row("  %s  %s", filepath.Base(a.Path), Dimmed(humanSize(a.Size), color))
			sec.Row("    blake3 %s", Dimmed(a.Digest, color))
		}
		if res.Script != "" {
			sec.Row("  script %s", Dimmed(res.Script, color))
		}
	}
	sec.Separator()
	SummaryTotal(w, elapsed, status, color)
	sec.Close()
}

// failureReason condenses a build error to its first line.
func failureReason(err error) string {
	var scriptErr *builder.BuildScriptFailure
	if errors.As(err, &scriptErr) {
		return fmt.Sprintf("build script exited with code %d", scriptErr.ExitCode)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// SectionFailureTail renders the last output lines of a failed script.
func SectionFailureTail(w io.Writer, name string, failure *builder.BuildScriptFailure, color bool) {
	sec := NewSection(w, name+": last output", 0, color)
	for _, line := range failure.Tail {
		sec.Row("%s", Dimmed(line, color))
	}
	sec.Close()
}

// FailureTails renders the output tail of every build whose script failed.
// On GitLab CI the tails sit in one expanded section.
func FailureTails(w io.Writer, reports []builder.Report, color bool) {
	started := false
	for _, r := range reports {
		var failure *builder.BuildScriptFailure
		if !errors.As(r.Err, &failure) || len(failure.Tail) == 0 {
			continue
		}
		if !started {
			SectionStart(w, "vdist_failures", "Failed build output")
			started = true
		}
		SectionFailureTail(w, r.Name, failure, color)
	}
	if started {
		SectionEnd(w, "vdist_failures")
	}
}

// SectionViolations renders every violation of a configuration error.
func SectionViolations(w io.Writer, name string, cfgErr *config.ConfigurationError, color bool) {
	sec := NewSection(w, name, 0, color)
	for _, v := range cfgErr.Violations {
		sec.Row("%s %-22s %s %s", StatusIcon(StatusFailed, color), v.Field, v.Message, Dimmed(fmt.Sprintf("(rule %d)", v.Rule), color))
	}
	sec.Close()
}

// ProfileTable lists profiles, one per row.
func ProfileTable(w io.Writer, profiles []profile.Profile, color bool) {
	sec := NewSection(w, "Profiles", 0, color)
	sec.Row("%s", Bold(fmt.Sprintf("%-20s%-11s%-8s%s", "name", "family", "format", "image"), color))
	for _, p := range profiles {
		sec.Row("%-20s%-11s%-8s%s", p.Name, p.DistributionFamily, p.PackageFormat, Dimmed(p.BaseImage, color))
	}
	sec.Close()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
