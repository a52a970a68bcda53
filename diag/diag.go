package diag

import (
	"regexp"
	"strconv"
	"strings"
)

// SuccessMarker is the literal the module prints after a successful compile.
const SuccessMarker = "Compilation successful!"

var (
	artifactSizeRe = regexp.MustCompile(`AMX file size: (\d+) bytes`)
	exitCodeRe     = regexp.MustCompile(`failed with error code: (-?\d+)`)
	diagnosticRe   = regexp.MustCompile(`^(.*?)\((\d+)(?:\s*--\s*(\d+))?\)\s*:\s*(fatal error|error|warning)\s+(\d+)\s*:\s*(.*)$`)
)

// Result is the structured outcome of one compilation. It is recomputed from
// Output on every compile and never partially updated.
type Result struct {
	// ArtifactSize is set when the success line reports the AMX size.
	ArtifactSize *int64
	// Artifact holds the AMX bytes written by the compile that produced this
	// result. Parse never sets it; the compiler fills it in.
	Artifact []byte
	Output   string
	Errors   []string
	Warnings []string
	Success  bool
}

// Parse classifies raw compiler output line by line.
func Parse(raw string) Result {
	res := Result{
		Output:   raw,
		Errors:   []string{},
		Warnings: []string{},
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		if strings.Contains(line, SuccessMarker) {
			res.Success = true
			if m := artifactSizeRe.FindStringSubmatch(line); m != nil {
				if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
					res.ArtifactSize = &n
				}
			}
		}

		hasColon := strings.Contains(line, ":")
		if hasColon && strings.Contains(line, "error") {
			res.Errors = append(res.Errors, line)
		}
		if hasColon && strings.Contains(line, "warning") {
			res.Warnings = append(res.Warnings, line)
		}
	}

	return res
}

// Failure builds the result for a compile that never produced compiler
// output, such as a failed boundary call. msg becomes both the output and the
// only error.
func Failure(msg string) Result {
	return Result{
		Output:   msg,
		Errors:   []string{msg},
		Warnings: []string{},
	}
}

// ExitCode extracts N from a "failed with error code: N" line.
func ExitCode(raw string) (int, bool) {
	m := exitCodeRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Severity of a structured diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal error"
)

// Diagnostic is one pawncc diagnostic line broken into its parts.
type Diagnostic struct {
	File     string
	Severity Severity
	Message  string
	Line     int
	// EndLine is set for ranged diagnostics such as "file(3 -- 5)".
	EndLine int
	Code    int
}

// ParseDiagnostic parses "file(line) : severity NNN: message".
func ParseDiagnostic(line string) (Diagnostic, bool) {
	m := diagnosticRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Diagnostic{}, false
	}

	d := Diagnostic{
		File:     strings.TrimSpace(m[1]),
		Severity: Severity(m[4]),
		Message:  m[6],
	}
	d.Line, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		d.EndLine, _ = strconv.Atoi(m[3])
	}
	d.Code, _ = strconv.Atoi(m[5])
	return d, true
}

// Diagnostics returns the structured form of every classified line that
// follows the pawncc format, errors first. A line Parse put in both lists
// appears once; a diagnostic the compiler printed twice appears twice.
func (r Result) Diagnostics() []Diagnostic {
	// occurrences of each error line not yet matched by a warning
	pending := make(map[string]int, len(r.Errors))
	var out []Diagnostic
	for _, line := range r.Errors {
		pending[line]++
		if d, ok := ParseDiagnostic(line); ok {
			out = append(out, d)
		}
	}
	for _, line := range r.Warnings {
		if pending[line] > 0 {
			pending[line]--
			continue
		}
		if d, ok := ParseDiagnostic(line); ok {
			out = append(out, d)
		}
	}
	return out
}
