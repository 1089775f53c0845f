package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"geosql/internal/geometry"
	"geosql/internal/naming"
	"geosql/internal/parser/csv"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "emit.srid",
// "reference.attributes[2].target"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// touch the filesystem and does not mutate p.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, errorf("job", "job must not be empty; it is used for metrics labeling and identifying runs"))
	}
	switch p.Variant {
	case VariantMunicipal, VariantSector:
	default:
		issues = append(issues, errorf("variant", "unknown variant %q", p.Variant))
	}
	issues = append(issues, validateInput(p.Input)...)
	issues = append(issues, validateReference(p.Reference)...)
	issues = append(issues, validateJoin(p.Join, p.Reference)...)
	issues = append(issues, validateEmit(p.Emit)...)
	issues = append(issues, validateUnify(p.Unify)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateInput(in Input) []Issue {
	var issues []Issue

	if in.File == "" && in.List == "" && strings.TrimSpace(in.Pattern) == "" {
		issues = append(issues, errorf("input", "one of input.file, input.list or input.pattern is required"))
	}
	if in.File != "" && (in.List != "" || in.Pattern != "") {
		issues = append(issues, warnf("input.file", "input.file is set; input.list and input.pattern are ignored"))
	}
	if in.Comma != "" && utf8.RuneCountInString(in.Comma) != 1 {
		issues = append(issues, errorf("input.comma", "delimiter must be a single character, got %q", in.Comma))
	}
	if _, err := csv.Charset(in.Encoding); err != nil {
		issues = append(issues, errorf("input.encoding", "%v", err))
	}
	return issues
}

func validateReference(r Reference) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.File) == "" {
		issues = append(issues, errorf("reference.file", "reference GeoPackage file must not be empty"))
	} else if !strings.HasSuffix(strings.ToLower(r.File), ".gpkg") {
		issues = append(issues, warnf("reference.file", "%q does not have a .gpkg extension", r.File))
	}
	if strings.TrimSpace(r.CodeColumn) == "" {
		issues = append(issues, errorf("reference.code_column", "reference code column must not be empty"))
	}

	seen := map[string]int{}
	for i, a := range r.Attributes {
		path := fmt.Sprintf("reference.attributes[%d]", i)
		if a.Source == "" {
			issues = append(issues, errorf(path+".source", "attribute source must not be empty"))
		}
		if a.Target == "" {
			issues = append(issues, errorf(path+".target", "attribute target must not be empty"))
			continue
		}
		if j, dup := seen[a.Target]; dup {
			issues = append(issues, errorf(path+".target", "target %q already used by attributes[%d]", a.Target, j))
		}
		seen[a.Target] = i
		if !naming.IsSafe(a.Target) {
			issues = append(issues, warnf(path+".target", "target %q is not a plain lowercase identifier; it will be quoted in SQL", a.Target))
		}
	}
	return issues
}

func validateJoin(j Join, r Reference) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.CodeColumn) == "" {
		issues = append(issues, errorf("join.code_column", "input code column must not be empty"))
	}
	if j.CodeWidth < 0 {
		issues = append(issues, errorf("join.code_width", "code width must be >= 0 (0 infers it), got %d", j.CodeWidth))
	}
	switch strings.ToLower(strings.TrimSpace(j.Missing)) {
	case "", "drop", "keep":
	default:
		issues = append(issues, errorf("join.missing", "missing policy must be drop or keep, got %q", j.Missing))
	}
	if strings.TrimSpace(j.OutputFolder) == "" {
		issues = append(issues, errorf("join.output_folder", "output folder must not be empty"))
	}
	if j.Suffix == "" {
		issues = append(issues, warnf("join.suffix", "empty suffix: output files keep the input file names"))
	}
	if len(j.RoundColumns) > 0 && (j.RoundDigits < 0 || j.RoundDigits > 15) {
		issues = append(issues, errorf("join.round_digits", "round digits must be within 0..15, got %d", j.RoundDigits))
	}
	for i, c := range j.DropColumns {
		if c == j.CodeColumn {
			issues = append(issues, errorf(fmt.Sprintf("join.drop_columns[%d]", i), "cannot drop the code column %q", c))
		}
	}
	for i, a := range r.Attributes {
		if a.Target == j.CodeColumn {
			issues = append(issues, warnf(fmt.Sprintf("reference.attributes[%d].target", i),
				"target %q equals the input code column; the input column is kept", a.Target))
		}
	}
	return issues
}

func validateEmit(e Emit) []Issue {
	var issues []Issue

	if strings.TrimSpace(e.OutputFolder) == "" {
		issues = append(issues, errorf("emit.output_folder", "output folder must not be empty"))
	}
	if strings.TrimSpace(e.Pattern) == "" {
		issues = append(issues, errorf("emit.pattern", "pattern must not be empty"))
	}
	if e.SRID <= 0 {
		issues = append(issues, errorf("emit.srid", "srid must be a positive integer, got %d", e.SRID))
	}
	if _, err := geometry.ParseType(e.GeometryType); err != nil {
		issues = append(issues, errorf("emit.geometry_type", "%v", err))
	}
	if e.GeometryColumn == "" {
		issues = append(issues, errorf("emit.geometry_column", "source geometry column must not be empty"))
	}
	if e.TargetGeometryColumn == "" {
		issues = append(issues, errorf("emit.target_geometry_column", "target geometry column must not be empty"))
	}
	if e.Schema != "" && !naming.IsSafe(e.Schema) {
		issues = append(issues, warnf("emit.schema", "schema %q is not a plain lowercase identifier; it will be quoted", e.Schema))
	}
	if e.Table != "" && !naming.IsSafe(e.Table) {
		issues = append(issues, errorf("emit.table", "table %q must be a plain lowercase identifier of at most %d bytes", e.Table, naming.MaxIdentifierLen))
	}

	text := map[string]bool{}
	for _, c := range e.TextColumns {
		text[c] = true
	}
	for i, c := range e.FloatColumns {
		if text[c] {
			issues = append(issues, warnf(fmt.Sprintf("emit.float_columns[%d]", i), "%q is also a text column; text wins", c))
		}
	}
	return issues
}

func validateUnify(u Unify) []Issue {
	var issues []Issue

	if strings.TrimSpace(u.OutputFolder) == "" {
		issues = append(issues, errorf("unify.output_folder", "output folder must not be empty"))
	}
	if strings.TrimSpace(u.Name) == "" || strings.ContainsAny(u.Name, `/\`) {
		issues = append(issues, errorf("unify.name", "name must be a plain file name, got %q", u.Name))
	}
	if u.RoundDigits < 0 || u.RoundDigits > 15 {
		issues = append(issues, errorf("unify.round_digits", "round digits must be within 0..15, got %d", u.RoundDigits))
	}
	for i, y := range u.Years {
		if y < 1900 || y > 2999 {
			issues = append(issues, errorf(fmt.Sprintf("unify.years[%d]", i), "implausible year %d", y))
		}
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.Workers < 0 {
		issues = append(issues, errorf("runtime.workers", "workers must be >= 0, got %d", r.Workers))
	}
	if r.Workers > 64 {
		issues = append(issues, warnf("runtime.workers", "%d workers each hold a whole file in memory", r.Workers))
	}
	return issues
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}
