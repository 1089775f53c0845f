package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validMunicipal(t *testing.T) Pipeline {
	t.Helper()
	p, err := Default(VariantMunicipal)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return p
}

func TestValidatePipeline_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "job must not be empty"},
		{"unknown variant", func(p *Pipeline) { p.Variant = "estado" }, SeverityError, "variant", "unknown variant"},
		{"no input", func(p *Pipeline) { p.Input.Pattern = "" }, SeverityError, "input", "is required"},
		{"file shadows pattern", func(p *Pipeline) { p.Input.File = "a.csv" }, SeverityWarning, "input.file", "ignored"},
		{"long comma", func(p *Pipeline) { p.Input.Comma = ";;" }, SeverityError, "input.comma", "single character"},
		{"encoding", func(p *Pipeline) { p.Input.Encoding = "ebcdic" }, SeverityError, "input.encoding", "unsupported encoding"},
		{"no reference", func(p *Pipeline) { p.Reference.File = "" }, SeverityError, "reference.file", "must not be empty"},
		{"not gpkg", func(p *Pipeline) { p.Reference.File = "mun.shp" }, SeverityWarning, "reference.file", ".gpkg"},
		{"no ref code", func(p *Pipeline) { p.Reference.CodeColumn = "" }, SeverityError, "reference.code_column", "must not be empty"},
		{"dup target", func(p *Pipeline) { p.Reference.Attributes[1].Target = "cd_rgi" }, SeverityError, "reference.attributes[1].target", "already used"},
		{"unsafe target", func(p *Pipeline) { p.Reference.Attributes[0].Target = "CD RGI" }, SeverityWarning, "reference.attributes[0].target", "quoted"},
		{"target is code", func(p *Pipeline) { p.Reference.Attributes[0].Target = "cd_mun" }, SeverityWarning, "reference.attributes[0].target", "input column is kept"},
		{"no code column", func(p *Pipeline) { p.Join.CodeColumn = "" }, SeverityError, "join.code_column", "must not be empty"},
		{"negative width", func(p *Pipeline) { p.Join.CodeWidth = -1 }, SeverityError, "join.code_width", ">= 0"},
		{"missing policy", func(p *Pipeline) { p.Join.Missing = "fill" }, SeverityError, "join.missing", "drop or keep"},
		{"round digits", func(p *Pipeline) { p.Join.RoundColumns = []string{"pcv"}; p.Join.RoundDigits = 20 }, SeverityError, "join.round_digits", "0..15"},
		{"drop code", func(p *Pipeline) { p.Join.DropColumns = []string{"geom", "cd_mun"} }, SeverityError, "join.drop_columns[1]", "code column"},
		{"empty suffix", func(p *Pipeline) { p.Join.Suffix = "" }, SeverityWarning, "join.suffix", "keep the input file names"},
		{"srid", func(p *Pipeline) { p.Emit.SRID = 0 }, SeverityError, "emit.srid", "positive"},
		{"geometry type", func(p *Pipeline) { p.Emit.GeometryType = "POINT" }, SeverityError, "emit.geometry_type", "unsupported target type"},
		{"target column", func(p *Pipeline) { p.Emit.TargetGeometryColumn = "" }, SeverityError, "emit.target_geometry_column", "must not be empty"},
		{"table", func(p *Pipeline) { p.Emit.Table = "Tabela X" }, SeverityError, "emit.table", "plain lowercase identifier"},
		{"schema", func(p *Pipeline) { p.Emit.Schema = "Dados" }, SeverityWarning, "emit.schema", "quoted"},
		{"float and text", func(p *Pipeline) { p.Emit.FloatColumns = []string{"cd_uf"} }, SeverityWarning, "emit.float_columns[0]", "text wins"},
		{"unify folder", func(p *Pipeline) { p.Unify.OutputFolder = "" }, SeverityError, "unify.output_folder", "must not be empty"},
		{"unify name", func(p *Pipeline) { p.Unify.Name = "a/b" }, SeverityError, "unify.name", "plain file name"},
		{"unify digits", func(p *Pipeline) { p.Unify.RoundDigits = -1 }, SeverityError, "unify.round_digits", "0..15"},
		{"unify year", func(p *Pipeline) { p.Unify.Years = []int{2016, 24} }, SeverityError, "unify.years[1]", "implausible"},
		{"workers", func(p *Pipeline) { p.Runtime.Workers = -2 }, SeverityError, "runtime.workers", ">= 0"},
		{"many workers", func(p *Pipeline) { p.Runtime.Workers = 100 }, SeverityWarning, "runtime.workers", "memory"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validMunicipal(t)
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	if HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatalf("warnings only must not count as errors")
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Fatalf("error not detected")
	}
	iss := Issue{Severity: SeverityError, Path: "emit.srid", Message: "bad"}
	if iss.Error() != "error at emit.srid: bad" {
		t.Fatalf("Error() = %q", iss.Error())
	}
}
