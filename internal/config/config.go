// Package config defines the JSON-serializable configuration of a geosql
// batch. A Pipeline starts from a variant preset (Default), is overlaid with
// an optional JSON file (Load) and finally with command-line flags.
//
// Example (trimmed):
//
//	{
//	  "job":       "icv_municipal_2024",
//	  "variant":   "municipal",
//	  "input":     { "dir": "dados", "pattern": "geodata_*_por_municipio_2024.csv" },
//	  "reference": { "folder": "dados_comparar", "file": "municipios.gpkg", "code_column": "CD_MUN" },
//	  "join":      { "code_column": "cd_mun", "missing": "keep" },
//	  "emit":      { "srid": 4326, "geometry_type": "POLYGON" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Variant names.
const (
	VariantMunicipal = "municipal"
	VariantSector    = "sector"
)

// Pipeline is the top-level configuration object.
type Pipeline struct {
	// Job labels metrics and log lines for this batch.
	Job     string `json:"job"`
	Variant string `json:"variant"`

	Input     Input         `json:"input"`
	Reference Reference     `json:"reference"`
	Join      Join          `json:"join"`
	Emit      Emit          `json:"emit"`
	Unify     Unify         `json:"unify"`
	Runtime   RuntimeConfig `json:"runtime"`
}

// Input selects the tabular files of the join stage. File wins over List,
// which wins over Dir+Pattern.
type Input struct {
	File    string `json:"file"`
	List    string `json:"list"`
	Dir     string `json:"dir"`
	Pattern string `json:"pattern"`

	// Comma is the field delimiter; empty means ",".
	Comma string `json:"comma"`
	// Encoding of the input files: utf-8 (default), latin1 or windows-1252.
	Encoding string `json:"encoding"`
}

// Attribute maps a reference column to its column name in the output.
type Attribute struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Reference locates the GeoPackage holding the boundaries.
type Reference struct {
	Folder string `json:"folder"`
	File   string `json:"file"`
	// Layer names the feature table; empty selects the only layer.
	Layer      string      `json:"layer"`
	CodeColumn string      `json:"code_column"`
	Attributes []Attribute `json:"attributes"`
}

// Path returns the reference file path, joined with Folder unless File is
// absolute.
func (r Reference) Path() string {
	if r.File == "" || filepath.IsAbs(r.File) {
		return r.File
	}
	return filepath.Join(r.Folder, r.File)
}

// Join configures the geometry join stage.
type Join struct {
	CodeColumn string `json:"code_column"`
	// CodeWidth is the normalized code length; 0 infers it from the reference.
	CodeWidth int `json:"code_width"`
	// Missing is "drop" or "keep".
	Missing      string   `json:"missing"`
	OutputFolder string   `json:"output_folder"`
	Suffix       string   `json:"suffix"`
	DropColumns  []string `json:"drop_columns"`
	RoundColumns []string `json:"round_columns"`
	RoundDigits  int      `json:"round_digits"`
}

// Emit configures the SQL emission stage.
type Emit struct {
	// InputDir and Pattern select the augmented files; an empty InputDir
	// means Join.OutputFolder.
	InputDir     string `json:"input_dir"`
	Pattern      string `json:"pattern"`
	OutputFolder string `json:"output_folder"`
	// Table overrides the name derived from the file name. Only valid when
	// a single file is emitted.
	Table                string   `json:"table"`
	Schema               string   `json:"schema"`
	SRID                 int      `json:"srid"`
	GeometryType         string   `json:"geometry_type"`
	GeometryColumn       string   `json:"geometry_column"`
	TargetGeometryColumn string   `json:"target_geometry_column"`
	TextColumns          []string `json:"text_columns"`
	FloatColumns         []string `json:"float_columns"`
	SerialID             bool     `json:"serial_id"`
}

// Unify configures the multi-year consolidation of the input tables.
type Unify struct {
	// Years restricts the inputs to files whose name carries one of these
	// years; empty keeps every input.
	Years        []int  `json:"years"`
	OutputFolder string `json:"output_folder"`
	// Name is the output file name without extension.
	Name string `json:"name"`
	// YearColumn and the join code column order the result when both
	// are present.
	YearColumn string `json:"year_column"`
	// GeometryColumns are dropped from every input.
	GeometryColumns []string `json:"geometry_columns"`
	// RoundDigits applies to every decimal column.
	RoundDigits int `json:"round_digits"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// Workers is the number of files processed at once; 0 or 1 is sequential.
	Workers int `json:"workers"`
}

// ibgeText lists the IBGE code and name columns that must stay text.
var ibgeText = []string{
	"cd_mun", "nm_mun", "cd_setor", "cd_rgint", "nm_rgint",
	"cd_rgi", "nm_rgi", "cd_uf", "nm_uf", "sigla_uf",
}

// Default returns the preset for a variant; an empty name selects
// municipal.
func Default(variant string) (Pipeline, error) {
	base := Pipeline{
		Input: Input{Dir: "."},
		Reference: Reference{
			Folder: "dados_comparar",
		},
		Join: Join{
			Missing:     "drop",
			Suffix:      "_com_geometria",
			RoundDigits: 2,
		},
		Emit: Emit{
			Pattern:              "*.csv",
			Schema:               "public",
			SRID:                 31983,
			GeometryType:         "MULTIPOLYGON",
			GeometryColumn:       "geometry",
			TargetGeometryColumn: "wkb_geometry",
			TextColumns:          append([]string(nil), ibgeText...),
		},
		Unify: Unify{
			YearColumn:      "ano",
			GeometryColumns: []string{"geom", "geojson", "geometry"},
			RoundDigits:     2,
		},
		Runtime: RuntimeConfig{Workers: 1},
	}

	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "", VariantMunicipal:
		p := base
		p.Variant = VariantMunicipal
		p.Job = "geosql_municipal"
		p.Input.Pattern = "geodata_icv-pcv-pop-psi_por_municipio_*.csv"
		p.Reference.File = "geodata_hidrologia_municipios_2025.gpkg"
		p.Reference.CodeColumn = "CD_MUN"
		p.Reference.Attributes = lowered("CD_RGI", "NM_RGI", "CD_RGINT", "NM_RGINT", "CD_UF", "NM_UF", "SIGLA_UF")
		p.Join.CodeColumn = "cd_mun"
		p.Join.CodeWidth = 7
		p.Join.OutputFolder = "dados_com_geometria_csv"
		p.Emit.OutputFolder = "dados_sql"
		p.Emit.FloatColumns = []string{"pcv", "psi", "icv", "pop"}
		p.Unify.OutputFolder = "municipal_unificado_csv"
		p.Unify.Name = "dados_vegetacao_por_municipio"
		return p, nil
	case VariantSector:
		p := base
		p.Variant = VariantSector
		p.Job = "geosql_sector"
		p.Input.Pattern = "geodata_icv-pcv-pop-psi_por_setor_*.csv"
		p.Reference.File = "geodata_pracas_por_setor_2024.gpkg"
		p.Reference.CodeColumn = "CD_SETOR"
		p.Reference.Attributes = lowered("CD_UF", "NM_UF", "CD_RGINT", "NM_RGINT", "CD_RGI", "NM_RGI")
		p.Join.CodeColumn = "cd_setor"
		p.Join.CodeWidth = 15
		p.Join.OutputFolder = "dados_com_geometria_setor_csv"
		p.Emit.OutputFolder = "dados_sql_setor"
		p.Unify.OutputFolder = "setor_unificado_csv"
		p.Unify.Name = "dados_vegetacao_por_setor"
		return p, nil
	default:
		return Pipeline{}, fmt.Errorf("config: unknown variant %q (want %s or %s)", variant, VariantMunicipal, VariantSector)
	}
}

func lowered(cols ...string) []Attribute {
	out := make([]Attribute, len(cols))
	for i, c := range cols {
		out[i] = Attribute{Source: c, Target: strings.ToLower(c)}
	}
	return out
}

// Load reads a JSON pipeline file over the preset of its variant. A
// non-empty variant argument takes precedence over the file's own
// "variant" field. Unknown fields are rejected.
func Load(path, variant string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var head struct {
		Variant string `json:"variant"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return Pipeline{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if variant == "" {
		variant = head.Variant
	}

	p, err := Default(variant)
	if err != nil {
		return Pipeline{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	// The preset chosen above decides the variant, not a stale field.
	p.Variant = strings.ToLower(strings.TrimSpace(variant))
	if p.Variant == "" {
		p.Variant = VariantMunicipal
	}
	return p, nil
}

// EmitInputDir returns the directory the emission stage reads from.
func (p Pipeline) EmitInputDir() string {
	if p.Emit.InputDir != "" {
		return p.Emit.InputDir
	}
	return p.Join.OutputFolder
}
