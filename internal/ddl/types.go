package ddl

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"geosql/internal/naming"
)

// PostgreSQL column types produced by Infer.
const (
	TypeInteger = "INTEGER"
	TypeBigInt  = "BIGINT"
	TypeDouble  = "DOUBLE PRECISION"
	TypeText    = "VARCHAR"
	TypeSerial  = "SERIAL"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (one of the Type* constants for inferred columns)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// Numeric reports whether values of c are written as unquoted literals.
func (c ColumnDef) Numeric() bool {
	switch c.SQLType {
	case TypeInteger, TypeBigInt, TypeDouble, TypeSerial:
		return true
	default:
		return false
	}
}

// TableDef holds the table name, optionally schema-qualified in dotted form
// ("public.municipios"), and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// QuoteIdent returns name unchanged when it is a plain lowercase identifier
// and double-quoted otherwise.
func QuoteIdent(name string) string {
	if naming.IsSafe(name) {
		return name
	}
	return pgx.Identifier{name}.Sanitize()
}

// QuoteFQN quotes each dotted part of a qualified name.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}
