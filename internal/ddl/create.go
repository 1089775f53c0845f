// Package ddl models a PostgreSQL table definition and renders its CREATE
// TABLE statement. Column types are inferred column-wide from text values
// by Infer, so the CREATE TABLE and every INSERT written after it agree.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty; each dotted part is quoted when needed.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [PRIMARY KEY] [NOT NULL] [DEFAULT <Default>]
//
//     PRIMARY KEY is inlined when exactly one column is marked; several
//     marked columns produce a trailing PRIMARY KEY (<cols>) clause.
//     NOT NULL is added when Nullable == false and the column is not a key.
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	pks := make([]string, 0, 1)
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pks = append(pks, QuoteIdent(strings.TrimSpace(c.Name)))
		}
	}
	inlinePK := len(pks) == 1

	cols := make([]string, 0, len(t.Columns)+1)
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if seen[name] {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", name, fqn)
		}
		seen[name] = true
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		switch {
		case c.PrimaryKey && inlinePK:
			sb.WriteString(" PRIMARY KEY")
		case !c.Nullable && !c.PrimaryKey:
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}
	if len(pks) > 1 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}
