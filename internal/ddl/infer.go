package ddl

import (
	"math"
	"strconv"
	"strings"
)

// Overrides pins the type of named columns regardless of content.
type Overrides struct {
	// Text columns are always TypeText.
	Text []string
	// Float columns are TypeDouble when every value is numeric; a single
	// non-numeric value still yields TypeText.
	Float []string
}

// Infer returns one nullable column per name, typed from the full column of
// values. Empty cells are nulls and do not constrain the type. The result
// depends only on the multiset of values in each column, never on row order.
//
// Rules, narrowest first:
//
//	all integers within int32, no leading zeros      INTEGER
//	all integers within int64, no leading zeros      BIGINT
//	all finite numbers, at least one non-integer     DOUBLE PRECISION
//	anything else, including an all-null column      VARCHAR
func Infer(columns []string, rows [][]string, o Overrides) []ColumnDef {
	text := toSet(o.Text)
	float := toSet(o.Float)

	defs := make([]ColumnDef, len(columns))
	for i, name := range columns {
		k := kindNull
		if !text[name] {
			for _, row := range rows {
				if i >= len(row) {
					continue
				}
				if k = widen(k, classify(row[i])); k == kindText {
					break
				}
			}
		}

		var typ string
		switch {
		case text[name] || k == kindText || k == kindNull:
			typ = TypeText
		case float[name], k == kindFloat:
			typ = TypeDouble
		case k == kindInt32:
			typ = TypeInteger
		default:
			typ = TypeBigInt
		}
		defs[i] = ColumnDef{Name: name, SQLType: typ, Nullable: true}
	}
	return defs
}

type kind int

const (
	kindNull kind = iota
	kindInt32
	kindInt64
	kindFloat
	kindText
)

// widen joins two kinds; the order of the constants is the lattice.
func widen(a, b kind) kind {
	if b > a {
		return b
	}
	return a
}

func classify(v string) kind {
	s := strings.TrimSpace(v)
	if s == "" {
		return kindNull
	}
	if isInteger(s) {
		if leadingZero(s) {
			return kindText
		}
		n, err := strconv.ParseInt(s, 10, 64)
		switch {
		case err != nil:
			// Out of int64 range; a double would drop digits.
			return kindText
		case n >= math.MinInt32 && n <= math.MaxInt32:
			return kindInt32
		default:
			return kindInt64
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || !decimalSyntax(s) {
		return kindText
	}
	return kindFloat
}

// isInteger reports an optionally signed run of ASCII digits.
func isInteger(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// leadingZero reports codes such as "007" whose zeros would be lost in a
// numeric column.
func leadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0'
}

// decimalSyntax rejects forms ParseFloat accepts but PostgreSQL numeric
// literals do not, such as hex floats and underscores.
func decimalSyntax(s string) bool {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == 'e', c == 'E', c == '+', c == '-':
		default:
			return false
		}
	}
	return true
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
