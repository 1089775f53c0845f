// Package naming derives SQL-safe identifiers from file names and CSV
// headers. Every result is a valid unquoted PostgreSQL identifier: lowercase
// ASCII letters, digits and underscores, not starting with a digit, at most
// 63 bytes, and never a reserved keyword.
package naming

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLen is PostgreSQL's NAMEDATALEN-1.
const MaxIdentifierLen = 63

// Identifier lowercases s, strips accents, and collapses every run of
// characters outside [a-z0-9] into a single underscore.
func Identifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	// Decompose, drop nonspacing marks, recompose: "São Paulo" -> "sao paulo".
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	name := strings.Trim(b.String(), "_")
	switch {
	case name == "":
		name = "t"
	case name[0] >= '0' && name[0] <= '9':
		name = "t_" + name
	}
	if reserved[name] {
		name += "_t"
	}
	return truncate(name)
}

// TableFromPath returns the table name for a data file: its base name with
// the extension and the given suffix removed, passed through Identifier.
func TableFromPath(path, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if suffix != "" {
		stem = strings.TrimSuffix(stem, suffix)
	}
	return Identifier(stem)
}

// Year returns the last four-digit run of a file's base name when it is a
// plausible year, as in "geodata_..._por_municipio_2024.csv".
func Year(path string) (int, bool) {
	base := filepath.Base(path)
	year, ok := 0, false
	run := 0
	for i := 0; i <= len(base); i++ {
		if i < len(base) && base[i] >= '0' && base[i] <= '9' {
			run++
			continue
		}
		if run == 4 {
			y := 0
			for _, c := range base[i-4 : i] {
				y = y*10 + int(c-'0')
			}
			if y >= 1900 && y <= 2999 {
				year, ok = y, true
			}
		}
		run = 0
	}
	return year, ok
}

// IsSafe reports whether s can be emitted unquoted.
func IsSafe(s string) bool {
	if s == "" || len(s) > MaxIdentifierLen || reserved[s] {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

// truncate keeps the first 10 and last 53 bytes of an over-long name; year
// suffixes such as "_2024" stay distinguishable that way.
func truncate(s string) string {
	if len(s) > MaxIdentifierLen {
		return s[:10] + s[len(s)-53:]
	}
	return s
}

// reserved holds the PostgreSQL keywords that cannot be used as unquoted
// table or column names.
var reserved = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
	"case": true, "cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "current_catalog": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true,
	"deferrable": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "from": true, "grant": true, "group": true, "having": true,
	"in": true, "initially": true, "intersect": true, "into": true,
	"lateral": true, "leading": true, "limit": true, "localtime": true,
	"localtimestamp": true, "not": true, "null": true, "offset": true, "on": true,
	"only": true, "or": true, "order": true, "placing": true, "primary": true,
	"references": true, "returning": true, "select": true, "session_user": true,
	"some": true, "symmetric": true, "table": true, "then": true, "to": true,
	"trailing": true, "true": true, "union": true, "unique": true, "user": true,
	"using": true, "variadic": true, "when": true, "where": true, "window": true,
	"with": true,
}
