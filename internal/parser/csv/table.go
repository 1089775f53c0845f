// Package csv reads and writes whole delimited-text tables. Inputs are loaded
// into memory as records.Table; a malformed row is a file-level error because
// the table shape, and therefore the join and SQL schema, would be ambiguous.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"geosql/internal/records"
)

// Options configures ReadTable. The zero value reads comma-separated UTF-8.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// Encoding names the input charset: "", "utf-8", "latin1" or
	// "windows-1252". IBGE downloads are frequently Latin-1.
	Encoding string

	// TrimSpace trims surrounding whitespace from every value.
	TrimSpace bool

	// LazyQuotes tolerates bare quotes inside unquoted fields.
	LazyQuotes bool
}

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("csv: missing header row")

// ReadTable parses r into a Table. The first row is the header; its first
// cell loses any UTF-8 BOM. Header names are otherwise kept verbatim so
// output columns match the input exactly.
func ReadTable(r io.Reader, opt Options) (records.Table, error) {
	enc, err := Charset(opt.Encoding)
	if err != nil {
		return records.Table{}, err
	}
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	// FieldsPerRecord == 0 pins the width to the header's.

	header, err := cr.Read()
	if err == io.EOF {
		return records.Table{}, ErrNoHeader
	}
	if err != nil {
		return records.Table{}, fmt.Errorf("csv: read header: %w", err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")

	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return records.Table{}, fmt.Errorf("csv: header column %d is empty", i+1)
		}
		if seen[h] {
			return records.Table{}, fmt.Errorf("csv: duplicate header column %q", h)
		}
		seen[h] = true
		header[i] = h
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// *csv.ParseError carries the line number.
			return records.Table{}, fmt.Errorf("csv: %w", err)
		}
		if opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		rows = append(rows, row)
	}

	return records.Table{Columns: header, Rows: rows}, nil
}

// WriteTable writes t as comma-separated UTF-8 with a header row.
func WriteTable(w io.Writer, t records.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("csv: row %d has %d fields, header has %d", i+1, len(row), len(t.Columns))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Charset resolves an encoding name. A nil Encoding means UTF-8 passthrough.
func Charset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}
