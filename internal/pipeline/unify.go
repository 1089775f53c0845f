package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"geosql/internal/config"
	"geosql/internal/datasource/file"
	"geosql/internal/ddl"
	"geosql/internal/metrics"
	"geosql/internal/naming"
	"geosql/internal/parser/csv"
	"geosql/internal/records"
)

// StageUnify names the consolidation stage.
const StageUnify = "unify"

// UnifyReport describes a consolidated table.
type UnifyReport struct {
	Inputs  []string
	Years   []int
	Rows    int
	Codes   int
	Columns []string
	Output  string
	Bytes   int64
	Digest  uint64
}

// UnifyInputs keeps the paths whose file name carries one of years, in
// input order. An empty years list keeps every path.
func UnifyInputs(paths []string, years []int) []string {
	if len(years) == 0 {
		return paths
	}
	var out []string
	for _, p := range paths {
		if y, ok := naming.Year(p); ok && slices.Contains(years, y) {
			out = append(out, p)
		}
	}
	return out
}

// Unify stacks the input tables into one, without geometry columns. Columns
// are the union of the inputs in first-seen order; a column absent from a
// file is empty for its rows. Decimal columns are rounded and rows are
// ordered by code and year when both columns exist. Any unreadable input
// fails the whole consolidation.
func Unify(ctx context.Context, p config.Pipeline, paths []string, logger log.FieldLogger) (UnifyReport, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("stage", StageUnify)
	start := time.Now()
	rep, err := unify(ctx, p, paths, logger)
	metrics.RecordStep(p.Job, StageUnify, err, time.Since(start))
	metrics.RecordFile(p.Job, StageUnify, err)
	if err != nil {
		return UnifyReport{}, err
	}
	metrics.RecordRow(p.Job, metrics.KindRead, rep.Rows)
	logger.Infof("unified %d files: rows=%d codes=%d -> %s", len(rep.Inputs), rep.Rows, rep.Codes, rep.Output)
	return rep, nil
}

func unify(ctx context.Context, p config.Pipeline, paths []string, logger log.FieldLogger) (UnifyReport, error) {
	u := p.Unify
	inputs := UnifyInputs(paths, u.Years)
	if len(inputs) == 0 {
		return UnifyReport{}, configError(errors.New("no input file to unify"))
	}
	rep := UnifyReport{Inputs: inputs, Output: filepath.Join(u.OutputFolder, u.Name+".csv")}

	var tables []records.Table
	for _, path := range inputs {
		t, err := readTable(ctx, path, p.Input)
		if err != nil {
			return UnifyReport{}, &FileError{Path: path, Stage: StageUnify, Err: err}
		}
		t = t.Drop(u.GeometryColumns...)
		logger.WithField("file", path).Debugf("rows=%d", len(t.Rows))
		tables = append(tables, t)
		if y, ok := naming.Year(path); ok && !slices.Contains(rep.Years, y) {
			rep.Years = append(rep.Years, y)
		}
	}
	sort.Ints(rep.Years)
	for _, y := range u.Years {
		if !slices.Contains(rep.Years, y) {
			logger.Warnf("no input for year %d", y)
		}
	}

	out := stack(tables)
	var decimals []string
	for _, c := range ddl.Infer(out.Columns, out.Rows, ddl.Overrides{Text: p.Emit.TextColumns}) {
		if c.SQLType == ddl.TypeDouble {
			decimals = append(decimals, c.Name)
		}
	}
	if len(decimals) > 0 {
		out = out.Round(u.RoundDigits, decimals...)
	}

	ci, yi := out.Index(p.Join.CodeColumn), out.Index(u.YearColumn)
	if ci >= 0 && yi >= 0 {
		sort.SliceStable(out.Rows, func(a, b int) bool {
			if c := compareValues(out.Rows[a][ci], out.Rows[b][ci]); c != 0 {
				return c < 0
			}
			return compareValues(out.Rows[a][yi], out.Rows[b][yi]) < 0
		})
	}
	if ci >= 0 {
		seen := make(map[string]struct{}, len(out.Rows))
		for _, row := range out.Rows {
			seen[row[ci]] = struct{}{}
		}
		rep.Codes = len(seen)
	}
	rep.Rows = len(out.Rows)
	rep.Columns = out.Columns

	w, err := file.WriteAtomic(rep.Output, func(w io.Writer) error { return csv.WriteTable(w, out) })
	if err != nil {
		return UnifyReport{}, &FileError{Path: rep.Output, Stage: StageUnify, Err: writeError(err)}
	}
	rep.Bytes, rep.Digest = w.Bytes, w.Digest
	return rep, nil
}

// stack concatenates tables over the union of their columns.
func stack(tables []records.Table) records.Table {
	var out records.Table
	pos := map[string]int{}
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		for _, row := range t.Rows {
			nr := make([]string, len(out.Columns))
			for j, c := range t.Columns {
				if j < len(row) {
					nr[pos[c]] = row[j]
				}
			}
			out.Rows = append(out.Rows, nr)
		}
	}
	return out
}

// compareValues orders integers numerically and anything else as text;
// integers sort before text.
func compareValues(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(x, y)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func (r UnifyReport) String() string {
	return fmt.Sprintf("unify: files=%d years=%v rows=%d codes=%d -> %s", len(r.Inputs), r.Years, r.Rows, r.Codes, r.Output)
}
