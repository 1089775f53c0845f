package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"

	"geosql/internal/config"
	"geosql/internal/datasource/file"
	"geosql/internal/ddl"
	"geosql/internal/geometry"
	"geosql/internal/metrics"
	"geosql/internal/naming"
	"geosql/internal/sqlgen"
)

// Emitter turns augmented tables into PostGIS load scripts.
type Emitter struct {
	cfg     config.Pipeline
	spatial sqlgen.Spatial
	log     log.FieldLogger
}

// NewEmitter checks the emission settings.
func NewEmitter(p config.Pipeline, logger log.FieldLogger) (*Emitter, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	t, err := geometry.ParseType(p.Emit.GeometryType)
	if err != nil {
		return nil, configError(err)
	}
	if p.Emit.SRID <= 0 {
		return nil, configError(fmt.Errorf("srid must be positive, got %d", p.Emit.SRID))
	}
	if p.Emit.GeometryColumn == "" || p.Emit.TargetGeometryColumn == "" {
		return nil, configError(errors.New("geometry column names are required"))
	}
	return &Emitter{
		cfg:     p,
		spatial: sqlgen.Spatial{Column: p.Emit.TargetGeometryColumn, SRID: p.Emit.SRID, Type: t, Dims: 2},
		log:     logger.WithField("stage", StageEmit),
	}, nil
}

// TableName returns the table an input file is loaded into.
func (e *Emitter) TableName(input string) string {
	if e.cfg.Emit.Table != "" {
		return e.cfg.Emit.Table
	}
	return naming.TableFromPath(input, e.cfg.Join.Suffix)
}

// OutputPath returns the script path for input.
func (e *Emitter) OutputPath(input string) string {
	return filepath.Join(e.cfg.Emit.OutputFolder, e.TableName(input)+".sql")
}

// Run emits every path, Workers at a time. Files that map to the same
// table fail after the first; so does every file when a table override
// is combined with more than one input.
func (e *Emitter) Run(ctx context.Context, paths []string) []Report {
	outs, conflicts := claimOutputs(paths, e.OutputPath)
	override := e.cfg.Emit.Table != "" && len(paths) > 1
	return Batch(ctx, paths, e.cfg.Runtime.Workers, StageEmit, func(ctx context.Context, i int, p string) Report {
		rep := Report{Stage: StageEmit, Input: p, Output: outs[i], Table: e.TableName(p)}
		if override {
			return e.finish(rep, configError(fmt.Errorf("table override %q needs a single input, got %d", e.cfg.Emit.Table, len(paths))), time.Now())
		}
		if err, bad := conflicts[i]; bad {
			return e.finish(rep, err, time.Now())
		}
		return e.File(ctx, p)
	})
}

// File emits the script for one augmented file.
func (e *Emitter) File(ctx context.Context, path string) Report {
	start := time.Now()
	rep := Report{Stage: StageEmit, Input: path, Output: e.OutputPath(path), Table: e.TableName(path)}
	logger := e.log.WithFields(log.Fields{"file": path, "table": rep.Table})

	tbl, err := readTable(ctx, path, config.Input{})
	if err != nil {
		return e.finish(rep, err, start)
	}
	gcol := e.cfg.Emit.GeometryColumn
	gi := tbl.Index(gcol)
	if gi < 0 {
		return e.finish(rep, configError(fmt.Errorf("geometry column %q not found", gcol)), start)
	}
	rep.Read = len(tbl.Rows)

	// Undecodable geometries drop the row here; unfit ones are dropped
	// by sqlgen. Both count as skipped.
	attrs := tbl.Drop(gcol)
	var (
		rows  [][]string
		geoms []geom.T
		orig  []int
	)
	for i, row := range tbl.Rows {
		var g geom.T
		if gi < len(row) && strings.TrimSpace(row[gi]) != "" {
			g, err = geometry.DecodeHex(row[gi])
			if err != nil {
				rep.GeometrySkipped++
				e.logSkip(logger, rep.GeometrySkipped, i, err)
				continue
			}
		}
		rows = append(rows, attrs.Rows[i])
		geoms = append(geoms, g)
		orig = append(orig, i)
	}

	cols := ddl.Infer(attrs.Columns, rows, ddl.Overrides{Text: e.cfg.Emit.TextColumns, Float: e.cfg.Emit.FloatColumns})
	st := sqlgen.Table{
		Schema:  e.cfg.Emit.Schema,
		Name:    rep.Table,
		Source:  filepath.Base(path),
		Columns: cols,
		Rows:    rows,
		Geoms:   geoms,
		Serial:  e.cfg.Emit.SerialID,
	}
	var stats sqlgen.Stats
	w, err := file.WriteAtomic(rep.Output, func(w io.Writer) error {
		var err error
		stats, err = sqlgen.Write(w, st, e.spatial)
		return err
	})
	if err != nil {
		return e.finish(rep, writeError(err), start)
	}
	for _, s := range stats.Skipped {
		rep.GeometrySkipped++
		e.logSkip(logger, rep.GeometrySkipped, orig[s.Row], s.Err)
	}
	rep.Inserted = stats.Inserted
	rep.Bytes, rep.Digest = w.Bytes, w.Digest
	if rep.GeometrySkipped > 0 {
		logger.Warnf("%d geometries skipped", rep.GeometrySkipped)
	}

	metrics.RecordRow(e.cfg.Job, metrics.KindInserted, rep.Inserted)
	metrics.RecordRow(e.cfg.Job, metrics.KindGeometrySkipped, rep.GeometrySkipped)
	logger.Infof("emitted: rows=%d inserted=%d skipped=%d -> %s", rep.Read, rep.Inserted, rep.GeometrySkipped, rep.Output)
	return e.finish(rep, nil, start)
}

func (e *Emitter) logSkip(logger log.FieldLogger, n, row int, err error) {
	if n > sampleLimit {
		return
	}
	logger.WithField("row", row+1).Warnf("geometry skipped: %v", err)
}

func (e *Emitter) finish(rep Report, err error, start time.Time) Report {
	rep.Duration = time.Since(start)
	if err != nil {
		rep.Err = &FileError{Path: rep.Input, Stage: StageEmit, Err: err}
		e.log.WithField("file", rep.Input).Error(err)
	}
	metrics.RecordStep(e.cfg.Job, StageEmit, err, rep.Duration)
	metrics.RecordFile(e.cfg.Job, StageEmit, err)
	return rep
}
