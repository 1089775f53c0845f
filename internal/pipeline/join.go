package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"geosql/internal/config"
	"geosql/internal/datasource"
	"geosql/internal/datasource/file"
	"geosql/internal/gpkg"
	"geosql/internal/join"
	"geosql/internal/metrics"
	"geosql/internal/parser/csv"
	"geosql/internal/records"
)

// sampleLimit caps how many individual rejects are logged per file before
// only the count is reported.
const sampleLimit = 10

// Joiner attaches reference boundaries to tabular files. The reference is
// loaded once by NewJoiner and shared, read-only, by every file.
type Joiner struct {
	cfg     config.Pipeline
	index   *join.Index
	missing join.MissingPolicy
	log     log.FieldLogger
}

// NewJoiner validates the join settings and builds the reference index.
// Failures are ErrConfig: without a reference no file can be joined.
func NewJoiner(ctx context.Context, p config.Pipeline, logger log.FieldLogger) (*Joiner, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("stage", StageReference)

	missing, err := join.ParseMissing(p.Join.Missing)
	if err != nil {
		return nil, configError(err)
	}
	if strings.TrimSpace(p.Join.CodeColumn) == "" {
		return nil, configError(errors.New("join code column is required"))
	}

	start := time.Now()
	idx, err := loadReference(ctx, p)
	metrics.RecordStep(p.Job, StageReference, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	logger = logger.WithField("file", p.Reference.Path())
	logger.Infof("reference loaded: %d codes (width %d) in %s", idx.Len(), idx.Width, time.Since(start).Round(time.Millisecond))
	for _, c := range idx.Duplicates {
		logger.WithField("code", c).Warn("duplicate reference code, keeping first feature")
	}
	for _, r := range idx.Invalid {
		logger.WithFields(log.Fields{"fid": r.FID, "code": r.Code}).Warnf("invalid reference code: %v", r.Err)
	}
	for _, r := range idx.Unusable {
		logger.WithFields(log.Fields{"fid": r.FID, "code": r.Code}).Warnf("unusable reference feature: %v", r.Err)
	}
	metrics.RecordRow(p.Job, metrics.KindDuplicateCodes, len(idx.Duplicates))
	metrics.RecordRow(p.Job, metrics.KindInvalidCodes, len(idx.Invalid))

	return &Joiner{cfg: p, index: idx, missing: missing, log: logger.WithField("stage", StageJoin)}, nil
}

func loadReference(ctx context.Context, p config.Pipeline) (*join.Index, error) {
	path := p.Reference.Path()
	if path == "" {
		return nil, configError(errors.New("reference file is required"))
	}
	r, err := gpkg.Open(ctx, path)
	if err != nil {
		return nil, configError(err)
	}
	defer r.Close()

	layer, err := r.Layer(ctx, p.Reference.Layer)
	if err != nil {
		return nil, configError(err)
	}
	attrs := make([]join.Attribute, len(p.Reference.Attributes))
	cols := []string{p.Reference.CodeColumn}
	for i, a := range p.Reference.Attributes {
		attrs[i] = join.Attribute{Source: a.Source, Target: a.Target}
		cols = append(cols, a.Source)
	}
	features, err := r.ReadLayer(ctx, layer, cols)
	if err != nil {
		if errors.Is(err, gpkg.ErrColumn) {
			return nil, configError(err)
		}
		return nil, err
	}
	idx, err := join.BuildIndex(features, p.Reference.CodeColumn, attrs, p.Join.CodeWidth)
	if err != nil {
		return nil, configError(fmt.Errorf("reference %s: %w", path, err))
	}
	return idx, nil
}

// Index exposes the loaded reference.
func (j *Joiner) Index() *join.Index { return j.index }

// OutputPath returns where the augmented version of input is written.
func (j *Joiner) OutputPath(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(j.cfg.Join.OutputFolder, stem+j.cfg.Join.Suffix+".csv")
}

// Run joins every path, Workers at a time.
func (j *Joiner) Run(ctx context.Context, paths []string) []Report {
	outs, conflicts := claimOutputs(paths, j.OutputPath)
	return Batch(ctx, paths, j.cfg.Runtime.Workers, StageJoin, func(ctx context.Context, i int, p string) Report {
		if err, bad := conflicts[i]; bad {
			return j.finish(Report{Stage: StageJoin, Input: p, Output: outs[i]}, err, time.Now())
		}
		return j.File(ctx, p)
	})
}

// File joins one input file and writes its augmented copy.
func (j *Joiner) File(ctx context.Context, path string) Report {
	start := time.Now()
	rep := Report{Stage: StageJoin, Input: path, Output: j.OutputPath(path)}
	logger := j.log.WithField("file", path)

	in, err := readTable(ctx, path, j.cfg.Input)
	if err != nil {
		return j.finish(rep, err, start)
	}
	in = in.Drop(j.cfg.Join.DropColumns...)

	res, err := join.Join(in, j.index, join.Options{CodeColumn: j.cfg.Join.CodeColumn, Missing: j.missing})
	if err != nil {
		return j.finish(rep, configError(err), start)
	}
	rep.Read, rep.Matched, rep.Dropped = res.Read, res.Matched, res.Dropped
	rep.Unmatched = len(res.Unmatched)
	rep.Collisions = res.Collisions
	for i, m := range res.Unmatched {
		rep.UnmatchedCodes = append(rep.UnmatchedCodes, m.Code)
		if i < sampleLimit {
			f := logger.WithFields(log.Fields{"row": m.Row + 1, "code": m.Code})
			if m.Invalid {
				f.Warn("invalid code")
			} else {
				f.Debug("no reference match")
			}
		}
	}
	if rep.Unmatched > 0 {
		logger.Warnf("%d unmatched (%s)", rep.Unmatched, j.missing)
	}
	for _, c := range res.Collisions {
		logger.WithField("column", c).Warn("reference attribute not merged, input already has the column")
	}

	geomCol := j.cfg.Emit.GeometryColumn
	if geomCol == "" {
		geomCol = "geometry"
	}
	out, err := res.Records(geomCol)
	if err != nil {
		return j.finish(rep, configError(err), start)
	}
	if len(j.cfg.Join.RoundColumns) > 0 {
		out = out.Round(j.cfg.Join.RoundDigits, j.cfg.Join.RoundColumns...)
	}

	w, err := file.WriteAtomic(rep.Output, func(w io.Writer) error { return csv.WriteTable(w, out) })
	if err != nil {
		return j.finish(rep, writeError(err), start)
	}
	rep.Bytes, rep.Digest = w.Bytes, w.Digest

	metrics.RecordRow(j.cfg.Job, metrics.KindRead, rep.Read)
	metrics.RecordRow(j.cfg.Job, metrics.KindMatched, rep.Matched)
	metrics.RecordRow(j.cfg.Job, metrics.KindUnmatched, rep.Unmatched)
	logger.Infof("joined: read=%d matched=%d unmatched=%d dropped=%d -> %s", rep.Read, rep.Matched, rep.Unmatched, rep.Dropped, rep.Output)
	return j.finish(rep, nil, start)
}

func (j *Joiner) finish(rep Report, err error, start time.Time) Report {
	rep.Duration = time.Since(start)
	if err != nil {
		rep.Err = &FileError{Path: rep.Input, Stage: StageJoin, Err: err}
		j.log.WithField("file", rep.Input).Error(err)
	}
	metrics.RecordStep(j.cfg.Job, StageJoin, err, rep.Duration)
	metrics.RecordFile(j.cfg.Job, StageJoin, err)
	return rep
}

// readTable loads a delimited file. A missing or unparsable file is a
// configuration error for that file.
func readTable(ctx context.Context, path string, in config.Input) (records.Table, error) {
	return readSource(ctx, file.NewLocal(path), path, in)
}

func readSource(ctx context.Context, src datasource.Source, name string, in config.Input) (records.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records.Table{}, configError(err)
		}
		return records.Table{}, err
	}
	defer rc.Close()

	opt := csv.Options{Encoding: in.Encoding}
	if in.Comma != "" {
		c, _ := utf8.DecodeRuneInString(in.Comma)
		opt.Comma = c
	}
	t, err := csv.ReadTable(rc, opt)
	if err != nil {
		return records.Table{}, configError(fmt.Errorf("read %s: %w", name, err))
	}
	return t, nil
}
