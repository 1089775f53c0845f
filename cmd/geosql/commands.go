package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"geosql/internal/config"
	"geosql/internal/pipeline"
)

type joinFlags struct {
	file, list, dir, pattern string
	reference, layer         string
	missing, output          string
}

func (f *joinFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.file, "input", "", "single input table (overrides the pattern)")
	fl.StringVar(&f.list, "list", "", "text file with one input path per line")
	fl.StringVar(&f.dir, "dir", "", "directory searched with --pattern")
	fl.StringVar(&f.pattern, "pattern", "", "glob selecting the input tables")
	fl.StringVar(&f.reference, "reference", "", "reference GeoPackage path")
	fl.StringVar(&f.layer, "layer", "", "reference layer (default: the only one)")
	fl.StringVar(&f.missing, "missing", "", "unmatched rows: drop or keep")
	fl.StringVar(&f.output, "join-output", "", "folder for the augmented tables")
}

func (f *joinFlags) apply(cmd *cobra.Command, p *config.Pipeline) {
	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("input", &p.Input.File, f.file)
	set("list", &p.Input.List, f.list)
	set("dir", &p.Input.Dir, f.dir)
	set("pattern", &p.Input.Pattern, f.pattern)
	if fl.Changed("reference") {
		p.Reference.Folder, p.Reference.File = "", f.reference
	}
	set("layer", &p.Reference.Layer, f.layer)
	set("missing", &p.Join.Missing, f.missing)
	set("join-output", &p.Join.OutputFolder, f.output)
}

type emitFlags struct {
	inputDir, output, table, schema, geometryType string
	srid                                           int
	serialID                                       bool
}

func (f *emitFlags) bind(cmd *cobra.Command, standalone bool) {
	fl := cmd.Flags()
	if standalone {
		fl.StringVar(&f.inputDir, "input-dir", "", "folder of augmented tables (default: the join output folder)")
		fl.StringVar(&f.table, "table", "", "table name override (single input only)")
	}
	fl.StringVar(&f.output, "sql-output", "", "folder for the SQL scripts")
	fl.StringVar(&f.schema, "schema", "", "target schema")
	fl.StringVar(&f.geometryType, "geometry-type", "", "POLYGON or MULTIPOLYGON")
	fl.IntVar(&f.srid, "srid", 0, "spatial reference id of the geometries")
	fl.BoolVar(&f.serialID, "serial-id", false, "prepend an id SERIAL PRIMARY KEY column")
}

func (f *emitFlags) apply(cmd *cobra.Command, p *config.Pipeline) {
	fl := cmd.Flags()
	if fl.Lookup("input-dir") != nil && fl.Changed("input-dir") {
		p.Emit.InputDir = f.inputDir
	}
	if fl.Lookup("table") != nil && fl.Changed("table") {
		p.Emit.Table = f.table
	}
	if fl.Changed("sql-output") {
		p.Emit.OutputFolder = f.output
	}
	if fl.Changed("schema") {
		p.Emit.Schema = f.schema
	}
	if fl.Changed("geometry-type") {
		p.Emit.GeometryType = f.geometryType
	}
	if fl.Changed("srid") {
		p.Emit.SRID = f.srid
	}
	if fl.Changed("serial-id") {
		p.Emit.SerialID = f.serialID
	}
}

func newJoinCmd(g *globalOptions) *cobra.Command {
	jf := &joinFlags{}
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Attach reference geometry and attributes to the input tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.load(cmd, func(p *config.Pipeline) { jf.apply(cmd, p) })
			if err != nil {
				return err
			}
			return g.execute(cmd, p, true, false)
		},
	}
	jf.bind(cmd)
	return cmd
}

func newEmitCmd(g *globalOptions) *cobra.Command {
	ef := &emitFlags{}
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Render augmented tables as PostGIS load scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.load(cmd, func(p *config.Pipeline) { ef.apply(cmd, p) })
			if err != nil {
				return err
			}
			return g.execute(cmd, p, false, true)
		},
	}
	ef.bind(cmd, true)
	return cmd
}

func newRunCmd(g *globalOptions) *cobra.Command {
	jf := &joinFlags{}
	ef := &emitFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join, then emit SQL for the tables just produced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.load(cmd, func(p *config.Pipeline) {
				jf.apply(cmd, p)
				ef.apply(cmd, p)
			})
			if err != nil {
				return err
			}
			return g.execute(cmd, p, true, true)
		},
	}
	jf.bind(cmd)
	ef.bind(cmd, false)
	return cmd
}

func newUnifyCmd(g *globalOptions) *cobra.Command {
	var (
		years        []int
		outputFolder string
		name         string
	)
	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Stack the yearly input tables into one table without geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.load(cmd, func(p *config.Pipeline) {
				fl := cmd.Flags()
				if fl.Changed("years") {
					p.Unify.Years = years
				}
				if fl.Changed("unify-output") {
					p.Unify.OutputFolder = outputFolder
				}
				if fl.Changed("name") {
					p.Unify.Name = name
				}
			})
			if err != nil {
				return err
			}
			logger := g.setupLogger(cmd.ErrOrStderr()).WithField("job", p.Job)
			flush := g.setupMetrics(p.Job, logger)
			defer flush()

			paths, err := pipeline.JoinInputs(p.Input)
			if err != nil {
				return err
			}
			rep, err := pipeline.Unify(cmd.Context(), p, paths, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntSliceVar(&years, "years", nil, "years to include, e.g. 2016,2017 (default: every input)")
	fl.StringVar(&outputFolder, "unify-output", "", "folder for the unified table")
	fl.StringVar(&name, "name", "", "unified file name without extension")
	return cmd
}

func newValidateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.load(cmd, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: variant=%s job=%s\n", p.Variant, p.Job)
			return nil
		},
	}
}

// execute runs the requested stages. When both run, emission covers only
// the files the join just wrote.
func (g *globalOptions) execute(cmd *cobra.Command, p config.Pipeline, doJoin, doEmit bool) error {
	logger := g.setupLogger(cmd.ErrOrStderr()).WithField("job", p.Job)
	flush := g.setupMetrics(p.Job, logger)
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	out := cmd.OutOrStdout()
	var all []pipeline.Report
	var emitInputs []string

	if doJoin {
		paths, err := pipeline.JoinInputs(p.Input)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			logger.Warnf("no input matches %q in %s", p.Input.Pattern, p.Input.Dir)
		}
		j, err := pipeline.NewJoiner(ctx, p, logger)
		if err != nil {
			return err
		}
		reps := j.Run(ctx, paths)
		all = append(all, reps...)
		emitInputs = pipeline.Outputs(reps)
	}

	if doEmit {
		if !doJoin {
			paths, err := pipeline.EmitInputs(p)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				logger.Warnf("no input matches %q in %s", p.Emit.Pattern, p.EmitInputDir())
			}
			emitInputs = paths
		}
		e, err := pipeline.NewEmitter(p, logger)
		if err != nil {
			return err
		}
		all = append(all, e.Run(ctx, emitInputs)...)
	}

	printSummary(out, all)
	logger.Debugf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	if pipeline.Summarize(all).Failed > 0 {
		return errFilesFailed
	}
	return nil
}

func printSummary(w io.Writer, reports []pipeline.Report) {
	for _, r := range reports {
		if r.Failed() {
			fmt.Fprintf(w, "%-4s %s: FAILED: %v\n", r.Stage, r.Input, r.Err)
			continue
		}
		switch r.Stage {
		case pipeline.StageJoin:
			fmt.Fprintf(w, "join %s: read=%d matched=%d, %d unmatched, dropped=%d -> %s\n",
				r.Input, r.Read, r.Matched, r.Unmatched, r.Dropped, r.Output)
		case pipeline.StageEmit:
			fmt.Fprintf(w, "emit %s: %d inserted, %d geometries skipped -> %s\n",
				r.Input, r.Inserted, r.GeometrySkipped, r.Output)
		}
	}
	t := pipeline.Summarize(reports)
	fmt.Fprintf(w, "summary: files=%d failed=%d read=%d matched=%d, %d unmatched, %d inserted, %d geometries skipped\n",
		t.Files, t.Failed, t.Read, t.Matched, t.Unmatched, t.Inserted, t.GeometrySkipped)
}
