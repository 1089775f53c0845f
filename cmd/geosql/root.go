package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"geosql/internal/config"
)

// errFilesFailed is returned after a batch in which at least one file
// failed; the per-file errors have already been reported.
var errFilesFailed = errors.New("one or more files failed")

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath     string
	variant        string
	job            string
	verbose        bool
	workers        int
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "geosql",
		Short: "Join IBGE tables to reference boundaries and emit PostGIS SQL",
		Long: `geosql reads indicator tables keyed by a municipality or census sector
code, attaches the matching boundary and attributes from a GeoPackage, and
writes one PostGIS load script per table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "pipeline config JSON path (optional)")
	f.StringVar(&g.variant, "variant", "", "preset: municipal or sector (default from config, else municipal)")
	f.StringVar(&g.job, "job", "", "job label for logs and metrics")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logs")
	f.IntVar(&g.workers, "workers", 1, "files processed concurrently")
	f.StringVar(&g.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides env METRICS_BACKEND)")
	f.StringVar(&g.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	f.StringVar(&g.statsdAddr, "statsd-addr", "", "DogStatsD address (overrides env DD_DOGSTATSD_ADDR)")

	root.AddCommand(newJoinCmd(g), newEmitCmd(g), newRunCmd(g), newUnifyCmd(g), newValidateCmd(g))
	return root
}

// setupLogger configures the standard logrus logger and returns a logger
// tagged with a fresh run id.
func (g *globalOptions) setupLogger(w io.Writer) log.FieldLogger {
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if g.verbose {
		log.SetLevel(log.DebugLevel)
	}
	return log.WithField("run", uuid.NewString())
}

// load builds the pipeline from the preset, the optional config file and
// the persistent flags the user set, then lints it. Warnings are printed;
// errors stop the command.
func (g *globalOptions) load(cmd *cobra.Command, apply func(*config.Pipeline)) (config.Pipeline, error) {
	var (
		p   config.Pipeline
		err error
	)
	if g.configPath != "" {
		p, err = config.Load(g.configPath, g.variant)
	} else {
		p, err = config.Default(g.variant)
	}
	if err != nil {
		return config.Pipeline{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("job") {
		p.Job = g.job
	}
	if flags.Changed("workers") {
		p.Runtime.Workers = g.workers
	}
	if apply != nil {
		apply(&p)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("configuration is invalid")
	}
	return p, nil
}
