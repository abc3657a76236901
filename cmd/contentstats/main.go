// Command contentstats analyses a Drupal database snapshot and writes a
// markdown report plus one CSV export per analysis.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/koustreak/contentstats/internal/config"
	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/database/mysql"
	"github.com/koustreak/contentstats/internal/database/postgres"
	"github.com/koustreak/contentstats/internal/database/sqlite"
	"github.com/koustreak/contentstats/internal/filestore"
	"github.com/koustreak/contentstats/internal/filestore/minio"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/koustreak/contentstats/internal/report"
	"github.com/koustreak/contentstats/internal/schema"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

type options struct {
	site       string
	siteSet    bool
	configPath string
	envFile    string
	publish    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// parseFlags parses the command line. Unknown flags and stray arguments
// are errors; the caller prints usage and exits 2.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	set := pflag.NewFlagSet("contentstats", pflag.ContinueOnError)
	set.SetOutput(stderr)
	set.Usage = func() { printUsage(set, stderr) }

	site := set.String("site", "", "Site label used in the output directory name and report header.")
	cfgPath := set.StringP("config", "c", "", "Optional YAML configuration file.")
	envFile := set.String("env-file", ".env", "Environment file loaded before reading configuration (ignored if missing).")
	publish := set.Bool("publish", false, "Upload the finished bundle to object storage (same as PUBLISH_ENABLED=true).")

	if err := set.Parse(args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			set.Usage()
		}
		return nil, err
	}
	if set.NArg() > 0 {
		set.Usage()
		return nil, fmt.Errorf("unexpected argument %q", set.Arg(0))
	}

	opts := &options{
		site:       *site,
		siteSet:    set.Changed("site"),
		configPath: *cfgPath,
		envFile:    *envFile,
		publish:    *publish,
	}
	if opts.siteSet && report.SanitizeSite(opts.site) == "" {
		set.Usage()
		return nil, errors.New("--site needs a non-empty name")
	}
	return opts, nil
}

func printUsage(set *pflag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: contentstats [--site=<name>] [--config <file>] [--publish]\n\n")
	fmt.Fprintf(w, "Analyses a Drupal database snapshot and writes a report bundle.\n")
	fmt.Fprintf(w, "Database settings come from DB_DRIVER, DB_DSN or DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME.\n\n")
	fmt.Fprintf(w, "Flags:\n%s", set.FlagUsages())
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: reading %s: %v\n", opts.envFile, err)
		return exitFatal
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}
	if opts.siteSet {
		cfg.Output.Site = opts.site
	}
	if opts.publish {
		cfg.Publish.Enabled = true
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFatal
		}
	}

	logCfg := cfg.Logger()
	logCfg.Output = stderr
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := generate(ctx, cfg, log)
	if sum != nil {
		printSummary(stdout, sum)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFatal
	}

	if cfg.Publish.Enabled {
		if err := publish(ctx, cfg, sum.Dir, stdout, log); err != nil {
			fmt.Fprintf(stderr, "Error: publishing: %v\n", err)
			return exitFatal
		}
	}
	return exitOK
}

// generate connects, probes, ensures indexes and runs every analysis.
func generate(ctx context.Context, cfg *config.Config, log *logger.Logger) (*report.Summary, error) {
	dbCfg, err := cfg.DB()
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s database: %w", dbCfg.Driver, err)
	}
	defer db.Close()

	flags, err := schema.Probe(ctx, db)
	if err != nil {
		return nil, err
	}
	probed := logger.Fields{}
	for _, s := range schema.Subsystems() {
		probed[string(s)] = flags.Get(s)
	}
	log.InfoWith("probed optional subsystems", probed)

	if _, err := schema.EnsureIndexes(ctx, db, flags, log.Component("schema")); err != nil {
		return nil, err
	}

	now := time.Now()
	asm, err := report.New(report.DBSource{DB: db}, report.Catalog(), report.Options{
		Settings: cfg.Analysis,
		Driver:   string(dbCfg.Driver),
		Clock:    func() time.Time { return now },
		Logger:   log.Component("report"),
	})
	if err != nil {
		return nil, err
	}

	bundle, err := report.NewBundle(cfg.Output.Dir, cfg.Output.Site, now)
	if err != nil {
		return nil, err
	}
	log.Infof("writing bundle to %s", bundle.Dir)

	return asm.Run(ctx, bundle, flags)
}

func openDB(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		d, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case database.DriverPostgres:
		d, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case database.DriverSQLite:
		d, err := sqlite.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func publish(ctx context.Context, cfg *config.Config, dir string, stdout io.Writer, log *logger.Logger) error {
	storeCfg := cfg.Store()
	store, err := minio.New(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := filestore.Publish(ctx, store, storeCfg, dir, log.Component("publish"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Published: %d files to %s\n", len(res.Objects), res.Bucket)
	if res.ReportURL != "" {
		fmt.Fprintf(stdout, "Report link: %s\n", res.ReportURL)
	}
	return nil
}

func printSummary(w io.Writer, sum *report.Summary) {
	fmt.Fprintf(w, "Output: %s\n", sum.Dir)
	fmt.Fprintf(w, "Completed: %d  Skipped: %d  Failed: %d\n",
		sum.Count(report.StateCompleted), sum.Count(report.StateSkipped), sum.Count(report.StateFailed))
	fmt.Fprintf(w, "Subsystems: %s\n", sum.Flags)
	for _, o := range sum.Outcomes {
		line := fmt.Sprintf("  %-32s %-9s", o.Name, o.State)
		if o.State == report.StateCompleted {
			line += fmt.Sprintf(" %d rows", o.Rows)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
