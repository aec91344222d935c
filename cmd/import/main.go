// Command import loads the survey workbook into the locality store, or
// exports it as a JSON fixture.
//
// Usage:
//
//	go run ./cmd/import -file localidades.xlsx -mode reload
//	go run ./cmd/import -file localidades.xlsx -mode fixture -out localidades.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/config"
	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/events"
	"github.com/luzparatodos-am/localidades-backend/internal/ingest"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
)

// importLockKey serializes imports across processes sharing one Postgres.
const importLockKey int64 = 0x4c6f63616c

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		file     = flag.String("file", "", "path to the survey workbook (.xlsx)")
		modeFlag = flag.String("mode", "upsert", "reload, upsert or fixture")
		profile  = flag.String("profile", "", "sheet profile: import or fixture (default depends on mode)")
		catalog  = flag.String("catalog", "", "basin catalog YAML (default: embedded, or BASIN_CATALOG)")
		out      = flag.String("out", "localidades.json", "fixture output path")
		lock     = flag.Bool("advisory-lock", false, "hold a Postgres advisory lock for the run")
		dryRun   = flag.Bool("dry-run", false, "read and report without writing anything")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		return errors.New("missing required flag: -file")
	}
	mode, err := ingest.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	if *dryRun {
		mode = ingest.ModeFixture
	}

	profileName := *profile
	if profileName == "" {
		profileName = ingest.ImportProfile.Name
		if mode == ingest.ModeFixture && !*dryRun {
			profileName = ingest.FixtureProfile.Name
		}
	}
	prof, err := ingest.ProfileByName(profileName)
	if err != nil {
		return err
	}

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

	catalogPath := cfg.BasinCatalog
	if *catalog != "" {
		catalogPath = *catalog
	}
	cat, err := basin.Load(catalogPath)
	if err != nil {
		return err
	}

	wb, err := ingest.OpenWorkbook(*file)
	if err != nil {
		return err
	}
	defer wb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := ingest.Options{Mode: mode, Profile: prof}
	metrics := observability.NewMetrics()

	var rep *ingest.Report
	if mode == ingest.ModeFixture {
		runner := ingest.NewRunner(nil, cat, logger, metrics)
		if *dryRun {
			opts.Fixture = io.Discard
			rep, err = runner.Run(ctx, wb, opts)
		} else {
			f, cerr := os.Create(*out)
			if cerr != nil {
				return fmt.Errorf("create fixture: %w", cerr)
			}
			rep, err = exportFixture(ctx, runner, wb, opts, f)
		}
	} else {
		d, cerr := db.Connect(cfg, logger)
		if cerr != nil {
			return cerr
		}
		if err := localidades.Migrate(d); err != nil {
			return err
		}
		runner := ingest.NewRunner(localidades.NewStore(d), cat, logger, metrics)
		if cfg.ChangeFeedEnabled() {
			pub := events.NewPublisher(cfg, logger)
			defer pub.Close()
			runner.WithPublisher(pub)
		}

		body := func(ctx context.Context) error {
			var rerr error
			rep, rerr = runner.Run(ctx, wb, opts)
			return rerr
		}
		if *lock {
			err = db.WithAdvisoryLock(ctx, d, importLockKey, body)
		} else {
			err = body(ctx)
		}
	}

	if rep != nil {
		rep.Print(os.Stdout)
		for _, e := range rep.SheetErrors() {
			logger.Warn("sheet not imported", "error", e)
		}
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", *file, err)
	}
	if mode == ingest.ModeFixture && !*dryRun {
		logger.Info("fixture written", "path", *out, "records", rep.Stored())
	}
	return nil
}

// exportFixture runs a fixture export into dst and closes it. A failed close
// fails the export, since the last buffered bytes may be lost.
func exportFixture(ctx context.Context, runner *ingest.Runner, sheets ingest.SheetReader, opts ingest.Options, dst io.WriteCloser) (*ingest.Report, error) {
	opts.Fixture = dst
	rep, err := runner.Run(ctx, sheets, opts)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close fixture: %w", cerr)
	}
	return rep, err
}
