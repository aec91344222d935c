package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/luzparatodos-am/localidades-backend/internal/basin"
	"github.com/luzparatodos-am/localidades-backend/internal/localidades"
	"github.com/luzparatodos-am/localidades-backend/internal/observability"
)

// Mode selects what a run does with its candidates.
type Mode string

const (
	// ModeReload clears every locality, reseeds the basin catalog and inserts.
	ModeReload Mode = "reload"
	// ModeUpsert keeps stored rows and upserts on the natural key.
	ModeUpsert Mode = "upsert"
	// ModeFixture writes a JSON fixture and leaves the store alone.
	ModeFixture Mode = "fixture"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeReload, ModeUpsert, ModeFixture:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want reload, upsert or fixture)", s)
}

// ErrRunInProgress is returned when another run holds the runner.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// Store is the persistence a run writes to.
type Store interface {
	Insert(ctx context.Context, l *localidades.Locality) error
	Upsert(ctx context.Context, l *localidades.Locality) error
	ClearAll(ctx context.Context) (int64, error)
	ReplaceBasins(ctx context.Context, names []string) (map[string]uint, error)
	EnsureBasins(ctx context.Context, names []string) (map[string]uint, error)
}

// Publisher receives the localities a run stored.
type Publisher interface {
	Publish(ctx context.Context, locs []localidades.Locality) error
}

// Options configures one run.
type Options struct {
	Mode    Mode
	Profile Profile
	// Fixture receives the JSON document in ModeFixture.
	Fixture io.Writer
}

// Runner executes ingestion runs one at a time.
type Runner struct {
	store     Store
	catalog   *basin.Catalog
	logger    *slog.Logger
	metrics   *observability.Metrics
	publisher Publisher

	mu sync.Mutex
}

func NewRunner(store Store, catalog *basin.Catalog, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{store: store, catalog: catalog, logger: logger, metrics: metrics}
}

// WithPublisher sets the change feed. A nil publisher disables it.
func (r *Runner) WithPublisher(p Publisher) *Runner {
	r.publisher = p
	return r
}

// run holds the state of one invocation.
type run struct {
	opts     Options
	dedup    *Deduplicator
	resolver *basin.Resolver
	fixture  fixtureBuilder
	stored   []localidades.Locality
}

// Run reads every sheet of the profile from sheets. Row and schema problems
// are counted in the report; I/O and store failures abort the run.
func (r *Runner) Run(ctx context.Context, sheets SheetReader, opts Options) (*Report, error) {
	if !r.mu.TryLock() {
		r.metrics.IngestRuns.WithLabelValues(string(opts.Mode), "busy").Inc()
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	rep, err := r.run(ctx, sheets, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.IngestRuns.WithLabelValues(string(opts.Mode), outcome).Inc()
	if rep != nil {
		r.metrics.IngestDuration.WithLabelValues(string(opts.Mode)).Observe(rep.Duration().Seconds())
	}
	return rep, err
}

func (r *Runner) run(ctx context.Context, sheets SheetReader, opts Options) (*Report, error) {
	if len(opts.Profile.Schemas) == 0 {
		return nil, errors.New("profile has no sheets")
	}
	if opts.Mode == ModeFixture && opts.Fixture == nil {
		return nil, errors.New("fixture mode needs an output")
	}
	if opts.Mode != ModeFixture && r.store == nil {
		return nil, fmt.Errorf("%s mode needs a store", opts.Mode)
	}

	rep := &Report{
		Mode:      opts.Mode,
		Profile:   opts.Profile.Name,
		Catalog:   r.catalog.Version,
		StartedAt: clock.Now(),
	}
	st := &run{opts: opts, dedup: NewDeduplicator()}

	switch opts.Mode {
	case ModeReload:
		cleared, err := r.store.ClearAll(ctx)
		if err != nil {
			return nil, err
		}
		rep.Cleared = cleared
		idx, err := r.store.ReplaceBasins(ctx, r.catalog.Basins)
		if err != nil {
			return nil, err
		}
		rep.Basins = len(idx)
		st.resolver = basin.NewResolver(r.catalog.Table, idx)
	case ModeUpsert:
		idx, err := r.store.EnsureBasins(ctx, r.catalog.Basins)
		if err != nil {
			return nil, err
		}
		rep.Basins = len(idx)
		st.resolver = basin.NewResolver(r.catalog.Table, idx)
	case ModeFixture:
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}

	r.logger.Info("ingestion started", "mode", opts.Mode, "profile", opts.Profile.Name, "catalog", r.catalog.Version)

	for _, schema := range opts.Profile.Schemas {
		sr, err := r.runSheet(ctx, sheets, schema, st)
		rep.Sheets = append(rep.Sheets, sr)
		if err != nil {
			rep.FinishedAt = clock.Now()
			return rep, err
		}
	}

	if opts.Mode == ModeFixture {
		if err := WriteFixture(opts.Fixture, st.fixture.records); err != nil {
			return rep, err
		}
	}
	r.publish(ctx, st.stored)

	rep.FinishedAt = clock.Now()
	r.logger.Info("ingestion finished",
		"mode", opts.Mode,
		"stored", rep.Stored(),
		"failed", rep.Failed(),
		"duplicates", rep.Duplicates(),
		"dropped", rep.Dropped(),
		"sheet_errors", len(rep.SheetErrors()),
		"duration", rep.Duration(),
	)
	return rep, nil
}

func schemaDefect(err error) bool {
	return errors.Is(err, ErrSheetNotFound) ||
		errors.Is(err, ErrHeaderMissing) ||
		errors.Is(err, ErrInvalidSchema)
}

func (r *Runner) runSheet(ctx context.Context, sheets SheetReader, schema Schema, st *run) (SheetReport, error) {
	sr := SheetReport{
		Sheet:    schema.Sheet,
		Schema:   schema.Name,
		Source:   string(schema.Source),
		Dropped:  map[DropReason]int{},
		Defaults: map[Field]int{},
	}
	log := r.logger.With("sheet", schema.Sheet, "schema", schema.Name)

	src, err := sheets.Rows(schema.Sheet)
	if err != nil {
		if schemaDefect(err) {
			log.Warn("sheet skipped", "error", err)
			sr.Error = err.Error()
			return sr, nil
		}
		return sr, err
	}
	defer src.Close()

	ex, err := NewExtraction(src, schema)
	if err != nil {
		if schemaDefect(err) {
			log.Warn("sheet skipped", "error", err)
			sr.Error = err.Error()
			return sr, nil
		}
		return sr, err
	}

	var fatal error
	for cand, err := range ex.Candidates() {
		if err != nil {
			fatal = err
			break
		}
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		key := cand.Locality.Key()
		if st.dedup.Seen(key) {
			sr.Duplicates++
			log.Debug("duplicate row skipped", "row", cand.Row, "community", key.Community, "municipality", key.Municipality)
			continue
		}
		st.dedup.Register(key)

		if st.opts.Mode == ModeFixture {
			st.fixture.add(cand.Locality)
			sr.Stored++
			continue
		}

		loc := cand.Locality
		loc.BasinID = st.resolver.Resolve(loc.Municipality)
		if loc.BasinID == nil {
			sr.Unresolved++
		}

		if err := r.save(ctx, st.opts.Mode, &loc); err != nil {
			if errors.Is(err, localidades.ErrDuplicate) {
				sr.Failed++
				log.Warn("row rejected", "row", cand.Row, "error", err)
				continue
			}
			fatal = err
			break
		}
		sr.Stored++
		st.stored = append(st.stored, loc)
	}

	stats := ex.Stats()
	sr.Rows = stats.Rows
	sr.Candidates = stats.Candidates
	for k, v := range stats.Dropped {
		sr.Dropped[k] = v
		r.metrics.IngestDropped.WithLabelValues(schema.Sheet, string(k)).Add(float64(v))
	}
	for k, v := range stats.Defaults {
		sr.Defaults[k] = v
		r.metrics.IngestDefaults.WithLabelValues(string(k)).Add(float64(v))
	}
	r.metrics.IngestRecords.WithLabelValues(schema.Sheet, "read").Add(float64(sr.Rows))
	r.metrics.IngestRecords.WithLabelValues(schema.Sheet, "stored").Add(float64(sr.Stored))
	r.metrics.IngestRecords.WithLabelValues(schema.Sheet, "duplicate").Add(float64(sr.Duplicates))
	r.metrics.IngestRecords.WithLabelValues(schema.Sheet, "failed").Add(float64(sr.Failed))

	log.Info("sheet processed",
		"rows", sr.Rows,
		"stored", sr.Stored,
		"duplicates", sr.Duplicates,
		"failed", sr.Failed,
		"unresolved_basin", sr.Unresolved,
	)
	return sr, fatal
}

func (r *Runner) save(ctx context.Context, mode Mode, l *localidades.Locality) error {
	if mode == ModeReload {
		return r.store.Insert(ctx, l)
	}
	return r.store.Upsert(ctx, l)
}

func (r *Runner) publish(ctx context.Context, locs []localidades.Locality) {
	if r.publisher == nil || len(locs) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, locs); err != nil {
		r.logger.Warn("change feed publish failed", "count", len(locs), "error", err)
		return
	}
	r.metrics.ChangesPublished.Add(float64(len(locs)))
}
