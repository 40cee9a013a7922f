// Package runner executes one batch run: change detection, scheduling,
// fan-out compilation, and the final cache flush.
package runner

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/recheck/internal/cache"
	"github.com/roach88/recheck/internal/oracle"
	"github.com/roach88/recheck/internal/registry"
	"github.com/roach88/recheck/internal/schema"
	"github.com/roach88/recheck/internal/scheduler"
)

// Options configures one run.
type Options struct {
	RegistryPath         string
	RegistrySnapshotPath string
	SchemaSnapshotPath   string
	CachePath            string

	Source   schema.Source
	Compiler oracle.Compiler

	// Workers bounds concurrent oracle calls. Zero means 4.
	Workers int

	// FlushAttempts and FlushBackoff control cache flush retries.
	// Zero values mean 3 attempts starting at 250ms.
	FlushAttempts int
	FlushBackoff  time.Duration

	Logger *slog.Logger
}

// Failure records one check whose recompilation failed. The check's
// prior cache entry, if any, is left untouched.
type Failure struct {
	Identity registry.Identity `json:"identity"`
	Err      string            `json:"error"`
}

// Summary is the user-visible outcome of a run. It is produced even
// under partial failure; only a fatal registry error prevents a
// schedule from being computed at all.
type Summary struct {
	RunID           string    `json:"run_id"`
	RegistryChanged bool      `json:"registry_changed"`
	ChangedTables   []string  `json:"changed_tables,omitempty"`
	Scheduled       int       `json:"scheduled"`
	Compiled        int       `json:"compiled"`
	Failed          int       `json:"failed"`
	Reused          int       `json:"reused"`
	Failures        []Failure `json:"failures,omitempty"`
}

// Run performs one batch run. The two change detectors execute
// concurrently (both are read-only against independent persisted
// state); their outputs feed the scheduler, whose work list fans out
// into independent compilation tasks. All successful puts happen before
// the single flush.
func Run(ctx context.Context, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	flushAttempts := opts.FlushAttempts
	if flushAttempts <= 0 {
		flushAttempts = 3
	}
	flushBackoff := opts.FlushBackoff
	if flushBackoff <= 0 {
		flushBackoff = 250 * time.Millisecond
	}

	summary := Summary{RunID: uuid.NewString()}

	// The registry is the fatal gate: without it no recompilation
	// decision can be made.
	checks, err := registry.Load(opts.RegistryPath)
	if err != nil {
		return summary, err
	}

	tables := unionOfInterest(checks)

	regDetector := &registry.Detector{
		RegistryPath: opts.RegistryPath,
		SnapshotPath: opts.RegistrySnapshotPath,
	}
	schemaDetector := &schema.Detector{
		Source:       opts.Source,
		SnapshotPath: opts.SchemaSnapshotPath,
	}

	var (
		regDet    registry.Detection
		schemaDet schema.Detection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regDet, err = regDetector.DetectChecks(checks)
		return err
	})
	g.Go(func() error {
		var err error
		schemaDet, err = schemaDetector.Detect(gctx, tables)
		return err
	})
	if err := g.Wait(); err != nil {
		return summary, err
	}

	for _, warn := range schemaDet.Warnings {
		log.Warn("schema read failed, treating table as empty", "error", warn)
	}
	log.Info("change detection complete",
		"registry_changed", regDet.Changed,
		"changed_tables", schemaDet.ChangedTables)

	summary.RegistryChanged = regDet.Changed
	summary.ChangedTables = schemaDet.ChangedTables

	cs := scheduler.NewChangeSet(regDet.Changed, schemaDet.ChangedTables)
	scheduled := scheduler.Schedule(cs, checks)
	summary.Scheduled = len(scheduled)

	wc := cache.Open(opts.CachePath)
	if warn := wc.LoadWarning(); warn != nil {
		log.Warn("workflow cache load failed, starting empty", "error", warn)
	}

	if len(scheduled) > 0 {
		compileAll(ctx, log, wc, opts.Compiler, scheduled, workers, compileStamp{
			runID:        summary.RunID,
			registryHash: regDet.Hash,
			schemaCols:   schemaDet.Current,
		}, &summary)
	}

	// Barrier above: every put has completed before the flush.
	if err := wc.Flush(flushAttempts, flushBackoff); err != nil {
		return summary, err
	}

	summary.Reused = wc.Len() - summary.Compiled
	if summary.Reused < 0 {
		summary.Reused = 0
	}
	return summary, nil
}

// compileStamp is the immutable-for-this-run state every entry records
// in its provenance.
type compileStamp struct {
	runID        string
	registryHash string
	schemaCols   map[string][]string
}

// compileAll fans the work list out over a bounded worker pool. A task
// that fails records a failure and leaves the prior cache entry
// untouched; it never blocks or invalidates the other tasks.
func compileAll(ctx context.Context, log *slog.Logger, wc *cache.Cache, compiler oracle.Compiler, scheduled []registry.CheckDefinition, workers int, stamp compileStamp, summary *Summary) {
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)
	for _, check := range scheduled {
		g.Go(func() error {
			artifacts, err := compiler.Compile(ctx, check, stamp.schemaCols)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("compilation failed", "identity", string(check.Identity()), "error", err)
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{
					Identity: check.Identity(),
					Err:      err.Error(),
				})
				return nil
			}

			wc.Put(check.Identity(), newEntry(stamp, artifacts))
			summary.Compiled++
			log.Debug("compiled check", "identity", string(check.Identity()))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Identity < summary.Failures[j].Identity
	})
}

func newEntry(stamp compileStamp, artifacts oracle.Artifacts) cache.Entry {
	now := time.Now().UTC()
	prov := cache.Provenance{
		RegistryHash: stamp.registryHash,
		SchemaCols:   stamp.schemaCols,
	}
	return cache.Entry{
		RunID: stamp.runID,
		Artifacts: []cache.Artifact{
			{Kind: cache.KindPlan, Payload: artifacts.Plan, CompiledAt: now, CompiledAgainst: prov},
			{Kind: cache.KindExecution, Payload: artifacts.Execution, CompiledAt: now, CompiledAgainst: prov},
		},
	}
}

// unionOfInterest is the sorted set of tables referenced by any check's
// target_table field.
func unionOfInterest(checks []registry.CheckDefinition) []string {
	seen := map[string]bool{}
	var tables []string
	for _, c := range checks {
		for _, t := range c.Targets() {
			if !seen[t] {
				seen[t] = true
				tables = append(tables, t)
			}
		}
	}
	sort.Strings(tables)
	return tables
}
