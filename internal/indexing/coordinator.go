// Package indexing runs projection maintenance: draining the
// write-ahead queue, bounded by a worker pool sized from
// config.WriteAheadConfig.MaxParallelism. Stale files are reindexed
// only through write-ahead records (the auditor's Repair enqueues
// them); there is no separate stale-file scan.
// Concurrency shape follows the teacher's shard-spawn worker-bounding
// idiom (a fixed-size pool fed from a work queue), implemented here
// with golang.org/x/sync/errgroup for first-error propagation and
// context-based cancellation.
package indexing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"veriado/internal/analyzer"
	"veriado/internal/config"
	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/projection"
	"veriado/internal/store"
	"veriado/internal/telemetry"
)

// ContentSource resolves a file's current title/body/content-hash so
// the coordinator can recompute its projection. The aggregate's own
// storage is out of this module's scope; callers supply it.
type ContentSource interface {
	Load(ctx context.Context, id model.FileID) (title, body, contentHash string, err error)
}

// Coordinator drains the write-ahead queue (DrainOnce), honoring a
// cooperative pause token and per-iteration timeouts. It has no
// full stale-file reindex pass of its own.
type Coordinator struct {
	st       *store.Store
	content  ContentSource
	registry *analyzer.Registry
	profile  string
	cfg      config.WriteAheadConfig
	schema   int

	paused chan struct{} // closed while running; recreated on Pause
}

// New builds a Coordinator. profileName must already be validated
// against registry (config.Validate does this at startup).
func New(st *store.Store, content ContentSource, registry *analyzer.Registry, profileName string, cfg config.WriteAheadConfig, schemaVersion int) *Coordinator {
	c := &Coordinator{st: st, content: content, registry: registry, profile: profileName, cfg: cfg, schema: schemaVersion}
	c.paused = make(chan struct{})
	close(c.paused) // not paused initially: a closed channel never blocks a read
	return c
}

// Pause stops new drain iterations from starting until Resume is
// called. In-flight work finishes; nothing new is picked up.
func (c *Coordinator) Pause() {
	select {
	case <-c.paused:
		c.paused = make(chan struct{})
	default:
		// already paused
	}
}

// Resume lifts a prior Pause.
func (c *Coordinator) Resume() {
	select {
	case <-c.paused:
		// already running
	default:
		close(c.paused)
	}
}

func (c *Coordinator) waitUnlessPaused(ctx context.Context) error {
	select {
	case <-c.paused:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainOnce processes up to batchSize pending write-ahead records
// using up to cfg.MaxParallelism concurrent workers, within
// cfg.IterationTimeout. Returns the number of records successfully
// reconciled.
func (c *Coordinator) DrainOnce(ctx context.Context, batchSize int) (int, error) {
	if err := c.waitUnlessPaused(ctx); err != nil {
		return 0, err
	}

	timer := logging.StartTimer(logging.CategoryIndexing, "DrainOnce")
	defer timer.Stop()

	iterCtx, cancel := context.WithTimeout(ctx, c.cfg.IterationTimeout)
	defer cancel()

	pending, err := projection.ListPending(c.st.DB(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("indexing: list pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	profile, ok := c.registry.Get(c.profile)
	if !ok {
		return 0, model.Fatal("indexing.DrainOnce", fmt.Errorf("unknown analyzer profile %q", c.profile))
	}

	g, gctx := errgroup.WithContext(iterCtx)
	g.SetLimit(maxInt(1, c.cfg.MaxParallelism))

	var reconciled int64
	for _, rec := range pending {
		rec := rec
		g.Go(func() error {
			return c.reconcileOne(gctx, profile, rec, &reconciled)
		})
	}

	if err := g.Wait(); err != nil {
		logging.IndexingWarn("drain iteration ended early: %v", err)
		return int(reconciled), err
	}
	logging.Indexing("drained %d/%d write-ahead records", reconciled, len(pending))
	return int(reconciled), nil
}

func (c *Coordinator) reconcileOne(ctx context.Context, profile *analyzer.Profile, rec projection.PendingRecord, reconciled *int64) error {
	id, err := model.ParseFileID(rec.FileID)
	if err != nil {
		return fmt.Errorf("indexing: malformed file_id %q in write-ahead record: %w", rec.FileID, err)
	}

	title, body, contentHash, loadErr := c.content.Load(ctx, id)

	applyErr := c.st.WithTx(func(tx *sql.Tx) error {
		if loadErr != nil {
			// The file is gone: treat as a delete intent regardless of
			// what op was originally enqueued, since there's nothing left
			// to index.
			if err := projection.Delete(tx, id); err != nil {
				return err
			}
			return projection.Complete(tx, rec.Seq)
		}
		if rec.Op == model.OpDelete {
			if err := projection.Delete(tx, id); err != nil {
				return err
			}
			return projection.Complete(tx, rec.Seq)
		}
		_, err := projection.Upsert(tx, profile, c.schema, projection.Input{
			FileID: id, Title: title, Body: body, ContentHash: contentHash,
		}, time.Now())
		if err != nil {
			return err
		}
		return projection.Complete(tx, rec.Seq)
	})

	if applyErr == nil {
		atomic.AddInt64(reconciled, 1)
		telemetry.IncWriteAheadReconciled()
		return nil
	}

	if errors.Is(applyErr, model.ErrAnalyzerOrContentDrift) && loadErr == nil {
		// The CAS upsert saw the row change underneath it; the file
		// still loads fine, so force the overwrite instead of treating
		// this as a transient failure headed for the dead letter queue.
		forceErr := c.st.WithTx(func(tx *sql.Tx) error {
			_, err := projection.ForceReplace(tx, profile, c.schema, projection.Input{
				FileID: id, Title: title, Body: body, ContentHash: contentHash,
			}, time.Now())
			if err != nil {
				return err
			}
			return projection.Complete(tx, rec.Seq)
		})
		if forceErr == nil {
			atomic.AddInt64(reconciled, 1)
			telemetry.IncWriteAheadReconciled()
			return nil
		}
		applyErr = forceErr
	}

	telemetry.IncWriteAheadRetried()
	return c.st.WithTx(func(tx *sql.Tx) error {
		return projection.Retry(tx, rec, applyErr, c.cfg.MaxAttempts, time.Now())
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
