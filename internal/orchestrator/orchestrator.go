// Package orchestrator implements C9: the process that tracks the set
// of registered projections, keeps one change-stream worker (C8) alive
// per projection, and restarts its view of the world every poll period
// (spec §4.8).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	rediscache "github.com/avataa-hq/avataa-graphs/internal/cache"
	"github.com/avataa-hq/avataa-graphs/internal/changestream"
	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/dlq"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
	"github.com/avataa-hq/avataa-graphs/internal/staging"
)

// projection is the orchestrator's in-memory mirror of one registered
// projection's worker (spec §4.8's `graphState` map).
type projection struct {
	status model.Status
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator supervises every registered projection's change-stream
// worker. It owns no graph data itself — it only spawns, reaps, and
// gates C8 workers against the registry.
type Orchestrator struct {
	cfg      *config.Config
	store    *graphstore.Store
	registry *registry.Registry
	staging  *staging.Store
	dlq      *dlq.Queue
	logger   *logging.Logger

	mu          sync.Mutex
	projections map[int64]*projection
	redisCache  *rediscache.Client
}

func New(cfg *config.Config, store *graphstore.Store, reg *registry.Registry, stage *staging.Store, deadLetter *dlq.Queue, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		registry:    reg,
		staging:     stage,
		dlq:         deadLetter,
		logger:      logger,
		projections: make(map[int64]*projection),
	}
}

// Run marks any projection left `In Process` by a crashed prior
// instance as `Error`, then polls the registry forever, spawning one
// worker per projection and reaping finished ones, until ctx is
// cancelled (spec §4.8).
func (o *Orchestrator) Run(ctx context.Context) error {
	redisCache, err := rediscache.NewClient(ctx, o.cfg.Cache)
	if err != nil {
		o.logger.Warn("schema cache disabled: redis unavailable", "error", err)
	} else {
		o.redisCache = redisCache
		defer redisCache.Close()
	}

	recovered, err := o.registry.RecoverStaleInProcess(ctx)
	if err != nil {
		return fmt.Errorf("recovering stale in-process projections: %w", err)
	}
	for _, rec := range recovered {
		o.logger.Warn("recovered stale in-process projection", "tmo_id", rec.TmoID)
	}

	interval := o.cfg.Orchestrator.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := o.reconcile(ctx); err != nil {
			o.logger.Error("reconciling projections", "error", err)
		}
		select {
		case <-ctx.Done():
			o.stopAll()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// reconcile diffs the persisted registry against the in-memory
// projection map: created keys spawn a worker, updated keys refresh
// the status gauge, deleted keys terminate and join their worker.
// Workers that exited on their own are reaped first.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	o.reap()

	records, err := o.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("listing projections: %w", err)
	}

	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		seen[rec.TmoID] = true

		o.mu.Lock()
		p, exists := o.projections[rec.TmoID]
		o.mu.Unlock()

		if !exists {
			o.spawn(ctx, rec)
			continue
		}
		p.status = rec.Status
	}

	o.mu.Lock()
	var stale []int64
	for tmoID := range o.projections {
		if !seen[tmoID] {
			stale = append(stale, tmoID)
		}
	}
	o.mu.Unlock()

	for _, tmoID := range stale {
		o.terminate(tmoID)
	}
	return nil
}

// reap drops finished projections from the map without blocking on
// ones still running.
func (o *Orchestrator) reap() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for tmoID, p := range o.projections {
		select {
		case <-p.done:
			delete(o.projections, tmoID)
		default:
		}
	}
}

// spawn dials a dedicated inventory channel for the new worker (spec
// §5 "each worker opens its own channel to avoid contention") and runs
// it in its own goroutine.
func (o *Orchestrator) spawn(ctx context.Context, rec model.MainRecord) {
	workerCtx, cancel := context.WithCancel(ctx)
	p := &projection{status: rec.Status, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.projections[rec.TmoID] = p
	o.mu.Unlock()

	logger := o.logger.With("tmo_id", rec.TmoID, "database", rec.Database)

	go func() {
		defer close(p.done)

		inv, err := inventory.Dial(workerCtx, o.cfg.Inventory, o.cfg.Retry)
		if err != nil {
			logger.Error("dialing inventory for projection worker", "error", err)
			return
		}
		defer inv.Close()

		worker := changestream.NewWorker(o.cfg.Kafka, o.cfg.Retry, rec.Database, rec.TmoID, o.store, o.registry, inv, o.staging, o.dlq, o.redisCache, logger)
		if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("change-stream worker exited", "error", err)
		}
	}()

	o.logger.Info("spawned change-stream worker", "tmo_id", rec.TmoID, "database", rec.Database)
}

// terminate cancels a projection's worker and waits for it to exit
// before dropping it from the map (spec §5 "acknowledges by exiting at
// the next poll boundary").
func (o *Orchestrator) terminate(tmoID int64) {
	o.mu.Lock()
	p, ok := o.projections[tmoID]
	if ok {
		delete(o.projections, tmoID)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	p.cancel()
	<-p.done
	o.logger.Info("terminated change-stream worker", "tmo_id", tmoID)
}

func (o *Orchestrator) stopAll() {
	o.mu.Lock()
	tmoIDs := make([]int64, 0, len(o.projections))
	for tmoID := range o.projections {
		tmoIDs = append(tmoIDs, tmoID)
	}
	o.mu.Unlock()
	for _, tmoID := range tmoIDs {
		o.terminate(tmoID)
	}
}

// Status reports a supervised projection's last-known status gauge.
func (o *Orchestrator) Status(tmoID int64) (model.Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.projections[tmoID]
	if !ok {
		return "", false
	}
	return p.status, true
}
