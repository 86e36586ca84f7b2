package changestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	rediscache "github.com/avataa-hq/avataa-graphs/internal/cache"
	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/dlq"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
	"github.com/avataa-hq/avataa-graphs/internal/retry"
	"github.com/avataa-hq/avataa-graphs/internal/staging"
)

// maxCascadeDepth bounds reclassification chains (create->update->...)
// so a persistently inconsistent projection can't spin a single
// message forever; spec §4.7 describes the cascade as "within the same
// message-handling turn", which is inherently finite in practice.
const maxCascadeDepth = 8

// Worker is the per-projection change-stream consumer (spec §4.7). One
// Worker handles exactly one projection database; the orchestrator (C9)
// owns one Worker goroutine per registered projection.
type Worker struct {
	database  string
	rootTmoID int64
	reader    *kafka.Reader
	store     *graphstore.Store
	registry  *registry.Registry
	inventory *inventory.Client
	staging   *staging.Store
	dlq       *dlq.Queue
	retry     retry.Policy
	cache     *SchemaCache
	redisCache *rediscache.Client

	tmo  *TmoOrchestrator
	tprm *TprmOrchestrator
	mo   *MoOrchestrator
	prm  *PrmOrchestrator

	logger *logging.Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewWorker builds a Worker for one projection, consuming from a
// consumer-group offset suffixed by database so every projection's
// progress is tracked independently (spec §6 "per-projection suffix
// isolates offsets").
func NewWorker(cfg config.KafkaConfig, retryCfg config.RetryConfig, database string, rootTmoID int64, store *graphstore.Store, reg *registry.Registry, inv *inventory.Client, stage *staging.Store, deadLetter *dlq.Queue, redisCache *rediscache.Client, logger *logging.Logger) *Worker {
	startOffset := kafka.LastOffset
	if cfg.Offset == "earliest" {
		startOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.URL},
		GroupID:     fmt.Sprintf("%s-%s", cfg.GroupID, database),
		Topic:       cfg.InventoryChangesTopic,
		StartOffset: startOffset,
	})
	cache := NewSchemaCache()
	return &Worker{
		database:  database,
		rootTmoID: rootTmoID,
		reader:    reader,
		store:     store,
		registry:  reg,
		inventory: inv,
		staging:   stage,
		dlq:       deadLetter,
		retry:     retry.FromConfig(retryCfg),
		cache:     cache,
		redisCache: redisCache,
		tmo:       NewTmoOrchestrator(store, cache, rootTmoID),
		tprm:      NewTprmOrchestrator(store, cache),
		mo:        NewMoOrchestrator(store, inv, cache),
		prm:       NewPrmOrchestrator(store, inv, cache),
		logger:    logger.With("projection", database),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run consumes messages until Stop is called or ctx is cancelled,
// seeding the schema cache first.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	if err := w.cache.Seed(ctx, w.store, w.inventory, w.redisCache, w.database); err != nil {
		return fmt.Errorf("seeding schema cache for %s: %w", w.database, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return w.reader.Close()
		default:
		}

		if err := w.waitWhileInProcess(ctx); err != nil {
			return err
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error("reading change-stream message", "error", err)
			continue
		}

		env, parseErr := w.envelope(msg)
		if parseErr != nil {
			w.logger.Warn("skipping malformed change-stream message", "error", parseErr)
			continue
		}

		stagedID, stageErr := w.staging.Stage(ctx, staging.Message{
			Topic:       msg.Topic,
			Partition:   int32(msg.Partition),
			Offset:      msg.Offset,
			Database:    w.database,
			EntityClass: string(env.Key.Class),
		}, json.RawMessage(env.Payload))
		if stageErr != nil {
			w.logger.Error("staging change-stream message", "key", msg.Key, "error", stageErr)
			continue
		}

		dispatchErr := retry.Do(ctx, w.retry, func(ctx context.Context) error {
			return w.dispatch(ctx, env, 0)
		})
		if dispatchErr != nil {
			w.logger.Error("processing change-stream message", "key", msg.Key, "error", dispatchErr)
			if err := w.dlq.Enqueue(ctx, w.database, string(env.Key.Class), 0, dispatchErr, map[string]interface{}{
				"op": string(env.Key.Op), "partition": msg.Partition, "offset": msg.Offset,
			}); err != nil {
				w.logger.Error("enqueuing failed message to dlq", "key", msg.Key, "error", err)
			}
			continue
		}
		if err := w.staging.MarkProcessed(ctx, stagedID); err != nil {
			w.logger.Error("marking staged message processed", "id", stagedID, "error", err)
		}
	}
}

// Stop signals Run to exit at the next poll boundary and blocks until
// it has (spec §5 "acknowledges by unsubscribing and exiting its poll
// loop at the next poll boundary").
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) waitWhileInProcess(ctx context.Context) error {
	for {
		rec, err := w.registry.Get(ctx, w.rootTmoID)
		if err != nil {
			return fmt.Errorf("reading projection %d status: %w", w.rootTmoID, err)
		}
		if rec.Status != model.StatusInProcess {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (w *Worker) envelope(msg kafka.Message) (Envelope, error) {
	key, err := ParseKey(string(msg.Key))
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Key: key, Database: w.database, Payload: msg.Value, Partition: int32(msg.Partition), Offset: msg.Offset}, nil
}

// dispatch decodes one envelope's entity list, routes each to its
// per-class orchestrator, and recursively processes whatever cascade
// events that orchestrator returns (spec §4.7's "reissued as
// create/update" and TMO-deletes-root cascades).
func (w *Worker) dispatch(ctx context.Context, env Envelope, depth int) error {
	if depth > maxCascadeDepth {
		return fmt.Errorf("cascade depth exceeded for %s:%s", env.Key.Class, env.Key.Op)
	}

	switch env.Key.Class {
	case ClassTMO:
		tmos, err := env.DecodeTmos()
		if err != nil {
			return err
		}
		for _, tmo := range tmos {
			resp, err := w.applyTmo(ctx, env.Key.Op, tmo)
			if err != nil {
				return err
			}
			if err := w.runCascade(ctx, resp, depth); err != nil {
				return err
			}
		}
	case ClassTPRM:
		tprms, err := env.DecodeTprms()
		if err != nil {
			return err
		}
		for _, tprm := range tprms {
			resp, err := w.applyTprm(ctx, env.Key.Op, tprm)
			if err != nil {
				return err
			}
			if err := w.runCascade(ctx, resp, depth); err != nil {
				return err
			}
		}
	case ClassMO:
		mos, err := env.DecodeMos()
		if err != nil {
			return err
		}
		for _, mo := range mos {
			if !w.cache.TmoActive(mo.TmoID) && env.Key.Op != OpDeleted {
				continue
			}
			resp, err := w.applyMo(ctx, env.Key.Op, mo)
			if err != nil {
				return err
			}
			if err := w.runCascade(ctx, resp, depth); err != nil {
				return err
			}
		}
	case ClassPRM:
		prms, err := env.DecodePrms()
		if err != nil {
			return err
		}
		for _, prm := range prms {
			resp, err := w.applyPrm(ctx, env.Key.Op, prm)
			if err != nil {
				return err
			}
			if err := w.runCascade(ctx, resp, depth); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unhandled change-stream class %q", env.Key.Class)
	}
	return nil
}

func (w *Worker) runCascade(ctx context.Context, resp OperationResponse, depth int) error {
	for _, ev := range resp.Create {
		if err := w.dispatchEvent(ctx, ev.Class, OpCreated, ev.Entity, depth+1); err != nil {
			return err
		}
	}
	for _, ev := range resp.Update {
		if err := w.dispatchEvent(ctx, ev.Class, OpUpdated, ev.Entity, depth+1); err != nil {
			return err
		}
	}
	for _, ev := range resp.Delete {
		if err := w.dispatchEvent(ctx, ev.Class, OpDeleted, ev.Entity, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) dispatchEvent(ctx context.Context, class EntityClass, op Op, entity interface{}, depth int) error {
	var resp OperationResponse
	var err error
	switch class {
	case ClassTMO:
		resp, err = w.applyTmo(ctx, op, entity.(model.Tmo))
	case ClassTPRM:
		resp, err = w.applyTprm(ctx, op, entity.(model.Tprm))
	case ClassMO:
		resp, err = w.applyMo(ctx, op, entity.(model.Mo))
	case ClassPRM:
		resp, err = w.applyPrm(ctx, op, entity.(model.Prm))
	default:
		return fmt.Errorf("unhandled cascade class %q", class)
	}
	if err != nil {
		return err
	}
	return w.runCascade(ctx, resp, depth)
}

func (w *Worker) applyTmo(ctx context.Context, op Op, tmo model.Tmo) (OperationResponse, error) {
	switch op {
	case OpDeleted:
		if tmo.ID == w.rootTmoID {
			return OperationResponse{}, w.deleteProjection(ctx)
		}
		return w.tmo.Delete(ctx, w.database, tmo.ID)
	default:
		return w.tmo.Upsert(ctx, w.database, tmo)
	}
}

func (w *Worker) applyTprm(ctx context.Context, op Op, tprm model.Tprm) (OperationResponse, error) {
	if op == OpDeleted {
		return w.tprm.Delete(ctx, w.database, tprm.ID)
	}
	return w.tprm.Upsert(ctx, w.database, tprm)
}

func (w *Worker) applyMo(ctx context.Context, op Op, mo model.Mo) (OperationResponse, error) {
	switch op {
	case OpCreated:
		return w.mo.Created(ctx, w.database, mo)
	case OpUpdated:
		return w.mo.Updated(ctx, w.database, mo)
	default:
		return w.mo.Deleted(ctx, w.database, mo.ID)
	}
}

func (w *Worker) applyPrm(ctx context.Context, op Op, prm model.Prm) (OperationResponse, error) {
	switch op {
	case OpCreated:
		return w.prm.Created(ctx, w.database, prm)
	case OpUpdated:
		return w.prm.Updated(ctx, w.database, prm)
	default:
		return w.prm.Deleted(ctx, w.database, prm.ID)
	}
}

// deleteProjection removes the whole database and its MainRecord when
// the root TMO itself is deleted (spec §4.7 "TMO.deleted ... if target
// is the root TMO, delete the projection").
func (w *Worker) deleteProjection(ctx context.Context) error {
	if err := w.store.DropDatabase(ctx, w.database); err != nil {
		return fmt.Errorf("dropping projection database %s: %w", w.database, err)
	}
	return w.registry.Delete(ctx, w.rootTmoID)
}
