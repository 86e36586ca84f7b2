// Package registry implements C4: the global record of every projection
// (one model.MainRecord per root TMO id) and each projection's settings
// singleton (model.ConfigDoc). It is a thin validation layer over
// graphstore's registry CRUD — the store owns persistence, this package
// owns the state-machine rules spec §3 "Lifecycles" and §4.4 describe.
package registry

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// Registry manages MainRecord/ConfigDoc documents across projections.
type Registry struct {
	store *graphstore.Store
}

func New(store *graphstore.Store) *Registry {
	return &Registry{store: store}
}

// Get fetches a projection's MainRecord by its root TMO id.
func (r *Registry) Get(ctx context.Context, tmoID int64) (model.MainRecord, error) {
	return r.store.GetMainRecord(ctx, mainRecordKey(tmoID))
}

// List returns every registered projection, used by the orchestrator
// (C9) to discover work at startup.
func (r *Registry) List(ctx context.Context) ([]model.MainRecord, error) {
	return r.store.ListMainRecords(ctx)
}

// Register creates a new projection's MainRecord in StatusNew, failing
// if one already exists for this root TMO id (spec §4.4 "one
// registration per root tmo").
func (r *Registry) Register(ctx context.Context, tmoID int64, name string) (model.MainRecord, error) {
	if _, err := r.Get(ctx, tmoID); err == nil {
		return model.MainRecord{}, errors.NewProcessAlreadyStarted(fmt.Sprintf("projection for tmo %d already registered", tmoID))
	}
	rec := model.MainRecord{
		Key:      mainRecordKey(tmoID),
		Name:     name,
		TmoID:    tmoID,
		Status:   model.StatusNew,
		Database: config.DatabaseName(tmoID),
	}
	if err := r.store.PutMainRecord(ctx, rec); err != nil {
		return model.MainRecord{}, err
	}
	return rec, nil
}

// TransitionTo validates and applies a status change (spec §3):
//
//	New        -> In Process
//	In Process -> Complete | Error
//	Complete   -> In Process   (a rebuild or incremental batch starting)
//	Error      -> In Process   (a retry/rebuild after failure)
func (r *Registry) TransitionTo(ctx context.Context, tmoID int64, next model.Status, errDescription *string) error {
	rec, err := r.Get(ctx, tmoID)
	if err != nil {
		return err
	}
	if !validTransition(rec.Status, next) {
		return errors.NewInappropriateStatus(fmt.Sprintf("cannot transition projection %d from %s to %s", tmoID, rec.Status, next))
	}
	rec.Status = next
	rec.ErrorDescription = errDescription
	return r.store.PutMainRecord(ctx, rec)
}

func validTransition(from, to model.Status) bool {
	switch from {
	case model.StatusNew:
		return to == model.StatusInProcess
	case model.StatusInProcess:
		return to == model.StatusComplete || to == model.StatusError
	case model.StatusComplete, model.StatusError:
		return to == model.StatusInProcess
	default:
		return false
	}
}

// RecoverStaleInProcess implements spec §4.8's startup recovery rule: a
// projection left in "In Process" by a crashed worker is moved to
// "Error" so the orchestrator doesn't mistake it for live progress.
func (r *Registry) RecoverStaleInProcess(ctx context.Context) ([]model.MainRecord, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	recovered := make([]model.MainRecord, 0)
	for _, rec := range all {
		if rec.Status != model.StatusInProcess {
			continue
		}
		msg := "process interrupted by restart"
		rec.Status = model.StatusError
		rec.ErrorDescription = &msg
		if err := r.store.PutMainRecord(ctx, rec); err != nil {
			return nil, err
		}
		recovered = append(recovered, rec)
	}
	return recovered, nil
}

// PutConfig upserts the settings singleton for a projection's database.
func (r *Registry) PutConfig(ctx context.Context, database string, doc model.ConfigDoc) error {
	return r.store.PutConfigDoc(ctx, database, doc)
}

// GetConfig fetches the settings singleton for a projection's database.
// key is always model.ConfigKeyStartFrom in practice: that is the only
// key any ConfigDoc is ever persisted under (spec §3's other names are
// field labels on that one document, not alternate storage keys).
func (r *Registry) GetConfig(ctx context.Context, database, key string) (model.ConfigDoc, error) {
	return r.store.GetConfigDoc(ctx, database, key)
}

// Delete removes a projection's registry entry entirely, called by the
// change-stream updater when the root TMO itself is deleted (spec §4.7).
// Unlike TransitionTo this is not a lifecycle transition — the record
// stops existing rather than moving to a new Status.
func (r *Registry) Delete(ctx context.Context, tmoID int64) error {
	return r.store.DeleteMainRecord(ctx, mainRecordKey(tmoID))
}

func mainRecordKey(tmoID int64) string {
	return fmt.Sprintf("main_%d", tmoID)
}
