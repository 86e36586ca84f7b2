// Package initializer implements C5: one-time projection bootstrap. It
// creates the projection's database and schema, stores the initial
// schema-layer (TMO/TPRM) snapshot, and publishes the MainRecord the
// orchestrator (C9) will later hand to the builder (C6). It never writes
// instance-layer (MO/PRM) data — that is the builder's job.
package initializer

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
)

// Initializer wires the inventory client, graph store, and registry
// needed to bootstrap a new projection.
type Initializer struct {
	inventory *inventory.Client
	store     *graphstore.Store
	registry  *registry.Registry
}

func New(inv *inventory.Client, store *graphstore.Store, reg *registry.Registry) *Initializer {
	return &Initializer{inventory: inv, store: store, registry: reg}
}

// Settings are the config.ConfigDoc fields an operator supplies when
// provisioning a new projection (spec §3).
type Settings struct {
	Name                 string
	StartFromTmoID       *int64
	StartFromTprmID      *int64
	TraceTmoID           *int64
	TraceTprmID          *int64
	GroupByTprmIDs       []int64
	DeleteOrphanBranches bool
}

// Bootstrap provisions a brand-new projection rooted at rootTmoID: it
// registers the MainRecord, creates and schemas the projection database,
// fetches and stores the TMO/TPRM schema layer, and persists the initial
// ConfigDoc — everything the builder needs before its first full pass
// (spec §4.4).
func (init *Initializer) Bootstrap(ctx context.Context, rootTmoID int64, settings Settings) (model.MainRecord, error) {
	rec, err := init.registry.Register(ctx, rootTmoID, settings.Name)
	if err != nil {
		return model.MainRecord{}, err
	}

	if err := init.store.EnsureDatabase(ctx, rec.Database, model.IfNotExistCreate); err != nil {
		return model.MainRecord{}, err
	}
	if err := init.store.EnsureSchema(ctx, rec.Database); err != nil {
		return model.MainRecord{}, err
	}

	if err := init.loadSchemaLayer(ctx, rec.Database, rootTmoID); err != nil {
		return model.MainRecord{}, err
	}

	doc := model.ConfigDoc{
		Key:                  model.ConfigKeyStartFrom,
		StartFromTmoID:       settings.StartFromTmoID,
		StartFromTprmID:      settings.StartFromTprmID,
		TraceTmoID:           settings.TraceTmoID,
		TraceTprmID:          settings.TraceTprmID,
		GroupByTprmIDs:       settings.GroupByTprmIDs,
		DeleteOrphanBranches: settings.DeleteOrphanBranches,
	}
	if err := init.registry.PutConfig(ctx, rec.Database, doc); err != nil {
		return model.MainRecord{}, err
	}

	return rec, nil
}

// loadSchemaLayer fetches the TMO tree and every TPRM definition under
// it, materializing TmoNode/TmoEdge pairs (spec §4.1 data model, §4.5
// step 1 "schema layer precedes instance layer").
func (init *Initializer) loadSchemaLayer(ctx context.Context, database string, rootTmoID int64) error {
	tmos, err := init.inventory.GetTmoTree(ctx, &rootTmoID)
	if err != nil {
		return fmt.Errorf("fetching tmo tree: %w", err)
	}

	var nodes []model.TmoNode
	var edges []model.TmoEdge
	var walk func(model.Tmo)
	walk = func(t model.Tmo) {
		nodes = append(nodes, model.TmoNode{
			Key:                   fmt.Sprintf("%d", t.ID),
			TmoID:                 t.ID,
			PID:                   t.PID,
			Name:                  t.Name,
			Enabled:               t.Enabled,
			GlobalUniqueness:      t.GlobalUniqueness,
			Virtual:               t.Virtual,
			Materialize:           t.Materialize,
			GeometryType:          t.GeometryType,
			LineType:              t.LineType,
			Icon:                  t.Icon,
			Label:                 t.Label,
			PointsConstraintByTmo: t.PointsConstraintByTmo,
			CommutationTprms:      t.CommutationTprms,
			ShowAsATable:          t.ShowAsATable,
			BusyParameterGroups:   t.BusyParameterGroups,
		})
		if t.PID != nil {
			edges = append(edges, model.TmoEdge{
				From:     fmt.Sprintf("%d", *t.PID),
				To:       fmt.Sprintf("%d", t.ID),
				LinkType: model.LinkTypePID,
				Enabled:  t.Enabled,
			})
		}
		for _, child := range t.Children {
			walk(child)
		}
	}
	for _, t := range tmos {
		walk(t)
	}

	if err := init.store.UpsertTmoNodes(ctx, database, nodes); err != nil {
		return fmt.Errorf("storing tmo nodes: %w", err)
	}
	if err := init.store.UpsertTmoEdges(ctx, database, edges); err != nil {
		return fmt.Errorf("storing tmo edges: %w", err)
	}

	tmoIDs := make([]int64, len(nodes))
	for i, n := range nodes {
		tmoIDs[i] = n.TmoID
	}
	tprms, err := init.inventory.GetTprmsByTmoID(ctx, tmoIDs)
	if err != nil {
		return fmt.Errorf("fetching tprms: %w", err)
	}
	tprmsByTmo := make(map[int64][]model.Tprm, len(nodes))
	for _, tprm := range tprms {
		tprmsByTmo[tprm.TmoID] = append(tprmsByTmo[tprm.TmoID], tprm)
		if tprm.IsLinkType() {
			for _, targetTmoID := range tprm.Constraint {
				linkType := model.LinkTypeMoLink
				if tprm.ValType == model.ValTypeTwoWayLink {
					linkType = model.LinkTypeTwoWayLink
				}
				id := tprm.ID
				edges = append(edges, model.TmoEdge{
					From:     fmt.Sprintf("%d", tprm.TmoID),
					To:       fmt.Sprintf("%d", targetTmoID),
					LinkType: linkType,
					Enabled:  true,
					TprmID:   &id,
				})
			}
		}
	}
	if len(tprmsByTmo) > 0 {
		updated := make([]model.TmoNode, len(nodes))
		for i, n := range nodes {
			n.Params = tprmsByTmo[n.TmoID]
			updated[i] = n
		}
		if err := init.store.UpsertTmoNodes(ctx, database, updated); err != nil {
			return fmt.Errorf("storing tprm-enriched tmo nodes: %w", err)
		}
	}
	return init.store.UpsertTmoEdges(ctx, database, edges)
}

// DatabaseName re-exposes config.DatabaseName for callers (e.g. cmd/
// entry points) that only know the root TMO id.
func DatabaseName(rootTmoID int64) string { return config.DatabaseName(rootTmoID) }
