package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// buildStructuralEdges implements spec §4.5 steps 3-4: one p_id edge per
// MO with a parent (build_links_from_tmo.py), plus one mo_link/two-way
// link edge per link-typed PRM value (fill_by_mo_link/fill_by_two_way_
// mo_link's edge-producing side, separate from the value-resolution side
// handled later by fillPrmValues).
//
// Surrogate keys equal the stringified MO id (see toMoNode), so a p_id
// edge's endpoints can be derived without a second lookup.
func (b *Builder) buildStructuralEdges(ctx context.Context, database string, tmos []model.TmoNode) error {
	for _, tmo := range tmos {
		if !tmo.Materialize {
			continue
		}
		tprms, err := b.inventory.GetTprmsByTmoID(ctx, []int64{tmo.TmoID})
		if err != nil {
			return fmt.Errorf("fetching tprms for tmo %d: %w", tmo.TmoID, err)
		}
		linkTprms := make(map[int64]model.Tprm, len(tprms))
		for _, t := range tprms {
			if t.IsLinkType() {
				linkTprms[t.ID] = t
			}
		}

		var edges []model.MoEdge
		err = b.inventory.MosByTMOID(ctx, tmo.TmoID, "", "", true, func(mos []model.MoDto) error {
			for _, mo := range mos {
				moKey := fmt.Sprintf("%d", mo.ID)
				if mo.PID != nil {
					edges = append(edges, model.MoEdge{
						Key:            fmt.Sprintf("pid-%d", mo.ID),
						From:           fmt.Sprintf("%d", *mo.PID),
						To:             moKey,
						ConnectionType: model.ConnectionTypePID,
					})
				}
				for _, prm := range mo.Params {
					tprm, ok := linkTprms[prm.TprmID]
					if !ok {
						continue
					}
					edges = append(edges, LinkEdgesForPrm(moKey, prm, tprm)...)
				}
			}
			if len(edges) >= b.flushSize() {
				if err := b.store.UpsertMoEdges(ctx, database, edges); err != nil {
					return err
				}
				edges = edges[:0]
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("streaming mos for tmo %d: %w", tmo.TmoID, err)
		}
		if len(edges) > 0 {
			if err := b.store.UpsertMoEdges(ctx, database, edges); err != nil {
				return err
			}
		}
	}
	return nil
}

// LinkEdgesForPrm emits one MoEdge per target referenced by a link-typed
// PRM's raw value. For both mo_link and two-way link each raw id is used
// directly as the target MoNode key; the codec's asymmetry
// (model.ResolveParsedValue) applies to value resolution only, not to
// edge construction. Exported so changestream's PRM orchestrator can
// build the same edge shape for a single incoming PRM event.
func LinkEdgesForPrm(fromKey string, prm model.PrmDto, tprm model.Tprm) []model.MoEdge {
	ids, ok := prm.Value.([]int64)
	if !ok {
		if single, ok := prm.Value.(int64); ok {
			ids = []int64{single}
		} else {
			return nil
		}
	}
	connType := model.ConnectionTypeMoLink
	if tprm.ValType == model.ValTypeTwoWayLink {
		connType = model.ConnectionTypeTwoWayLink
	}
	tprmID := tprm.ID
	out := make([]model.MoEdge, 0, len(ids))
	for _, targetID := range ids {
		out = append(out, model.MoEdge{
			Key:            fmt.Sprintf("%s-%s-%d-%d", connType, fromKey, tprmID, targetID),
			From:           fromKey,
			To:             fmt.Sprintf("%d", targetID),
			ConnectionType: connType,
			Prm:            []int64{prm.ID},
			Tprm:           &tprmID,
		})
	}
	return out
}
