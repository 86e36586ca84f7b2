package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// materializeMoNodes implements spec §4.5 step 1: for every materialize
// TMO, stream its MOs from the inventory and upsert one real MoNode per
// MO (build_from_tmo.py's core loop — this is the pass the original
// calls once per materialize TMO, in chunked UNWIND batches here instead
// of per-document AQL upserts).
func (b *Builder) materializeMoNodes(ctx context.Context, database string, tmos []model.TmoNode) error {
	for _, tmo := range tmos {
		if !tmo.Materialize {
			continue
		}
		if err := b.materializeTMO(ctx, database, tmo, false); err != nil {
			return err
		}
	}
	return nil
}

// materializeTMO streams one TMO's MOs from the inventory and upserts a
// batch of MoNodes, flagged isTrace throughout (spec §4.5 steps 1/3 both
// run this same loop, the trace pass just starts from a different TMO
// and always sets the flag).
func (b *Builder) materializeTMO(ctx context.Context, database string, tmo model.TmoNode, isTrace bool) error {
	var batch []model.MoNode
	err := b.inventory.MosByTMOID(ctx, tmo.TmoID, "", "", true, func(mos []model.MoDto) error {
		for _, mo := range mos {
			node := toMoNode(mo, tmo.TmoID)
			node.IsTrace = isTrace
			batch = append(batch, node)
		}
		if len(batch) >= b.flushSize() {
			if err := b.store.UpsertMoNodes(ctx, database, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("streaming mos for tmo %d: %w", tmo.TmoID, err)
	}
	if len(batch) > 0 {
		if err := b.store.UpsertMoNodes(ctx, database, batch); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) flushSize() int {
	if b.cfg.QueryItemsLimit > 0 {
		return b.cfg.QueryItemsLimit
	}
	return 1000
}

func toMoNode(mo model.MoDto, tmoID int64) model.MoNode {
	key := fmt.Sprintf("%d", mo.ID)
	dto := mo
	return model.MoNode{
		Key:     key,
		Name:    mo.Name,
		Tmo:     tmoID,
		MoIDs:   []int64{mo.ID},
		IsTrace: false,
		Data:    &dto,
	}
}
