package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// addIndexedFields implements spec §4.5 step 10
// (add_indexed_field_to_nodes.py): every returnable, non-link TPRM value
// on a MO is stringified into MoNode.Indexed, the backing field for the
// mo_indexed_search full-text index (schema.go). Returnable link-typed
// TPRMs (mo_link/two-way link/prm_link) instead index the *target's*
// display name, so searching "rack 12" finds equipment linked to it.
func (b *Builder) addIndexedFields(ctx context.Context, database string, tmos []model.TmoNode) error {
	for _, tmo := range tmos {
		if !tmo.Materialize {
			continue
		}
		tprms, err := b.inventory.GetTprmsByTmoID(ctx, []int64{tmo.TmoID})
		if err != nil {
			return fmt.Errorf("fetching tprms for tmo %d: %w", tmo.TmoID, err)
		}
		returnable := make(map[int64]model.Tprm, len(tprms))
		anyReturnable := false
		for _, t := range tprms {
			if t.Returnable {
				returnable[t.ID] = t
				anyReturnable = true
			}
		}
		if !anyReturnable {
			continue
		}

		type pending struct {
			key    string
			simple []string
			links  []int64 // mo ids / prm ids still needing a lookup
			isPrm  bool
		}
		var batch []pending
		linkMoIDs := make(map[int64][]int) // mo id -> batch indexes
		linkPrmIDs := make(map[int64][]int)

		err = b.inventory.MosByTMOID(ctx, tmo.TmoID, "", "", true, func(mos []model.MoDto) error {
			for _, mo := range mos {
				p := pending{key: fmt.Sprintf("%d", mo.ID)}
				for _, prm := range mo.Params {
					tprm, ok := returnable[prm.TprmID]
					if !ok {
						continue
					}
					switch tprm.ValType {
					case model.ValTypeMoLink, model.ValTypeTwoWayLink:
						for _, id := range flattenIDs(prm.Value) {
							linkMoIDs[id] = append(linkMoIDs[id], len(batch))
						}
					case model.ValTypePrmLink:
						for _, id := range flattenIDs(prm.Value) {
							linkPrmIDs[id] = append(linkPrmIDs[id], len(batch))
						}
					default:
						for _, v := range flattenValues(prm.Value) {
							p.simple = append(p.simple, model.StringifyValue(v))
						}
					}
				}
				batch = append(batch, p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("streaming mos for tmo %d: %w", tmo.TmoID, err)
		}
		if len(batch) == 0 {
			continue
		}

		if len(linkMoIDs) > 0 {
			ids := make([]int64, 0, len(linkMoIDs))
			for id := range linkMoIDs {
				ids = append(ids, id)
			}
			targets, err := b.inventory.MosByMoIDs(ctx, ids)
			if err != nil {
				return fmt.Errorf("resolving indexed mo_link targets: %w", err)
			}
			for _, target := range targets {
				for _, idx := range linkMoIDs[target.ID] {
					batch[idx].simple = append(batch[idx].simple, target.Name)
				}
			}
		}
		if len(linkPrmIDs) > 0 {
			ids := make([]int64, 0, len(linkPrmIDs))
			for id := range linkPrmIDs {
				ids = append(ids, id)
			}
			targets, err := b.inventory.PrmsByPrmIDs(ctx, ids)
			if err != nil {
				return fmt.Errorf("resolving indexed prm_link targets: %w", err)
			}
			for _, target := range targets {
				for _, idx := range linkPrmIDs[target.ID] {
					batch[idx].simple = append(batch[idx].simple, model.StringifyValue(target.Value))
				}
			}
		}

		updates := make([]map[string]any, 0, len(batch))
		for _, p := range batch {
			if len(p.simple) == 0 {
				continue
			}
			updates = append(updates, map[string]any{"key": p.key, "indexed": p.simple})
		}
		if len(updates) == 0 {
			continue
		}
		if err := b.store.WriteQuery(ctx, database, `
			UNWIND $updates AS u
			MATCH (m:Mo {key: u.key})
			SET m.indexed = u.indexed
		`, map[string]any{"updates": updates}); err != nil {
			return err
		}
	}
	return nil
}

func flattenIDs(value interface{}) []int64 {
	switch v := value.(type) {
	case []int64:
		return v
	case int64:
		return []int64{v}
	default:
		return nil
	}
}

func flattenValues(value interface{}) []interface{} {
	if list, ok := value.([]interface{}); ok {
		return list
	}
	return []interface{}{value}
}
