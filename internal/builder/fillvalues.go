package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// fillPrmValues implements spec §4.5 step 11 (fill_prm_values.py): every
// link-typed PRM (mo_link/two-way link/prm_link) is resolved from its
// raw id(s) into a human-readable display value via model.
// ResolveParsedValue, and persisted as "tprmID=value" strings on
// resolved_links — Neo4j properties can't hold nested objects, so the
// resolved ParsedValue itself isn't storable; this list is the queryable
// trace-display surface C7 reads instead.
func (b *Builder) fillPrmValues(ctx context.Context, database string, tmos []model.TmoNode) error {
	for _, tmo := range tmos {
		if !tmo.Materialize {
			continue
		}
		tprms, err := b.inventory.GetTprmsByTmoID(ctx, []int64{tmo.TmoID})
		if err != nil {
			return fmt.Errorf("fetching tprms for tmo %d: %w", tmo.TmoID, err)
		}
		linkTprms := make(map[int64]model.Tprm)
		for _, t := range tprms {
			if t.IsLinkType() {
				linkTprms[t.ID] = t
			}
		}
		if len(linkTprms) == 0 {
			continue
		}

		var updates []map[string]any
		err = b.inventory.MosByTMOID(ctx, tmo.TmoID, "", "", true, func(mos []model.MoDto) error {
			for _, mo := range mos {
				var resolved []string
				for _, prm := range mo.Params {
					tprm, ok := linkTprms[prm.TprmID]
					if !ok {
						continue
					}
					parsed, err := model.ResolveParsedValue(ctx, prm.Prm, tprm, b.inventory)
					if err != nil {
						return fmt.Errorf("resolving prm %d on mo %d: %w", prm.ID, mo.ID, err)
					}
					if parsed == nil {
						continue
					}
					resolved = append(resolved, fmt.Sprintf("%d=%s", tprm.ID, model.StringifyValue(parsed.Value)))
				}
				if len(resolved) == 0 {
					continue
				}
				updates = append(updates, map[string]any{
					"key":            fmt.Sprintf("%d", mo.ID),
					"resolved_links": resolved,
				})
				if len(updates) >= b.flushSize() {
					if err := b.flushResolvedLinks(ctx, database, updates); err != nil {
						return err
					}
					updates = updates[:0]
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("streaming mos for tmo %d: %w", tmo.TmoID, err)
		}
		if len(updates) > 0 {
			if err := b.flushResolvedLinks(ctx, database, updates); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) flushResolvedLinks(ctx context.Context, database string, updates []map[string]any) error {
	return b.store.WriteQuery(ctx, database, `
		UNWIND $updates AS u
		MATCH (m:Mo {key: u.key})
		SET m.resolved_links = u.resolved_links
	`, map[string]any{"updates": updates})
}
