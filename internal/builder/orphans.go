package builder

import (
	"context"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// deleteOrphanBranches implements the supplemental DeleteOrhanBranchesSubtask
// (building_tasks.py): a TMO subtree that has no non-p_id cross-link,
// direct or transitive, to the root TMO is unreachable by any trace
// query and is dropped entirely — both its MoNodes and any edges
// touching them.
func (b *Builder) deleteOrphanBranches(ctx context.Context, database string, rootTmoID int64, tmos []model.TmoNode) error {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (from:Mo)-[r:MO_LINK]->(to:Mo)
		WHERE r.connection_type <> $pid
		RETURN DISTINCT from.tmo AS from_tmo, to.tmo AS to_tmo
	`, map[string]any{"pid": string(model.ConnectionTypePID)})
	if err != nil {
		return err
	}

	crossLinks := make(map[int64]map[int64]struct{})
	addLink := func(a, c int64) {
		if a == c {
			return
		}
		if crossLinks[a] == nil {
			crossLinks[a] = make(map[int64]struct{})
		}
		crossLinks[a][c] = struct{}{}
	}
	for _, row := range rows {
		fromTmo, ok1 := row["from_tmo"].(int64)
		toTmo, ok2 := row["to_tmo"].(int64)
		if !ok1 || !ok2 {
			continue
		}
		addLink(fromTmo, toTmo)
		addLink(toTmo, fromTmo)
	}

	reached := map[int64]struct{}{rootTmoID: {}}
	queue := []int64{rootTmoID}
	for i := 0; i < len(queue); i++ {
		for linked := range crossLinks[queue[i]] {
			if _, ok := reached[linked]; ok {
				continue
			}
			reached[linked] = struct{}{}
			queue = append(queue, linked)
		}
	}

	var orphanTmoIDs []int64
	for _, tmo := range tmos {
		if tmo.TmoID == rootTmoID {
			continue
		}
		if _, ok := reached[tmo.TmoID]; !ok {
			orphanTmoIDs = append(orphanTmoIDs, tmo.TmoID)
		}
	}
	if len(orphanTmoIDs) == 0 {
		return nil
	}

	return b.store.WriteQuery(ctx, database, `
		MATCH (m:Mo)
		WHERE m.tmo IN $tmoIds
		DETACH DELETE m
	`, map[string]any{"tmoIds": orphanTmoIDs})
}
