package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// groupNodes implements spec §4.5 step 7 (group_nodes.py): for each
// configured group-by TPRM, children of the same parent that share that
// TPRM's value are collapsed under one synthetic grouping MoNode. Applied
// in the order GroupByTprmIDs lists, each pass working against the
// current parent edges so later TPRMs nest inside earlier ones
// (innermost-first chaining).
func (b *Builder) groupNodes(ctx context.Context, database string, groupByTprmIDs []int64) error {
	for _, tprmID := range groupByTprmIDs {
		if err := b.groupByOneTprm(ctx, database, tprmID); err != nil {
			return fmt.Errorf("grouping by tprm %d: %w", tprmID, err)
		}
	}
	return nil
}

func (b *Builder) groupByOneTprm(ctx context.Context, database string, tprmID int64) error {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (parent:Mo)-[r:MO_LINK {connection_type: $pid}]->(child:Mo)
		WHERE child.is_grouping = false
		RETURN parent.key AS parent_key, child.key AS child_key, child.mo_id AS mo_id, child.tmo AS tmo
	`, map[string]any{"pid": string(model.ConnectionTypePID)})
	if err != nil {
		return err
	}

	childByMoID := make(map[int64]struct{ parentKey, childKey string })
	tmoIDByMoID := make(map[int64]int64)
	for _, row := range rows {
		moID, ok := row["mo_id"].(int64)
		if !ok {
			continue
		}
		parentKey, _ := row["parent_key"].(string)
		childKey, _ := row["child_key"].(string)
		tmoID, _ := row["tmo"].(int64)
		childByMoID[moID] = struct{ parentKey, childKey string }{parentKey, childKey}
		tmoIDByMoID[moID] = tmoID
	}
	if len(childByMoID) == 0 {
		return nil
	}

	moIDsByTmo := make(map[int64][]int64)
	for moID, tmoID := range tmoIDByMoID {
		moIDsByTmo[tmoID] = append(moIDsByTmo[tmoID], moID)
	}
	valueByMoID := make(map[int64]string, len(childByMoID))
	for tmoID, moIDs := range moIDsByTmo {
		values, err := b.groupValuesByMoID(ctx, tmoID, moIDs, tprmID)
		if err != nil {
			return err
		}
		for moID, v := range values {
			valueByMoID[moID] = v
		}
	}

	type bucketKey struct {
		parentKey, value string
	}
	buckets := make(map[bucketKey][]string)   // -> child keys
	bucketMoIDs := make(map[bucketKey][]int64) // -> child mo ids
	for moID, info := range childByMoID {
		value, ok := valueByMoID[moID]
		if !ok {
			continue
		}
		bk := bucketKey{parentKey: info.parentKey, value: value}
		buckets[bk] = append(buckets[bk], info.childKey)
		bucketMoIDs[bk] = append(bucketMoIDs[bk], moID)
	}

	var groupNodes []model.MoNode
	var reparentEdges []model.MoEdge
	var moved []map[string]any
	for bk, children := range buckets {
		if len(children) < 2 {
			continue // no grouping needed for a singleton bucket
		}
		groupKey := fmt.Sprintf("group-%d-%s-%s", tprmID, bk.parentKey, bk.value)
		tprm := tprmID
		groupNodes = append(groupNodes, model.MoNode{
			Key:           groupKey,
			Name:          bk.value,
			GroupedByTprm: &tprm,
			GroupPID:      &bk.parentKey,
			MoIDs:         bucketMoIDs[bk],
		})
		reparentEdges = append(reparentEdges, model.MoEdge{
			Key:            fmt.Sprintf("pid-%s-%s", bk.parentKey, groupKey),
			From:           bk.parentKey,
			To:             groupKey,
			ConnectionType: model.ConnectionTypePID,
		})
		for _, childKey := range children {
			reparentEdges = append(reparentEdges, model.MoEdge{
				Key:            fmt.Sprintf("pid-%s-%s", groupKey, childKey),
				From:           groupKey,
				To:             childKey,
				ConnectionType: model.ConnectionTypePID,
			})
			moved = append(moved, map[string]any{"parent": bk.parentKey, "child": childKey})
		}
	}

	if len(groupNodes) == 0 {
		return nil
	}
	if err := b.store.UpsertMoNodes(ctx, database, groupNodes); err != nil {
		return err
	}
	if err := b.store.UpsertMoEdges(ctx, database, reparentEdges); err != nil {
		return err
	}
	// Drop each grouped child's old parent edge so its only p_id parent is
	// the grouping node.
	return b.store.WriteQuery(ctx, database, `
		UNWIND $moved AS m
		MATCH (:Mo {key: m.parent})-[r:MO_LINK {connection_type: $pid}]->(:Mo {key: m.child})
		DELETE r
	`, map[string]any{"moved": moved, "pid": string(model.ConnectionTypePID)})
}

// groupValuesByMoID fetches the stringified value of tprmID's PRM for
// each MO in moIDs, by re-streaming their owning TMO (the inventory has
// no "MOs by tprm value" endpoint).
func (b *Builder) groupValuesByMoID(ctx context.Context, tmoID int64, moIDs []int64, tprmID int64) (map[int64]string, error) {
	want := make(map[int64]struct{}, len(moIDs))
	for _, id := range moIDs {
		want[id] = struct{}{}
	}
	out := make(map[int64]string, len(moIDs))

	err := b.inventory.MosByTMOID(ctx, tmoID, "", "", true, func(mos []model.MoDto) error {
		for _, mo := range mos {
			if _, ok := want[mo.ID]; !ok {
				continue
			}
			for _, prm := range mo.Params {
				if prm.TprmID == tprmID {
					out[mo.ID] = model.StringifyValue(prm.Value)
				}
			}
		}
		return nil
	})
	return out, err
}
