package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// forwardLineConnections implements spec §4.5 step 8
// (forward_line_connections.py): a line-geometry MO (e.g. a cable) sits
// between two endpoint MOs via point_a/point_b edges, but the line MO
// itself carries no topological meaning for path queries. This pass
// bridges point_a directly to point_b with a virtual geometry_line edge,
// then forwards any trace (service) connection hanging off the line MO
// onto both its endpoints, so a trace started at either endpoint can
// continue through the line without stopping at it.
func (b *Builder) forwardLineConnections(ctx context.Context, database string, tmos []model.TmoNode) error {
	var lineTmoIDs []int64
	for _, tmo := range tmos {
		if tmo.IsLine() {
			lineTmoIDs = append(lineTmoIDs, tmo.TmoID)
		}
	}
	if len(lineTmoIDs) == 0 {
		// No line-geometry TMOs in this schema: the line-specific bridge/
		// trace bridging below has nothing to do, but forwardServiceConnections
		// applies regardless of line TMOs and must still run.
		return b.forwardServiceConnections(ctx, database)
	}

	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (line:Mo)
		WHERE line.tmo IN $tmoIds
		MATCH (line)-[pa:MO_LINK {connection_type: $pointA, virtual: false}]->(a:Mo)
		MATCH (line)-[pb:MO_LINK {connection_type: $pointB, virtual: false}]->(b:Mo)
		RETURN line.key AS line_key, a.key AS point_a_key, b.key AS point_b_key
	`, map[string]any{
		"tmoIds": lineTmoIDs,
		"pointA": string(model.ConnectionTypePointA),
		"pointB": string(model.ConnectionTypePointB),
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return b.forwardServiceConnections(ctx, database)
	}

	var bridgeEdges []model.MoEdge
	lineKeys := make([]string, 0, len(rows))
	bridgeByLineKey := make(map[string][2]string, len(rows))
	for _, row := range rows {
		lineKey, _ := row["line_key"].(string)
		aKey, _ := row["point_a_key"].(string)
		bKey, _ := row["point_b_key"].(string)
		if lineKey == "" || aKey == "" || bKey == "" {
			continue
		}
		src := lineKey
		bridgeEdges = append(bridgeEdges, model.MoEdge{
			Key:            fmt.Sprintf("geometry_line-%s", lineKey),
			From:           aKey,
			To:             bKey,
			ConnectionType: model.ConnectionTypeGeometryLine,
			Virtual:        true,
			SourceID:       &src,
		})
		lineKeys = append(lineKeys, lineKey)
		bridgeByLineKey[lineKey] = [2]string{aKey, bKey}
	}
	if err := b.store.UpsertMoEdges(ctx, database, bridgeEdges); err != nil {
		return err
	}

	traceRows, err := b.store.ReadRecords(ctx, database, `
		MATCH (line:Mo)-[r:MO_LINK {is_trace: true}]->(far:Mo)
		WHERE line.key IN $lineKeys
		RETURN line.key AS line_key, far.key AS far_key, r.key AS edge_key
	`, map[string]any{"lineKeys": lineKeys})
	if err != nil {
		return err
	}

	var traceEdges []model.MoEdge
	for _, row := range traceRows {
		lineKey, _ := row["line_key"].(string)
		farKey, _ := row["far_key"].(string)
		endpoints, ok := bridgeByLineKey[lineKey]
		if !ok || farKey == "" {
			continue
		}
		for _, endpointKey := range endpoints {
			src := lineKey
			traceEdges = append(traceEdges, model.MoEdge{
				Key:            fmt.Sprintf("trace-%s-%s-%s", lineKey, endpointKey, farKey),
				From:           endpointKey,
				To:             farKey,
				ConnectionType: model.ConnectionTypeMoLink,
				IsTrace:        true,
				Virtual:        true,
				SourceID:       &src,
			})
		}
	}
	if err := b.store.UpsertMoEdges(ctx, database, traceEdges); err != nil {
		return err
	}

	return b.forwardServiceConnections(ctx, database)
}

// forwardServiceConnections implements the supplemental forward_service_
// connections_by_mo_links.py pass: a real, non-virtual trace edge that
// lands on a node which itself has an outgoing non-trace mo_link edge is
// extended past that node onto the mo_link's target, so a service trace
// keeps following equipment-to-equipment links rather than stopping at
// the first hop.
func (b *Builder) forwardServiceConnections(ctx context.Context, database string) error {
	traceRows, err := b.store.ReadRecords(ctx, database, `
		MATCH (from:Mo)-[r:MO_LINK {is_trace: true, virtual: false}]->(to:Mo)
		RETURN from.key AS from_key, to.key AS to_key
	`, nil)
	if err != nil {
		return err
	}
	if len(traceRows) == 0 {
		return nil
	}

	toKeys := make([]string, 0, len(traceRows))
	serviceEdgesByTo := make(map[string][]string) // to.key -> []from.key
	for _, row := range traceRows {
		fromKey, _ := row["from_key"].(string)
		toKey, _ := row["to_key"].(string)
		if fromKey == "" || toKey == "" {
			continue
		}
		toKeys = append(toKeys, toKey)
		serviceEdgesByTo[toKey] = append(serviceEdgesByTo[toKey], fromKey)
	}

	moLinkRows, err := b.store.ReadRecords(ctx, database, `
		MATCH (from:Mo)-[r:MO_LINK {connection_type: $moLink, is_trace: false}]->(to:Mo)
		WHERE from.key IN $fromKeys
		RETURN from.key AS from_key, to.key AS to_key
	`, map[string]any{"moLink": string(model.ConnectionTypeMoLink), "fromKeys": toKeys})
	if err != nil {
		return err
	}

	var forwarded []model.MoEdge
	for _, row := range moLinkRows {
		anchorKey, _ := row["from_key"].(string)
		farKey, _ := row["to_key"].(string)
		if anchorKey == "" || farKey == "" {
			continue
		}
		for _, serviceFromKey := range serviceEdgesByTo[anchorKey] {
			src := anchorKey
			forwarded = append(forwarded, model.MoEdge{
				Key:            fmt.Sprintf("service-%s-%s-%s", serviceFromKey, anchorKey, farKey),
				From:           serviceFromKey,
				To:             farKey,
				ConnectionType: model.ConnectionTypeMoLink,
				IsTrace:        true,
				Virtual:        true,
				SourceID:       &src,
			})
		}
	}
	return b.store.UpsertMoEdges(ctx, database, forwarded)
}
