package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// buildConstraintEdges implements spec §4.5 step 5 (create_links_by_
// constraint.py): every line-geometry MO connects to the two MOs at its
// endpoints via point_a/point_b edges. Endpoint ids of zero are treated
// as unset (spec's mo.PointAID/PointBID zero-value convention).
func (b *Builder) buildConstraintEdges(ctx context.Context, database string, tmos []model.TmoNode) error {
	for _, tmo := range tmos {
		if !tmo.Materialize || !tmo.IsLine() {
			continue
		}

		var edges []model.MoEdge
		err := b.inventory.MosByTMOID(ctx, tmo.TmoID, "", "", true, func(mos []model.MoDto) error {
			for _, mo := range mos {
				lineKey := fmt.Sprintf("%d", mo.ID)
				if mo.PointAID != 0 {
					edges = append(edges, model.MoEdge{
						Key:            fmt.Sprintf("point_a-%d", mo.ID),
						From:           lineKey,
						To:             fmt.Sprintf("%d", mo.PointAID),
						ConnectionType: model.ConnectionTypePointA,
					})
				}
				if mo.PointBID != 0 {
					edges = append(edges, model.MoEdge{
						Key:            fmt.Sprintf("point_b-%d", mo.ID),
						From:           lineKey,
						To:             fmt.Sprintf("%d", mo.PointBID),
						ConnectionType: model.ConnectionTypePointB,
					})
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
			return fmt.Errorf("streaming line mos for tmo %d: %w", tmo.TmoID, err)
		}
		if len(edges) > 0 {
			if err := b.store.UpsertMoEdges(ctx, database, edges); err != nil {
				return err
			}
		}
	}
	return nil
}
