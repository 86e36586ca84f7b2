package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

const defaultBatchSize = 1000

// UpsertTmoNodes bulk-writes schema-layer nodes using the UNWIND/MERGE
// pattern from BatchNodeCreator.CreateFileNodes, generalized to the Tmo
// label (spec §4.5 "materialize schema layer").
func (s *Store) UpsertTmoNodes(ctx context.Context, database string, nodes []model.TmoNode) error {
	if len(nodes) == 0 {
		return nil
	}
	batches := chunkTmoNodes(nodes, defaultBatchSize)
	for _, batch := range batches {
		params := make([]map[string]any, len(batch))
		for i, n := range batch {
			params[i] = tmoNodeProps(n)
		}
		err := s.run(ctx, database, `
			UNWIND $nodes AS node
			MERGE (t:Tmo {tmo_id: node.tmo_id})
			SET t += node
		`, map[string]any{"nodes": params})
		if err != nil {
			return err
		}
	}
	return nil
}

func tmoNodeProps(n model.TmoNode) map[string]any {
	props := map[string]any{
		"key":                 n.Key,
		"tmo_id":              n.TmoID,
		"name":                n.Name,
		"enabled":             n.Enabled,
		"global_uniqueness":   n.GlobalUniqueness,
		"virtual":             n.Virtual,
		"materialize":         n.Materialize,
		"show_as_a_table":     n.ShowAsATable,
		"label":               n.Label,
		"points_constraint":   n.PointsConstraintByTmo,
		"commutation_tprms":   n.CommutationTprms,
	}
	if n.PID != nil {
		props["p_id"] = *n.PID
	}
	if n.GeometryType != nil {
		props["geometry_type"] = string(*n.GeometryType)
	}
	if n.LineType != nil {
		props["line_type"] = *n.LineType
	}
	if n.Icon != nil {
		props["icon"] = *n.Icon
	}
	return props
}

// UpsertMoNodes bulk-writes instance-layer nodes (real MOs and grouping
// nodes alike; see model.MoNode.IsGrouping), spec §4.5 "materialize
// instance layer".
func (s *Store) UpsertMoNodes(ctx context.Context, database string, nodes []model.MoNode) error {
	if len(nodes) == 0 {
		return nil
	}
	for _, batch := range chunkMoNodes(nodes, defaultBatchSize) {
		params := make([]map[string]any, len(batch))
		for i, n := range batch {
			params[i] = moNodeProps(n)
		}
		err := s.run(ctx, database, `
			UNWIND $nodes AS node
			MERGE (m:Mo {key: node.key})
			SET m += node
		`, map[string]any{"nodes": params})
		if err != nil {
			return err
		}
	}
	return nil
}

func moNodeProps(n model.MoNode) map[string]any {
	props := map[string]any{
		"key":           n.Key,
		"name":          n.Name,
		"tmo":           n.Tmo,
		"mo_ids":        n.MoIDs,
		"is_trace":      n.IsTrace,
		"indexed":       n.Indexed,
		"breadcrumbs":   n.Breadcrumbs,
		"is_grouping":   n.IsGrouping(),
	}
	if n.GroupedByTprm != nil {
		props["grouped_by_tprm"] = *n.GroupedByTprm
	}
	if n.GroupPID != nil {
		props["group_p_id"] = *n.GroupPID
	}
	if n.Label != nil {
		props["label"] = *n.Label
	}
	if n.Data != nil {
		props["mo_id"] = n.Data.ID
		props["active"] = n.Data.Active
		props["latitude"] = n.Data.Latitude
		props["longitude"] = n.Data.Longitude
	}
	return props
}

// DecodeTmoNodes converts raw ReadRecords rows (each holding a "t" key
// from a `RETURN t` projection) into model.TmoNode values.
func DecodeTmoNodes(rows []map[string]any) []model.TmoNode {
	out := make([]model.TmoNode, 0, len(rows))
	for _, row := range rows {
		if node, ok := row["t"].(neo4j.Node); ok {
			out = append(out, decodeTmoNode(node))
		}
	}
	return out
}

func decodeTmoNode(n neo4j.Node) model.TmoNode {
	props := n.Props
	node := model.TmoNode{
		Key:              stringProp(props, "key"),
		Name:             stringProp(props, "name"),
		Enabled:          boolProp(props, "enabled"),
		GlobalUniqueness: boolProp(props, "global_uniqueness"),
		Virtual:          boolProp(props, "virtual"),
		Materialize:      boolProp(props, "materialize"),
		ShowAsATable:     boolProp(props, "show_as_a_table"),
	}
	if v, ok := props["tmo_id"].(int64); ok {
		node.TmoID = v
	}
	if v, ok := props["p_id"].(int64); ok {
		node.PID = &v
	}
	if v, ok := props["geometry_type"].(string); ok {
		gt := model.GeometryType(v)
		node.GeometryType = &gt
	}
	if v, ok := props["line_type"].(string); ok {
		node.LineType = &v
	}
	if v, ok := props["icon"].(string); ok {
		node.Icon = &v
	}
	if v, ok := props["label"].([]any); ok {
		node.Label = toInt64Slice(v)
	}
	if v, ok := props["points_constraint"].([]any); ok {
		node.PointsConstraintByTmo = toInt64Slice(v)
	}
	if v, ok := props["commutation_tprms"].([]any); ok {
		node.CommutationTprms = toInt64Slice(v)
	}
	return node
}

// DecodeMoNode exports decodeMoNode for callers outside this package
// (the builder reads raw Mo rows back for multi-pass recomputation).
func DecodeMoNode(row map[string]any, key string) (model.MoNode, bool) {
	n, ok := row[key].(neo4j.Node)
	if !ok {
		return model.MoNode{}, false
	}
	return decodeMoNode(n), true
}

// DecodeTmoNodeFromRow exports decodeTmoNode for callers outside this
// package that read a single Tmo node alongside other projected columns
// (the builder resolves an ancestor's TmoNode while walking a p_id
// chain).
func DecodeTmoNodeFromRow(row map[string]any, key string) (model.TmoNode, bool) {
	n, ok := row[key].(neo4j.Node)
	if !ok {
		return model.TmoNode{}, false
	}
	return decodeTmoNode(n), true
}

// DeleteMoNodes removes instance-layer nodes by surrogate key, detaching
// any dangling relationships (spec §4.5 orphan cleanup, §4.7 MO delete).
func (s *Store) DeleteMoNodes(ctx context.Context, database string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.run(ctx, database, `
		UNWIND $keys AS key
		MATCH (m:Mo {key: key})
		DETACH DELETE m
	`, map[string]any{"keys": keys})
}

// GetMoNode fetches a single instance-layer node by surrogate key,
// returning errors.NewDocumentNotFound when absent.
func (s *Store) GetMoNode(ctx context.Context, database, key string) (model.MoNode, error) {
	rows, err := s.readRecords(ctx, database, `
		MATCH (m:Mo {key: $key}) RETURN m
	`, map[string]any{"key": key})
	if err != nil {
		return model.MoNode{}, err
	}
	if len(rows) == 0 {
		return model.MoNode{}, errors.NewDocumentNotFound("mo node " + key)
	}
	node, ok := rows[0]["m"].(neo4j.Node)
	if !ok {
		return model.MoNode{}, errors.InternalError("unexpected record shape for mo node")
	}
	return decodeMoNode(node), nil
}

func decodeMoNode(n neo4j.Node) model.MoNode {
	props := n.Props
	node := model.MoNode{
		Key:         stringProp(props, "key"),
		Name:        stringProp(props, "name"),
		IsTrace:     boolProp(props, "is_trace"),
		Breadcrumbs: stringProp(props, "breadcrumbs"),
	}
	if tmo, ok := props["tmo"].(int64); ok {
		node.Tmo = tmo
	}
	if v, ok := props["grouped_by_tprm"].(int64); ok {
		node.GroupedByTprm = &v
	}
	if v, ok := props["group_p_id"].(string); ok {
		node.GroupPID = &v
	}
	if v, ok := props["label"].(string); ok {
		node.Label = &v
	}
	if ids, ok := props["mo_ids"].([]any); ok {
		node.MoIDs = toInt64Slice(ids)
	}
	if idx, ok := props["indexed"].([]any); ok {
		node.Indexed = toStringSlice(idx)
	}
	return node
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func boolProp(props map[string]any, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

func toInt64Slice(vs []any) []int64 {
	out := make([]int64, 0, len(vs))
	for _, v := range vs {
		if n, ok := v.(int64); ok {
			out = append(out, n)
		}
	}
	return out
}

func toStringSlice(vs []any) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func chunkTmoNodes(nodes []model.TmoNode, size int) [][]model.TmoNode {
	var out [][]model.TmoNode
	for i := 0; i < len(nodes); i += size {
		end := i + size
		if end > len(nodes) {
			end = len(nodes)
		}
		out = append(out, nodes[i:end])
	}
	return out
}

func chunkMoNodes(nodes []model.MoNode, size int) [][]model.MoNode {
	var out [][]model.MoNode
	for i := 0; i < len(nodes); i += size {
		end := i + size
		if end > len(nodes) {
			end = len(nodes)
		}
		out = append(out, nodes[i:end])
	}
	return out
}
