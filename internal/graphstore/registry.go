package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// registryDatabase holds every projection's MainRecord/ConfigDoc, distinct
// from the per-projection graph databases themselves (spec §4.4 "the
// registry outlives any one projection's database").
const registryDatabase = "neo4j"

// PutMainRecord upserts a projection's registry entry (C4, spec §4.4).
func (s *Store) PutMainRecord(ctx context.Context, rec model.MainRecord) error {
	props := map[string]any{
		"key":            rec.Key,
		"name":           rec.Name,
		"tmo_id":         rec.TmoID,
		"status":         string(rec.Status),
		"database":       rec.Database,
		"active_tmo_ids": rec.ActiveTmoIDs,
	}
	if rec.ErrorDescription != nil {
		props["error_description"] = *rec.ErrorDescription
	}
	if rec.TmoDatetime != nil {
		props["tmo_datetime"] = rec.TmoDatetime.Format("2006-01-02T15:04:05Z07:00")
	}
	if rec.MoDatetime != nil {
		props["mo_datetime"] = rec.MoDatetime.Format("2006-01-02T15:04:05Z07:00")
	}
	return s.run(ctx, registryDatabase, `
		MERGE (r:MainRecord {key: $key})
		SET r += $props
	`, map[string]any{"key": rec.Key, "props": props})
}

// DeleteMainRecord removes a projection's registry entry, used when its
// root TMO is deleted from the inventory (spec §4.7 "delete the
// projection (database + MainRecord)").
func (s *Store) DeleteMainRecord(ctx context.Context, key string) error {
	return s.run(ctx, registryDatabase, `
		MATCH (r:MainRecord {key: $key}) DETACH DELETE r
	`, map[string]any{"key": key})
}

// GetMainRecord fetches a projection's registry entry by key.
func (s *Store) GetMainRecord(ctx context.Context, key string) (model.MainRecord, error) {
	rows, err := s.readRecords(ctx, registryDatabase, `
		MATCH (r:MainRecord {key: $key}) RETURN r
	`, map[string]any{"key": key})
	if err != nil {
		return model.MainRecord{}, err
	}
	if len(rows) == 0 {
		return model.MainRecord{}, errors.NewDocumentNotFound("main record " + key)
	}
	node, ok := rows[0]["r"].(neo4j.Node)
	if !ok {
		return model.MainRecord{}, errors.InternalError("unexpected record shape for main record")
	}
	return decodeMainRecord(node), nil
}

// ListMainRecords fetches every registry entry, used by the orchestrator
// (C9) to discover projections to supervise at startup (spec §4.8).
func (s *Store) ListMainRecords(ctx context.Context) ([]model.MainRecord, error) {
	rows, err := s.readRecords(ctx, registryDatabase, `MATCH (r:MainRecord) RETURN r`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.MainRecord, 0, len(rows))
	for _, row := range rows {
		if node, ok := row["r"].(neo4j.Node); ok {
			out = append(out, decodeMainRecord(node))
		}
	}
	return out, nil
}

func decodeMainRecord(n neo4j.Node) model.MainRecord {
	props := n.Props
	rec := model.MainRecord{
		Key:      stringProp(props, "key"),
		Name:     stringProp(props, "name"),
		Status:   model.Status(stringProp(props, "status")),
		Database: stringProp(props, "database"),
	}
	if v, ok := props["tmo_id"].(int64); ok {
		rec.TmoID = v
	}
	if ids, ok := props["active_tmo_ids"].([]any); ok {
		rec.ActiveTmoIDs = toInt64Slice(ids)
	}
	if v, ok := props["error_description"].(string); ok {
		rec.ErrorDescription = &v
	}
	return rec
}

// PutConfigDoc upserts a projection's settings singleton (spec §3).
func (s *Store) PutConfigDoc(ctx context.Context, database string, doc model.ConfigDoc) error {
	props := map[string]any{
		"key":                    doc.Key,
		"group_by_tprm_ids":      doc.GroupByTprmIDs,
		"delete_orphan_branches": doc.DeleteOrphanBranches,
	}
	if doc.StartFromTmoID != nil {
		props["start_from_tmo_id"] = *doc.StartFromTmoID
	}
	if doc.StartFromTprmID != nil {
		props["start_from_tprm_id"] = *doc.StartFromTprmID
	}
	if doc.TraceTmoID != nil {
		props["trace_tmo_id"] = *doc.TraceTmoID
	}
	if doc.TraceTprmID != nil {
		props["trace_tprm_id"] = *doc.TraceTprmID
	}
	return s.run(ctx, database, `
		MERGE (c:ConfigDoc {key: $key})
		SET c += $props
	`, map[string]any{"key": doc.Key, "props": props})
}

// GetConfigDoc fetches the settings singleton from a projection
// database by its storage key. Every projection persists exactly one
// ConfigDoc, keyed model.ConfigKeyStartFrom (spec §3's other well-known
// names — trace_tmo_id, trace_tprm_id, group_by, delete_orphan_branches
// — are fields on that one document, not separate storage keys).
func (s *Store) GetConfigDoc(ctx context.Context, database, key string) (model.ConfigDoc, error) {
	rows, err := s.readRecords(ctx, database, `
		MATCH (c:ConfigDoc {key: $key}) RETURN c
	`, map[string]any{"key": key})
	if err != nil {
		return model.ConfigDoc{}, err
	}
	if len(rows) == 0 {
		return model.ConfigDoc{}, errors.NewDocumentNotFound("config doc " + key)
	}
	node, ok := rows[0]["c"].(neo4j.Node)
	if !ok {
		return model.ConfigDoc{}, errors.InternalError("unexpected record shape for config doc")
	}
	return decodeConfigDoc(node), nil
}

func decodeConfigDoc(n neo4j.Node) model.ConfigDoc {
	props := n.Props
	doc := model.ConfigDoc{Key: stringProp(props, "key")}
	if v, ok := props["start_from_tmo_id"].(int64); ok {
		doc.StartFromTmoID = &v
	}
	if v, ok := props["start_from_tprm_id"].(int64); ok {
		doc.StartFromTprmID = &v
	}
	if v, ok := props["trace_tmo_id"].(int64); ok {
		doc.TraceTmoID = &v
	}
	if v, ok := props["trace_tprm_id"].(int64); ok {
		doc.TraceTprmID = &v
	}
	if ids, ok := props["group_by_tprm_ids"].([]any); ok {
		doc.GroupByTprmIDs = toInt64Slice(ids)
	}
	doc.DeleteOrphanBranches = boolProp(props, "delete_orphan_branches")
	return doc
}
