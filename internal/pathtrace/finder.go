package pathtrace

import (
	"context"
	"fmt"
	"sort"

	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

const defaultSearchLimit = 25

// Finder answers find_way_between_a_b.py's request: the k shortest
// paths between two MO surrogate keys, each reconstructed into a Trace
// at the caller's chosen squash level.
type Finder struct {
	store *graphstore.Store
}

func NewFinder(store *graphstore.Store) *Finder {
	return &Finder{store: store}
}

// FindPath returns up to responseLimit distinct traces between from and
// to, squashed to level. searchLimit bounds how many raw shortest paths
// are considered before deduping (spec's PathFinderConfig.search_limit/
// response_limit).
func (f *Finder) FindPath(ctx context.Context, database, from, to string, level model.TrackingType, searchLimit, responseLimit int) ([]Trace, error) {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	if responseLimit <= 0 {
		responseLimit = searchLimit
	}

	// The variable-length PATH_EDGE walk is bounded at 12 hops; Cypher
	// relationship ranges can't be parameterized, so the bound is written
	// into the query rather than taken from the caller.
	rows, err := f.store.ReadRecords(ctx, database, `
		MATCH p = (a:Mo {key: $from})-[:PATH_EDGE*1..12]-(b:Mo {key: $to})
		WITH p, length(p) AS len
		ORDER BY len ASC
		LIMIT $limit
		RETURN [n IN nodes(p) | n.key] AS keys
	`, map[string]any{"from": from, "to": to, "limit": searchLimit})
	if err != nil {
		return nil, fmt.Errorf("finding shortest paths: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewDocumentNotFound(fmt.Sprintf("no path between %s and %s", from, to))
	}

	var rawPaths [][]string
	for _, row := range rows {
		raw, ok := row["keys"].([]any)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				keys = append(keys, s)
			}
		}
		if len(keys) > 0 {
			rawPaths = append(rawPaths, keys)
		}
	}

	tmos, err := f.loadTmoNodes(ctx, database)
	if err != nil {
		return nil, err
	}
	tmoByID := make(map[int64]model.TmoNode, len(tmos))
	for _, tmo := range tmos {
		tmoByID[tmo.TmoID] = tmo
	}

	dedup := make(map[string][]string) // hash -> shortest path so far
	for _, path := range rawPaths {
		nodes, err := f.loadNodes(ctx, database, path)
		if err != nil {
			return nil, err
		}
		hash := nonLineKeyHash(nodes, tmoByID)
		existing, ok := dedup[hash]
		if !ok || len(path) < len(existing) {
			dedup[hash] = path
		}
	}

	sortedPaths := make([][]string, 0, len(dedup))
	for _, p := range dedup {
		sortedPaths = append(sortedPaths, p)
	}
	sort.Slice(sortedPaths, func(i, j int) bool { return len(sortedPaths[i]) < len(sortedPaths[j]) })
	if len(sortedPaths) > responseLimit {
		sortedPaths = sortedPaths[:responseLimit]
	}

	traces := make([]Trace, 0, len(sortedPaths))
	for _, path := range sortedPaths {
		nodes, err := f.loadNodes(ctx, database, path)
		if err != nil {
			return nil, err
		}
		edges, err := f.loadRealEdgesAlongPath(ctx, database, path)
		if err != nil {
			return nil, err
		}
		pathTmos := tmosForNodes(nodes, tmoByID)

		tr := newTracker(nodes, edges, pathTmos).getTrace(level)
		if level == model.TrackingStraight {
			tr = straighten(tr)
		}
		traces = append(traces, tr)
	}
	return traces, nil
}

func (f *Finder) loadTmoNodes(ctx context.Context, database string) ([]model.TmoNode, error) {
	rows, err := f.store.ReadRecords(ctx, database, `MATCH (t:Tmo) RETURN t`, nil)
	if err != nil {
		return nil, err
	}
	return graphstore.DecodeTmoNodes(rows), nil
}

func (f *Finder) loadNodes(ctx context.Context, database string, keys []string) ([]model.MoNode, error) {
	rows, err := f.store.ReadRecords(ctx, database, `
		UNWIND $keys AS key
		MATCH (m:Mo {key: key})
		RETURN m
	`, map[string]any{"keys": keys})
	if err != nil {
		return nil, err
	}
	nodes := make([]model.MoNode, 0, len(rows))
	for _, row := range rows {
		if n, ok := graphstore.DecodeMoNode(row, "m"); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// loadRealEdgesAlongPath resolves each consecutive pair of path nodes to
// the strongest real, non-virtual, non-trace MO_LINK edge between them,
// mirroring find_way_between_a_b.py's replace_with_real_edges.
func (f *Finder) loadRealEdgesAlongPath(ctx context.Context, database string, keys []string) ([]model.MoEdge, error) {
	var edges []model.MoEdge
	for i := 0; i+1 < len(keys); i++ {
		rows, err := f.store.ReadRecords(ctx, database, `
			MATCH (a:Mo {key: $a})-[r:MO_LINK {virtual: false, is_trace: false}]-(b:Mo {key: $b})
			RETURN r.key AS key, r.connection_type AS connection_type, startNode(r).key AS from_key, endNode(r).key AS to_key
			ORDER BY r.connection_type DESC
			LIMIT 1
		`, map[string]any{"a": keys[i], "b": keys[i+1]})
		if err != nil {
			return nil, fmt.Errorf("resolving edge %s-%s: %w", keys[i], keys[i+1], err)
		}
		if len(rows) == 0 {
			continue
		}
		key, _ := rows[0]["key"].(string)
		connType, _ := rows[0]["connection_type"].(string)
		fromKey, _ := rows[0]["from_key"].(string)
		toKey, _ := rows[0]["to_key"].(string)
		edges = append(edges, model.MoEdge{
			Key:            key,
			From:           fromKey,
			To:             toKey,
			ConnectionType: model.ConnectionType(connType),
		})
	}
	return edges, nil
}

func tmosForNodes(nodes []model.MoNode, tmoByID map[int64]model.TmoNode) []model.TmoNode {
	seen := make(map[int64]struct{}, len(nodes))
	var out []model.TmoNode
	for _, n := range nodes {
		if _, ok := seen[n.Tmo]; ok {
			continue
		}
		seen[n.Tmo] = struct{}{}
		if tmo, ok := tmoByID[n.Tmo]; ok {
			out = append(out, tmo)
		}
	}
	return out
}

// nonLineKeyHash hashes the sorted set of non-line-geometry node keys in
// a path, mirroring exclude_identical_paths.py's dedup-by-parent-point
// logic: two paths threading the same real endpoints through different
// intermediate cabling collapse to one.
func nonLineKeyHash(nodes []model.MoNode, tmoByID map[int64]model.TmoNode) string {
	var keys []string
	for _, n := range nodes {
		if tmo, ok := tmoByID[n.Tmo]; ok && tmo.IsLine() {
			continue
		}
		keys = append(keys, n.Key)
	}
	sort.Strings(keys)
	hash := ""
	for _, k := range keys {
		hash += "|" + k
	}
	return hash
}
