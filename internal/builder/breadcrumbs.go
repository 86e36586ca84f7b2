package builder

import (
	"context"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// addBreadcrumbs implements spec §4.5 step 9 (add_breadcrumbs.py): every
// MoNode's Breadcrumbs is its parent's breadcrumb path plus its own key,
// e.g. "/root/site-a/rack-3/". Roots (no p_id parent) get "/<key>/",
// e.g. "/root/". Computed
// top-down since each level depends on its parent's already-resolved
// value.
func (b *Builder) addBreadcrumbs(ctx context.Context, database string) error {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (m:Mo)
		OPTIONAL MATCH (parent:Mo)-[:MO_LINK {connection_type: $pid, virtual: false}]->(m)
		RETURN m.key AS key, parent.key AS parent_key
	`, map[string]any{"pid": string(model.ConnectionTypePID)})
	if err != nil {
		return err
	}

	parentOf := make(map[string]string, len(rows))
	childrenOf := make(map[string][]string, len(rows))
	var roots []string
	for _, row := range rows {
		key, _ := row["key"].(string)
		if key == "" {
			continue
		}
		if parentKey, ok := row["parent_key"].(string); ok && parentKey != "" {
			parentOf[key] = parentKey
			childrenOf[parentKey] = append(childrenOf[parentKey], key)
		} else {
			roots = append(roots, key)
		}
	}

	breadcrumbs := make(map[string]string, len(rows))
	queue := append([]string(nil), roots...)
	for _, key := range queue {
		breadcrumbs[key] = "/" + key + "/"
	}
	for i := 0; i < len(queue); i++ {
		current := queue[i]
		for _, child := range childrenOf[current] {
			if _, done := breadcrumbs[child]; done {
				continue
			}
			breadcrumbs[child] = breadcrumbs[current] + child + "/"
			queue = append(queue, child)
		}
	}

	updates := make([]map[string]any, 0, len(breadcrumbs))
	for key, path := range breadcrumbs {
		updates = append(updates, map[string]any{"key": key, "breadcrumbs": path})
	}
	if len(updates) == 0 {
		return nil
	}
	return b.store.WriteQuery(ctx, database, `
		UNWIND $updates AS u
		MATCH (m:Mo {key: u.key})
		SET m.breadcrumbs = u.breadcrumbs
	`, map[string]any{"updates": updates})
}
