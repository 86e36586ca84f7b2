package changestream

import (
	"context"
	"fmt"
	"sync"

	rediscache "github.com/avataa-hq/avataa-graphs/internal/cache"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// SchemaCache is the worker's in-process mirror of which TMOs/TPRMs are
// currently active in a projection, seeded from the store and kept
// current as TMO/TPRM events are applied (spec §4.7: "updated before
// filtering on create and after on delete"). Filtering against it
// avoids materializing instance-layer work for entities whose schema
// has already been (or not yet been) disabled.
type SchemaCache struct {
	mu        sync.RWMutex
	tmoActive map[int64]bool  // tmo id -> enabled
	tprmTmo   map[int64]int64 // tprm id -> owning tmo id
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{tmoActive: make(map[int64]bool), tprmTmo: make(map[int64]int64)}
}

// Seed populates the cache from the store's current TMO layer. TPRM
// definitions are never persisted as graph nodes (every builder pass
// re-fetches them live from the inventory, same convention as C6), so
// the tprm->tmo ownership map is rebuilt the same way here: a single
// GetTprmsByTmoID call covering every TMO currently in the projection. Without
// this, tprmTmo would start empty and reject every PRM event
// referencing a TPRM older than the worker's own startup.
//
// redisCache is an optional look-aside cache (nil disables it): schema
// reads are far less frequent to change than instance data (spec §5),
// so a worker restarting within the cache's TTL skips the inventory
// round-trip entirely.
func (c *SchemaCache) Seed(ctx context.Context, store *graphstore.Store, inv *inventory.Client, redisCache *rediscache.Client, database string) error {
	rows, err := store.ReadRecords(ctx, database, `MATCH (t:Tmo) RETURN t`, nil)
	if err != nil {
		return err
	}
	tmos := graphstore.DecodeTmoNodes(rows)

	tmoIDs := make([]int64, len(tmos))
	for i, tmo := range tmos {
		tmoIDs[i] = tmo.TmoID
	}

	cacheKey := rediscache.TmoTreeKey(database) + ":tprms"
	var tprms []model.Tprm
	cached := false
	if redisCache != nil {
		if hit, err := redisCache.Get(ctx, cacheKey, &tprms); err == nil && hit {
			cached = true
		}
	}
	if !cached {
		tprms, err = inv.GetTprmsByTmoID(ctx, tmoIDs)
		if err != nil {
			return fmt.Errorf("seeding tprm ownership: %w", err)
		}
		if redisCache != nil {
			_ = redisCache.Set(ctx, cacheKey, tprms)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tmoActive = make(map[int64]bool, len(tmos))
	c.tprmTmo = make(map[int64]int64, len(tprms))
	for _, tmo := range tmos {
		c.tmoActive[tmo.TmoID] = tmo.Enabled
	}
	for _, tprm := range tprms {
		c.tprmTmo[tprm.ID] = tprm.TmoID
	}
	return nil
}

// SetTmoActive updates a single TMO's active flag (called before
// filtering create events, after filtering delete events).
func (c *SchemaCache) SetTmoActive(tmoID int64, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tmoActive[tmoID] = active
}

// RemoveTmo drops a TMO (and implicitly its TPRMs) from the cache.
func (c *SchemaCache) RemoveTmo(tmoID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tmoActive, tmoID)
	for tprmID, owner := range c.tprmTmo {
		if owner == tmoID {
			delete(c.tprmTmo, tprmID)
		}
	}
}

// SetTprm records a TPRM's owning TMO.
func (c *SchemaCache) SetTprm(tprmID, tmoID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tprmTmo[tprmID] = tmoID
}

// RemoveTprm drops a TPRM from the cache.
func (c *SchemaCache) RemoveTprm(tprmID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tprmTmo, tprmID)
}

// TmoActive reports whether tmoID is currently active in the projection.
func (c *SchemaCache) TmoActive(tmoID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tmoActive[tmoID]
}

// TprmOwner returns the TMO that owns tprmID, and whether it's known.
func (c *SchemaCache) TprmOwner(tprmID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tmoID, ok := c.tprmTmo[tprmID]
	return tmoID, ok
}

// TprmActive reports whether tprmID's owning TMO is active.
func (c *SchemaCache) TprmActive(tprmID int64) bool {
	tmoID, ok := c.TprmOwner(tprmID)
	return ok && c.TmoActive(tmoID)
}
