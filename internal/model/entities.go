package model

import "time"

// Tprm is a Type-of-Parameter: an attribute definition on a TMO. Embedded
// in TmoNode.Params, and returned standalone by the inventory client.
type Tprm struct {
	ID         int64    `json:"id"`
	TmoID      int64    `json:"tmo_id"`
	Name       string   `json:"name"`
	ValType    ValType  `json:"val_type"`
	Multiple   bool     `json:"multiple"`
	Required   bool     `json:"required"`
	Returnable bool     `json:"returnable"`
	// Constraint is a JSON-encoded list of target TMO ids for link-typed
	// TPRMs (mo_link/two-way link/prm_link); nil for scalar types.
	Constraint []int64 `json:"constraint,omitempty"`
}

// IsLinkType reports whether this TPRM's value references other MOs/PRMs.
func (t Tprm) IsLinkType() bool {
	switch t.ValType {
	case ValTypeMoLink, ValTypeTwoWayLink, ValTypePrmLink:
		return true
	default:
		return false
	}
}

// Tmo is the inventory's raw Type-of-Managed-Object record (incoming_data.TMO).
type Tmo struct {
	ID                    int64   `json:"id"`
	PID                   *int64  `json:"p_id,omitempty"`
	Name                  string  `json:"name"`
	Enabled               bool    `json:"enabled"`
	GlobalUniqueness      bool    `json:"global_uniqueness"`
	Virtual               bool    `json:"virtual"`
	Materialize           bool    `json:"materialize"`
	GeometryType          *GeometryType `json:"geometry_type,omitempty"`
	LineType              *string `json:"line_type,omitempty"`
	Icon                  *string `json:"icon,omitempty"`
	Label                 []int64 `json:"label"`
	PointsConstraintByTmo []int64 `json:"points_constraint_by_tmo"` // aliased from point_tmo_const
	Params                []Tprm  `json:"params"`
	Children              []Tmo   `json:"child,omitempty"`

	CommutationTprms    []int64   `json:"commutation_tprms,omitempty"`
	ShowAsATable        bool      `json:"show_as_a_table"`
	BusyParameterGroups [][]int64 `json:"busy_parameter_groups,omitempty"`
}

// Prm is the inventory's raw Parameter (attribute instance).
type Prm struct {
	ID      int64       `json:"id"`
	TprmID  int64       `json:"tprm_id"`
	MoID    int64       `json:"mo_id"`
	Value   interface{} `json:"value"`
}

// Mo is the inventory's raw Managed Object record (incoming_data.MO).
// Its coordinates are decoded as given; no lat/long invariant is checked.
type Mo struct {
	ID         int64  `json:"id"`
	TmoID      int64  `json:"tmo_id"`
	PID        *int64 `json:"p_id,omitempty"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	PointAID   int64  `json:"point_a_id"`
	PointBID   int64  `json:"point_b_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Version    int64  `json:"version"`
	Params     []Prm  `json:"params"`
}

// ParsedValueTriggers records which other entities, if changed, invalidate
// a resolved ParsedValue.
type ParsedValueTriggers struct {
	Mos  []int64 `json:"mos"`
	Prms []int64 `json:"prms"`
}

// ParsedValue is the codec's resolved representation of a link-typed
// PRM value: the raw stored value plus a human-readable value and the
// set of entities that, on change, invalidate it.
type ParsedValue struct {
	RawValue interface{}         `json:"raw_value"`
	Value    interface{}         `json:"value"`
	Triggers ParsedValueTriggers `json:"triggers"`
}

// PrmDto is a Prm enriched with its resolved ParsedValue (nil until
// resolveParsedValue runs, e.g. for non-link scalar TPRMs).
type PrmDto struct {
	Prm
	ParsedValue *ParsedValue `json:"parsed_value,omitempty"`
}

// MoDto is an Mo whose Params have been upgraded to PrmDto.
type MoDto struct {
	Mo
	Params []PrmDto `json:"params"`
}

// TmoNode is the schema-layer vertex stored in the tmo collection.
type TmoNode struct {
	Key                   string // surrogate key == strconv.Itoa(TmoID)
	TmoID                 int64
	PID                   *int64
	Name                  string
	Enabled               bool
	GlobalUniqueness      bool
	Virtual               bool
	Materialize           bool
	GeometryType          *GeometryType
	LineType              *string
	Icon                  *string
	Label                 []int64
	PointsConstraintByTmo []int64
	Params                []Tprm
	CommutationTprms      []int64
	ShowAsATable          bool
	BusyParameterGroups   [][]int64
}

// IsLine reports whether this TMO represents a physical line object.
func (n TmoNode) IsLine() bool {
	return n.GeometryType != nil && *n.GeometryType == GeometryTypeLine
}

// TmoEdge is a schema-layer edge connecting two TmoNodes.
type TmoEdge struct {
	From     string // bare TmoNode key
	To       string // bare TmoNode key
	LinkType LinkType
	Enabled  bool
	TprmID   *int64
}

// MoNode is the instance-layer vertex. A MoNode is either a real MO
// (Data present, GroupedByTprm nil, MoIDs=[Data.ID]) or a grouping node
// (Data nil, GroupedByTprm set, MoIDs = union of constituent MO ids).
type MoNode struct {
	Key           string // surrogate key assigned by the store
	GroupedByTprm *int64
	GroupPID      *string // surrogate key of the MO this grouping node aggregates under
	Name          string
	Label         *string
	Tmo           int64
	MoIDs         []int64
	IsTrace       bool
	Data          *MoDto
	Indexed       []string
	Breadcrumbs   string // matches ^/(.+/)*$
}

// IsGrouping reports whether this node is a synthetic grouping node.
func (n MoNode) IsGrouping() bool { return n.GroupedByTprm != nil }

// MoEdge is the instance-layer edge.
type MoEdge struct {
	Key            string
	From           string // bare MoNode key
	To             string // bare MoNode key
	ConnectionType ConnectionType
	Prm            []int64
	Tprm           *int64
	IsTrace        bool
	Virtual        bool
	SourceID       *string
}

// PathEdge is the undirected, order-insensitive projection of a real
// non-p_id MoEdge, used exclusively by k-shortest-paths queries.
type PathEdge struct {
	From string
	To   string
}

// Signature returns an endpoint-order-insensitive key, matching the
// Python original's UniqueFromToEdge.__hash__.
func (e PathEdge) Signature() [2]string {
	if e.From <= e.To {
		return [2]string{e.From, e.To}
	}
	return [2]string{e.To, e.From}
}

// MainRecord is the global per-projection registry entry (C4).
type MainRecord struct {
	Key              string
	Name             string
	TmoID            int64
	Status           Status
	Database         string
	ActiveTmoIDs     []int64
	ErrorDescription *string
	TmoDatetime      *time.Time
	MoDatetime       *time.Time
}

// ConfigDoc is a per-projection settings singleton, always stored under
// Key == ConfigKeyStartFrom. The other ConfigKey* constants name its
// individual fields (spec §3: trace_tmo_id, trace_tprm_id, group_by,
// delete_orphan_branches) — they are not alternate storage keys.
type ConfigDoc struct {
	Key                    string
	StartFromTmoID         *int64
	StartFromTprmID        *int64
	TraceTmoID             *int64
	TraceTprmID            *int64
	GroupByTprmIDs         []int64
	DeleteOrphanBranches   bool
}

const (
	ConfigKeyStartFrom            = "start_from"
	ConfigKeyTraceTmoID           = "trace_tmo_id"
	ConfigKeyTraceTprmID          = "trace_tprm_id"
	ConfigKeyGroupBy              = "group_by"
	ConfigKeyDeleteOrphanBranches = "delete_orphan_branches"
)

// Path is a single result of a k-shortest-paths query (§4.6).
type Path struct {
	Nodes  []MoNode
	Edges  []MoEdge
	Tmo    []TmoNode
	Length int
}
