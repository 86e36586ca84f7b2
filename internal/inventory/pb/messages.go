// Package pb defines the wire messages for the GraphInformer RPC service
// consumed by the inventory client (C2, spec §6). These mirror the
// original system's services/inventory_proto/graph_pb2 message shapes;
// wire encoding is JSON-over-gRPC (see inventory.jsonCodec) rather than
// protobuf reflection, since the real .proto contract is owned and
// published by the inventory service team, out of scope for this
// projection (spec §1).
package pb

// InTmoID requests the TMO tree rooted at TmoID (nil root = whole tree).
type InTmoID struct {
	TmoID *int64 `json:"tmo_id,omitempty"`
}

// TmoTreeNode is one recursive element of OutTmoTree.nodes.
type TmoTreeNode struct {
	ID                    string        `json:"id"`
	PID                   string        `json:"p_id,omitempty"`
	Name                  string        `json:"name"`
	Enabled               bool          `json:"enabled"`
	GlobalUniqueness      bool          `json:"global_uniqueness"`
	Virtual               bool          `json:"virtual"`
	Materialize           bool          `json:"materialize"`
	GeometryType          string        `json:"geometry_type,omitempty"`
	LineType              string        `json:"line_type,omitempty"`
	Icon                  string        `json:"icon,omitempty"`
	Label                 []string      `json:"label"`
	PointsConstraintByTmo []string      `json:"points_constraint_by_tmo"`
	Child                 []TmoTreeNode `json:"child"`
}

type OutTmoTree struct {
	Nodes []TmoTreeNode `json:"nodes"`
}

// InTmoIDs requests TPRMs for a set of TMOs.
type InTmoIDs struct {
	TmoID []int64 `json:"tmo_id"`
}

type TprmMessage struct {
	ID         string   `json:"id"`
	TmoID      string   `json:"tmo_id"`
	Name       string   `json:"name"`
	ValType    string   `json:"val_type"`
	Multiple   bool     `json:"multiple"`
	Required   bool     `json:"required"`
	Returnable bool     `json:"returnable"`
	Constraint string   `json:"constraint,omitempty"`
}

type OutTprms struct {
	Tprms []TprmMessage `json:"tprms"`
}

// InMOsByTMOid requests a chunked stream of MOs under a TMO.
type InMOsByTMOid struct {
	TmoID            int64  `json:"tmo_id"`
	MoFilterBy       string `json:"mo_filter_by,omitempty"`
	PrmFilterBy      string `json:"prm_filter_by,omitempty"`
	KeepMoWithoutPrm bool   `json:"keep_mo_without_prm"`
	ChunkSize        int32  `json:"chunk_size"`
}

type PrmMessage struct {
	ID     string `json:"id"`
	TprmID string `json:"tprm_id"`
	MoID   string `json:"mo_id"`
	Value  string `json:"value"`
}

type MoMessage struct {
	ID        string       `json:"id"`
	TmoID     string       `json:"tmo_id"`
	PID       string       `json:"p_id,omitempty"`
	Name      string       `json:"name"`
	Active    bool         `json:"active"`
	PointAID  string       `json:"point_a_id"`
	PointBID  string       `json:"point_b_id"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Version   string       `json:"version"`
	Params    []PrmMessage `json:"params"`
}

type OutMOsChunk struct {
	Mo []MoMessage `json:"mo"`
}

// InTmoByMoID resolves a single MO's owning TMO id.
type InTmoByMoID struct {
	MoID int64 `json:"mo_id"`
}

type OutTmoID struct {
	TmoID string `json:"tmo_id"`
}

type InMOsByMoIDs struct {
	MoIDs []int64 `json:"mo_ids"`
}

type OutMOsByMoIds struct {
	Mos []MoMessage `json:"mos"`
}

type InPRMsByPRMIds struct {
	PrmIDs []int64 `json:"prm_ids"`
}

type OutPRMsByPRMIds struct {
	// PrmsWithTmo is a flattened (prm, owning tmo id) pair list, matching
	// the original's behavior of attaching tmo_id to each returned PRM so
	// the client can batch-resolve TPRM definitions in one follow-up call.
	PrmsWithTmo []PrmWithTmo `json:"prms"`
}

type PrmWithTmo struct {
	PrmMessage
	TmoID string `json:"tmo_id"`
}

type InTprmID struct {
	TprmID int64 `json:"tprm_id"`
}

type InTprmIDs struct {
	TprmIDs []int64 `json:"tprm_ids"`
}

type OutTmoIDs struct {
	TmoIDs []string `json:"tmo_ids"`
}
