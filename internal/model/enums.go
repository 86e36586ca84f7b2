// Package model implements the graph projection's pure data model and
// codec (C3 of the spec): entities, value kinds, link kinds, the status
// enum, and the parsed-value decoder. No I/O lives here.
package model

// Status is the MainRecord lifecycle state (spec §3 "Lifecycles").
type Status string

const (
	StatusNew       Status = "New"
	StatusInProcess Status = "In Process"
	StatusComplete  Status = "Complete"
	StatusError     Status = "Error"
)

// LinkType classifies a TmoEdge (schema-layer edge).
type LinkType string

const (
	LinkTypePID                 LinkType = "p_id"
	LinkTypeMoLink               LinkType = "mo_link"
	LinkTypeTwoWayLink           LinkType = "two-way link"
	LinkTypePointTmoConstraint   LinkType = "point_tmo_constraint"
)

// ConnectionType classifies a MoEdge (instance-layer edge). The MO_LINK
// reciprocal kind is the literal string "two-way link" (space + hyphen);
// per SPEC_FULL §4 this is preserved bit-identically because it is stored
// verbatim in documents and queried on.
type ConnectionType string

const (
	ConnectionTypePID           ConnectionType = "p_id"
	ConnectionTypeMoLink        ConnectionType = "mo_link"
	ConnectionTypeTwoWayLink    ConnectionType = "two-way link"
	ConnectionTypePointA        ConnectionType = "point_a"
	ConnectionTypePointB        ConnectionType = "point_b"
	ConnectionTypeGeometryLine  ConnectionType = "geometry_line"
	ConnectionTypeCollapsed     ConnectionType = "collapsed"
)

// ValType is a TPRM's value kind, used by the codec to decode raw values
// and by the builder to classify params for indexing/linking.
type ValType string

const (
	ValTypeStr        ValType = "str"
	ValTypeInt        ValType = "int"
	ValTypeFloat      ValType = "float"
	ValTypeBool       ValType = "bool"
	ValTypeDate       ValType = "date"
	ValTypeDatetime   ValType = "datetime"
	ValTypeMoLink     ValType = "mo_link"
	ValTypeTwoWayLink ValType = "two-way link"
	ValTypePrmLink    ValType = "prm_link"
)

// GeometryType marks whether a TMO represents a physical line object.
type GeometryType string

const (
	GeometryTypeNone GeometryType = "none"
	GeometryTypeLine GeometryType = "line"
)

// TrackingType selects the trace-reconstruction squash level (C7, spec §4.6).
type TrackingType string

const (
	TrackingFull     TrackingType = "FULL"
	TrackingLocal    TrackingType = "LOCAL"
	TrackingNone     TrackingType = "NONE"
	TrackingGraph    TrackingType = "GRAPH"
	TrackingStraight TrackingType = "STRAIGHT"
)

// IfNotExistPolicy governs getOrCreateDatabase/getOrCreateCollection
// behavior in the graph store adapter (C1, spec §4.1).
type IfNotExistPolicy int

const (
	IfNotExistCreate IfNotExistPolicy = iota
	IfNotExistRaiseError
	IfNotExistReturnNone
)
