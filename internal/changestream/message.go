// Package changestream implements C8: the per-projection change-stream
// updater. A worker subscribes to the inventory's change topic and
// incrementally applies TMO/TPRM/MO/PRM mutations to the already-built
// graph, preserving the invariants the full builder (C6) establishes
// (spec §4.7).
package changestream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// EntityClass is the change-stream message key's class component.
type EntityClass string

const (
	ClassTMO  EntityClass = "TMO"
	ClassTPRM EntityClass = "TPRM"
	ClassMO   EntityClass = "MO"
	ClassPRM  EntityClass = "PRM"
)

// Op is the change-stream message key's operation component. Create/
// Update are mutable during cascade: an orchestrator may reissue one as
// the other after discovering the target's actual state (spec §4.7).
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Key is a parsed "<class>:<op>" message key.
type Key struct {
	Class EntityClass
	Op    Op
}

// ParseKey decodes a raw Kafka message key, e.g. "MO:created".
func ParseKey(raw string) (Key, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("malformed change-stream key %q", raw)
	}
	class := EntityClass(parts[0])
	switch class {
	case ClassTMO, ClassTPRM, ClassMO, ClassPRM:
	default:
		return Key{}, fmt.Errorf("unknown change-stream class %q", parts[0])
	}
	op := Op(parts[1])
	switch op {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return Key{}, fmt.Errorf("unknown change-stream op %q", parts[1])
	}
	return Key{Class: class, Op: op}, nil
}

// Envelope is one consumed change-stream message: its parsed key plus
// the raw JSON payload, which decodes to a list of entities of the
// matching class (ListTMO/ListTPRM/ListMO/ListPRM in spec §6).
type Envelope struct {
	Key       Key
	Database  string // target projection: the database of the worker that consumed the message
	Payload   []byte
	Partition int32
	Offset    int64
}

// DecodeTmos decodes the payload as a list of raw TMO records.
func (e Envelope) DecodeTmos() ([]model.Tmo, error) {
	var out []model.Tmo
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decoding ListTMO payload: %w", err)
	}
	return out, nil
}

// DecodeTprms decodes the payload as a list of raw TPRM records.
func (e Envelope) DecodeTprms() ([]model.Tprm, error) {
	var out []model.Tprm
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decoding ListTPRM payload: %w", err)
	}
	return out, nil
}

// DecodeMos decodes the payload as a list of raw MO records.
func (e Envelope) DecodeMos() ([]model.Mo, error) {
	var out []model.Mo
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decoding ListMO payload: %w", err)
	}
	return out, nil
}

// DecodePrms decodes the payload as a list of raw PRM records.
func (e Envelope) DecodePrms() ([]model.Prm, error) {
	var out []model.Prm
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("decoding ListPRM payload: %w", err)
	}
	return out, nil
}
