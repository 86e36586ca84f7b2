package changestream

// Event is one cascaded unit of work an orchestrator wants reprocessed
// within the same message-handling turn, e.g. an update reclassified as
// a create because the target didn't exist yet. Entity holds the
// class-specific payload (model.Tmo, model.Tprm, model.Mo, or
// model.Prm) the matching orchestrator method expects.
type Event struct {
	Class  EntityClass
	Entity interface{}
}

// OperationResponse is the small three-array result every orchestrator
// method returns, letting a single inbound message cascade into further
// work without re-entering the Kafka consumer (spec §4.7).
type OperationResponse struct {
	Create []Event
	Update []Event
	Delete []Event
}

// merge folds other's events into r in place.
func (r *OperationResponse) merge(other OperationResponse) {
	r.Create = append(r.Create, other.Create...)
	r.Update = append(r.Update, other.Update...)
	r.Delete = append(r.Delete, other.Delete...)
}
