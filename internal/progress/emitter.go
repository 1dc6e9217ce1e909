package progress

import "time"

// RunEmitter stamps run identity, warehouse, and wall-clock time onto events
// before forwarding them. Components below the engine emit bare events and
// stay ignorant of run bookkeeping.
type RunEmitter struct {
	runID     [16]byte
	warehouse string
	next      Emitter
	now       func() time.Time
}

// NewRunEmitter wraps next with run metadata stamping. A nil now defaults to
// time.Now in UTC.
func NewRunEmitter(runID [16]byte, warehouse string, next Emitter, now func() time.Time) *RunEmitter {
	if next == nil {
		next = NopEmitter{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RunEmitter{runID: runID, warehouse: warehouse, next: next, now: now}
}

// Emit fills the zero-valued identity fields and forwards the event.
func (r *RunEmitter) Emit(evt Event) {
	if evt.RunID == ([16]byte{}) {
		evt.RunID = r.runID
	}
	if evt.Warehouse == "" {
		evt.Warehouse = r.warehouse
	}
	if evt.TS.IsZero() {
		evt.TS = r.now()
	}
	r.next.Emit(evt)
}
