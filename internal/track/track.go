// Package track aggregates decoded UAT fields over time, keyed by
// aircraft address, using a generic aged-value table usable for any
// field the UAT payload decoder produces.
package track

import (
	"sync"

	"uat978/internal/uat"
)

// AgedField holds a value plus the last time it was observed
// (UpdatedMs) and the last time an observation actually changed it
// (ChangedMs). An update at or before the current UpdatedMs is
// discarded.
type AgedField[T comparable] struct {
	Value     T
	UpdatedMs int64
	ChangedMs int64
	set       bool
}

// Update applies a new observation at time at if at is strictly newer
// than the field's current UpdatedMs (or the field has never been
// set). It reports whether the update was applied.
func (f *AgedField[T]) Update(value T, at int64) bool {
	if f.set && at <= f.UpdatedMs {
		return false
	}
	if !f.set || value != f.Value {
		f.ChangedMs = at
	}
	f.Value = value
	f.UpdatedMs = at
	f.set = true
	return true
}

// Get returns the field's current value and whether it has ever been
// set.
func (f *AgedField[T]) Get() (T, bool) {
	return f.Value, f.set
}

// Aircraft aggregates a single address's most recently observed
// fields. Only the fields that matter for cross-message aggregation
// are tracked here; anything that is meaningful on a single message in
// isolation stays in uat.Message and is not duplicated here.
type Aircraft struct {
	Address uint32

	Position          AgedField[uat.Position]
	PressureAltitude  AgedField[int]
	GeometricAltitude AgedField[int]
	Callsign          AgedField[string]

	LastSeenMs int64
}

// Table aggregates Aircraft records by address. It is safe for
// concurrent use: the receiver pipeline runs on one goroutine, but
// consumers (e.g. a future status/metrics endpoint) may read
// concurrently, so the map is guarded by a mutex.
type Table struct {
	mu        sync.RWMutex
	aircrafts map[uint32]*Aircraft
}

// NewTable builds an empty Table.
func NewTable() *Table {
	return &Table{aircrafts: make(map[uint32]*Aircraft)}
}

// Get returns the Aircraft record for address, creating it if absent.
func (t *Table) Get(address uint32) *Aircraft {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.aircrafts[address]
	if !ok {
		a = &Aircraft{Address: address}
		t.aircrafts[address] = a
	}
	return a
}

// Snapshot returns a copy of every tracked Aircraft, sorted by no
// particular order; callers that need a stable order should sort by
// Address themselves.
func (t *Table) Snapshot() []Aircraft {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Aircraft, 0, len(t.aircrafts))
	for _, a := range t.aircrafts {
		out = append(out, *a)
	}
	return out
}

// Len reports the number of tracked aircraft.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aircrafts)
}

// Observe folds a decoded message into the address's aggregate
// record, updating whichever aged fields the message carries and
// leaving the rest untouched. It is the one place decoded message
// fields cross into the aggregation layer.
func (t *Table) Observe(m *uat.Message) *Aircraft {
	a := t.Get(m.Address)

	t.mu.Lock()
	defer t.mu.Unlock()

	at := m.ReceivedAtMs
	if m.Position != nil {
		a.Position.Update(*m.Position, at)
	}
	if m.PressureAltitudeFt != nil {
		a.PressureAltitude.Update(*m.PressureAltitudeFt, at)
	}
	if m.GeometricAltitudeFt != nil {
		a.GeometricAltitude.Update(*m.GeometricAltitudeFt, at)
	}
	if m.Callsign != nil {
		a.Callsign.Update(*m.Callsign, at)
	}
	if at > a.LastSeenMs {
		a.LastSeenMs = at
	}
	return a
}

// Prune removes any aircraft whose LastSeenMs is older than
// olderThanMs, returning the number removed. Callers typically invoke
// this on a periodic timer to bound table growth.
func (t *Table) Prune(olderThanMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for addr, a := range t.aircrafts {
		if a.LastSeenMs < olderThanMs {
			delete(t.aircrafts, addr)
			removed++
		}
	}
	return removed
}
