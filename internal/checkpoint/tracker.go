// Package checkpoint tracks the last checkpoint value that is safe to
// report to the caller.
package checkpoint

import "encoding/json"

// Tracker holds the most recently seen checkpoint value. A checkpoint is
// reportable only while no record accepted after it remains unflushed;
// the dispatcher enforces that by invalidating on every accepted record.
type Tracker struct {
	value json.RawMessage
	held  bool
}

// NewTracker creates a tracker with no checkpoint held.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Set replaces the held checkpoint value unconditionally. The value may
// be JSON null; null is still a held checkpoint.
func (t *Tracker) Set(value json.RawMessage) {
	t.value = value
	t.held = true
}

// Invalidate resets the tracker to "none held". Called whenever a record
// is accepted into the batch, since the record's durability is not yet
// guaranteed.
func (t *Tracker) Invalidate() {
	t.value = nil
	t.held = false
}

// Current returns the held checkpoint value and whether one is held.
func (t *Tracker) Current() (json.RawMessage, bool) {
	return t.value, t.held
}
