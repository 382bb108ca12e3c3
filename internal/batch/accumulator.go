// Package batch provides the in-memory accumulator for pending upsert
// operations within the active flush window.
package batch

import (
	"encoding/json"
	"time"

	"github.com/stitchload/stitchload/pkg/types"
)

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

// Accumulator buffers pending operations for the active flush window.
// Sequence numbers are assigned as windowBase + countInWindow, strictly
// increasing and unique within the window. The accumulator never decides
// when to flush; the dispatcher owns the threshold check.
type Accumulator struct {
	now        Clock
	windowBase int64
	pending    []types.Operation
	ordinal    int
}

// NewAccumulator creates an empty accumulator with its window base taken
// from the supplied clock. Pass nil for the wall clock.
func NewAccumulator(now Clock) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{
		now:        now,
		windowBase: now().Unix(),
		ordinal:    1,
	}
}

// Append adds one validated record payload as a pending upsert and
// returns its assigned sequence number. Validation happened upstream;
// Append always succeeds.
func (a *Accumulator) Append(data json.RawMessage) int64 {
	seq := a.windowBase + int64(len(a.pending)) + 1
	a.pending = append(a.pending, types.Operation{
		Action:   types.ActionUpsert,
		Data:     data,
		Sequence: seq,
	})
	return seq
}

// Size returns the number of pending operations.
func (a *Accumulator) Size() int {
	return len(a.pending)
}

// Drain atomically removes and returns all pending operations in append
// order, resetting the buffer to empty. wasEmpty reports whether there
// was nothing to drain.
func (a *Accumulator) Drain() (ops []types.Operation, wasEmpty bool) {
	if len(a.pending) == 0 {
		return nil, true
	}
	ops = a.pending
	a.pending = nil
	return ops, false
}

// ResetWindow refreshes the window base timestamp and advances the batch
// ordinal. Called after every successful flush.
func (a *Accumulator) ResetWindow() {
	a.windowBase = a.now().Unix()
	a.ordinal++
}

// Ordinal returns the current batch ordinal, used only for progress
// reporting.
func (a *Accumulator) Ordinal() int {
	return a.ordinal
}
