package batch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_SequenceMonotonicity validates that sequence numbers
// assigned within one batch window are strictly increasing and unique,
// regardless of window base or operation count.
func TestProperty_SequenceMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sequences within a window are strictly increasing", prop.ForAll(
		func(baseUnix int64, count int) bool {
			a := NewAccumulator(func() time.Time { return time.Unix(baseUnix, 0) })

			var prev int64
			for i := 0; i < count; i++ {
				seq := a.Append(json.RawMessage(`{}`))
				if i > 0 && seq <= prev {
					return false
				}
				prev = seq
			}
			return true
		},
		gen.Int64Range(0, 2_000_000_000),
		gen.IntRange(1, 500),
	))

	properties.Property("sequences within a window are unique", prop.ForAll(
		func(baseUnix int64, count int) bool {
			a := NewAccumulator(func() time.Time { return time.Unix(baseUnix, 0) })

			seen := make(map[int64]bool, count)
			for i := 0; i < count; i++ {
				seq := a.Append(json.RawMessage(`{}`))
				if seen[seq] {
					return false
				}
				seen[seq] = true
			}
			return true
		},
		gen.Int64Range(0, 2_000_000_000),
		gen.IntRange(1, 500),
	))

	properties.Property("window reset with a later clock keeps sequences increasing across flushes", prop.ForAll(
		func(baseUnix int64, perWindow int, windows int) bool {
			now := baseUnix
			a := NewAccumulator(func() time.Time { return time.Unix(now, 0) })

			var prev int64
			for w := 0; w < windows; w++ {
				for i := 0; i < perWindow; i++ {
					seq := a.Append(json.RawMessage(`{}`))
					if prev != 0 && seq <= prev {
						return false
					}
					prev = seq
				}
				a.Drain()
				// Window base must advance past the sequences handed out,
				// mirroring wall clock time moving forward during a run.
				now += int64(perWindow) + 1
				a.ResetWindow()
			}
			return true
		},
		gen.Int64Range(1_000_000, 2_000_000_000),
		gen.IntRange(1, 50),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
