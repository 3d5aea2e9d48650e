package segment

import (
	"fmt"
	"math/rand/v2"
)

// maxPrealloc caps the capacity reserved up front; longer plans grow by append.
const maxPrealloc = 1024

// Planner computes segment plans. It owns its random source, so a single
// Planner must not be shared between goroutines; create one per caller.
type Planner struct {
	rng *rand.Rand
}

// NewPlanner creates a Planner drawing from src.
// If src is nil, a freshly seeded PCG source is used.
func NewPlanner(src rand.Source) *Planner {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Planner{rng: rand.New(src)}
}

// NewSeededPlanner creates a Planner whose random plans are reproducible.
func NewSeededPlanner(seed uint64) *Planner {
	return NewPlanner(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Plan partitions [0, total) into segments bounded by b using strategy s.
//
// A remainder shorter than b.Min is merged into the previous segment, so the
// last segment may be longer than b.Max (up to b.Max + b.Min - 1). No other
// segment leaves the bound. On error no plan is returned.
func (p *Planner) Plan(total int64, b Bound, s Strategy) (Plan, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidBound, s)
	}
	if total < b.Min {
		return nil, fmt.Errorf("%w: total %d, min %d", ErrTooShort, total, b.Min)
	}

	plan := make(Plan, 0, min(total/b.Max+1, maxPrealloc))
	var pos int64
	for pos < total {
		remaining := total - pos

		if remaining < b.Min && len(plan) > 0 {
			plan[len(plan)-1].End = total
			break
		}

		var d int64
		switch s {
		case StrategyEqual:
			d = equalDuration(remaining, b)
		default:
			d = p.randomDuration(remaining, b)
		}

		end := min(pos+d, total)
		plan = append(plan, Segment{Start: pos, End: end})
		pos = end
	}
	return plan, nil
}

func (p *Planner) randomDuration(remaining int64, b Bound) int64 {
	if remaining < b.Max {
		return remaining
	}
	return b.Min + p.rng.Int64N(b.Max-b.Min+1)
}

// equalDuration is recomputed on every iteration, so piece sizes may drift
// slightly once clamping or tail merging shifts the remainder.
func equalDuration(remaining int64, b Bound) int64 {
	pieces := remaining / b.Max
	if remaining%b.Max != 0 {
		pieces++
	}
	d := remaining / pieces
	return max(b.Min, min(d, b.Max))
}
