// Package segment partitions a linear timeline into contiguous, gap-free
// segments whose durations respect a minimum/maximum bound.
//
// All durations are integer milliseconds. The package performs no I/O; the
// resulting Plan is handed to an extractor that materializes each range.
package segment

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for planning.
var (
	// ErrInvalidBound is returned when min/max are malformed or the strategy is unknown.
	ErrInvalidBound = errors.New("invalid bound")
	// ErrTooShort is returned when the total duration is below the minimum bound.
	ErrTooShort = errors.New("total duration is shorter than the minimum segment duration")
)

// Strategy selects how each segment duration is chosen.
type Strategy string

const (
	// StrategyRandom draws every segment duration uniformly from [Min, Max].
	StrategyRandom Strategy = "random"
	// StrategyEqual splits the remaining duration into near-uniform pieces.
	StrategyEqual Strategy = "equal"
)

// IsValid returns true if the strategy is one of the known variants.
func (s Strategy) IsValid() bool {
	return s == StrategyRandom || s == StrategyEqual
}

// ParseStrategy converts a user supplied name into a Strategy.
// "equal-ish" is accepted as an alias of "equal".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random":
		return StrategyRandom, nil
	case "equal", "equal-ish", "equalish":
		return StrategyEqual, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidBound, name)
	}
}

// Bound constrains the duration of individual segments.
type Bound struct {
	Min int64
	Max int64
}

// Validate reports ErrInvalidBound unless 0 < Min < Max.
func (b Bound) Validate() error {
	if b.Min <= 0 {
		return fmt.Errorf("%w: min duration must be positive, got %d", ErrInvalidBound, b.Min)
	}
	if b.Max <= b.Min {
		return fmt.Errorf("%w: max duration %d must be greater than min duration %d", ErrInvalidBound, b.Max, b.Min)
	}
	return nil
}

// Contains reports whether d lies in [Min, Max].
func (b Bound) Contains(d int64) bool {
	return d >= b.Min && d <= b.Max
}

// Segment is a half-open range [Start, End) on the timeline.
type Segment struct {
	Start int64 `json:"start_ms"`
	End   int64 `json:"end_ms"`
}

// Duration returns End - Start.
func (s Segment) Duration() int64 {
	return s.End - s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// Plan is an ordered, contiguous sequence of segments starting at zero.
type Plan []Segment

// Total returns the end of the last segment, or zero for an empty plan.
func (p Plan) Total() int64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].End
}

// Durations returns the duration of every segment in order.
func (p Plan) Durations() []int64 {
	out := make([]int64, len(p))
	for i, s := range p {
		out[i] = s.Duration()
	}
	return out
}

// Check verifies that p covers [0, total) without gaps or overlaps and that
// every segment except the last lies within b. The last segment may exceed
// b.Max (it absorbed a short tail) but never falls below b.Min.
func (p Plan) Check(total int64, b Bound) error {
	if len(p) == 0 {
		return errors.New("plan is empty")
	}
	if p[0].Start != 0 {
		return fmt.Errorf("plan starts at %d, want 0", p[0].Start)
	}
	for i, s := range p {
		if s.Duration() <= 0 {
			return fmt.Errorf("segment %d %s is empty", i, s)
		}
		if i > 0 && p[i-1].End != s.Start {
			return fmt.Errorf("segment %d %s does not follow %s", i, s, p[i-1])
		}
		last := i == len(p)-1
		if !last && !b.Contains(s.Duration()) {
			return fmt.Errorf("segment %d %s duration %d outside [%d, %d]", i, s, s.Duration(), b.Min, b.Max)
		}
		if last && s.Duration() < b.Min {
			return fmt.Errorf("last segment %s duration %d below min %d", s, s.Duration(), b.Min)
		}
	}
	if p.Total() != total {
		return fmt.Errorf("plan ends at %d, want %d", p.Total(), total)
	}
	return nil
}
