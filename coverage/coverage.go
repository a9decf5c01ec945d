// Package coverage models the time spans over which data exists for an
// object: an ordered set of disjoint closed intervals in ephemeris time.
package coverage

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"

	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// ErrDataIntegrity reports malformed interval data: inverted bounds,
// unsorted or overlapping input, or a dangling endpoint.
var ErrDataIntegrity = errors.New("malformed coverage data")

// Interval is a closed span [Begin, End] of ephemeris time.
type Interval struct {
	Begin timectrl.Epoch `json:"begin"`
	End   timectrl.Epoch `json:"end"`
}

// Duration returns End-Begin in seconds.
func (iv Interval) Duration() float64 { return iv.End.Sub(iv.Begin) }

// Contains reports whether t lies within the interval, bounds included.
func (iv Interval) Contains(t timectrl.Epoch) bool { return t >= iv.Begin && t <= iv.End }

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", iv.Begin, iv.End)
}

func (iv Interval) valid() bool {
	return !math.IsNaN(float64(iv.Begin)) && !math.IsNaN(float64(iv.End)) && iv.Begin <= iv.End
}

// Window is an immutable set of disjoint intervals sorted by Begin. No two
// stored intervals overlap or touch; touching spans are continuous coverage
// and are kept as one interval. The zero Window is empty, meaning no data.
type Window struct {
	ivs []Interval
}

// New builds a window from intervals that are already in canonical order.
// Inverted bounds, unsorted input and overlaps are rejected with
// ErrDataIntegrity; adjacent intervals sharing an endpoint are merged.
func New(intervals ...Interval) (Window, error) {
	out := make([]Interval, 0, len(intervals))
	for i, iv := range intervals {
		if !iv.valid() {
			return Window{}, fmt.Errorf("%w: interval %d has begin %v after end %v", ErrDataIntegrity, i, float64(iv.Begin), float64(iv.End))
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			switch {
			case iv.Begin < last.Begin:
				return Window{}, fmt.Errorf("%w: interval %d begins at %v before its predecessor at %v", ErrDataIntegrity, i, float64(iv.Begin), float64(last.Begin))
			case iv.Begin < last.End:
				return Window{}, fmt.Errorf("%w: interval %d overlaps its predecessor ending at %v", ErrDataIntegrity, i, float64(last.End))
			case iv.Begin == last.End:
				last.End = iv.End
				continue
			}
		}
		out = append(out, iv)
	}
	return Window{ivs: out}, nil
}

// FromPairs builds a window from the flat layout [b0, e0, b1, e1, ...].
func FromPairs(endpoints []float64) (Window, error) {
	if len(endpoints)%2 != 0 {
		return Window{}, fmt.Errorf("%w: odd number of endpoints (%d)", ErrDataIntegrity, len(endpoints))
	}
	ivs := make([]Interval, 0, len(endpoints)/2)
	for i := 0; i < len(endpoints); i += 2 {
		ivs = append(ivs, Interval{Begin: timectrl.Epoch(endpoints[i]), End: timectrl.Epoch(endpoints[i+1])})
	}
	return New(ivs...)
}

// Single returns a window holding one interval.
func Single(begin, end timectrl.Epoch) (Window, error) {
	return New(Interval{Begin: begin, End: end})
}

// Unlimited returns a window covering every finite epoch.
func Unlimited() Window {
	return Window{ivs: []Interval{{Begin: -math.MaxFloat64, End: math.MaxFloat64}}}
}

// Union returns the window covering every epoch covered by a or b.
func Union(a, b Window) Window {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	merged := make([]Interval, 0, len(a.ivs)+len(b.ivs))
	i, j := 0, 0
	for i < len(a.ivs) || j < len(b.ivs) {
		var next Interval
		if j >= len(b.ivs) || (i < len(a.ivs) && a.ivs[i].Begin <= b.ivs[j].Begin) {
			next = a.ivs[i]
			i++
		} else {
			next = b.ivs[j]
			j++
		}
		merged = appendMerged(merged, next)
	}
	return Window{ivs: merged}
}

// appendMerged appends iv to a sorted, disjoint slice whose last Begin is
// not after iv.Begin, merging on overlap or contact.
func appendMerged(out []Interval, iv Interval) []Interval {
	if n := len(out); n > 0 && iv.Begin <= out[n-1].End {
		if iv.End > out[n-1].End {
			out[n-1].End = iv.End
		}
		return out
	}
	return append(out, iv)
}

// Add returns w with iv unioned in. Intervals may be added in any order.
func (w Window) Add(iv Interval) (Window, error) {
	if !iv.valid() {
		return w, fmt.Errorf("%w: begin %v after end %v", ErrDataIntegrity, float64(iv.Begin), float64(iv.End))
	}
	return Union(w, Window{ivs: []Interval{iv}}), nil
}

// Intersect returns the window covered by both a and b.
func Intersect(a, b Window) Window {
	var out []Interval
	i, j := 0, 0
	for i < len(a.ivs) && j < len(b.ivs) {
		lo := max(a.ivs[i].Begin, b.ivs[j].Begin)
		hi := min(a.ivs[i].End, b.ivs[j].End)
		if lo <= hi {
			out = append(out, Interval{Begin: lo, End: hi})
		}
		if a.ivs[i].End < b.ivs[j].End {
			i++
		} else {
			j++
		}
	}
	return Window{ivs: out}
}

// Contains reports whether t falls inside some interval, bounds included.
func (w Window) Contains(t timectrl.Epoch) bool {
	// First interval whose End is >= t; t is covered iff it starts by t.
	k := sort.Search(len(w.ivs), func(i int) bool { return w.ivs[i].End >= t })
	return k < len(w.ivs) && w.ivs[k].Begin <= t
}

// containsScan is the linear reference for Contains.
func (w Window) containsScan(t timectrl.Epoch) bool {
	for _, iv := range w.ivs {
		if iv.Contains(t) {
			return true
		}
	}
	return false
}

// Intervals yields the disjoint intervals in ascending order. An empty
// window yields nothing.
func (w Window) Intervals() iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		for _, iv := range w.ivs {
			if !yield(iv) {
				return
			}
		}
	}
}

// Slice returns a copy of the intervals.
func (w Window) Slice() []Interval { return slices.Clone(w.ivs) }

// Len returns the number of disjoint intervals.
func (w Window) Len() int { return len(w.ivs) }

// IsEmpty reports whether the window holds no data.
func (w Window) IsEmpty() bool { return len(w.ivs) == 0 }

// Begin returns the earliest covered epoch; ok is false for an empty window.
func (w Window) Begin() (timectrl.Epoch, bool) {
	if w.IsEmpty() {
		return 0, false
	}
	return w.ivs[0].Begin, true
}

// End returns the latest covered epoch; ok is false for an empty window.
func (w Window) End() (timectrl.Epoch, bool) {
	if w.IsEmpty() {
		return 0, false
	}
	return w.ivs[len(w.ivs)-1].End, true
}

// Total returns the summed duration of all intervals in seconds.
func (w Window) Total() float64 {
	var sum float64
	for _, iv := range w.ivs {
		sum += iv.Duration()
	}
	return sum
}

// Equal reports whether two windows hold the same intervals.
func (w Window) Equal(o Window) bool { return slices.Equal(w.ivs, o.ivs) }
