package interpolation

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Case is the rule Adjust applied to a value.
type Case string

const (
	CaseIdentity     Case = "Identity"
	CaseExact        Case = "Exact"
	CaseInterpolated Case = "Interpolated"
	CaseExtrapolated Case = "Extrapolated" // line through the two nearest points
	CaseOffsetOnly   Case = "OffsetOnly"   // single nearest point, constant offset
	CaseDegenerate   Case = "Degenerate"
)

// Result describes one adjustment.
type Result struct {
	Value    float64 `json:"value"`
	Adjusted float64 `json:"adjusted"`
	Case     Case    `json:"case"`
	// Points are the calibration points the result was computed from, nearest
	// first. Empty for CaseIdentity.
	Points []Point `json:"points,omitempty"`
}

// slot is one candidate point collected during the scan.
type slot struct {
	p  Point
	ok bool
}

func found(p Point) slot {
	return slot{p: p, ok: true}
}

// window holds the nearest and second-nearest points on each side of the
// queried value.
type window struct {
	belowNearest slot
	belowSecond  slot
	aboveNearest slot
	aboveSecond  slot
}

// below offers a point whose measured value is lower than the query. Closer
// means a larger measured value. On ties the earlier point stays nearest.
func (w *window) below(p Point) {
	switch {
	case !w.belowNearest.ok || p.Measured > w.belowNearest.p.Measured:
		w.belowSecond = w.belowNearest
		w.belowNearest = found(p)
	case !w.belowSecond.ok || p.Measured > w.belowSecond.p.Measured:
		w.belowSecond = found(p)
	}
}

// above offers a point whose measured value is higher than the query. Closer
// means a smaller measured value.
func (w *window) above(p Point) {
	switch {
	case !w.aboveNearest.ok || p.Measured < w.aboveNearest.p.Measured:
		w.aboveSecond = w.aboveNearest
		w.aboveNearest = found(p)
	case !w.aboveSecond.ok || p.Measured < w.aboveSecond.p.Measured:
		w.aboveSecond = found(p)
	}
}

// Adjust returns the estimated reference value for a measured value.
//
// With no points the value is returned unchanged. A point whose measured
// value equals the input yields its reference value. An input between two
// points is corrected by the linearly interpolated offset of the nearest point
// on each side. An input outside the calibrated range is mapped through the
// line defined by the two nearest points, or shifted by the offset of the only
// point on that side.
//
// NaN and infinite inputs are rejected with ErrInvalidValue.
func (t *Table) Adjust(value float64) (float64, error) {
	r, err := t.Explain(value)
	if err != nil {
		return 0, err
	}
	return r.Adjusted, nil
}

// MustAdjust is like Adjust but panics on error.
func (t *Table) MustAdjust(value float64) float64 {
	v, err := t.Adjust(value)
	if err != nil {
		panic(err)
	}
	return v
}

// AdjustAll adjusts every value against the same snapshot of the table. It
// stops at the first error, reporting the index of the failing value.
func (t *Table) AdjustAll(values []float64) ([]float64, error) {
	points := t.Snapshot()

	out := make([]float64, len(values))
	for i, v := range values {
		r, err := adjust(points, v)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "value #%d", i)
		}
		out[i] = r.Adjusted
	}
	return out, nil
}

// Explain is like Adjust but also reports which rule was applied and the
// points involved.
func (t *Table) Explain(value float64) (Result, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return adjust(t.points, value)
}

// adjust scans points once, in ascending reference order.
func adjust(points []Point, value float64) (Result, error) {
	r := Result{Value: value}
	if !finite(value) {
		return r, pkgerrors.Wrapf(ErrInvalidValue, "got %v", value)
	}

	var w window
	for _, p := range points {
		switch {
		case p.Measured == value:
			r.Adjusted = p.Reference
			r.Case = CaseExact
			r.Points = []Point{p}
			return r, nil
		case p.Measured < value:
			w.below(p)
		case p.Measured > value:
			w.above(p)
		}
	}

	switch {
	case w.belowNearest.ok && w.aboveNearest.ok:
		below, above := w.belowNearest.p, w.aboveNearest.p
		t := (value - below.Measured) / (above.Measured - below.Measured)
		r.Adjusted = value + below.Offset()*(1-t) + above.Offset()*t
		r.Case = CaseInterpolated
		r.Points = []Point{below, above}
	case w.belowNearest.ok:
		return extrapolate(r, w.belowNearest, w.belowSecond)
	case w.aboveNearest.ok:
		return extrapolate(r, w.aboveNearest, w.aboveSecond)
	default:
		r.Adjusted = value
		r.Case = CaseIdentity
	}

	return r, nil
}

func extrapolate(r Result, nearest, second slot) (Result, error) {
	if !second.ok {
		r.Adjusted = r.Value + nearest.p.Offset()
		r.Case = CaseOffsetOnly
		r.Points = []Point{nearest.p}
		return r, nil
	}

	n, s := nearest.p, second.p
	r.Points = []Point{n, s}

	dm := s.Measured - n.Measured
	if dm == 0 {
		r.Case = CaseDegenerate
		return r, pkgerrors.Wrapf(ErrDegenerateCalibration, "points %s and %s", n, s)
	}

	m := (s.Reference - n.Reference) / dm
	b := n.Reference - m*n.Measured
	r.Adjusted = m*r.Value + b
	r.Case = CaseExtrapolated
	return r, nil
}

// Describe returns a one-line human readable account of r.
func (r Result) Describe() string {
	switch r.Case {
	case CaseIdentity:
		return fmt.Sprintf("%g -> %g (no calibration points)", r.Value, r.Adjusted)
	case CaseExact:
		return fmt.Sprintf("%g -> %g (exact match %s)", r.Value, r.Adjusted, r.Points[0])
	case CaseInterpolated:
		return fmt.Sprintf("%g -> %g (interpolated between %s and %s)", r.Value, r.Adjusted, r.Points[0], r.Points[1])
	case CaseExtrapolated:
		return fmt.Sprintf("%g -> %g (extrapolated from %s and %s)", r.Value, r.Adjusted, r.Points[0], r.Points[1])
	case CaseOffsetOnly:
		return fmt.Sprintf("%g -> %g (offset of %s)", r.Value, r.Adjusted, r.Points[0])
	default:
		return fmt.Sprintf("%g -> ? (%s)", r.Value, r.Case)
	}
}
