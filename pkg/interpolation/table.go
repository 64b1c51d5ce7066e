package interpolation

import (
	"iter"
	"slices"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// Table is the calibration store. Points are unique by reference value and
// kept sorted by it. A Table is safe for concurrent use: writers are
// serialised, and Adjust calls may run in parallel.
type Table struct {
	points []Point
	strict bool
	mu     *sync.RWMutex
}

// Option configures a Table.
type Option func(*Table)

// Strict makes the table reject any point that would break the monotonicity
// of the measured values. Without it, non-monotonic curves are accepted.
func Strict() Option {
	return func(t *Table) {
		t.strict = true
	}
}

// New returns an empty table.
func New(opts ...Option) *Table {
	t := &Table{
		mu: &sync.RWMutex{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewFromPoints builds a table by adding points in the given order. It fails
// on the first point Add would reject.
func NewFromPoints(points []Point, opts ...Option) (*Table, error) {
	t := New(opts...)
	for _, p := range points {
		if err := t.Add(p.Reference, p.Measured); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// IsStrict reports whether the table enforces monotonicity on insert.
func (t *Table) IsStrict() bool {
	return t.strict
}

// Add inserts a new calibration point. It returns ErrDuplicateReference if a
// point with that reference value already exists; the existing point is kept.
func (t *Table) Add(reference, measured float64) error {
	return t.insert(Point{Reference: reference, Measured: measured}, false)
}

// Set inserts a calibration point, replacing the measured value of an existing
// point with the same reference value.
func (t *Table) Set(reference, measured float64) error {
	return t.insert(Point{Reference: reference, Measured: measured}, true)
}

func (t *Table) insert(p Point, replace bool) error {
	if !finite(p.Reference) || !finite(p.Measured) {
		return pkgerrors.Wrapf(ErrInvalidValue, "point %s", p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i, found := t.search(p.Reference)
	if found && !replace {
		return pkgerrors.Wrapf(ErrDuplicateReference, "reference %g", p.Reference)
	}

	next := slices.Clone(t.points)
	if found {
		next[i] = p
	} else {
		next = slices.Insert(next, i, p)
	}

	if t.strict {
		if err := checkMonotonic(next); err != nil {
			return pkgerrors.Wrapf(err, "point %s rejected", p)
		}
	}

	t.points = next
	return nil
}

// search returns the index of reference in the sorted points, or the index it
// would be inserted at.
func (t *Table) search(reference float64) (int, bool) {
	i := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].Reference >= reference
	})
	return i, i < len(t.points) && t.points[i].Reference == reference
}

// Points returns the points in ascending reference order. The sequence reads
// a snapshot taken when iteration starts, so it may be ranged over again to
// observe later additions.
func (t *Table) Points() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for _, p := range t.Snapshot() {
			if !yield(p) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the points in ascending reference order.
func (t *Table) Snapshot() []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.points)
}

// Len returns the number of calibration points.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.points)
}

// CheckMonotonic reports ErrNonMonotonic if the measured values do not
// strictly increase, or strictly decrease, with the reference values.
func (t *Table) CheckMonotonic() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return checkMonotonic(t.points)
}

func checkMonotonic(points []Point) error {
	var direction float64
	for i := 1; i < len(points); i++ {
		d := points[i].Measured - points[i-1].Measured
		if d == 0 || direction*d < 0 {
			return pkgerrors.Wrapf(ErrNonMonotonic, "between %s and %s", points[i-1], points[i])
		}
		direction = d
	}
	return nil
}
