package interpolation

import (
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddKeepsAscendingOrder(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Add(30, 35))
	require.NoError(t, tbl.Add(10, 9))
	require.NoError(t, tbl.Add(20, 22))
	require.NoError(t, tbl.Add(-5, -4))

	want := []Point{{-5, -4}, {10, 9}, {20, 22}, {30, 35}}
	if diff := cmp.Diff(want, slices.Collect(tbl.Points())); diff != "" {
		t.Fatalf("points mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, tbl.Len())
}

func TestTableRejectsDuplicateReference(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Add(1, 2))

	err := tbl.Add(1, 3)
	require.ErrorIs(t, err, ErrDuplicateReference)
	assert.Equal(t, []Point{{1, 2}}, tbl.Snapshot())
}

func TestTableSetReplaces(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.Set(1, 2))
	require.NoError(t, tbl.Set(1, 3))
	require.NoError(t, tbl.Set(0, 0))

	assert.Equal(t, []Point{{0, 0}, {1, 3}}, tbl.Snapshot())
}

func TestTableRejectsNonFinitePoints(t *testing.T) {
	tbl := New()
	assert.ErrorIs(t, tbl.Add(math.NaN(), 1), ErrInvalidValue)
	assert.ErrorIs(t, tbl.Add(1, math.Inf(-1)), ErrInvalidValue)
	assert.ErrorIs(t, tbl.Set(math.Inf(1), 1), ErrInvalidValue)
	assert.Zero(t, tbl.Len())
}

func TestTablePointsIsRestartable(t *testing.T) {
	tbl := mustTable(t, Point{1, 1}, Point{2, 2}, Point{3, 3})

	var first []Point
	for p := range tbl.Points() {
		first = append(first, p)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []Point{{1, 1}, {2, 2}}, first)

	require.NoError(t, tbl.Add(4, 4))
	assert.Len(t, slices.Collect(tbl.Points()), 4)
}

func TestTableStrictRejectsNonMonotonic(t *testing.T) {
	tbl := New(Strict())
	assert.True(t, tbl.IsStrict())

	require.NoError(t, tbl.Add(0, 0))
	require.NoError(t, tbl.Add(10, 10))

	err := tbl.Add(5, 12)
	require.ErrorIs(t, err, ErrNonMonotonic)

	err = tbl.Add(20, 10)
	require.ErrorIs(t, err, ErrNonMonotonic)

	err = tbl.Set(10, -1)
	require.ErrorIs(t, err, ErrNonMonotonic)

	assert.Equal(t, []Point{{0, 0}, {10, 10}}, tbl.Snapshot())
	require.NoError(t, tbl.Add(5, 4))
}

func TestTableCheckMonotonic(t *testing.T) {
	tests := []struct {
		name    string
		points  []Point
		wantErr bool
	}{
		{name: "empty"},
		{name: "single", points: []Point{{1, 5}}},
		{name: "increasing", points: []Point{{1, 1}, {2, 3}, {3, 4}}},
		{name: "decreasing", points: []Point{{1, 9}, {2, 3}, {3, -4}}},
		{name: "flat", points: []Point{{1, 1}, {2, 1}}, wantErr: true},
		{name: "reversal", points: []Point{{1, 1}, {2, 3}, {3, 2}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustTable(t, tt.points...)
			err := tbl.CheckMonotonic()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNonMonotonic)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFromPointsStopsAtFirstError(t *testing.T) {
	_, err := NewFromPoints([]Point{{1, 1}, {2, 2}, {1, 3}})
	require.ErrorIs(t, err, ErrDuplicateReference)
}

func TestPointOffset(t *testing.T) {
	assert.Equal(t, -2.0, Point{Reference: 20, Measured: 22}.Offset())
	assert.Equal(t, "(20, 22)", Point{Reference: 20, Measured: 22}.String())
}
