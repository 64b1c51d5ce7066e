package interpolation

import (
	"fmt"
	"math"
)

// Point states that when the instrument reads Measured, the true value is
// Reference.
type Point struct {
	Reference float64 `json:"reference" yaml:"reference"`
	Measured  float64 `json:"measured" yaml:"measured"`
}

// Offset is the correction to apply at exactly this measured value.
func (p Point) Offset() float64 {
	return p.Reference - p.Measured
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Reference, p.Measured)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
