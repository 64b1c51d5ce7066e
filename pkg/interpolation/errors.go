package interpolation

import "errors"

var (
	// ErrDuplicateReference is returned by Add when a point with the same
	// reference value already exists in the table.
	ErrDuplicateReference = errors.New("duplicate reference value")

	// ErrDegenerateCalibration is returned by Adjust when extrapolation needs
	// a slope between two points that share the same measured value.
	ErrDegenerateCalibration = errors.New("degenerate calibration: zero-width measured range")

	// ErrInvalidValue is returned for NaN or infinite inputs.
	ErrInvalidValue = errors.New("value must be a finite number")

	// ErrNonMonotonic is returned when the measured values of a table do not
	// strictly increase or strictly decrease with the reference values.
	ErrNonMonotonic = errors.New("measured values are not monotonic")
)
