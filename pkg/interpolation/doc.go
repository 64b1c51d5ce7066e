// Package interpolation implements the calibration-curve adjuster. It contains:
//
//   - Point: a (reference, measured) calibration pair
//   - Table: the calibration store, unique by reference value and always
//     iterated in ascending reference order
//   - Adjust: the lookup that converts a measured reading into an estimated
//     reference value by interpolating between the bracketing points, or by
//     extrapolating from the one or two nearest points outside the calibrated
//     range
//
// The measured values are assumed to be a monotonic function of the reference
// values. Tables created with the Strict option enforce this on insert; other
// tables accept any curve and give undefined (but deterministic) results for
// curves that change direction.
package interpolation
