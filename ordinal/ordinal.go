// Package ordinal maps typed values to order-preserving uint64 ordinals.
//
// A range bitmap indexes unsigned 64-bit ordinals only. These transforms make
// signed integers, floats and timestamps comparable in the unsigned domain:
// for any a < b, FromX(a) < FromX(b). All transforms except the NaN rule are
// exact round trips.
package ordinal

import (
	"math"
	"time"
)

const signBit = uint64(1) << 63

// FromUint64 returns v unchanged. Present for symmetry with the typed
// encoders.
func FromUint64(v uint64) uint64 { return v }

// ToUint64 returns o unchanged.
func ToUint64(o uint64) uint64 { return o }

// FromInt64 maps a signed integer to an ordinal by flipping the sign bit,
// shifting the int64 range onto [0, 2^64).
func FromInt64(v int64) uint64 {
	return uint64(v) ^ signBit
}

// ToInt64 inverts FromInt64.
func ToInt64(o uint64) int64 {
	return int64(o ^ signBit)
}

// FromFloat64 maps a float to an ordinal using the IEEE-754 total-order
// transform: negative values are bit-inverted, non-negative values get the
// sign bit set. The resulting unsigned order matches float order, with
// -0.0 < +0.0.
//
// NaN canonicalizes to the -Inf ordinal, so range queries treat NaN as
// smaller than every real value. ToFloat64 of that ordinal returns -Inf,
// not NaN.
func FromFloat64(v float64) uint64 {
	if math.IsNaN(v) {
		v = math.Inf(-1)
	}
	b := math.Float64bits(v)
	if b&signBit != 0 {
		return ^b
	}
	return b | signBit
}

// ToFloat64 inverts FromFloat64 for all non-NaN inputs.
func ToFloat64(o uint64) float64 {
	if o&signBit != 0 {
		return math.Float64frombits(o ^ signBit)
	}
	return math.Float64frombits(^o)
}

// FromTime maps a timestamp to an ordinal via its UnixNano instant.
// Timestamps outside the int64 nanosecond range (~1678..2262) alias.
func FromTime(t time.Time) uint64 {
	return FromInt64(t.UnixNano())
}

// ToTime inverts FromTime. The result is in the UTC location.
func ToTime(o uint64) time.Time {
	return time.Unix(0, ToInt64(o)).UTC()
}
