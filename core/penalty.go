package core

import "strconv"

// Penalty is a non-negative cost used to rank competing implementations and
// conversion paths.  Arithmetic saturates at Infinite so that a forbidden
// path can never underflow back into an eligible one.
type Penalty int

// Infinite marks an implementation or path as ineligible.
const Infinite = int(^uint32(0) >> 1) // max int32

// Named singleton values.
const (
	ZeroPenalty     Penalty = 0
	InfinitePenalty Penalty = Penalty(Infinite)
)

// NewPenalty returns a Penalty for the given value, clamping negatives to zero.
func NewPenalty(value int) Penalty {
	if value < 0 {
		return ZeroPenalty
	}
	if value > Infinite {
		return InfinitePenalty
	}
	return Penalty(value)
}

// Add returns the saturating sum of p and other.
func (p Penalty) Add(other Penalty) Penalty {
	if p.IsInfinite() || other.IsInfinite() {
		return InfinitePenalty
	}
	sum := int64(p) + int64(other)
	return Penalty(Truncate(sum))
}

// Value returns the penalty as a plain int.
func (p Penalty) Value() int { return int(p) }

// IsInfinite reports whether the penalty makes its bearer ineligible.
func (p Penalty) IsInfinite() bool { return int(p) >= Infinite }

func (p Penalty) String() string {
	if p.IsInfinite() {
		return "INF"
	}
	return strconv.Itoa(int(p))
}

// Truncate clamps a wide value into the representable penalty range.  Used
// when comparing penalty sums that may exceed the int32 range.
func Truncate(value int64) int {
	if value > int64(Infinite) {
		return Infinite
	}
	if value < int64(-Infinite) {
		return -Infinite
	}
	return int(value)
}
