package twab

// timeEpoch is one full revolution of the 32-bit timestamp space.
const timeEpoch = uint64(1) << 32

// TimeIsAtOrBefore reports whether a is chronologically at or before b.
//
// Both a and b must be chronologically at or before now, and at most one
// 32-bit wraparound may have occurred between the older of the two and
// now. The routine cannot verify that precondition. A value numerically
// greater than now is taken to belong to the previous wrap epoch, so the
// other operand is lifted by 2^32 before comparing.
func TimeIsAtOrBefore(now, a, b uint32) bool {
	aa, bb := uint64(a), uint64(b)
	if aa > uint64(now) || bb > uint64(now) {
		if aa <= uint64(now) {
			aa += timeEpoch
		}
		if bb <= uint64(now) {
			bb += timeEpoch
		}
	}
	return aa <= bb
}
