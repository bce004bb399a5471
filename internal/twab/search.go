package twab

import "twab-ledger/internal/domain"

// BracketAround binary-searches the ring for the adjacent snapshot pair
// straddling target: before.Timestamp <= target < after.Timestamp under
// the wraparound-aware comparison.
//
// Callers must have established that the oldest live snapshot is at or
// before target and the most recent one is strictly after it; within
// those bounds the bracketing pair always exists. The search runs over
// a virtual unwrapped index space, taking each probe modulo the
// capacity to read the real slot. While the ring is still filling the
// most recent index bounds the space from above; once it has wrapped
// the most recent slot sits below the oldest and the space spans a full
// revolution. Sentinel slots only occur above the filled region of a
// still-filling ring, so probing one narrows the search upward.
func BracketAround(h *domain.History, target, now uint32) (before, after domain.Snapshot, err error) {
	low := OldestIndex(h)
	high := MostRecentIndex(h)
	if high < low {
		high = low + domain.HistoryCapacity - 1
	}

	for low <= high {
		mid := (low + high) / 2

		beforeOrAt := h.Slots[mid%domain.HistoryCapacity]
		if beforeOrAt.Timestamp == 0 {
			low = mid + 1
			continue
		}

		atOrAfter := h.Slots[(mid+1)%domain.HistoryCapacity]

		if !TimeIsAtOrBefore(now, beforeOrAt.Timestamp, target) {
			high = mid - 1
			continue
		}
		if !TimeIsAtOrBefore(now, atOrAfter.Timestamp, target) {
			return beforeOrAt, atOrAfter, nil
		}
		low = mid + 1
	}

	return domain.Snapshot{}, domain.Snapshot{}, ErrBracketNotFound
}
