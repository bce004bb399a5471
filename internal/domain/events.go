package domain

// SnapshotRecorded is emitted on every successful history append.
// It is an observability side-channel for external indexers; nothing in
// the core reads these events back.
type SnapshotRecorded struct {
	Account   Account  // account whose history grew
	Snapshot  Snapshot // the snapshot that was written
	SlotIndex int      // ring slot the snapshot landed in
}
