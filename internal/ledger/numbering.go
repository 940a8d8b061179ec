package ledger

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Journal number kinds. Manual and engine postings share the GL sequence,
// reversals get their own RV sequence.
const (
	PrefixGeneral  = "GL"
	PrefixReversal = "RV"
)

// NumberPrefix builds the per-day numbering prefix, e.g. "GL-20260831-".
func NumberPrefix(kind string, date time.Time) string {
	return fmt.Sprintf("%s-%s-", kind, date.Format("20060102"))
}

// FormatNumber renders a full journal number from prefix and sequence.
func FormatNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// NumberingLockKey derives the advisory lock key serialising read-max-then-
// increment numbering for one school and day prefix. The unique index on
// (school_id, journal_no) remains the backstop if two transactions ever race
// past the lock.
func NumberingLockKey(schoolID int64, prefix string) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d:%s", schoolID, prefix)
	return int64(h.Sum64())
}
