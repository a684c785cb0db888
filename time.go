package sevenzip

import "time"

// ntfsEpochOffset100ns is the number of 100ns ticks between the NTFS epoch
// (1601-01-01) and the Unix epoch (1970-01-01).
const ntfsEpochOffset100ns = 116444736000000000

// filetimeToTime converts a Windows FILETIME - 100ns ticks since
// 1601-01-01 - into a time.Time, the representation §4.4's CTime/ATime/MTime
// blocks use on disk.
func filetimeToTime(ft uint64) time.Time {
	ticks := int64(ft) - ntfsEpochOffset100ns //nolint:gosec

	return time.Unix(0, ticks*100).UTC()
}

// timeToFiletime is the inverse, used by the writer (§4.9) to serialize a
// time.Time back into the on-disk FILETIME representation.
func timeToFiletime(t time.Time) uint64 {
	ticks := t.UTC().UnixNano()/100 + ntfsEpochOffset100ns

	return uint64(ticks) //nolint:gosec
}
