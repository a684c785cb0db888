package sevenzip

import (
	"io"
)

// recoverHeaderWindow bounds how far back from the end of the archive the
// recovery scan (§7) will look for a candidate header tag. 7-Zip itself
// never leaves more than a few hundred bytes of trailer after the real
// header, so this comfortably covers genuine breakage while keeping the
// scan itself cheap on a truncated or adversarial file.
const recoverHeaderWindow = 1 << 20 // 1 MiB

// recoverHeader implements the §7 fallback: when the signature header's
// start-header CRC is zero or the declared header can't be located, 7-Zip
// marks the archive as broken but the header bytes it wrote before the
// failure are often still intact, sitting somewhere near the end of the
// file. This scans backward from the end of the archive section for a byte
// that could open a header block (kHeader or kEncodedHeader) and attempts a
// trial parse at each candidate, returning the first one that succeeds.
func recoverHeader(r io.ReaderAt, archiveSize int64, password string, maxMemoryKiB uint64, pageSize int) (*header, error) { //nolint:lll
	start := int64(signatureHeaderSize)

	window := archiveSize - start
	if window > recoverHeaderWindow {
		window = recoverHeaderWindow
	}

	if window <= 0 {
		return nil, wrapCorrupt("no header recovered", errUnexpectedID)
	}

	base := archiveSize - window

	buf := make([]byte, window)
	if _, err := r.ReadAt(buf, base); err != nil && err != io.EOF {
		return nil, wrapIO("error reading recovery window", err)
	}

	for i := len(buf) - 1; i >= 0; i-- {
		tag := buf[i]
		if tag != idHeader && tag != idEncodedHeader {
			continue
		}

		h, err := tryParseRecoveredHeader(r, base+int64(i), tag, password, maxMemoryKiB, pageSize)
		if err != nil {
			continue
		}

		return h, nil
	}

	return nil, wrapCorrupt("no header recovered", errUnexpectedID)
}

// tryParseRecoveredHeader attempts to parse a header block starting with
// the given tag byte already consumed, covering the bytes from off+1 to the
// end of the archive section.
func tryParseRecoveredHeader(r io.ReaderAt, off int64, tag byte, password string, maxMemoryKiB uint64, pageSize int) (h *header, err error) { //nolint:lll
	defer func() {
		if rec := recover(); rec != nil {
			h, err = nil, wrapCorrupt("recovery candidate panicked", errUnexpectedID)
		}
	}()

	sr := io.NewSectionReader(r, off+1, 1<<62-1)
	hb := newPagedHeaderBuffer(sr, pageSize)

	switch tag {
	case idHeader:
		return parseHeader(hb, maxMemoryKiB)
	case idEncodedHeader:
		return readEncodedHeader(r, hb, 0, password, maxMemoryKiB, pageSize)
	default:
		return nil, wrapCorrupt("unexpected recovery tag", errUnexpectedID)
	}
}
