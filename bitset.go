package sevenzip

import "io"

// readBits reads n bits packed MSB-first into ceil(n/8) bytes, the dense
// form used by e.g. the empty-stream/empty-file/anti bitmaps.
func readBits(r io.ByteReader, n int) ([]bool, error) {
	bits := make([]bool, n)

	var (
		b    byte
		mask byte
	)

	for i := 0; i < n; i++ {
		if mask == 0 {
			var err error

			b, err = r.ReadByte()
			if err != nil {
				return nil, wrapCorrupt("error reading bit vector", err)
			}

			mask = 0x80
		}

		bits[i] = b&mask != 0
		mask >>= 1
	}

	return bits, nil
}

// readAllOrBits implements the "all-defined-or-bitmap" form: a leading byte
// that, if non-zero, means every element is defined; otherwise a dense
// bitmap of n bits follows.
func readAllOrBits(r io.ByteReader, n int) ([]bool, error) {
	allDefined, err := r.ReadByte()
	if err != nil {
		return nil, wrapCorrupt("error reading all-defined byte", err)
	}

	if allDefined != 0 {
		bits := make([]bool, n)
		for i := range bits {
			bits[i] = true
		}

		return bits, nil
	}

	return readBits(r, n)
}

func writeBits(w io.ByteWriter, bits []bool) error {
	var (
		b    byte
		mask byte = 0x80
	)

	for _, bit := range bits {
		if bit {
			b |= mask
		}

		mask >>= 1

		if mask == 0 {
			if err := w.WriteByte(b); err != nil {
				return wrapIO("error writing bit vector", err)
			}

			b, mask = 0, 0x80
		}
	}

	if mask != 0x80 {
		if err := w.WriteByte(b); err != nil {
			return wrapIO("error writing bit vector", err)
		}
	}

	return nil
}

func allTrue(bits []bool) bool {
	for _, b := range bits {
		if !b {
			return false
		}
	}

	return true
}

// writeAllOrBits writes the all-defined-or-bitmap form, taking the
// single-byte shortcut whenever every element is defined.
func writeAllOrBits(w io.ByteWriter, bits []bool) error {
	if allTrue(bits) {
		return w.WriteByte(1)
	}

	if err := w.WriteByte(0); err != nil {
		return wrapIO("error writing all-defined byte", err)
	}

	return writeBits(w, bits)
}
