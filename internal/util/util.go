// Package util holds small helpers shared between the container engine and
// the codec packages under internal/.
package util

import (
	"bufio"
	"bytes"
	"io"
)

// ReadCloser is an io.ReadCloser that can also supply bytes one at a time,
// which several of the codec packages need for their underlying decoders.
type ReadCloser interface {
	io.ReadCloser
	io.ByteReader
}

// SizeReadSeekCloser additionally knows its own total size, which the
// extractor's folder-reader pool (internal/pool) needs to answer EOF checks
// without decompressing ahead of the caller.
type SizeReadSeekCloser interface {
	io.ReadSeekCloser
	Size() int64
}

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// NopCloser wraps r with a no-op Close, mirroring io.NopCloser but returning
// the concrete type callers here compare against.
func NopCloser(r io.Reader) io.ReadCloser {
	return nopCloser{r}
}

type byteReadCloser struct {
	io.ReadCloser
	br io.ByteReader
}

// ByteReadCloser adapts rc so that it also satisfies io.ByteReader, wrapping
// it in a bufio.Reader if it doesn't already implement ReadByte itself.
func ByteReadCloser(rc io.ReadCloser) ReadCloser {
	if br, ok := rc.(ReadCloser); ok {
		return br
	}

	return byteReadCloser{rc, bufio.NewReader(rc)}
}

func (b byteReadCloser) ReadByte() (byte, error) {
	return b.br.ReadByte()
}

// CRC32Equal reports whether the CRC-32 digest held in a 4-byte checksum
// slice (as produced by hash.Hash.Sum, which is big-endian) equals crc, a
// value already decoded from the header's little-endian on-disk encoding.
func CRC32Equal(digest []byte, crc uint32) bool {
	return bytes.Equal(digest, []byte{byte(crc >> 24), byte(crc >> 16), byte(crc >> 8), byte(crc)})
}
