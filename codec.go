package sevenzip

import (
	"io"

	"github.com/go7z/sevenzip/internal/aes7z"
	"github.com/go7z/sevenzip/internal/bcj2"
	"github.com/go7z/sevenzip/internal/bra"
	"github.com/go7z/sevenzip/internal/brotli"
	"github.com/go7z/sevenzip/internal/bzip2"
	"github.com/go7z/sevenzip/internal/deflate"
	"github.com/go7z/sevenzip/internal/deflate64"
	"github.com/go7z/sevenzip/internal/delta"
	"github.com/go7z/sevenzip/internal/lz4"
	"github.com/go7z/sevenzip/internal/lzma"
	"github.com/go7z/sevenzip/internal/lzma2"
	"github.com/go7z/sevenzip/internal/zstd"
)

// decoderFunc builds a coder's decompressor given its properties, its
// declared unpacked size and its already-resolved input readers. The
// internal/* packages expose their decoders with this exact signature
// (NewReader in most, one constructor per filter in internal/bra), which is
// what lets the registry treat them interchangeably.
type decoderFunc func(properties []byte, size uint64, readers []io.ReadCloser) (io.ReadCloser, error)

// Method ids as assigned by the reference 7-Zip implementation (§4.6's
// "coder id" field). The four-byte extension ids below aren't part of that
// assignment; they're ones this engine makes up for codecs 7-Zip itself
// never shipped, following the scheme SPEC_FULL.md's domain-stack section
// lays out.
var decoders = map[string]decoderFunc{ //nolint:gochecknoglobals
	"\x00":             copyDecoder,
	"\x21":             lzma2.NewReader,
	"\x03\x01\x01":     lzma.NewReader,
	"\x03":             delta.NewReader,
	"\x04":             bra.NewBCJReader,
	"\x03\x03\x01\x03": bra.NewBCJReader,
	"\x03\x03\x01\x1b": bcj2.NewReader,
	"\x03\x03\x02\x05": bra.NewPPCReader,
	"\x03\x03\x05\x01": bra.NewARMReader,
	"\x03\x03\x08\x05": bra.NewSPARCReader,
	"\x0a":             bra.NewARM64Reader,
	"\x04\x01\x08":     deflate.NewReader,
	"\x04\x01\x09":     deflate64.NewReader,
	"\x04\x02\x02":     bzip2.NewReader,
	"\x06\xf1\x07\x01": aes7z.NewReader,

	// Extension coders: method ids SPEC_FULL.md invents for codecs the
	// reference implementation doesn't carry, so that the Go ecosystem
	// libraries the teacher pack already brought in (brotli, zstd, lz4)
	// have somewhere to live instead of being dropped outright.
	"\x04\xf7\x11\x01": brotli.NewReader,
	"\x04\xf7\x11\x04": zstd.NewReader,
	"\x04\xf7\x11\x02": lz4.NewReader,
}

// decoder looks up the decompressor factory for a coder method id, returning
// nil if the id is unknown - callers turn that into KindUnsupported.
func decoder(id []byte) decoderFunc {
	return decoders[string(id)]
}

var errCopyNeedsOneReader = wrapCorrupt("copy coder needs exactly one reader", io.ErrUnexpectedEOF)

// copyDecoder implements method 0x00, the identity coder: its output is
// exactly its one input, unaltered.
func copyDecoder(_ []byte, _ uint64, readers []io.ReadCloser) (io.ReadCloser, error) {
	if len(readers) != 1 {
		return nil, errCopyNeedsOneReader
	}

	return readers[0], nil
}
