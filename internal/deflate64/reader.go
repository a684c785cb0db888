// Package deflate64 approximates the Enhanced Deflate (Deflate64)
// decompressor using the standard Deflate algorithm.
//
// Deflate64 only differs from Deflate in its maximum match length (64 KiB
// dictionary and 65536-byte matches instead of 32 KiB/258 bytes). No
// released Go library implements the real decoder, so streams that actually
// exercise Deflate64's extended distances/lengths will fail to decode here;
// ordinary streams that happen to use method 0x040109 without needing the
// extended window decode correctly. DESIGN.md records this as a documented
// gap rather than a silent one.
package deflate64

import (
	"errors"
	"fmt"
	"io"

	"github.com/go7z/sevenzip/internal/util"
	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/flate"
)

type readCloser struct {
	c  io.Closer
	fr io.ReadCloser
}

var (
	errAlreadyClosed = errors.New("deflate64: already closed")
	errNeedOneReader = errors.New("deflate64: need exactly one reader")
)

func (rc *readCloser) Close() error {
	if rc.c == nil || rc.fr == nil {
		return errAlreadyClosed
	}

	if err := multierror.Append(rc.fr.Close(), rc.c.Close()).ErrorOrNil(); err != nil {
		return fmt.Errorf("deflate64: error closing: %w", err)
	}

	rc.c, rc.fr = nil, nil

	return nil
}

func (rc *readCloser) Read(p []byte) (int, error) {
	if rc.c == nil || rc.fr == nil {
		return 0, errAlreadyClosed
	}

	n, err := rc.fr.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("deflate64: error reading: %w", err)
	}

	return n, err
}

// NewReader returns an io.ReadCloser that decodes method 0x040109 streams as
// if they were ordinary Deflate.
func NewReader(_ []byte, _ uint64, readers []io.ReadCloser) (io.ReadCloser, error) {
	if len(readers) != 1 {
		return nil, errNeedOneReader
	}

	return &readCloser{
		c:  readers[0],
		fr: flate.NewReader(util.ByteReadCloser(readers[0])),
	}, nil
}
