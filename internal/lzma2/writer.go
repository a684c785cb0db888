package lzma2

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

type writeCloser struct {
	w *lzma.Writer2
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	n, err := wc.w.Write(p)
	if err != nil {
		err = fmt.Errorf("lzma2: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if err := wc.w.Close(); err != nil {
		return fmt.Errorf("lzma2: error closing: %w", err)
	}

	return nil
}

// propsByte encodes a dictionary capacity into LZMA2's one-byte dictionary
// size property, the inverse of the formula NewReader decodes, picking the
// smallest code whose implied capacity covers dictCap.
func propsByte(dictCap int) byte {
	for p := 0; p < 41; p++ {
		implied := (2 | (p & 1)) << (uint(p)/2 + 11) //nolint:gosec
		if implied >= dictCap {
			return byte(p) //nolint:gosec
		}
	}

	return 40
}

// NewWriter returns an io.WriteCloser that LZMA2-compresses to w, along with
// the one-byte properties block the folder's coder metadata must carry
// (the counterpart to the single property byte NewReader parses). dictCap
// of 0 selects a 16 MiB default dictionary.
func NewWriter(w io.Writer, dictCap int) (io.WriteCloser, []byte, error) {
	if dictCap <= 0 {
		dictCap = 1 << 24
	}

	p := propsByte(dictCap)
	actual := (2 | (int(p) & 1)) << (int(p)/2 + 11)

	config := lzma.Writer2Config{DictCap: actual}
	if err := config.Verify(); err != nil {
		return nil, nil, fmt.Errorf("lzma2: error verifying config: %w", err)
	}

	lw, err := config.NewWriter2(w)
	if err != nil {
		return nil, nil, fmt.Errorf("lzma2: error creating writer: %w", err)
	}

	return &writeCloser{w: lw}, []byte{p}, nil
}
