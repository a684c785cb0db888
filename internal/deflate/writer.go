package deflate

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// NewWriter returns an io.WriteCloser that DEFLATEs to w. DEFLATE carries no
// coder properties, so the second return value is always nil.
func NewWriter(w io.Writer) (io.WriteCloser, []byte, error) {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, nil, fmt.Errorf("deflate: error creating writer: %w", err)
	}

	return fw, nil, nil
}
