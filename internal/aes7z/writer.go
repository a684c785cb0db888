package aes7z

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// numCyclesPower is the SHA-256 iteration count (as a power of two) this
// writer asks NewReader's Password method to reproduce, matching 7-Zip's own
// default for AES256SHA256.
const numCyclesPower = 19

type writeCloser struct {
	w   io.Writer
	cbc cipher.BlockMode
	buf []byte
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	total := len(p)
	wc.buf = append(wc.buf, p...)

	for len(wc.buf) >= aes.BlockSize {
		block := wc.buf[:aes.BlockSize]
		wc.cbc.CryptBlocks(block, block)

		if _, err := wc.w.Write(block); err != nil {
			return 0, fmt.Errorf("aes7z: error writing block: %w", err)
		}

		wc.buf = wc.buf[aes.BlockSize:]
	}

	return total, nil
}

// Close flushes any trailing partial block, zero-padded to the block size.
// The folder's own unpack-size metadata records the true length; the
// reader's LimitReadCloser wrapper discards the padding on the way out.
func (wc *writeCloser) Close() error {
	if len(wc.buf) == 0 {
		return nil
	}

	block := make([]byte, aes.BlockSize)
	copy(block, wc.buf)
	wc.cbc.CryptBlocks(block, block)

	if _, err := wc.w.Write(block); err != nil {
		return fmt.Errorf("aes7z: error writing final block: %w", err)
	}

	wc.buf = nil

	return nil
}

// NewWriter returns an io.WriteCloser AES-256-CBC encrypting to w under a
// freshly generated IV (no salt), keyed from password via the same
// iterative SHA-256 KDF NewReader's Password method drives. The returned
// properties block is what the folder's coder metadata must carry alongside
// the coder id, and is exactly what NewReader expects to parse back.
func NewWriter(w io.Writer, password string) (io.WriteCloser, []byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("aes7z: error generating iv: %w", err)
	}

	key, err := calculateKey(password, numCyclesPower, nil)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aes7z: error creating cipher: %w", err)
	}

	// salt length 0, iv length 16 (bit6 high + low nibble 0xf), cycles in
	// the low 6 bits - see NewReader's inverse of this encoding.
	properties := []byte{byte(numCyclesPower) | 0x40, 0x0f}
	properties = append(properties, iv...)

	return &writeCloser{
		w:   w,
		cbc: cipher.NewCBCEncrypter(block, iv),
	}, properties, nil
}
