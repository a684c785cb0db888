package sevenzip_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go7z/sevenzip"
)

// seekableBuffer is a minimal io.WriteSeeker over an in-memory byte slice,
// standing in for an *os.File in these round-trip tests.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	if need := s.pos + int64(len(p)); need > int64(len(s.buf)) {
		grown := make([]byte, need)
		copy(grown, s.buf)
		s.buf = grown
	}

	n := copy(s.buf[s.pos:], p)
	s.pos += int64(n)

	return n, nil
}

func (s *seekableBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.buf)) {
		return 0, io.EOF
	}

	n := copy(p, s.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64

	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}

	if newPos < 0 {
		return 0, errors.New("negative seek")
	}

	s.pos = newPos

	return newPos, nil
}

func writeArchive(t *testing.T, opts ...sevenzip.Option) *seekableBuffer {
	t.Helper()

	sb := new(seekableBuffer)

	zw, err := sevenzip.NewWriter(sb, opts...)
	require.NoError(t, err)

	files := map[string]string{
		"hello.txt":       "hello, world\n",
		"dir/nested.txt":  "nested file contents, repeated. " + "nested file contents, repeated. ",
		"dir/another.bin": string(bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 64)),
	}

	names := []string{"hello.txt", "dir/nested.txt", "dir/another.bin"}

	for _, name := range names {
		w, err := zw.CreateHeader(&sevenzip.FileHeader{Name: name})
		require.NoError(t, err)

		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return sb
}

func readAll(t *testing.T, f *sevenzip.File) string {
	t.Helper()

	rc, err := f.Open()
	require.NoError(t, err)

	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)

	return string(b)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	sb := writeArchive(t)

	zr, err := sevenzip.NewReader(sb, int64(len(sb.buf)))
	require.NoError(t, err)

	want := map[string]string{
		"hello.txt":       "hello, world\n",
		"dir/nested.txt":  "nested file contents, repeated. nested file contents, repeated. ",
		"dir/another.bin": string(bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 64)),
	}

	got := make(map[string]string)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		got[f.Name] = readAll(t, f)
	}

	assert.Equal(t, want, got)
}

func TestWriterReaderRoundTripCompressionMethods(t *testing.T) {
	for _, method := range []string{"lzma2", "deflate", "copy"} {
		method := method

		t.Run(method, func(t *testing.T) {
			sb := writeArchive(t, sevenzip.WithCompressionMethod(method))

			zr, err := sevenzip.NewReader(sb, int64(len(sb.buf)))
			require.NoError(t, err)

			var found bool

			for _, f := range zr.File {
				if f.Name == "hello.txt" {
					found = true

					assert.Equal(t, "hello, world\n", readAll(t, f))
				}
			}

			assert.True(t, found)
		})
	}
}

func TestWriterReaderRoundTripEncrypted(t *testing.T) {
	sb := new(seekableBuffer)

	zw, err := sevenzip.NewWriterWithPassword(sb, "hunter2")
	require.NoError(t, err)

	w, err := zw.CreateHeader(&sevenzip.FileHeader{Name: "secret.txt"})
	require.NoError(t, err)

	_, err = io.WriteString(w, "top secret contents")
	require.NoError(t, err)

	require.NoError(t, zw.Close())

	zr, err := sevenzip.NewReaderWithPassword(sb, int64(len(sb.buf)), "hunter2")
	require.NoError(t, err)

	require.Len(t, zr.File, 1)
	assert.Equal(t, "top secret contents", readAll(t, zr.File[0]))
}

func TestWriterReaderRoundTripSolidFolderLimits(t *testing.T) {
	sb := writeArchive(t, sevenzip.WithMaxEntriesPerFolder(1))

	zr, err := sevenzip.NewReader(sb, int64(len(sb.buf)))
	require.NoError(t, err)

	folders := make(map[int]bool)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		folders[f.Stream] = true
	}

	assert.Greater(t, len(folders), 1)
}

func TestWriterReaderRoundTripPlainHeader(t *testing.T) {
	sb := writeArchive(t, sevenzip.WithHeaderCompression(false))

	zr, err := sevenzip.NewReader(sb, int64(len(sb.buf)))
	require.NoError(t, err)

	assert.Equal(t, "hello, world\n", func() string {
		for _, f := range zr.File {
			if f.Name == "hello.txt" {
				return readAll(t, f)
			}
		}

		return ""
	}())
}
