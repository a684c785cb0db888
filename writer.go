package sevenzip

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"unicode/utf16"

	"github.com/go7z/sevenzip/internal/aes7z"
	"github.com/go7z/sevenzip/internal/deflate"
	"github.com/go7z/sevenzip/internal/lzma2"
)

var (
	errWriterClosed  = errors.New("writer is closed")
	errEntryNoName   = errors.New("entry has no name")
	errEntryNameLong = errors.New("entry name exceeds configured maximum")
)

var (
	idBytesCopy    = []byte{0x00}
	idBytesLZMA2   = []byte{0x21}
	idBytesDeflate = []byte{0x04, 0x01, 0x08}
	idBytesAES     = []byte{0x06, 0xf1, 0x07, 0x01}
)

type countWriter struct {
	w io.Writer
	n uint64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n) //nolint:gosec

	return n, err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// pendingFolder accumulates one solid-compression block's worth of entries:
// every CreateHeader call between folder boundaries writes its plaintext
// into the same coder chain, the way 7-Zip's own solid mode concatenates
// file content before compressing it once.
type pendingFolder struct {
	plainWriter io.WriteCloser
	aesWriter   io.WriteCloser
	packCounter *countWriter

	coders   []*coder
	bindPair *bindPair

	folderCRC  hash.Hash32
	folderSize uint64
	numFiles   int
}

// entryWriter is the io.Writer CreateHeader hands back; it feeds the
// current folder's coder chain while independently tracking this one
// entry's CRC-32 and size for the FileHeader.
type entryWriter struct {
	zw   *Writer
	idx  int
	crc  hash.Hash32
	size uint64
}

func (ew *entryWriter) Write(p []byte) (int, error) {
	n, err := ew.zw.cur.plainWriter.Write(p)
	if n > 0 {
		ew.crc.Write(p[:n])
		ew.size += uint64(n) //nolint:gosec
		ew.zw.cur.folderCRC.Write(p[:n])
		ew.zw.cur.folderSize += uint64(n) //nolint:gosec
	}

	if err != nil {
		return n, wrapIO("error writing entry content", err)
	}

	return n, nil
}

// Writer builds a 7z archive (§4.9): entries are added with CreateHeader in
// the style of archive/zip.Writer, batched into solid folders per the
// Config's WithMaxEntriesPerFolder/WithMaxFolderSize limits, and the full
// header is assembled and written back over the placeholder signature
// header only once Close runs.
type Writer struct {
	w        io.WriteSeeker
	cfg      Config
	password string

	files     []FileHeader
	folders   []*folder
	packSizes []uint64

	cur  *pendingFolder
	open *entryWriter

	closed bool
}

// NewWriter returns a Writer with no encryption.
func NewWriter(w io.WriteSeeker, opts ...Option) (*Writer, error) {
	return NewWriterWithPassword(w, "", opts...)
}

// NewWriterWithPassword returns a Writer that AES-256 encrypts every
// folder's content under password. An empty password disables encryption,
// matching NewWriter.
func NewWriterWithPassword(w io.WriteSeeker, password string, opts ...Option) (*Writer, error) {
	zw := &Writer{w: w, cfg: newConfig(opts), password: password}

	if _, err := w.Write(make([]byte, signatureHeaderSize)); err != nil {
		return nil, wrapIO("error writing signature header placeholder", err)
	}

	return zw, nil
}

// CreateHeader starts a new entry and returns a Writer for its content.
// Directory entries (fh.Mode().IsDir()) take no content; any regular file
// must have its content written before the next CreateHeader or Close call,
// after which the returned Writer is no longer valid.
func (zw *Writer) CreateHeader(fh *FileHeader) (io.Writer, error) {
	if zw.closed {
		return nil, wrapIllegalArgument(errWriterClosed.Error())
	}

	if err := zw.closeEntry(); err != nil {
		return nil, err
	}

	entry := *fh

	if entry.Name == "" {
		if !zw.cfg.useDefaultName {
			return nil, wrapIllegalArgument(errEntryNoName.Error())
		}

		entry.Name = fmt.Sprintf("entry-%d", len(zw.files))
	}

	if zw.cfg.maxEntryNameLength > 0 && len(utf16.Encode([]rune(entry.Name))) > zw.cfg.maxEntryNameLength {
		return nil, wrapIllegalArgument(errEntryNameLong.Error())
	}

	if entry.Attributes == 0 {
		entry.Attributes = fileModeToAttributes(0o666) //nolint:mnd
	}

	if entry.Mode().IsDir() {
		entry.isEmptyStream = true
		entry.Stream = -1
		zw.files = append(zw.files, entry)

		return io.Discard, nil
	}

	if err := zw.ensureFolder(); err != nil {
		return nil, err
	}

	entry.Stream = len(zw.folders)
	zw.files = append(zw.files, entry)

	ew := &entryWriter{zw: zw, idx: len(zw.files) - 1, crc: crc32.NewIEEE()}
	zw.open = ew

	return ew, nil
}

// closeEntry finalizes the currently open entry's CRC-32 and size onto its
// FileHeader. It does not touch the folder, which stays open for the next
// CreateHeader call (solid compression).
func (zw *Writer) closeEntry() error {
	if zw.open == nil {
		return nil
	}

	ew := zw.open
	zw.files[ew.idx].CRC32 = ew.crc.Sum32()
	zw.files[ew.idx].UncompressedSize = ew.size
	zw.cur.numFiles++
	zw.open = nil

	return nil
}

// ensureFolder flushes the current folder once a batching limit is hit,
// then opens a fresh one if none is open.
func (zw *Writer) ensureFolder() error {
	if zw.cur != nil {
		overEntries := zw.cfg.maxEntriesPerFolder > 0 && zw.cur.numFiles >= zw.cfg.maxEntriesPerFolder
		overSize := zw.cfg.maxFolderSizeBytes > 0 && zw.cur.folderSize >= uint64(zw.cfg.maxFolderSizeBytes) //nolint:gosec,lll

		if overEntries || overSize {
			if err := zw.flushFolder(); err != nil {
				return err
			}
		}
	}

	if zw.cur == nil {
		pf, err := zw.openFolder()
		if err != nil {
			return err
		}

		zw.cur = pf
	}

	return nil
}

// openFolder builds the folder's coder chain: the configured data coder
// (LZMA2 by default), optionally wrapped in an AES256SHA256 encryption
// stage when a password is set, writing in that order so that on read-back
// the coder chain decrypts before decompressing.
func (zw *Writer) openFolder() (*pendingFolder, error) {
	pf := &pendingFolder{folderCRC: crc32.NewIEEE()}

	counter := &countWriter{w: zw.w}
	pf.packCounter = counter

	var (
		sink io.Writer = counter
		err  error
	)

	if zw.password != "" {
		var aesProps []byte

		pf.aesWriter, aesProps, err = aes7z.NewWriter(counter, zw.password)
		if err != nil {
			return nil, wrapCrypto("error creating folder cipher", err)
		}

		sink = pf.aesWriter

		pf.coders = append(pf.coders, &coder{id: idBytesAES, in: 1, out: 1, properties: aesProps})
	}

	var (
		dataID    []byte
		dataProps []byte
	)

	switch zw.cfg.method {
	case "copy":
		pf.plainWriter = nopWriteCloser{sink}
		dataID = idBytesCopy
	case "deflate":
		pf.plainWriter, dataProps, err = deflate.NewWriter(sink)
		dataID = idBytesDeflate
	default:
		pf.plainWriter, dataProps, err = lzma2.NewWriter(sink, 0)
		dataID = idBytesLZMA2
	}

	if err != nil {
		return nil, wrapIO("error creating folder encoder", err)
	}

	dataCoder := &coder{id: dataID, in: 1, out: 1, properties: dataProps}
	pf.coders = append(pf.coders, dataCoder)

	if pf.aesWriter != nil {
		// coders[0] is AES (global output index 0), coders[1] is the data
		// coder whose one input (global index 1) reads AES's output.
		pf.bindPair = &bindPair{in: 1, out: 0}
	}

	return pf, nil
}

// flushFolder closes the folder's coder chain (flushing any buffered
// compressed/encrypted bytes) and records its metadata as a *folder ready
// for header serialization.
func (zw *Writer) flushFolder() error {
	pf := zw.cur
	if pf == nil {
		return nil
	}

	if err := pf.plainWriter.Close(); err != nil {
		return wrapIO("error closing folder encoder", err)
	}

	if pf.aesWriter != nil {
		if err := pf.aesWriter.Close(); err != nil {
			return wrapIO("error closing folder cipher", err)
		}
	}

	f := &folder{coder: pf.coders, hasCRC: true, crc: pf.folderCRC.Sum32()}

	for _, c := range f.coder {
		f.in += c.in
		f.out += c.out
	}

	if pf.bindPair != nil {
		f.bindPair = []*bindPair{pf.bindPair}
		f.size = []uint64{pf.packCounter.n, pf.folderSize}
	} else {
		f.size = []uint64{pf.folderSize}
	}

	f.packedStreams = f.in - uint64(len(f.bindPair))
	f.packed = []uint64{0}
	f.numUnpackSubstreams = uint64(pf.numFiles) //nolint:gosec

	if err := f.validate(); err != nil {
		return err
	}

	zw.folders = append(zw.folders, f)
	zw.packSizes = append(zw.packSizes, pf.packCounter.n)
	zw.cur = nil

	return nil
}

func sumUint64(v []uint64) uint64 {
	var total uint64
	for _, x := range v {
		total += x
	}

	return total
}

// buildSubStreamsInfo returns nil when every folder holds exactly one file,
// letting the reader's defaultSubStreamsInfo apply instead of writing a
// redundant block.
func (zw *Writer) buildSubStreamsInfo() *subStreamsInfo {
	multi := false

	for _, f := range zw.folders {
		if f.numUnpackSubstreams > 1 {
			multi = true

			break
		}
	}

	if !multi {
		return nil
	}

	ssi := &subStreamsInfo{streams: make([]uint64, len(zw.folders))}
	for i, f := range zw.folders {
		ssi.streams[i] = f.numUnpackSubstreams
	}

	for i := range zw.files {
		if zw.files[i].isEmptyStream {
			continue
		}

		ssi.size = append(ssi.size, zw.files[i].UncompressedSize)
		ssi.defined = append(ssi.defined, true)
		ssi.digest = append(ssi.digest, zw.files[i].CRC32)
	}

	return ssi
}

// compressHeader LZMA2-compresses the plain header block for the
// header-compression path, returning the compressed bytes and the coder's
// one-byte properties block.
func compressHeader(plain []byte) ([]byte, []byte, error) {
	var buf bytes.Buffer

	w, props, err := lzma2.NewWriter(&buf, 0)
	if err != nil {
		return nil, nil, wrapIO("error creating header encoder", err)
	}

	if _, err := w.Write(plain); err != nil {
		return nil, nil, wrapIO("error compressing header", err)
	}

	if err := w.Close(); err != nil {
		return nil, nil, wrapIO("error closing header encoder", err)
	}

	return buf.Bytes(), props, nil
}

// Close flushes the last open folder, serializes the header (compressed by
// default, per WithHeaderCompression), and rewrites the 32-byte signature
// header placeholder with the finished archive's offset/size/CRC.
//
//nolint:cyclop,funlen
func (zw *Writer) Close() error {
	if zw.closed {
		return nil
	}

	if err := zw.closeEntry(); err != nil {
		return err
	}

	if err := zw.flushFolder(); err != nil {
		return err
	}

	h := &header{filesInfo: &filesInfo{file: zw.files}}

	if len(zw.folders) > 0 {
		defined := make([]bool, len(zw.folders))
		digest := make([]uint32, len(zw.folders))

		for i, f := range zw.folders {
			defined[i] = true
			digest[i] = f.crc
		}

		h.streamsInfo = &streamsInfo{
			packInfo:   &packInfo{position: 0, size: zw.packSizes},
			unpackInfo: &unpackInfo{folder: zw.folders, defined: defined, digest: digest},
		}
		h.streamsInfo.subStreamsInfo = zw.buildSubStreamsInfo()
	}

	plain, err := writeHeaderBlock(h)
	if err != nil {
		return err
	}

	contentPackTotal := sumUint64(zw.packSizes)

	var (
		blockBytes    []byte
		wrapperOffset uint64
	)

	if zw.cfg.headerCompression {
		compressed, props, err := compressHeader(plain)
		if err != nil {
			return err
		}

		if _, err := zw.w.Write(compressed); err != nil {
			return wrapIO("error writing compressed header", err)
		}

		hf := &folder{
			coder:         []*coder{{id: idBytesLZMA2, in: 1, out: 1, properties: props}},
			in:            1,
			out:           1,
			packedStreams: 1,
			packed:        []uint64{0},
			size:          []uint64{uint64(len(plain))}, //nolint:gosec
			hasCRC:        true,
			crc:           crc32.ChecksumIEEE(plain),
		}

		encSI := &streamsInfo{
			packInfo:   &packInfo{position: contentPackTotal, size: []uint64{uint64(len(compressed))}}, //nolint:gosec,lll
			unpackInfo: &unpackInfo{folder: []*folder{hf}, defined: []bool{true}, digest: []uint32{hf.crc}},
		}

		var eb bytes.Buffer

		if err := eb.WriteByte(idEncodedHeader); err != nil {
			return wrapIO("error writing encoded header tag", err)
		}

		if err := writeStreamsInfo(&eb, encSI); err != nil {
			return err
		}

		blockBytes = eb.Bytes()
		wrapperOffset = contentPackTotal + uint64(len(compressed)) //nolint:gosec
	} else {
		blockBytes = plain
		wrapperOffset = contentPackTotal
	}

	if _, err := zw.w.Write(blockBytes); err != nil {
		return wrapIO("error writing header block", err)
	}

	if err := zw.writeSignatureHeader(wrapperOffset, uint64(len(blockBytes)), crc32.ChecksumIEEE(blockBytes)); err != nil { //nolint:lll
		return err
	}

	zw.closed = true

	return nil
}

func (zw *Writer) writeSignatureHeader(offset, size uint64, blockCRC uint32) error {
	var buf [signatureHeaderSize]byte

	copy(buf[0:6], signatureMagic[:])
	buf[6] = majorVersion
	buf[7] = minorVersion

	putLE64(buf[12:20], offset)
	putLE64(buf[20:28], size)
	putLE32(buf[28:32], blockCRC)
	putLE32(buf[8:12], crc32.ChecksumIEEE(buf[12:32]))

	if _, err := zw.w.Seek(0, io.SeekStart); err != nil {
		return wrapIO("error seeking to signature header", err)
	}

	if _, err := zw.w.Write(buf[:]); err != nil {
		return wrapIO("error writing signature header", err)
	}

	return nil
}

func putLE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func putLE64(b []byte, v uint64) {
	for i := range 8 {
		b[i] = byte(v >> (8 * i))
	}
}
