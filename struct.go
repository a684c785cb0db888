package sevenzip

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	iofs "io/fs"
	"path"
	"time"

	"github.com/bodgit/plumbing"
	"github.com/go7z/sevenzip/internal/util"
)

var (
	errInvalidWhence         = errors.New("invalid whence")
	errNegativeSeek          = errors.New("negative seek")
	errSeekBackwards         = errors.New("cannot seek backwards")
	errSeekEOF               = errors.New("cannot seek beyond EOF")
	errMultipleOutputStreams = errors.New("more than one output stream")
	errNoBoundStream         = errors.New("cannot find bound stream")
	errNoUnboundStream       = errors.New("expecting one unbound output stream")
)

// CryptoReadCloser adds a Password method to decompressors, mirroring the
// teacher's contract for the AES coder.
type CryptoReadCloser interface {
	Password(password string) error
}

// coder is one node of a folder's pipeline: a method id, its input/output
// stream counts (the core only ever builds stacks for in=out=1, everything
// else is rejected per §1's Non-goals) and any codec-specific properties.
type coder struct {
	id         []byte
	in, out    uint64
	properties []byte
}

// bindPair records that output stream out of some coder feeds input stream
// in of another coder, both indices folder-local (§3).
type bindPair struct {
	in, out uint64
}

// folder is a self-contained solid-compression unit: an ordered pipeline of
// coders, the bind-pairs wiring their streams together, the packed
// (externally supplied) input indices, and per-coder-output unpack sizes.
type folder struct {
	in, out       uint64
	packedStreams uint64
	coder         []*coder
	bindPair      []*bindPair
	size          []uint64
	packed        []uint64

	hasCRC bool
	crc    uint32

	numUnpackSubstreams uint64

	// topoOrder caches the coder visitation order computed once at
	// construction time (§9's "implementers may precompute this order").
	topoOrder []int
}

func (f *folder) findInBindPair(i uint64) *bindPair {
	for _, v := range f.bindPair {
		if v.in == i {
			return v
		}
	}

	return nil
}

func (f *folder) findOutBindPair(i uint64) *bindPair {
	for _, v := range f.bindPair {
		if v.out == i {
			return v
		}
	}

	return nil
}

// finalOutput returns the index of the one coder output not referenced by
// any bind-pair - the folder's logical output (§3's folder invariant).
func (f *folder) finalOutput() (uint64, error) {
	unbound := make([]uint64, 0, 1)

	for i := uint64(0); i < f.out; i++ {
		if f.findOutBindPair(i) == nil {
			unbound = append(unbound, i)
		}
	}

	if len(unbound) != 1 {
		return 0, errNoUnboundStream
	}

	return unbound[0], nil
}

// unpackSize returns the folder's logical (final output) unpack size.
func (f *folder) unpackSize() uint64 {
	if len(f.size) == 0 {
		return 0
	}

	for i := len(f.size) - 1; i >= 0; i-- {
		if f.findOutBindPair(uint64(i)) == nil {
			return f.size[i]
		}
	}

	return f.size[len(f.size)-1]
}

// validate checks the invariants from §3: bind-pair count, packed-stream
// count, range and uniqueness of indices, and existence of exactly one
// unbound output.
func (f *folder) validate() error {
	if len(f.coder) == 0 {
		return wrapCorrupt("folder has no coders", errors.New("empty folder"))
	}

	if f.out == 0 {
		return wrapCorrupt("folder has no outputs", errors.New("empty folder"))
	}

	if uint64(len(f.bindPair)) != f.out-1 {
		return wrapCorrupt("bind-pair count mismatch", errors.New("invariant violated"))
	}

	if f.in < uint64(len(f.bindPair)) {
		return wrapCorrupt("packed stream count underflow", errors.New("invariant violated"))
	}

	if f.packedStreams != f.in-uint64(len(f.bindPair)) || f.packedStreams == 0 {
		return wrapCorrupt("packed stream count mismatch", errors.New("invariant violated"))
	}

	seenIn := make(map[uint64]bool, len(f.bindPair))
	seenOut := make(map[uint64]bool, len(f.bindPair))

	for _, bp := range f.bindPair {
		if bp.in >= f.in || bp.out >= f.out {
			return wrapCorrupt("bind-pair index out of range", errors.New("invariant violated"))
		}

		if seenIn[bp.in] || seenOut[bp.out] {
			return wrapCorrupt("bind-pair index reused", errors.New("invariant violated"))
		}

		seenIn[bp.in] = true
		seenOut[bp.out] = true
	}

	if _, err := f.finalOutput(); err != nil {
		return wrapCorrupt("folder final output", err)
	}

	return nil
}

// computeTopoOrder walks the bind-pair graph backwards from the folder's
// final output, recording the coder visitation order the decoder-stack
// builder needs. §9 allows precomputing this once, which this does at
// parse time rather than per-extraction.
func (f *folder) computeTopoOrder() {
	input := make([]uint64, len(f.coder))
	output := make([]uint64, len(f.coder))

	var in, out uint64

	for i, c := range f.coder {
		input[i], output[i] = in, out
		in += c.in
		out += c.out
	}

	visited := make([]bool, len(f.coder))
	order := make([]int, 0, len(f.coder))

	var visit func(idx int)

	visit = func(idx int) {
		if visited[idx] {
			return
		}

		visited[idx] = true

		c := f.coder[idx]
		for j := input[idx]; j < input[idx]+c.in; j++ {
			if bp := f.findInBindPair(j); bp != nil {
				for k, o := range output {
					if bp.out >= o && bp.out < o+f.coder[k].out {
						visit(k)
					}
				}
			}
		}

		order = append(order, idx)
	}

	final, err := f.finalOutput()
	if err != nil {
		f.topoOrder = nil

		return
	}

	for k, o := range output {
		if final >= o && final < o+f.coder[k].out {
			visit(k)
		}
	}

	f.topoOrder = order
}

// coderReader builds a single coder's decoder given its already-resolved
// input readers, returning whether the coder needed a password.
func (f *folder) coderReader(readers []io.ReadCloser, idx uint64, password string) (io.ReadCloser, bool, error) {
	c := f.coder[idx]

	dec := decoder(c.id)
	if dec == nil {
		return nil, false, wrapUnsupported(fmt.Sprintf("unknown coder method %x", c.id))
	}

	cr, err := dec(c.properties, f.size[idx], readers)
	if err != nil {
		return nil, false, err
	}

	crc, needsPassword := cr.(CryptoReadCloser)
	if needsPassword {
		if password == "" {
			return nil, true, wrapPasswordRequired("encrypted coder but no password supplied")
		}

		if err := crc.Password(password); err != nil {
			return nil, true, wrapCrypto("error setting password", err)
		}
	}

	return plumbing.LimitReadCloser(cr, int64(f.size[idx])), needsPassword, nil //nolint:gosec
}

// folderReadCloser wraps a folder's fully-assembled output stream with a
// running CRC-32 (Checksum) and byte-counting, exposing the Seek semantics a
// random-access File.Open needs (skip-ahead only, mirroring §4.8's
// "draining is required before the next entry becomes visible"). It does
// not compare the CRC with the folder's recorded digest itself:
// readEncodedHeader does so for an encoded header, and file content read
// through File.Open is not checked.
type folderReadCloser struct {
	io.ReadCloser
	h             hash.Hash
	wc            *plumbing.WriteCounter
	size          int64
	hasEncryption bool
}

func newFolderReadCloser(rc io.ReadCloser, size int64, hasEncryption bool) *folderReadCloser {
	nrc := new(folderReadCloser)
	nrc.h = crc32.NewIEEE()
	nrc.wc = new(plumbing.WriteCounter)
	nrc.ReadCloser = plumbing.TeeReadCloser(rc, io.MultiWriter(nrc.h, nrc.wc))
	nrc.size = size
	nrc.hasEncryption = hasEncryption

	return nrc
}

func (rc *folderReadCloser) Checksum() []byte {
	return rc.h.Sum(nil)
}

func (rc *folderReadCloser) Size() int64 {
	return rc.size
}

func (rc *folderReadCloser) Seek(offset int64, whence int) (int64, error) {
	var newo int64

	switch whence {
	case io.SeekStart:
		newo = offset
	case io.SeekCurrent:
		newo = int64(rc.wc.Count()) + offset //nolint:gosec
	case io.SeekEnd:
		newo = rc.Size() + offset
	default:
		return 0, errInvalidWhence
	}

	if newo < 0 {
		return 0, errNegativeSeek
	}

	if uint64(newo) < rc.wc.Count() { //nolint:gosec
		return 0, errSeekBackwards
	}

	if newo > rc.Size() {
		return 0, errSeekEOF
	}

	if _, err := io.CopyN(io.Discard, rc, newo-int64(rc.wc.Count())); err != nil { //nolint:gosec
		return 0, wrapIO("error seeking", err)
	}

	return newo, nil
}

// packInfo is the absolute offset of the pack-streams region plus each pack
// stream's size and optional CRC.
type packInfo struct {
	position uint64
	size     []uint64
	defined  []bool
	digest   []uint32
}

// unpackInfo is the ordered list of folders plus their optional per-folder
// final-output CRCs.
type unpackInfo struct {
	folder  []*folder
	defined []bool
	digest  []uint32
}

// subStreamsInfo carries the per-substream unpack sizes and CRCs for every
// folder; when the header omits the block, defaultSubStreamsInfo builds one
// with a single substream per folder.
type subStreamsInfo struct {
	streams []uint64 // substream count per folder
	size    []uint64 // per-substream unpack size, across all folders
	defined []bool
	digest  []uint32
}

type streamsInfo struct {
	packInfo       *packInfo
	unpackInfo     *unpackInfo
	subStreamsInfo *subStreamsInfo

	streamMap *streamMap
}

func (si *streamsInfo) folders() int {
	if si != nil && si.unpackInfo != nil {
		return len(si.unpackInfo.folder)
	}

	return 0
}

//nolint:cyclop,funlen
func (si *streamsInfo) folderReader(r io.ReaderAt, folderIdx int, password string) (*folderReadCloser, uint32, bool, error) {
	f := si.unpackInfo.folder[folderIdx]
	in := make([]io.ReadCloser, f.in)
	out := make([]io.ReadCloser, f.out)

	offset := si.streamMap.folderOffset(folderIdx)

	for i, input := range f.packed {
		packIdx := si.streamMap.folderFirstPackStream[folderIdx] + i
		size := int64(si.packInfo.size[packIdx]) //nolint:gosec
		in[input] = util.ByteReadCloser(util.NopCloser(io.NewSectionReader(r, offset, size)))
		offset += size
	}

	var hasEncryption bool

	order := f.topoOrder
	if order == nil {
		order = make([]int, len(f.coder))
		for i := range order {
			order[i] = i
		}
	}

	inputOffset := make([]uint64, len(f.coder))
	outputOffset := make([]uint64, len(f.coder))

	{
		var i, o uint64
		for idx, c := range f.coder {
			inputOffset[idx], outputOffset[idx] = i, o
			i += c.in
			o += c.out
		}
	}

	for _, idx := range order {
		c := f.coder[idx]
		if c.out != 1 || c.in > 1 {
			return nil, 0, hasEncryption, errMultipleOutputStreams
		}

		for j := inputOffset[idx]; j < inputOffset[idx]+c.in; j++ {
			if in[j] != nil {
				continue
			}

			bp := f.findInBindPair(j)
			if bp == nil || out[bp.out] == nil {
				return nil, 0, hasEncryption, errNoBoundStream
			}

			in[j] = out[bp.out]
		}

		rc, isEncrypted, err := f.coderReader(in[inputOffset[idx]:inputOffset[idx]+c.in], uint64(idx), password) //nolint:gosec
		if err != nil {
			return nil, 0, hasEncryption, err
		}

		if isEncrypted {
			hasEncryption = true
		}

		out[outputOffset[idx]] = rc
	}

	final, err := f.finalOutput()
	if err != nil {
		return nil, 0, hasEncryption, err
	}

	if out[final] == nil {
		return nil, 0, hasEncryption, errNoUnboundStream
	}

	fr := newFolderReadCloser(out[final], int64(f.unpackSize()), hasEncryption) //nolint:gosec

	if si.unpackInfo.defined != nil && si.unpackInfo.defined[folderIdx] {
		return fr, si.unpackInfo.digest[folderIdx], hasEncryption, nil
	}

	return fr, 0, hasEncryption, nil
}

type filesInfo struct {
	file []FileHeader
}

type header struct {
	streamsInfo *streamsInfo
	filesInfo   *filesInfo
}

// FileHeader describes a file within a 7z archive.
type FileHeader struct {
	Name             string
	Created          time.Time
	Accessed         time.Time
	Modified         time.Time
	Attributes       uint32
	CRC32            uint32
	UncompressedSize uint64

	// Stream is an opaque identifier representing the compressed stream
	// that contains the file. Any File with the same value can be assumed
	// to be stored within the same stream.
	Stream int

	isEmptyStream bool
	isEmptyFile   bool
	isAnti        bool
}

// FileInfo returns an fs.FileInfo for the FileHeader.
func (h *FileHeader) FileInfo() iofs.FileInfo {
	return headerFileInfo{h}
}

type headerFileInfo struct {
	fh *FileHeader
}

func (fi headerFileInfo) Name() string        { return path.Base(fi.fh.Name) }
func (fi headerFileInfo) Size() int64         { return int64(fi.fh.UncompressedSize) } //nolint:gosec
func (fi headerFileInfo) IsDir() bool         { return fi.Mode().IsDir() }
func (fi headerFileInfo) ModTime() time.Time  { return fi.fh.Modified.UTC() }
func (fi headerFileInfo) Mode() iofs.FileMode { return fi.fh.Mode() }
func (fi headerFileInfo) Type() iofs.FileMode { return fi.fh.Mode().Type() }
func (fi headerFileInfo) Sys() interface{}    { return fi.fh }

func (fi headerFileInfo) Info() (iofs.FileInfo, error) { return fi, nil }

const (
	// Unix constants. The specification doesn't mention them, but these
	// seem to be the values agreed on by tools.
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Mode returns the permission and mode bits for the FileHeader.
func (h *FileHeader) Mode() (mode iofs.FileMode) {
	if h.Attributes&0xf0000000 != 0 {
		mode = unixModeToFileMode(h.Attributes >> 16)
	} else {
		mode = msdosModeToFileMode(h.Attributes)
	}

	return
}

func msdosModeToFileMode(m uint32) (mode iofs.FileMode) {
	if m&msdosDir != 0 {
		mode = iofs.ModeDir | 0o777
	} else {
		mode = 0o666
	}

	if m&msdosReadOnly != 0 {
		mode &^= 0o222
	}

	return mode
}

//nolint:cyclop
func unixModeToFileMode(m uint32) iofs.FileMode {
	mode := iofs.FileMode(m & 0o777)

	switch m & sIFMT {
	case sIFBLK:
		mode |= iofs.ModeDevice
	case sIFCHR:
		mode |= iofs.ModeDevice | iofs.ModeCharDevice
	case sIFDIR:
		mode |= iofs.ModeDir
	case sIFIFO:
		mode |= iofs.ModeNamedPipe
	case sIFLNK:
		mode |= iofs.ModeSymlink
	case sIFREG:
		// nothing to do
	case sIFSOCK:
		mode |= iofs.ModeSocket
	}

	if m&sISGID != 0 {
		mode |= iofs.ModeSetgid
	}

	if m&sISUID != 0 {
		mode |= iofs.ModeSetuid
	}

	if m&sISVTX != 0 {
		mode |= iofs.ModeSticky
	}

	return mode
}

// fileModeToAttributes is the inverse of Mode, used by the writer (§4.9) to
// derive Windows attributes for entries that only carry a POSIX mode.
func fileModeToAttributes(mode iofs.FileMode) uint32 {
	var unix uint32

	switch {
	case mode&iofs.ModeDir != 0:
		unix = sIFDIR
	case mode&iofs.ModeSymlink != 0:
		unix = sIFLNK
	case mode&iofs.ModeSocket != 0:
		unix = sIFSOCK
	case mode&iofs.ModeNamedPipe != 0:
		unix = sIFIFO
	case mode&iofs.ModeDevice != 0 && mode&iofs.ModeCharDevice != 0:
		unix = sIFCHR
	case mode&iofs.ModeDevice != 0:
		unix = sIFBLK
	default:
		unix = sIFREG
	}

	unix |= uint32(mode.Perm())

	if mode&iofs.ModeSetuid != 0 {
		unix |= sISUID
	}

	if mode&iofs.ModeSetgid != 0 {
		unix |= sISGID
	}

	if mode&iofs.ModeSticky != 0 {
		unix |= sISVTX
	}

	attr := uint32(0x8000) | unix<<16

	if mode.IsDir() {
		attr |= msdosDir
	}

	if mode.Perm()&0o222 == 0 {
		attr |= msdosReadOnly
	}

	return attr
}
