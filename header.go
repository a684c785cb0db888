package sevenzip

import (
	"hash/crc32"
	"io"
	"time"
	"unicode/utf16"

	"github.com/go7z/sevenzip/internal/util"
)

// readSignatureHeader reads and validates the fixed 32-byte prologue (§4.1):
// magic, version, and the start header describing where the real header
// lives.
func readSignatureHeader(r io.ReaderAt) (startHeader, error) {
	buf := make([]byte, signatureHeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return startHeader{}, wrapIO("error reading signature header", err)
	}

	var sig [6]byte

	copy(sig[:], buf[:6])

	if sig != signatureMagic {
		return startHeader{}, ErrBadSignature
	}

	if buf[6] != majorVersion {
		return startHeader{}, newError(KindBadSignature, "unsupported 7z major version")
	}

	sh := startHeader{
		Offset: le64(buf[12:20]),
		Size:   le64(buf[20:28]),
		CRC:    le32(buf[28:32]),
	}

	if crc32.ChecksumIEEE(buf[12:32]) != le32(buf[8:12]) {
		return startHeader{}, wrapCorrupt("start header CRC mismatch", errUnexpectedID)
	}

	return sh, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}

// readHeader implements §4.4/§4.5 in full: it locates the next-header block,
// transparently bootstraps an encoded (compressed/encrypted) header through
// the same folder machinery used for file content, and materializes the
// result into a *header. maxMemoryKiB of 0 disables the ceiling check.
func readHeader(r io.ReaderAt, archiveSize int64, sh startHeader, password string, maxMemoryKiB uint64, pageSize int) (*header, error) { //nolint:lll
	base := int64(signatureHeaderSize) //nolint:gosec

	sr := io.NewSectionReader(r, base+int64(sh.Offset), int64(sh.Size)) //nolint:gosec

	hb, err := newHeaderBuffer(sr, int64(sh.Size), pageSize) //nolint:gosec
	if err != nil {
		return nil, err
	}

	id, err := hb.ReadByte()
	if err != nil {
		return nil, wrapCorrupt("error reading header tag", err)
	}

	switch id {
	case idHeader:
		return parseHeader(hb, maxMemoryKiB)
	case idEncodedHeader:
		return readEncodedHeader(r, hb, base, password, maxMemoryKiB, pageSize)
	default:
		return nil, wrapCorrupt("unexpected top-level header tag", errUnexpectedID)
	}
}

// readEncodedHeader decodes the bootstrap folder (§4.5) wrapping the real
// header, then recurses into the decompressed bytes. The bootstrap
// streamsInfo is itself parsed under the same memory ceiling as the real
// header, so a hostile bootstrap folder can't bypass it either.
func readEncodedHeader(r io.ReaderAt, hb headerBuffer, base int64, password string, maxMemoryKiB uint64, pageSize int) (*header, error) { //nolint:lll
	var stats headerStats

	si, err := parseStreamsInfo(hb, &stats, maxMemoryKiB)
	if err != nil {
		return nil, err
	}

	if si.packInfo == nil || si.unpackInfo == nil || len(si.unpackInfo.folder) != 1 {
		return nil, wrapCorrupt("encoded header must have exactly one folder", errUnexpectedID)
	}

	si.streamMap = newStreamMap(si.packInfo, si.unpackInfo, nil, nil)

	folderReader, crc, _, err := si.folderReader(r, 0, password)
	if err != nil {
		return nil, wrapCorrupt("error decoding header folder", err)
	}

	defer folderReader.Close()

	decoded, err := io.ReadAll(folderReader)
	if err != nil {
		return nil, wrapCorrupt("error reading decoded header", err)
	}

	if si.unpackInfo.defined != nil && len(si.unpackInfo.defined) > 0 && si.unpackInfo.defined[0] {
		if !util.CRC32Equal(folderReader.Checksum(), crc) {
			return nil, wrapCorrupt("decoded header CRC mismatch", errUnexpectedID)
		}
	}

	inner := newMemoryHeaderBuffer(decoded)

	id, err := inner.ReadByte()
	if err != nil {
		return nil, wrapCorrupt("error reading decoded header tag", err)
	}

	if id != idHeader {
		return nil, wrapCorrupt("decoded header does not start with kHeader", errUnexpectedID)
	}

	_ = base
	_ = pageSize

	return parseHeader(inner, maxMemoryKiB)
}

// parseHeader implements the body of §4.4's block grammar:
//
//	kHeader { [kArchiveProperties] [kAdditionalStreamsInfo] [kMainStreamsInfo] [kFilesInfo] } kEnd
//
// A single headerStats accumulator is threaded through every block parsed
// below; each one folds its attacker-controlled counts into it and checks
// the running estimate against maxMemoryKiB immediately, before allocating
// anything sized by those counts (§4.4's two-phase parse: the statistics
// walk and the model build happen as one pass, but the check always runs
// before the allocation it guards, never after).
func parseHeader(hb headerBuffer, maxMemoryKiB uint64) (*header, error) {
	h := new(header)

	var stats headerStats

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading header block tag", err)
		}

		switch id {
		case idEnd:
			return finishHeader(h)
		case idArchiveProperties:
			if err := skipArchiveProperties(hb); err != nil {
				return nil, err
			}
		case idAdditionalStreamsInfo:
			return nil, wrapUnsupported("multi-volume additional streams are not supported")
		case idMainStreamsInfo:
			if h.streamsInfo, err = parseStreamsInfo(hb, &stats, maxMemoryKiB); err != nil {
				return nil, err
			}
		case idFilesInfo:
			if h.filesInfo, err = parseFilesInfo(hb, &stats, maxMemoryKiB); err != nil {
				return nil, err
			}
		default:
			return nil, wrapCorrupt("unexpected tag in header", errUnexpectedID)
		}
	}
}

// finishHeader cross-checks the parsed streamsInfo/filesInfo and builds the
// streamMap tying them together. The memory ceiling has already been
// enforced incrementally while parsing, so there's nothing left to check
// here.
func finishHeader(h *header) (*header, error) {
	if h.filesInfo == nil {
		h.filesInfo = &filesInfo{}
	}

	if h.streamsInfo != nil && h.streamsInfo.unpackInfo != nil {
		if h.streamsInfo.subStreamsInfo == nil {
			ssi, err := defaultSubStreamsInfo(h.streamsInfo.unpackInfo.folder)
			if err != nil {
				return nil, err
			}

			h.streamsInfo.subStreamsInfo = ssi
		}

		h.streamsInfo.streamMap = newStreamMap(
			h.streamsInfo.packInfo, h.streamsInfo.unpackInfo, h.streamsInfo.subStreamsInfo, h.filesInfo.file)

		distributeSubstreams(h.streamsInfo.subStreamsInfo, h.filesInfo.file)
	}

	return h, nil
}

// defaultSubStreamsInfo builds the implicit one-substream-per-folder
// SubStreamsInfo used when the header omits the block entirely (every
// folder's one substream reuses the folder's own unpack size and CRC).
func defaultSubStreamsInfo(folders []*folder) (*subStreamsInfo, error) {
	ssi := &subStreamsInfo{streams: make([]uint64, len(folders))}
	for i := range ssi.streams {
		ssi.streams[i] = 1
	}

	if err := ssi.deriveSizes(folders); err != nil {
		return nil, err
	}

	if err := ssi.deriveDigests(folders); err != nil {
		return nil, err
	}

	return ssi, nil
}

// distributeSubstreams copies each substream's size and CRC onto the
// FileHeader of the file it belongs to, in the same left-to-right order
// newStreamMap used to build fileFolder. It does not set Stream; Reader.init
// assigns that from fileFolder.
func distributeSubstreams(ssi *subStreamsInfo, files []FileHeader) {
	var idx int

	for i := range files {
		if files[i].isEmptyStream || idx >= len(ssi.size) {
			continue
		}

		files[i].UncompressedSize = ssi.size[idx]

		if idx < len(ssi.defined) && ssi.defined[idx] {
			files[i].CRC32 = ssi.digest[idx]
		}

		idx++
	}
}

func skipArchiveProperties(hb headerBuffer) error {
	for {
		propType, err := readNumber(hb)
		if err != nil {
			return wrapCorrupt("error reading archive property type", err)
		}

		if propType == 0 {
			return nil
		}

		size, err := readNumber(hb)
		if err != nil {
			return wrapCorrupt("error reading archive property size", err)
		}

		if err := hb.skip(int64(size)); err != nil { //nolint:gosec
			return wrapCorrupt("error skipping archive property", err)
		}
	}
}

// parseStreamsInfo implements §4.4's StreamsInfo block:
//
//	[kPackInfo] [kUnpackInfo] [kSubStreamsInfo] kEnd
func parseStreamsInfo(hb headerBuffer, stats *headerStats, maxMemoryKiB uint64) (*streamsInfo, error) {
	si := new(streamsInfo)

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading streams info tag", err)
		}

		switch id {
		case idEnd:
			return si, nil
		case idPackInfo:
			if si.packInfo, err = parsePackInfo(hb, stats, maxMemoryKiB); err != nil {
				return nil, err
			}
		case idUnpackInfo:
			if si.unpackInfo, err = parseUnpackInfo(hb, stats, maxMemoryKiB); err != nil {
				return nil, err
			}
		case idSubStreamsInfo:
			if si.unpackInfo == nil {
				return nil, wrapCorrupt("substreams info without unpack info", errUnexpectedID)
			}

			if si.subStreamsInfo, err = parseSubStreamsInfo(hb, si.unpackInfo.folder, stats, maxMemoryKiB); err != nil {
				return nil, err
			}
		default:
			return nil, wrapCorrupt("unexpected tag in streams info", errUnexpectedID)
		}
	}
}

func readDigests(hb headerBuffer, n int) ([]bool, []uint32, error) {
	defined, err := readAllOrBits(hb, n)
	if err != nil {
		return nil, nil, err
	}

	digest := make([]uint32, n)

	for i := 0; i < n; i++ {
		if !defined[i] {
			continue
		}

		v, err := hb.u32()
		if err != nil {
			return nil, nil, wrapCorrupt("error reading CRC", err)
		}

		digest[i] = v
	}

	return defined, digest, nil
}

// parsePackInfo implements §4.4's PackInfo block.
func parsePackInfo(hb headerBuffer, stats *headerStats, maxMemoryKiB uint64) (*packInfo, error) {
	pos, err := readNumber(hb)
	if err != nil {
		return nil, wrapCorrupt("error reading pack position", err)
	}

	numPackStreams, err := readNumber(hb)
	if err != nil {
		return nil, wrapCorrupt("error reading pack stream count", err)
	}

	if err := checkCount(stats, maxMemoryKiB, numPackStreams, func(s *headerStats, n uint64) { s.packStreams = n }); err != nil {
		return nil, err
	}

	pi := &packInfo{position: pos}

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading pack info tag", err)
		}

		switch id {
		case idEnd:
			if pi.size == nil {
				return nil, wrapCorrupt("pack info missing sizes", errUnexpectedID)
			}

			return pi, nil
		case idSize:
			pi.size = make([]uint64, numPackStreams)

			for i := range pi.size {
				if pi.size[i], err = readNumber(hb); err != nil {
					return nil, wrapCorrupt("error reading pack size", err)
				}
			}
		case idCRC:
			if pi.defined, pi.digest, err = readDigests(hb, int(numPackStreams)); err != nil { //nolint:gosec
				return nil, err
			}
		default:
			return nil, wrapCorrupt("unexpected tag in pack info", errUnexpectedID)
		}
	}
}

// parseFolder implements §4.3/§4.4's Folder block: the coder list, the
// bind-pair wiring, and the packed-stream index list. Per §1's Non-goals,
// any coder declaring more than one input or output is rejected here,
// before coderReader or any decoder ever sees it — BCJ2 (method id
// 03 03 01 1B, 4 inputs/1 output) is the canonical example. That rejection
// also keeps totalIn/totalOut bounded by numCoders, which in turn bounds
// the bind-pair and packed-stream slices below.
func parseFolder(hb headerBuffer, stats *headerStats, maxMemoryKiB uint64) (*folder, error) {
	numCoders, err := readNumber(hb)
	if err != nil {
		return nil, wrapCorrupt("error reading coder count", err)
	}

	if err := checkCount(stats, maxMemoryKiB, numCoders, func(s *headerStats, n uint64) { s.coders += n }); err != nil {
		return nil, err
	}

	f := &folder{coder: make([]*coder, 0, numCoders)}

	var totalIn, totalOut uint64

	for i := uint64(0); i < numCoders; i++ {
		flags, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading coder flags", err)
		}

		if flags&0x80 != 0 {
			return nil, wrapUnsupported("coders with alternative methods are not supported")
		}

		idSize := int(flags & 0x0f)

		id, err := hb.get(idSize)
		if err != nil {
			return nil, wrapCorrupt("error reading coder id", err)
		}

		c := &coder{id: append([]byte(nil), id...), in: 1, out: 1}

		if flags&0x10 != 0 {
			if c.in, err = readNumber(hb); err != nil {
				return nil, wrapCorrupt("error reading coder input count", err)
			}

			if c.out, err = readNumber(hb); err != nil {
				return nil, wrapCorrupt("error reading coder output count", err)
			}

			if c.in > 1 || c.out > 1 {
				return nil, wrapUnsupported("coders with more than one input or output stream are not supported")
			}
		}

		if flags&0x20 != 0 {
			size, err := readNumber(hb)
			if err != nil {
				return nil, wrapCorrupt("error reading coder property size", err)
			}

			if size > maxCoderProperties {
				return nil, wrapCorrupt("coder properties too large", errUnexpectedID)
			}

			props, err := hb.get(int(size)) //nolint:gosec
			if err != nil {
				return nil, wrapCorrupt("error reading coder properties", err)
			}

			c.properties = append([]byte(nil), props...)
		}

		f.coder = append(f.coder, c)
		totalIn += c.in
		totalOut += c.out
	}

	if totalOut == 0 {
		return nil, wrapCorrupt("folder has no coder outputs", errUnexpectedID)
	}

	stats.folders++
	stats.inputs += totalIn
	stats.outputs += totalOut

	if err := checkMemoryLimit(*stats, maxMemoryKiB); err != nil {
		return nil, err
	}

	numBindPairs := totalOut - 1

	if err := checkCount(stats, maxMemoryKiB, numBindPairs, func(s *headerStats, n uint64) { s.bindPairs += n }); err != nil {
		return nil, err
	}

	f.bindPair = make([]*bindPair, numBindPairs)

	for i := range f.bindPair {
		in, err := readNumber(hb)
		if err != nil {
			return nil, wrapCorrupt("error reading bind pair input index", err)
		}

		out, err := readNumber(hb)
		if err != nil {
			return nil, wrapCorrupt("error reading bind pair output index", err)
		}

		f.bindPair[i] = &bindPair{in: in, out: out}
	}

	if totalIn < numBindPairs {
		return nil, wrapCorrupt("folder input count underflow", errUnexpectedID)
	}

	numPackedStreams := totalIn - numBindPairs
	f.packed = make([]uint64, numPackedStreams)

	switch {
	case numPackedStreams == 1:
		bound := make(map[uint64]bool, numBindPairs)
		for _, bp := range f.bindPair {
			bound[bp.in] = true
		}

		found := false

		for j := uint64(0); j < totalIn; j++ {
			if !bound[j] {
				f.packed[0] = j
				found = true

				break
			}
		}

		if !found {
			return nil, wrapCorrupt("folder has no free input for its packed stream", errUnexpectedID)
		}
	default:
		for i := range f.packed {
			if f.packed[i], err = readNumber(hb); err != nil {
				return nil, wrapCorrupt("error reading packed stream index", err)
			}
		}
	}

	f.in, f.out, f.packedStreams = totalIn, totalOut, numPackedStreams

	if err := f.validate(); err != nil {
		return nil, err
	}

	f.computeTopoOrder()

	return f, nil
}

// parseUnpackInfo implements §4.4's UnpackInfo block. numFolders is
// checked, via a throwaway probe of stats, before the folder slice is
// allocated; the real stats accumulator is then updated incrementally as
// each folder's own coder/bind-pair/packed-stream counts are parsed.
func parseUnpackInfo(hb headerBuffer, stats *headerStats, maxMemoryKiB uint64) (*unpackInfo, error) {
	id, err := hb.ReadByte()
	if err != nil || id != idFolder {
		return nil, wrapCorrupt("unpack info missing folder tag", errUnexpectedID)
	}

	numFolders, err := readNumber(hb)
	if err != nil {
		return nil, wrapCorrupt("error reading folder count", err)
	}

	if numFolders > maxHeaderCount {
		return nil, wrapMemoryLimit("header declares an implausibly large folder count")
	}

	probe := *stats
	probe.folders += numFolders

	if err := checkMemoryLimit(probe, maxMemoryKiB); err != nil {
		return nil, err
	}

	external, err := hb.ReadByte()
	if err != nil {
		return nil, wrapCorrupt("error reading folder external flag", err)
	}

	if external != 0 {
		return nil, wrapUnsupported("externally stored folder data is not supported")
	}

	ui := &unpackInfo{folder: make([]*folder, numFolders)}

	for i := range ui.folder {
		if ui.folder[i], err = parseFolder(hb, stats, maxMemoryKiB); err != nil {
			return nil, err
		}
	}

	id, err = hb.ReadByte()
	if err != nil || id != idCodersUnpackSize {
		return nil, wrapCorrupt("unpack info missing coders unpack size tag", errUnexpectedID)
	}

	for _, f := range ui.folder {
		f.size = make([]uint64, f.out)

		for i := range f.size {
			if f.size[i], err = readNumber(hb); err != nil {
				return nil, wrapCorrupt("error reading coder unpack size", err)
			}
		}
	}

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading unpack info tag", err)
		}

		switch id {
		case idEnd:
			return ui, nil
		case idCRC:
			defined, digest, err := readDigests(hb, len(ui.folder))
			if err != nil {
				return nil, err
			}

			ui.defined, ui.digest = defined, digest

			for i, f := range ui.folder {
				f.hasCRC = defined[i]
				f.crc = digest[i]
			}
		default:
			return nil, wrapCorrupt("unexpected tag in unpack info", errUnexpectedID)
		}
	}
}

// parseSubStreamsInfo implements §4.4's SubStreamsInfo block, including the
// folder-CRC-reuse rule from the reference implementation: a folder with
// exactly one substream that already carries a folder-level CRC doesn't
// repeat it in the substream digest list.
//
//nolint:cyclop,funlen
func parseSubStreamsInfo(hb headerBuffer, folders []*folder, stats *headerStats, maxMemoryKiB uint64) (*subStreamsInfo, error) { //nolint:lll
	numStreams := make([]uint64, len(folders))
	for i := range numStreams {
		numStreams[i] = 1
	}

	ssi := &subStreamsInfo{streams: numStreams}

	sawSize := false

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading substreams info tag", err)
		}

		switch id {
		case idEnd:
			if !sawSize {
				if err := ssi.deriveSizes(folders); err != nil {
					return nil, err
				}
			}

			if ssi.defined == nil {
				if err := ssi.deriveDigests(folders); err != nil {
					return nil, err
				}
			}

			return ssi, nil
		case idNumUnpackStream:
			for i := range numStreams {
				if numStreams[i], err = readNumber(hb); err != nil {
					return nil, wrapCorrupt("error reading substream count", err)
				}
			}

			var total uint64

			for _, n := range numStreams {
				total += n
			}

			if err := checkCount(stats, maxMemoryKiB, total, func(s *headerStats, n uint64) { s.substreams = n }); err != nil {
				return nil, err
			}
		case idSize:
			var total uint64

			for _, n := range numStreams {
				total += n
			}

			if err := checkCount(stats, maxMemoryKiB, total, func(s *headerStats, n uint64) { s.substreams = n }); err != nil {
				return nil, err
			}

			if err := ssi.readSizes(hb, folders); err != nil {
				return nil, err
			}

			sawSize = true
		case idCRC:
			if err := ssi.readDigests(hb, folders); err != nil {
				return nil, err
			}
		default:
			return nil, wrapCorrupt("unexpected tag in substreams info", errUnexpectedID)
		}
	}
}

func (ssi *subStreamsInfo) readSizes(hb headerBuffer, folders []*folder) error {
	ssi.size = nil

	for fi, n := range ssi.streams {
		if n == 0 {
			continue
		}

		var sum uint64

		for i := uint64(0); i < n-1; i++ {
			v, err := readNumber(hb)
			if err != nil {
				return wrapCorrupt("error reading substream size", err)
			}

			ssi.size = append(ssi.size, v)
			sum += v
		}

		ssi.size = append(ssi.size, folders[fi].unpackSize()-sum)
	}

	return nil
}

func (ssi *subStreamsInfo) deriveSizes(folders []*folder) error {
	ssi.size = nil

	for fi, n := range ssi.streams {
		if n != 1 {
			return wrapCorrupt("substream sizes required for folders with multiple substreams", errUnexpectedID)
		}

		ssi.size = append(ssi.size, folders[fi].unpackSize())
	}

	return nil
}

func (ssi *subStreamsInfo) readDigests(hb headerBuffer, folders []*folder) error {
	var numDigests int

	for i, n := range ssi.streams {
		if n != 1 || !folders[i].hasCRC {
			numDigests += int(n) //nolint:gosec
		}
	}

	defined, digest, err := readDigests(hb, numDigests)
	if err != nil {
		return err
	}

	ssi.defined = make([]bool, 0, len(ssi.size))
	ssi.digest = make([]uint32, 0, len(ssi.size))

	var next int

	for i, n := range ssi.streams {
		if n == 1 && folders[i].hasCRC {
			ssi.defined = append(ssi.defined, true)
			ssi.digest = append(ssi.digest, folders[i].crc)

			continue
		}

		for j := uint64(0); j < n; j++ {
			ssi.defined = append(ssi.defined, defined[next])
			ssi.digest = append(ssi.digest, digest[next])
			next++
		}
	}

	return nil
}

func (ssi *subStreamsInfo) deriveDigests(folders []*folder) error {
	ssi.defined = make([]bool, 0, len(ssi.size))
	ssi.digest = make([]uint32, 0, len(ssi.size))

	for i, n := range ssi.streams {
		if n == 1 && folders[i].hasCRC {
			ssi.defined = append(ssi.defined, true)
			ssi.digest = append(ssi.digest, folders[i].crc)

			continue
		}

		for j := uint64(0); j < n; j++ {
			ssi.defined = append(ssi.defined, false)
			ssi.digest = append(ssi.digest, 0)
		}
	}

	return nil
}

// parseFilesInfo implements §4.4's FilesInfo block: names, timestamps,
// attributes and the empty-stream/empty-file/anti bitmaps.
//
//nolint:cyclop,funlen,gocognit
func parseFilesInfo(hb headerBuffer, stats *headerStats, maxMemoryKiB uint64) (*filesInfo, error) {
	numFiles, err := readNumber(hb)
	if err != nil {
		return nil, wrapCorrupt("error reading file count", err)
	}

	if err := checkCount(stats, maxMemoryKiB, numFiles, func(s *headerStats, n uint64) { s.entries = n }); err != nil {
		return nil, err
	}

	fi := &filesInfo{file: make([]FileHeader, numFiles)}

	var (
		emptyStream []bool
		emptyFile   []bool
		anti        []bool
		numEmpty    int
	)

	for {
		id, err := hb.ReadByte()
		if err != nil {
			return nil, wrapCorrupt("error reading files info tag", err)
		}

		if id == idEnd {
			break
		}

		size, err := readNumber(hb)
		if err != nil {
			return nil, wrapCorrupt("error reading files info property size", err)
		}

		switch id {
		case idEmptyStream:
			if emptyStream, err = readBits(hb, int(numFiles)); err != nil { //nolint:gosec
				return nil, err
			}

			for _, b := range emptyStream {
				if b {
					numEmpty++
				}
			}
		case idEmptyFile:
			if emptyFile, err = readBits(hb, numEmpty); err != nil {
				return nil, err
			}
		case idAnti:
			if anti, err = readBits(hb, numEmpty); err != nil {
				return nil, err
			}
		case idName:
			if err := readNames(hb, fi.file); err != nil {
				return nil, err
			}
		case idCTime:
			if err := readTimes(hb, fi.file, func(h *FileHeader) *time.Time { return &h.Created }); err != nil {
				return nil, err
			}
		case idATime:
			if err := readTimes(hb, fi.file, func(h *FileHeader) *time.Time { return &h.Accessed }); err != nil {
				return nil, err
			}
		case idMTime:
			if err := readTimes(hb, fi.file, func(h *FileHeader) *time.Time { return &h.Modified }); err != nil {
				return nil, err
			}
		case idWinAttributes:
			if err := readAttributes(hb, fi.file); err != nil {
				return nil, err
			}
		case idStartPos:
			return nil, wrapUnsupported("kStartPos is not supported")
		default:
			if err := hb.skip(int64(size)); err != nil { //nolint:gosec
				return nil, wrapCorrupt("error skipping files info property", err)
			}
		}
	}

	var emptyIdx int

	for i := range fi.file {
		if emptyStream != nil && emptyStream[i] {
			fi.file[i].isEmptyStream = true

			if emptyFile != nil && emptyIdx < len(emptyFile) {
				fi.file[i].isEmptyFile = emptyFile[emptyIdx]
			}

			if anti != nil && emptyIdx < len(anti) {
				fi.file[i].isAnti = anti[emptyIdx]
			}

			emptyIdx++
		}
	}

	return fi, nil
}

func readNames(hb headerBuffer, files []FileHeader) error {
	external, err := hb.ReadByte()
	if err != nil {
		return wrapCorrupt("error reading names external flag", err)
	}

	if external != 0 {
		return wrapUnsupported("externally stored names are not supported")
	}

	for i := range files {
		var u16 []uint16

		for {
			c, err := hb.u16()
			if err != nil {
				return wrapCorrupt("error reading name", err)
			}

			if c == 0 {
				break
			}

			u16 = append(u16, c)
		}

		files[i].Name = string(utf16.Decode(u16))
	}

	return nil
}

func readTimes(hb headerBuffer, files []FileHeader, field func(*FileHeader) *time.Time) error {
	defined, err := readAllOrBits(hb, len(files))
	if err != nil {
		return err
	}

	external, err := hb.ReadByte()
	if err != nil {
		return wrapCorrupt("error reading timestamp external flag", err)
	}

	if external != 0 {
		return wrapUnsupported("externally stored timestamps are not supported")
	}

	for i := range files {
		if !defined[i] {
			continue
		}

		ft, err := hb.u64()
		if err != nil {
			return wrapCorrupt("error reading timestamp", err)
		}

		*field(&files[i]) = filetimeToTime(ft)
	}

	return nil
}

func readAttributes(hb headerBuffer, files []FileHeader) error {
	defined, err := readAllOrBits(hb, len(files))
	if err != nil {
		return err
	}

	external, err := hb.ReadByte()
	if err != nil {
		return wrapCorrupt("error reading attributes external flag", err)
	}

	if external != 0 {
		return wrapUnsupported("externally stored attributes are not supported")
	}

	for i := range files {
		if !defined[i] {
			continue
		}

		attr, err := hb.u32()
		if err != nil {
			return wrapCorrupt("error reading attributes", err)
		}

		files[i].Attributes = attr
	}

	return nil
}
