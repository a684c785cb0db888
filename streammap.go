package sevenzip

// streamMap precomputes the bookkeeping that ties the flat pack-stream and
// file lists back to the folders they belong to, the way the teacher's
// struct.go used to compute inline at Open time. Pulling it out into its own
// type means Pass B (header.go) builds it once, right after the three
// sub-blocks it depends on are all parsed, instead of every folderReader
// call re-deriving the same offsets.
type streamMap struct {
	// position is packInfo.position, the absolute offset of the
	// pack-streams region within the archive.
	position uint64

	// folderFirstPackStream holds, for each folder, the index into the
	// flat packInfo.size/digest arrays of that folder's first pack
	// stream. A folder with packedStreams > 1 claims a contiguous run
	// starting there.
	folderFirstPackStream []int

	// packStreamOffsets holds, for each pack stream, its offset in bytes
	// relative to packInfo.position (i.e. the start of the pack-streams
	// region), so folderOffset is a single slice lookup rather than a
	// running sum computed on every call.
	packStreamOffsets []int64

	// folderFirstFile holds, for each folder, the index into the header's
	// file list of the first file stored in it. Folders with no
	// substreams info default to one file each.
	folderFirstFile []int

	// fileFolder maps a file index to the folder index that contains it,
	// or -1 for files with no content (directories, empty files, anti
	// items).
	fileFolder []int
}

// newStreamMap builds the lookup tables above from the three streamsInfo
// sub-blocks plus the parsed file list. It assumes pi/ui have already been
// validated (each folder's packedStreams/unpackSize are internally
// consistent per folder.validate).
func newStreamMap(pi *packInfo, ui *unpackInfo, ssi *subStreamsInfo, files []FileHeader) *streamMap {
	sm := &streamMap{
		position:              pi.position,
		folderFirstPackStream: make([]int, len(ui.folder)),
		packStreamOffsets:     make([]int64, len(pi.size)),
		folderFirstFile:       make([]int, len(ui.folder)),
	}

	var packIdx int

	var offset int64

	for i, f := range ui.folder {
		sm.folderFirstPackStream[i] = packIdx

		for j := uint64(0); j < f.packedStreams; j++ {
			sm.packStreamOffsets[packIdx] = offset
			offset += int64(pi.size[packIdx]) //nolint:gosec
			packIdx++
		}
	}

	numSubstreams := make([]uint64, len(ui.folder))

	for i := range ui.folder {
		switch {
		case ssi != nil && i < len(ssi.streams):
			numSubstreams[i] = ssi.streams[i]
		default:
			numSubstreams[i] = 1
		}
	}

	sm.fileFolder = make([]int, len(files))

	var folderIdx int

	remaining := uint64(0)

	if len(numSubstreams) > 0 {
		remaining = numSubstreams[0]
	}

	for i := range files {
		if files[i].isEmptyStream {
			sm.fileFolder[i] = -1

			continue
		}

		for folderIdx < len(numSubstreams) && remaining == 0 {
			folderIdx++

			if folderIdx < len(numSubstreams) {
				remaining = numSubstreams[folderIdx]
			}
		}

		if folderIdx >= len(ui.folder) {
			sm.fileFolder[i] = -1

			continue
		}

		if sm.folderFirstFile[folderIdx] == 0 && remaining == numSubstreams[folderIdx] {
			sm.folderFirstFile[folderIdx] = i
		}

		sm.fileFolder[i] = folderIdx
		remaining--
	}

	return sm
}

// folderOffset returns folderIdx's first pack stream's offset, relative to
// the start of the signature header (the origin of the section reader
// Reader.init builds at the located signature) - the pack-streams region
// always begins right
// after the 32-byte signature header, signatureHeaderSize + position.
func (sm *streamMap) folderOffset(folderIdx int) int64 {
	return int64(signatureHeaderSize) + int64(sm.position) + sm.packStreamOffsets[sm.folderFirstPackStream[folderIdx]] //nolint:gosec,lll
}
