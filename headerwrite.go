package sevenzip

import (
	"bytes"
	"time"
	"unicode/utf16"
)

// This file is the inverse of header.go: it serializes the same *header,
// *streamsInfo, *folder and *FileHeader types header.go parses, producing
// exactly the byte grammar parseHeader/parseStreamsInfo/parseFolder/
// parseFilesInfo expect back. Keeping the read and write sides built on the
// same in-memory types means a round trip through this engine is the same
// tree both ways, not a second parallel model of the format.

func writeProp(buf *bytes.Buffer, id byte, body func(*bytes.Buffer) error) error {
	var pb bytes.Buffer
	if err := body(&pb); err != nil {
		return err
	}

	if err := buf.WriteByte(id); err != nil {
		return wrapIO("error writing property tag", err)
	}

	if err := writeNumber(buf, uint64(pb.Len())); err != nil { //nolint:gosec
		return err
	}

	if _, err := buf.Write(pb.Bytes()); err != nil {
		return wrapIO("error writing property body", err)
	}

	return nil
}

func writeDigestsBlock(buf *bytes.Buffer, defined []bool, digest []uint32) error {
	if err := writeAllOrBits(buf, defined); err != nil {
		return err
	}

	for i, d := range defined {
		if !d {
			continue
		}

		if err := writeUint32(buf, digest[i]); err != nil {
			return err
		}
	}

	return nil
}

func writePackInfo(buf *bytes.Buffer, pi *packInfo) error {
	if err := buf.WriteByte(idPackInfo); err != nil {
		return wrapIO("error writing pack info tag", err)
	}

	if err := writeNumber(buf, pi.position); err != nil {
		return err
	}

	if err := writeNumber(buf, uint64(len(pi.size))); err != nil { //nolint:gosec
		return err
	}

	if err := buf.WriteByte(idSize); err != nil {
		return wrapIO("error writing pack size tag", err)
	}

	for _, s := range pi.size {
		if err := writeNumber(buf, s); err != nil {
			return err
		}
	}

	if pi.defined != nil {
		if err := buf.WriteByte(idCRC); err != nil {
			return wrapIO("error writing pack CRC tag", err)
		}

		if err := writeDigestsBlock(buf, pi.defined, pi.digest); err != nil {
			return err
		}
	}

	return buf.WriteByte(idEnd)
}

func writeFolder(buf *bytes.Buffer, f *folder) error {
	if err := writeNumber(buf, uint64(len(f.coder))); err != nil { //nolint:gosec
		return err
	}

	for _, c := range f.coder {
		flags := byte(len(c.id) & 0x0f)

		multiArity := c.in != 1 || c.out != 1
		if multiArity {
			flags |= 0x10
		}

		if len(c.properties) > 0 {
			flags |= 0x20
		}

		if err := buf.WriteByte(flags); err != nil {
			return wrapIO("error writing coder flags", err)
		}

		if _, err := buf.Write(c.id); err != nil {
			return wrapIO("error writing coder id", err)
		}

		if multiArity {
			if err := writeNumber(buf, c.in); err != nil {
				return err
			}

			if err := writeNumber(buf, c.out); err != nil {
				return err
			}
		}

		if len(c.properties) > 0 {
			if err := writeNumber(buf, uint64(len(c.properties))); err != nil { //nolint:gosec
				return err
			}

			if _, err := buf.Write(c.properties); err != nil {
				return wrapIO("error writing coder properties", err)
			}
		}
	}

	for _, bp := range f.bindPair {
		if err := writeNumber(buf, bp.in); err != nil {
			return err
		}

		if err := writeNumber(buf, bp.out); err != nil {
			return err
		}
	}

	if f.packedStreams > 1 {
		for _, p := range f.packed {
			if err := writeNumber(buf, p); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeUnpackInfo(buf *bytes.Buffer, ui *unpackInfo) error {
	if err := buf.WriteByte(idUnpackInfo); err != nil {
		return wrapIO("error writing unpack info tag", err)
	}

	if err := buf.WriteByte(idFolder); err != nil {
		return wrapIO("error writing folder tag", err)
	}

	if err := writeNumber(buf, uint64(len(ui.folder))); err != nil { //nolint:gosec
		return err
	}

	if err := buf.WriteByte(0); err != nil { // external
		return wrapIO("error writing folder external flag", err)
	}

	for _, f := range ui.folder {
		if err := writeFolder(buf, f); err != nil {
			return err
		}
	}

	if err := buf.WriteByte(idCodersUnpackSize); err != nil {
		return wrapIO("error writing coders unpack size tag", err)
	}

	for _, f := range ui.folder {
		for _, s := range f.size {
			if err := writeNumber(buf, s); err != nil {
				return err
			}
		}
	}

	if ui.defined != nil {
		if err := buf.WriteByte(idCRC); err != nil {
			return wrapIO("error writing folder CRC tag", err)
		}

		if err := writeDigestsBlock(buf, ui.defined, ui.digest); err != nil {
			return err
		}
	}

	return buf.WriteByte(idEnd)
}

// writeSubStreamsInfo is only called when at least one folder holds more
// than one file; single-substream-per-folder archives omit the block
// entirely and rely on defaultSubStreamsInfo at read time.
func writeSubStreamsInfo(buf *bytes.Buffer, ssi *subStreamsInfo, folders []*folder) error {
	if err := buf.WriteByte(idSubStreamsInfo); err != nil {
		return wrapIO("error writing substreams info tag", err)
	}

	if err := buf.WriteByte(idNumUnpackStream); err != nil {
		return wrapIO("error writing num unpack stream tag", err)
	}

	for _, n := range ssi.streams {
		if err := writeNumber(buf, n); err != nil {
			return err
		}
	}

	if err := buf.WriteByte(idSize); err != nil {
		return wrapIO("error writing substream size tag", err)
	}

	var idx int

	for _, n := range ssi.streams {
		for i := uint64(0); i < n; i++ {
			if i < n-1 {
				if err := writeNumber(buf, ssi.size[idx]); err != nil {
					return err
				}
			}

			idx++
		}
	}

	if err := buf.WriteByte(idCRC); err != nil {
		return wrapIO("error writing substream CRC tag", err)
	}

	var defined []bool

	var digest []uint32

	idx = 0

	for fi, n := range ssi.streams {
		if n == 1 && folders[fi].hasCRC {
			idx++

			continue
		}

		for j := uint64(0); j < n; j++ {
			defined = append(defined, ssi.defined[idx])
			digest = append(digest, ssi.digest[idx])
			idx++
		}
	}

	if err := writeDigestsBlock(buf, defined, digest); err != nil {
		return err
	}

	return buf.WriteByte(idEnd)
}

func writeStreamsInfo(buf *bytes.Buffer, si *streamsInfo) error {
	if err := writePackInfo(buf, si.packInfo); err != nil {
		return err
	}

	if err := writeUnpackInfo(buf, si.unpackInfo); err != nil {
		return err
	}

	if si.subStreamsInfo != nil {
		if err := writeSubStreamsInfo(buf, si.subStreamsInfo, si.unpackInfo.folder); err != nil {
			return err
		}
	}

	return buf.WriteByte(idEnd)
}

func anyTrue(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}

	return false
}

func writeNames(buf *bytes.Buffer, files []FileHeader) error {
	return writeProp(buf, idName, func(b *bytes.Buffer) error {
		if err := b.WriteByte(0); err != nil { // external
			return wrapIO("error writing names external flag", err)
		}

		for i := range files {
			for _, r := range utf16.Encode([]rune(files[i].Name)) {
				if err := writeUint16(b, r); err != nil {
					return err
				}
			}

			if err := writeUint16(b, 0); err != nil {
				return err
			}
		}

		return nil
	})
}

func writeTimes(buf *bytes.Buffer, id byte, files []FileHeader, field func(*FileHeader) time.Time) error {
	defined := make([]bool, len(files))
	for i := range files {
		defined[i] = !field(&files[i]).IsZero()
	}

	if !anyTrue(defined) {
		return nil
	}

	return writeProp(buf, id, func(b *bytes.Buffer) error {
		if err := writeAllOrBits(b, defined); err != nil {
			return err
		}

		if err := b.WriteByte(0); err != nil { // external
			return wrapIO("error writing timestamp external flag", err)
		}

		for i := range files {
			if !defined[i] {
				continue
			}

			if err := writeUint64(b, timeToFiletime(field(&files[i]))); err != nil {
				return err
			}
		}

		return nil
	})
}

func writeAttributes(buf *bytes.Buffer, files []FileHeader) error {
	defined := make([]bool, len(files))
	for i := range files {
		defined[i] = files[i].Attributes != 0
	}

	if !anyTrue(defined) {
		return nil
	}

	return writeProp(buf, idWinAttributes, func(b *bytes.Buffer) error {
		if err := writeAllOrBits(b, defined); err != nil {
			return err
		}

		if err := b.WriteByte(0); err != nil { // external
			return wrapIO("error writing attributes external flag", err)
		}

		for i := range files {
			if !defined[i] {
				continue
			}

			if err := writeUint32(b, files[i].Attributes); err != nil {
				return err
			}
		}

		return nil
	})
}

func writeFilesInfo(buf *bytes.Buffer, files []FileHeader) error {
	if err := buf.WriteByte(idFilesInfo); err != nil {
		return wrapIO("error writing files info tag", err)
	}

	if err := writeNumber(buf, uint64(len(files))); err != nil { //nolint:gosec
		return err
	}

	emptyStream := make([]bool, len(files))

	var anyEmpty bool

	for i := range files {
		if files[i].isEmptyStream {
			emptyStream[i] = true
			anyEmpty = true
		}
	}

	if anyEmpty {
		if err := writeProp(buf, idEmptyStream, func(b *bytes.Buffer) error {
			return writeBits(b, emptyStream)
		}); err != nil {
			return err
		}

		var emptyFile, anti []bool

		for i := range files {
			if files[i].isEmptyStream {
				emptyFile = append(emptyFile, files[i].isEmptyFile)
				anti = append(anti, files[i].isAnti)
			}
		}

		if anyTrue(emptyFile) {
			if err := writeProp(buf, idEmptyFile, func(b *bytes.Buffer) error {
				return writeBits(b, emptyFile)
			}); err != nil {
				return err
			}
		}

		if anyTrue(anti) {
			if err := writeProp(buf, idAnti, func(b *bytes.Buffer) error {
				return writeBits(b, anti)
			}); err != nil {
				return err
			}
		}
	}

	if err := writeNames(buf, files); err != nil {
		return err
	}

	if err := writeTimes(buf, idCTime, files, func(h *FileHeader) time.Time { return h.Created }); err != nil {
		return err
	}

	if err := writeTimes(buf, idATime, files, func(h *FileHeader) time.Time { return h.Accessed }); err != nil {
		return err
	}

	if err := writeTimes(buf, idMTime, files, func(h *FileHeader) time.Time { return h.Modified }); err != nil {
		return err
	}

	if err := writeAttributes(buf, files); err != nil {
		return err
	}

	return buf.WriteByte(idEnd)
}

// writeHeaderBlock serializes the plain (uncompressed) kHeader block: the
// bytes either get written straight to the archive, or get handed to the
// writer's header-compression folder as the plaintext input.
func writeHeaderBlock(h *header) ([]byte, error) {
	var buf bytes.Buffer

	if err := buf.WriteByte(idHeader); err != nil {
		return nil, wrapIO("error writing header tag", err)
	}

	if h.streamsInfo != nil {
		if err := buf.WriteByte(idMainStreamsInfo); err != nil {
			return nil, wrapIO("error writing main streams info tag", err)
		}

		if err := writeStreamsInfo(&buf, h.streamsInfo); err != nil {
			return nil, err
		}
	}

	if err := writeFilesInfo(&buf, h.filesInfo.file); err != nil {
		return nil, err
	}

	if err := buf.WriteByte(idEnd); err != nil {
		return nil, wrapIO("error writing header end tag", err)
	}

	return buf.Bytes(), nil
}
