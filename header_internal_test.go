package sevenzip

import (
	"bytes"
	"errors"
	"testing"
)

// TestParseHeaderRejectsOversizedFolderCountBeforeAllocating builds a header
// declaring an implausible folder count and checks that a low memory
// ceiling rejects it with KindMemoryLimit before parseUnpackInfo ever
// allocates the per-folder slice, per §4.4's statistics-before-allocation
// requirement and §8 scenario 6 ("header claiming 2^30 folders... with
// ceiling 64 KiB expect MemoryLimit").
func TestParseHeaderRejectsOversizedFolderCountBeforeAllocating(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteByte(idMainStreamsInfo)
	buf.WriteByte(idUnpackInfo)
	buf.WriteByte(idFolder)

	if err := writeNumber(&buf, 1<<30); err != nil {
		t.Fatalf("writeNumber: %v", err)
	}

	buf.WriteByte(0) // external flag

	hb := newMemoryHeaderBuffer(buf.Bytes())

	_, err := parseHeader(hb, 64)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}

	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}

	if serr.Kind != KindMemoryLimit {
		t.Fatalf("expected KindMemoryLimit, got %v: %v", serr.Kind, err)
	}
}

// TestParseFolderRejectsMultiInputCoder confirms a coder declaring more
// than one input (BCJ2's method id, 4 inputs/1 output) is rejected with
// KindUnsupported while parsing the folder, before any decoder is
// resolved.
func TestParseFolderRejectsMultiInputCoder(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteByte(1) // numCoders

	const bcj2 = "\x03\x03\x01\x1b"

	flags := byte(len(bcj2)) | 0x10 // idSize=4, complex (explicit in/out)
	buf.WriteByte(flags)
	buf.WriteString(bcj2)

	if err := writeNumber(&buf, 4); err != nil { // in
		t.Fatalf("writeNumber: %v", err)
	}

	if err := writeNumber(&buf, 1); err != nil { // out
		t.Fatalf("writeNumber: %v", err)
	}

	hb := newMemoryHeaderBuffer(buf.Bytes())

	var stats headerStats

	_, err := parseFolder(hb, &stats, 0)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}

	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}

	if serr.Kind != KindUnsupported {
		t.Fatalf("expected KindUnsupported, got %v: %v", serr.Kind, err)
	}
}
