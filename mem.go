package sevenzip

// estimateHeaderMemory implements the header statistics pass's memory
// ceiling check: a rough upper bound, in KiB, on the resident memory the
// fully materialized archive model (the one header.go builds) would need,
// given the counts read so far.
//
// The coefficients mirror the per-field overhead of this package's actual
// structures (slice headers, map-free flat arrays, small backing arrays for
// strings) doubled as headroom for the transient copies the parser's readers
// make while decoding packed numbers and bit vectors.
func estimateHeaderMemory(packStreams, folders, coders, bindPairs, outputs, inputs, entries, substreams uint64) uint64 { //nolint:lll
	bits := 16*packStreams + packStreams/8 +
		folders*30 +
		coders*22 +
		(outputs-folders)*16 + //nolint:staticcheck
		8*(inputs-outputs+folders) +
		8*outputs +
		entries*100 +
		8*folders +
		8*packStreams +
		4*entries +
		13*substreams

	return 2 * bits / 1024
}

// headerStats accumulates the counts estimateHeaderMemory needs as the
// parser walks the header, in the same pass that builds the model. Every
// field is updated, and
// checkMemoryLimit consulted, immediately after the corresponding
// attacker-controlled count is read off the wire and before anything sized
// by it is allocated.
type headerStats struct {
	packStreams uint64
	folders     uint64
	coders      uint64
	bindPairs   uint64
	outputs     uint64
	inputs      uint64
	entries     uint64
	substreams  uint64
}

// maxHeaderCount bounds any single attacker-controlled count field (folder
// count, coder count, file count, pack stream count, substream count...)
// independent of the configured memory ceiling, purely so accumulating it
// into headerStats and multiplying it out in estimateHeaderMemory can't
// wrap a uint64. No legitimate archive comes within orders of magnitude of
// this.
const maxHeaderCount = 1 << 40

// maxCoderProperties bounds a single coder's properties blob. Real codec
// properties (LZMA2's dictionary size byte, AES's IV and salt, BCJ's
// start offset) are a handful of bytes; this is a sanity ceiling, not a
// tuned estimate, and is checked regardless of maxMemoryKiB.
const maxCoderProperties = 1 << 10

// checkCount rejects an implausible raw count before it's added to stats,
// then folds it in and re-checks the running estimate against maxKiB.
func checkCount(stats *headerStats, maxKiB uint64, n uint64, add func(*headerStats, uint64)) error {
	if n > maxHeaderCount {
		return wrapMemoryLimit("header declares an implausibly large count")
	}

	add(stats, n)

	return checkMemoryLimit(*stats, maxKiB)
}

func (s headerStats) estimateKiB() uint64 {
	outputs := s.outputs
	if outputs < s.folders {
		outputs = s.folders
	}

	inputs := s.inputs
	if inputs+s.folders < outputs {
		inputs = outputs - s.folders
	}

	return estimateHeaderMemory(s.packStreams, s.folders, s.coders, s.bindPairs, outputs, inputs, s.entries, s.substreams)
}

// checkMemoryLimit compares the estimate against the configured ceiling,
// returning a KindMemoryLimit error if it's exceeded. A ceiling of 0 means
// unlimited.
func checkMemoryLimit(stats headerStats, maxKiB uint64) error {
	if maxKiB == 0 {
		return nil
	}

	if estimate := stats.estimateKiB(); estimate > maxKiB {
		return wrapMemoryLimit(
			"header would require more memory than the configured limit allows")
	}

	return nil
}
