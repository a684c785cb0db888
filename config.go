package sevenzip

// Config holds the tunables that govern how permissively a Reader or Writer
// behaves, following the functional-options idiom: callers build one up by
// passing [Option] values to [NewReader], [OpenReader], or [NewWriter].
type Config struct {
	maxMemoryKiB uint64
	pageSize     int

	maxEntryNameLength int
	useDefaultName     bool
	recoverBroken      bool

	maxEntriesPerFolder int
	maxFolderSizeBytes  int64
	headerCompression   bool
	method              string
}

// defaultMaxEntryNameLength bounds a single entry name, independent of the
// overall header memory ceiling. The Reader checks it once the header has
// been parsed, so it does not limit what decoding the name block
// allocates; the Writer checks it in CreateHeader.
const defaultMaxEntryNameLength = 1 << 16

func newConfig(opts []Option) Config {
	cfg := Config{
		pageSize:            defaultPageSize,
		maxEntryNameLength:  defaultMaxEntryNameLength,
		maxEntriesPerFolder: 0, // unlimited
		maxFolderSizeBytes:  0, // unlimited
		headerCompression:   true,
		method:              "lzma2",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// Option configures a [Reader] or [Writer].
type Option func(*Config)

// WithMaxMemoryKiB sets the header statistics pass's memory ceiling (§4.4).
// A value of 0, the default, disables the check.
func WithMaxMemoryKiB(kib uint64) Option {
	return func(c *Config) { c.maxMemoryKiB = kib }
}

// WithHeaderPageSize overrides the page size used to read headers too large
// to hold in memory at once. Mostly useful for tests exercising the paged
// code path with small headers.
func WithHeaderPageSize(size int) Option {
	return func(c *Config) { c.pageSize = size }
}

// WithMaxEntryNameLength bounds the length, in UTF-16 code units, of any
// single entry name. Names longer than this are rejected rather than
// silently truncated: as KindCorrupt when read from an archive, as
// KindIllegalArgument when passed to Writer.CreateHeader.
func WithMaxEntryNameLength(n int) Option {
	return func(c *Config) { c.maxEntryNameLength = n }
}

// WithDefaultNameForUnnamedEntries makes the Writer substitute a generated
// placeholder name ("entry-N") for entries added without an explicit name,
// instead of rejecting them.
func WithDefaultNameForUnnamedEntries() Option {
	return func(c *Config) { c.useDefaultName = true }
}

// WithRecoverBrokenArchives enables the §7 recovery scan: when the start
// header is entirely zero, its CRC included (a common marker 7-Zip itself
// writes for archives it gave up finalizing), or the header it points at
// cannot be read, the Reader scans backward from the end of the file
// looking for a parseable kHeader/kEncodedHeader block instead of failing
// outright.
func WithRecoverBrokenArchives() Option {
	return func(c *Config) { c.recoverBroken = true }
}

// WithMaxEntriesPerFolder bounds how many entries the Writer will pack into
// a single solid-compression folder before starting a new one. 0, the
// default, means unlimited (one folder for the whole archive).
func WithMaxEntriesPerFolder(n int) Option {
	return func(c *Config) { c.maxEntriesPerFolder = n }
}

// WithMaxFolderSize bounds the uncompressed size the Writer will accumulate
// into a single folder before starting a new one. 0, the default, means
// unlimited.
func WithMaxFolderSize(n int64) Option {
	return func(c *Config) { c.maxFolderSizeBytes = n }
}

// WithHeaderCompression controls whether the Writer emits an encoded
// (LZMA2-compressed) header or a plain one. Enabled by default, matching
// 7-Zip's own behaviour.
func WithHeaderCompression(enabled bool) Option {
	return func(c *Config) { c.headerCompression = enabled }
}

// WithCompressionMethod selects the Writer's folder coder: "lzma2" (the
// default), "deflate", or "copy" (stored, uncompressed).
func WithCompressionMethod(method string) Option {
	return func(c *Config) { c.method = method }
}
