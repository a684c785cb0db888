package sevenzip

// NID constants: single-byte tags that prefix every block in the header
// tree (§4.4).
const (
	idEnd                   = 0x00
	idHeader                = 0x01
	idArchiveProperties     = 0x02
	idAdditionalStreamsInfo = 0x03
	idMainStreamsInfo       = 0x04
	idFilesInfo             = 0x05
	idPackInfo              = 0x06
	idUnpackInfo            = 0x07
	idSubStreamsInfo        = 0x08
	idSize                  = 0x09
	idCRC                   = 0x0A
	idFolder                = 0x0B
	idCodersUnpackSize      = 0x0C
	idNumUnpackStream       = 0x0D
	idEmptyStream           = 0x0E
	idEmptyFile             = 0x0F
	idAnti                  = 0x10
	idName                  = 0x11
	idCTime                 = 0x12
	idATime                 = 0x13
	idMTime                 = 0x14
	idWinAttributes         = 0x15
	idComment               = 0x16
	idEncodedHeader         = 0x17
	idStartPos              = 0x18
	idDummy                 = 0x19
)

const (
	signatureHeaderSize = 32
	majorVersion        = 0
	minorVersion        = 2
)

var signatureMagic = [6]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}

// signatureHeader is the first 12 bytes of the file, verbatim.
type signatureHeader struct {
	Signature [6]byte
	Major     byte
	Minor     byte
	CRC       uint32
}

// startHeader is the remaining 20 bytes of the 32-byte signature header,
// whose CRC-32 is carried in signatureHeader.CRC.
type startHeader struct {
	Offset uint64
	Size   uint64
	CRC    uint32
}
