package tcp

// CompressorType selects the body compression codec, carried in the
// frame header alongside ParserType.
type CompressorType int8

const (
	_ CompressorType = iota

	// None selects compressor.NoneCompressor.
	None

	// ZSTD selects compressor.ZstdCompressor.
	ZSTD

	// LZ4 selects compressor.Lz4Compressor.
	LZ4
)

// IsACompressorType reports whether t is a supported compressor byte.
func (t CompressorType) IsACompressorType() bool {
	switch t {
	case None, ZSTD, LZ4:
		return true
	default:
		return false
	}
}
