package compressor

import "github.com/klauspost/compress/zstd"

// ZstdCompressor is the zstd-backed Compresser, used for signal-bus
// frame bodies where payload size varies enough that LZ4's speed/ratio
// tradeoff isn't always the better pick.
type ZstdCompressor struct{}

// Compress returns ErrNotShrunk if the encoded output is not smaller
// than src, so callers can fall back to NoneCompressor instead of
// paying the decode cost for no benefit.
func (z *ZstdCompressor) Compress(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, ErrIncompressible
	}
	defer enc.Close()

	compressed := enc.EncodeAll(src, nil)
	if len(compressed) >= len(src) {
		return nil, ErrNotShrunk
	}
	return compressed, nil
}

func (z *ZstdCompressor) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(src, nil)
}
