package compressor

import (
	"bytes"
	"github.com/pierrec/lz4"
)

// Lz4Compressor is the LZ4-backed Compresser: lower ratio than zstd but
// cheaper per frame, picked for high-volume media-active keepalive
// frames where speed matters more than size.
type Lz4Compressor struct{}

func (Lz4Compressor) Compress(src []byte) ([]byte, error) {
	maxDstSize := lz4.CompressBlockBound(len(src))
	dst := make([]byte, maxDstSize)

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, ErrIncompressible
	}
	if n == 0 {
		// LZ4 returns 0 when the block did not compress; caller keeps
		// the original bytes rather than treating this as failure.
		return src, nil
	}

	return dst[:n], nil
}

func (Lz4Compressor) Decompress(src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
