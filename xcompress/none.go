package compressor

// NoneCompressor is the identity codec, used for small frames where
// compression overhead would outweigh any size benefit.
type NoneCompressor struct{}

func (NoneCompressor) Compress(src []byte) ([]byte, error) {
	return src, nil
}

func (NoneCompressor) Decompress(src []byte) ([]byte, error) {
	return src, nil
}
