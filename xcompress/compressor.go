package compressor

import "github.com/cockroachdb/errors"

// Compresser is the pluggable compression codec a signal-bus frame
// selects by its CompressorType byte.
type Compresser interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

var ErrIncompressible = errors.New("compress error")

// ErrNotShrunk is returned when compressing did not reduce size.
var ErrNotShrunk = errors.New("compressed size not reduced")
