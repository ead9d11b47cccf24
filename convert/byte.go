package convert

import (
	"encoding/binary"
	"github.com/cockroachdb/errors"
)

// ErrConvertToByte is returned when a byte slice is too short to
// convert to the requested fixed-width type.
var ErrConvertToByte = errors.New("convert to byte error")

// BytesToInt8 converts a single byte to int8.
func BytesToInt8(b []byte) (int8, error) {
	if len(b) < 1 {
		return 0, ErrConvertToByte
	}
	return int8(b[0]), nil
}

// Int8ToByte converts an int8 to its single-byte representation.
func Int8ToByte(i int8) []byte {
	return []byte{byte(i)}
}

// BytesToInt32 converts a big-endian 4-byte slice to int32, used for
// the signal-bus frame's body-length header field.
func BytesToInt32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, ErrConvertToByte
	}

	u := binary.BigEndian.Uint32(b)
	return int32(u), nil
}

// Int32ToByte converts an int32 to its big-endian 4-byte representation.
func Int32ToByte(i int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(i))
	return b
}

// BytesToString converts a byte slice to a string.
func BytesToString(b []byte) (string, error) {
	return string(b), nil
}
