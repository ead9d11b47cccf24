package tcp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// identityCrypter is a no-op Crypter stand-in, used so message tests can
// exercise framing/parsing logic without pulling in real AES key material.
type identityCrypter struct{}

func (identityCrypter) EnCrypt(plainText []byte) ([]byte, error) { return plainText, nil }
func (identityCrypter) DeCrypt(cipherText []byte) ([]byte, error) { return cipherText, nil }

var mockCrypter = identityCrypter{}

func TestNewMessageFromByte(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		data    []byte
		wantErr bool
		errType error
	}{
		{
			name:    "valid message data",
			format:  "TST",
			data:    createValidMessageData(),
			wantErr: false,
		},
		{
			name:    "zero-length body",
			format:  "TST",
			data:    createZeroLengthBodyData(),
			wantErr: false,
		},
		{
			name:    "minimal valid message (header only)",
			format:  "TST",
			data:    createMinimalValidData(),
			wantErr: false,
		},
		{
			name:    "data shorter than header",
			format:  "TST",
			data:    make([]byte, 10), // below HeaderLen(16)
			wantErr: true,
			errType: ErrHeaderShort,
		},
		{
			name:    "negative length",
			format:  "TST",
			data:    createInvalidLengthData(),
			wantErr: true,
			errType: ErrLen,
		},
		{
			name:    "format mismatch",
			format:  "TST",
			data:    createWrongFormatData(),
			wantErr: true,
			errType: ErrFormat,
		},
		{
			name:    "body shorter than declared length",
			format:  "TST",
			data:    createInsufficientBodyData(),
			wantErr: true,
			errType: ErrBodyShort,
		},
		{
			name:    "unsupported parser type",
			format:  "TST",
			data:    createUnsupportedParserData(),
			wantErr: true,
			errType: ErrParser,
		},
		{
			name:    "unsupported compressor type",
			format:  "TST",
			data:    createUnsupportedCompressorData(),
			wantErr: true,
			errType: ErrCompressor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessageFromByte(tt.format, tt.data, mockCrypter)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, msg)
				if tt.errType != nil {
					assert.ErrorIs(t, err, tt.errType)
				}
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, msg)
				assert.Equal(t, tt.format, msg.Format)
				assert.Equal(t, Version, int(msg.Version))
				assert.NotNil(t, msg.Crypto)
			}
		})
	}
}

func TestTcpMessage_ToByte(t *testing.T) {
	message := &TcpMessage{
		Format:         "TST",
		Version:        1,
		Kind:           1,
		ParserType:     JSON,
		CompressorType: None,
		Extension:      [5]byte{0, 0, 0, 0, 0},
		Length:         10,
		Body:           []byte("test data!"),
		Crypto:         mockCrypter,
	}

	result := message.ToByte()

	assert.NotNil(t, result)
	assert.True(t, len(result) >= HeaderLen)

	assert.Equal(t, "TST", string(result[0:3]))
	assert.Equal(t, byte(1), result[3])
	assert.Equal(t, byte(1), result[4])
}

func TestTcpMessage_ToByteNl(t *testing.T) {
	message := &TcpMessage{
		Format:         "TST",
		Version:        1,
		Kind:           1,
		ParserType:     JSON,
		CompressorType: None,
		Extension:      [5]byte{0, 0, 0, 0, 0},
		Length:         4,
		Body:           []byte("test"),
		Crypto:         mockCrypter,
	}

	result := message.ToByteNl()

	assert.NotNil(t, result)
	assert.True(t, bytes.HasSuffix(result, []byte("\n")))
}

func createValidMessageData() []byte {
	data := make([]byte, HeaderLen+8)
	copy(data[0:3], "TST") // Format
	data[3] = 1            // Version
	data[4] = 1            // Kind
	data[5] = 1            // Parser (JSON)
	data[6] = 1            // Compressor (None)
	data[15] = 8
	copy(data[16:24], "testBody")
	return data
}

func createZeroLengthBodyData() []byte {
	data := make([]byte, HeaderLen)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 1
	data[6] = 1
	return data
}

func createMinimalValidData() []byte {
	data := make([]byte, HeaderLen+1)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 1
	data[6] = 1
	data[15] = 1
	data[16] = 'A'
	return data
}

func createInsufficientBodyData() []byte {
	data := make([]byte, HeaderLen+2)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 0
	data[6] = 0
	// declared length 10, actual body only 2 bytes
	data[15] = 10
	data[16] = 'A'
	data[17] = 'B'
	return data
}

func createUnsupportedParserData() []byte {
	data := make([]byte, HeaderLen+4)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 99 // unsupported parser
	data[6] = 0
	data[15] = 4
	copy(data[16:20], "test")
	return data
}

func createUnsupportedCompressorData() []byte {
	data := make([]byte, HeaderLen+4)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 1
	data[6] = 99 // unsupported compressor
	data[15] = 4
	copy(data[16:20], "test")
	return data
}

func createInvalidLengthData() []byte {
	data := make([]byte, HeaderLen+4)
	copy(data[0:3], "TST")
	data[3] = 1
	data[4] = 1
	data[5] = 0
	data[6] = 0
	// length field set to -1
	data[12] = 0xFF
	data[13] = 0xFF
	data[14] = 0xFF
	data[15] = 0xFF
	return data
}

func createWrongFormatData() []byte {
	data := make([]byte, HeaderLen+4)
	copy(data[0:3], "WRG") // wrong format
	data[3] = 1
	data[4] = 1
	data[5] = 0
	data[6] = 0
	data[15] = 4
	copy(data[16:20], "body")

	return data
}
