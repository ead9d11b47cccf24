package tcp

import (
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/convert"
	"github.com/dialfleet/dispatch-core/parser"
	"github.com/dialfleet/dispatch-core/xcompress"
	"github.com/dialfleet/dispatch-core/xcrypt"
)

const (
	// Version is the frame format version.
	Version = 1
	// HeaderLen is the fixed header length in bytes.
	HeaderLen = 16
	// FormatPos is the start offset of the format tag.
	FormatPos = 0
	// VersionPos is the start offset of the version byte.
	VersionPos = 3
	// KindPos is the start offset of the kind byte.
	KindPos = 4
	// ParserPos is the start offset of the parser-type byte.
	ParserPos = 5
	// CompressorPos is the start offset of the compressor-type byte.
	CompressorPos = 6
	// ExtensionPos is the start offset of the 5-byte extension field.
	ExtensionPos = 7
	// LenPos is the start offset of the body-length field.
	LenPos = 12
	// BodyPos is the start offset of the body, immediately after the header.
	BodyPos = HeaderLen
)

// ErrKind is returned when the message kind byte is not recognized.
var ErrKind = errors.New("kind error")

// ErrHeaderShort is returned when fewer bytes than HeaderLen are available.
var ErrHeaderShort = errors.New("tcp header message is short")

// ErrBodyShort is returned when fewer bytes than the declared body length are available.
var ErrBodyShort = errors.New("tcp body message is short")

// ErrFormat is returned when the leading format tag does not match the expected value.
var ErrFormat = errors.New("format error")

// ErrParser is returned when the parser-type byte is unsupported.
var ErrParser = errors.New("request parser is unsupported")

// ErrCompressor is returned when the compressor-type byte is unsupported.
var ErrCompressor = errors.New("request compressor is unsupported")

// ErrLen is returned when the declared body length is negative.
var ErrLen = errors.New("len is negative")

// ErrHealthCheck is returned when a connection sends no payload bytes, used
// to distinguish idle keepalive reads from real protocol errors.
var ErrHealthCheck = errors.New("health check")

// TcpMessage is a single signal-bus frame: fixed header plus body.
type TcpMessage struct {
	Format         string         // 3 bytes
	Version        int8           // 1 byte
	Kind           int8           // 1 byte
	ParserType     ParserType     // 1 byte
	CompressorType CompressorType // 1 byte
	Extension      [5]byte        // 5 bytes
	Length         int32          // 4 bytes
	Body           []byte
	Crypto         crypter.Crypter
}

// NewMessage builds a new outgoing message.
func NewMessage(format string, kind int8, parser ParserType, compressor CompressorType, crypt crypter.Crypter) *TcpMessage {
	message := &TcpMessage{Format: format, Version: Version, Kind: kind, ParserType: parser, CompressorType: compressor, Crypto: crypt}
	return message
}

// NewMessageFromByte parses a message out of a raw byte buffer.
func NewMessageFromByte(format string, b []byte, crypt crypter.Crypter) (msg *TcpMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("recovered from: %v", rec)
		}
	}()

	allLen := len(b)

	if allLen < HeaderLen {
		return nil, ErrHeaderShort
	}

	bodyLength, err := convert.BytesToInt32(b[LenPos:BodyPos])
	if err != nil {
		return nil, err
	}

	if bodyLength < 0 {
		return nil, ErrLen
	}

	if allLen < int(HeaderLen+bodyLength) {
		return nil, ErrBodyShort
	}

	version, err := convert.BytesToInt8(b[VersionPos:KindPos])
	if err != nil {
		return nil, err
	}

	kind, err := convert.BytesToInt8(b[KindPos:ParserPos])
	if err != nil {
		return nil, err
	}

	parseType, err := convert.BytesToInt8(b[ParserPos:CompressorPos])
	if err != nil {
		return nil, err
	}

	compressType, err := convert.BytesToInt8(b[CompressorPos:ExtensionPos])
	if err != nil {
		return nil, err
	}

	message := &TcpMessage{
		Format:         string(b[FormatPos:VersionPos]),
		Version:        version,
		Kind:           kind,
		ParserType:     ParserType(parseType),
		CompressorType: CompressorType(compressType),
		Crypto:         crypt,
		Length:         bodyLength,
	}

	if message.Format != format {
		return nil, errors.Errorf("beginning of data is not %s: %w", format, ErrFormat)
	}
	if !message.ParserType.IsAParserType() {
		return nil, ErrParser
	}
	if !message.CompressorType.IsACompressorType() {
		return nil, ErrCompressor
	}

	// Slicing with a third index caps capacity to the body length so
	// appends to message.Body never clobber bytes still owned by b.
	message.Body = b[BodyPos : BodyPos+message.Length : BodyPos+message.Length]

	return message, nil
}

// ToByte serializes the message to its wire representation.
func (message *TcpMessage) ToByte() []byte {
	var b []byte
	b = append(b, []byte(message.Format)[0:3]...)
	b = append(b, convert.Int8ToByte(message.Version)...)
	b = append(b, convert.Int8ToByte(message.Kind)...)
	b = append(b, convert.Int8ToByte(int8(message.ParserType))...)
	b = append(b, convert.Int8ToByte(int8(message.CompressorType))...)
	b = append(b, message.Extension[:]...)
	b = append(b, convert.Int32ToByte(message.Length)...)
	b = append(b, message.Body...)
	return b
}

// ToByteNl serializes the message and appends a trailing newline. Conn
// itself writes frames with ToByte.
func (message *TcpMessage) ToByteNl() []byte {
	return append(message.ToByte(), []byte("\n")...)
}

// UnpackReadBody decrypts, decompresses, and unmarshals the body into v.
func (message *TcpMessage) UnpackReadBody(v any) error {
	decrypt, err := message.Crypto.DeCrypt(message.Body)
	if err != nil {
		return errors.Errorf("failed to decrypt: %w", err)
	}

	c, err := message.getCompressor()
	if err != nil {
		return errors.Errorf("failed to get compressor: %w", err)
	}

	deComp, err := c.Decompress(decrypt)
	if err != nil {
		return errors.Errorf("failed to uncompress: %w", err)
	}

	p, err := message.getParser()
	if err != nil {
		return errors.Errorf("failed to get parser: %w", err)
	}
	if err := p.Unmarshal(deComp, v); err != nil {
		return errors.Errorf("failed to parse: %w", err)
	}
	return nil
}

// PackWriteBody marshals, compresses, and encrypts v into the message body.
func (message *TcpMessage) PackWriteBody(v any) error {
	p, err := message.getParser()
	if err != nil {
		return errors.Errorf("failed to get parser: %w", err)
	}
	b, err := p.Marshal(v)
	if err != nil {
		return errors.Errorf("failed to parse: %w", err)
	}

	c, err := message.getCompressor()
	if err != nil {
		return errors.Errorf("failed to get compressor: %w", err)
	}
	comp, err := c.Compress(b)
	if err != nil {
		if !errors.Is(err, compressor.ErrNotShrunk) {
			return errors.Errorf("failed to compress: %w", err)
		}

		logrus.Infof("compressor declined, falling back to none: %s", err.Error())
		message.CompressorType = None
		comp = b
	}

	encrypt, err := message.Crypto.EnCrypt(comp)
	if err != nil {
		return errors.Errorf("failed to encrypt: %w", err)
	}
	message.Body = encrypt
	message.Length = int32(len(message.Body))
	return nil
}

// getParser resolves the codec named by ParserType.
func (message *TcpMessage) getParser() (parser.Parser, error) {
	switch message.ParserType {
	case JSON:
		return &parser.JSONParser{}, nil
	default:
		return nil, ErrParser
	}
}

// getCompressor resolves the codec named by CompressorType.
func (message *TcpMessage) getCompressor() (compressor.Compresser, error) {
	switch message.CompressorType {
	case None:
		return &compressor.NoneCompressor{}, nil
	case ZSTD:
		return &compressor.ZstdCompressor{}, nil
	case LZ4:
		return &compressor.Lz4Compressor{}, nil
	default:
		return nil, ErrCompressor
	}
}
