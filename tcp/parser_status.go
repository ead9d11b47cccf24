package tcp

// ParserType selects the wire-format codec a frame's body was encoded
// with, carried in the frame header so the receiving side can decode
// without out-of-band negotiation.
type ParserType int8

const (
	_ ParserType = iota

	// JSON selects parser.JSONParser.
	JSON
)

// IsAParserType reports whether t is a supported parser byte.
func (t ParserType) IsAParserType() bool {
	return t == JSON
}
