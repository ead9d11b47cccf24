// Package parser implements the pluggable wire-format codec a
// signal-bus frame selects by its ParserType byte.
package parser

// Parser marshals/unmarshals a frame body to and from a concrete Go
// value.
type Parser interface {
	Marshal(any) ([]byte, error)
	Unmarshal([]byte, any) error
}
