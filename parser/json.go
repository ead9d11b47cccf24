package parser

import "encoding/json"

// JSONParser is the JSON-backed Parser.
type JSONParser struct{}

func (p *JSONParser) Marshal(i any) ([]byte, error) {
	return json.Marshal(i)
}

// Unmarshal decodes into the pointer i already holds; callers pass a
// pointer the same way they do for the stdlib function directly.
func (p *JSONParser) Unmarshal(b []byte, i any) error {
	return json.Unmarshal(b, i)
}
