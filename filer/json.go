package filer

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

// JsonFiler reads and writes a value as a JSON file.
type JsonFiler interface {
	Save(name string, i any) error
	Load(name string, in any) error
}

type jsonFiler struct{}

func NewJsonLoader() JsonFiler {
	return &jsonFiler{}
}

// Save truncates name if it exists and writes i's JSON encoding.
// Intended for small-to-medium payloads; a streaming encoder would be
// needed past a few tens of MB.
func (e jsonFiler) Save(name string, i any) error {
	b, err := json.Marshal(i)
	if err != nil {
		return errors.Errorf("failed to json marshal: %w", err)
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return errors.Errorf("failed to write file %q: %w", name, err)
	}
	return nil
}

func (e jsonFiler) Load(name string, in any) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return errors.Errorf("failed to read file: %w", err)
	}
	if err := json.Unmarshal(b, in); err != nil {
		return errors.Errorf("failed to json unmarshal: %w", err)
	}
	return nil
}
