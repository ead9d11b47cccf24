package parser

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestJSONParser_Marshal(t *testing.T) {
	type testDate struct {
		name    string
		input   interface{}
		want    []byte
		wantErr bool
	}

	tests := []testDate{
		{
			name: "ok: struct to JSON",
			input: struct {
				Name string `json:"name"`
				Age  int    `json:"age"`
			}{
				Name: "田中太郎",
				Age:  30,
			},
			want:    []byte(`{"name":"田中太郎","age":30}`),
			wantErr: false,
		},
		{
			name:    "ok: nil to JSON",
			input:   nil,
			want:    []byte(`null`),
			wantErr: false,
		},
		{
			name:    "error: value that cannot be marshaled",
			input:   func() {}, // functions are not JSON-marshalable
			want:    nil,
			wantErr: true,
		},
	}

	parser := &JSONParser{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Marshal(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// also confirm the output is valid JSON
			var v interface{}
			err = json.Unmarshal(got, &v)
			assert.NoError(t, err)
		})
	}
}

func TestJSONParser_Unmarshal(t *testing.T) {
	type testStruct struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tests := []struct {
		name    string
		input   []byte
		target  interface{}
		want    interface{}
		wantErr bool
	}{
		{
			name:   "ok: JSON to struct",
			input:  []byte(`{"name":"山田花子","age":25}`),
			target: &testStruct{},
			want: &testStruct{
				Name: "山田花子",
				Age:  25,
			},
			wantErr: false,
		},
		{
			name:    "ok: empty JSON object",
			input:   []byte(`{}`),
			target:  &testStruct{},
			want:    &testStruct{},
			wantErr: false,
		},
		{
			name:    "error: malformed JSON",
			input:   []byte(`{"name":"山田花子","age":25`), // unterminated JSON
			target:  &testStruct{},
			want:    &testStruct{},
			wantErr: true,
		},
		{
			name:    "error: type mismatch",
			input:   []byte(`{"name":123,"age":"invalid"}`), // wrong field types
			target:  &testStruct{},
			want:    &testStruct{},
			wantErr: true,
		},
	}

	parser := &JSONParser{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parser.Unmarshal(tt.input, tt.target)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, tt.target)
		})
	}
}
