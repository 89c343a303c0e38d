// File: serialization/json.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JSONSerializer is the reference implementation of api.Serializer. The
// wire-format contract is deliberately pluggable and stated, not designed,
// so encoding/json is an explicitly sanctioned use of the standard library
// here rather than an omission — see DESIGN.md.

package serialization

import "encoding/json"

// JSONSerializer implements api.Serializer using encoding/json. It is
// stateless and safe for concurrent use by multiple dispatcher workers.
type JSONSerializer struct{}

// NewJSONSerializer returns the reference Serializer implementation.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal implements api.Serializer.
func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements api.Serializer.
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
