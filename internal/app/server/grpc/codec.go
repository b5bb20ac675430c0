package grpc

import (
	"encoding/json"
)

// Codec marshals messages as JSON. The messages of this service are plain
// Go structs, so no generated protobuf code is needed.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return "json"
}
