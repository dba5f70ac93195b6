package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON encodes with encoding/json. The zero value is ready to use.
// Unknown fields are tolerated so older readers survive newer writers.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		var zero V
		return zero, fmt.Errorf("codec: trailing data after json value")
	}
	return v, nil
}
