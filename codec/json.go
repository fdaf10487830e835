package codec

import "encoding/json"

// JSON is the codec for servers that ship objects as JSON (the common
// case; the bundled client's watch envelope embeds JSON objects).
// The zero value is ready to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
