package codec

// Bytes is an identity codec for []byte values: consumers get the object
// payload exactly as it arrived on the stream and handle decoding
// themselves.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }
