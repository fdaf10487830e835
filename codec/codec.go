// Package codec (de)serializes object payloads carried by watch events.
//
// The watcher stores payloads as raw bytes and decodes them lazily on Get
// and Snapshot, so Decode is the hot direction; Encode is used by the REST
// client for Create/Replace bodies. The codec must match the encoding the
// server applies to object payloads (JSON for the bundled client).
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
