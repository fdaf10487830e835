// Package watchcache maintains a local, eventually consistent mirror of a
// remote collection of typed objects by consuming a long-lived stream of
// change events, deduplicating and ordering them with a monotonic version
// cursor, and recovering automatically from stream interruption or cursor
// expiry.
//
// Components:
//   - Source: opens watch streams (see client for the HTTP/websocket one).
//   - store.Store: byte store holding the mirror. In-process map by
//     default, bigcache backend for very large collections.
//   - codec.Codec[V]: (de)serializes object payloads (JSON, CBOR,
//     Msgpack, Protobuf).
//   - Hooks: Connected / ConnectionError / DataChanged signals.
//
// Event rules:
//
//	accept   iff no entry for the identity, or event version > entry version
//	cursor   advances on every accepted event (it tracks stream position)
//	expiry   (ErrCursorExpired) clears the mirror and resyncs from "0"
//
// Identities are case-insensitive and never reused after deletion: a later
// Added for a deleted identity is a new object.
package watchcache
