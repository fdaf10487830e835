// Package wire holds the two wire concerns of the watcher:
//
//   - framing for stored cache entries (version + identity + payload), so a
//     staleness check can read the version without decoding the object;
//   - the JSON watch envelope exchanged with the remote collection and the
//     metadata probe that extracts the fields the watcher inspects.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
)

const entryVersion byte = 1

// MaxIDLen is the longest identity an entry can frame (idlen is u16).
// Callers must drop events with longer identities before encoding.
const MaxIDLen = 0xFFFF

var (
	ErrCorrupt = errors.New("watchcache: corrupt cache entry")
	magic4     = [...]byte{'W', 'C', 'H', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | version(u64 be) | idlen(u16 be) | id(idlen) | plen(u32 be) | payload(plen)
//
// id is the identity as received from the server (pre-folding), so
// snapshots can expose the original spelling.
func EncodeEntry(version uint64, id string, payload []byte) []byte {
	if l := len(id); l == 0 || l > MaxIDLen {
		panic("watchcache: invalid identity length in entry")
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 8 + 2 + len(id) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(entryVersion)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], version)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(id)))
	buf.Write(u2[:])
	buf.WriteString(id)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)

	return buf.Bytes()
}

func DecodeEntry(b []byte) (version uint64, id string, payload []byte, err error) {
	const hdr = 4 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != entryVersion {
		return 0, "", nil, ErrCorrupt
	}

	off := 5

	version = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	idlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if idlen <= 0 || idlen > len(b)-off {
		return 0, "", nil, ErrCorrupt
	}
	idBytes := b[off : off+idlen]
	off += idlen

	if off+4 > len(b) {
		return 0, "", nil, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen > len(b)-off {
		return 0, "", nil, ErrCorrupt
	}

	return version, string(idBytes), b[off : off+plen], nil
}

// DecodeEntryVersion reads only the version header. Staleness checks run
// per event, so they skip the id/payload allocations of DecodeEntry.
func DecodeEntryVersion(b []byte) (uint64, error) {
	if len(b) < 4+1+8 || !hasMagic(b) || b[4] != entryVersion {
		return 0, ErrCorrupt
	}
	return binary.BigEndian.Uint64(b[5 : 5+8]), nil
}

// Envelope is one frame of the watch stream:
//
//	{"type": "MODIFIED", "object": {...}}
//	{"type": "ERROR", "status": {"code": 410, "message": "..."}}
type Envelope struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object,omitempty"`
	Status *Status         `json:"status,omitempty"`
}

// Status carries the server-side failure detail of an ERROR envelope.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Meta is the slice of an object the watcher inspects. Everything else in
// the object stays opaque payload.
type Meta struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// ParseMeta extracts identity and version from an encoded object.
func ParseMeta(object []byte) (Meta, error) {
	var m Meta
	if err := json.Unmarshal(object, &m); err != nil {
		return Meta{}, err
	}
	if m.ID == "" {
		return Meta{}, errors.New("watchcache: object has no identity")
	}
	return m, nil
}
