package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEntryRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"ns/a","version":"7"}`)
	b := EncodeEntry(7, "NS/A", payload)

	version, id, got, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if version != 7 || id != "NS/A" || !bytes.Equal(got, payload) {
		t.Fatalf("round trip: version=%d id=%q payload=%q", version, id, got)
	}

	v, err := DecodeEntryVersion(b)
	if err != nil || v != 7 {
		t.Fatalf("DecodeEntryVersion = %d, %v", v, err)
	}
}

func TestEntryEmptyPayload(t *testing.T) {
	b := EncodeEntry(1, "a", nil)
	version, id, payload, err := DecodeEntry(b)
	if err != nil || version != 1 || id != "a" || len(payload) != 0 {
		t.Fatalf("empty payload round trip: %d %q %q %v", version, id, payload, err)
	}
}

func TestEntryCorruption(t *testing.T) {
	good := EncodeEntry(9, "ns/a", []byte("x"))

	cases := map[string][]byte{
		"empty":       {},
		"short":       good[:6],
		"bad magic":   append([]byte("XXXX"), good[4:]...),
		"bad version": append(append([]byte{}, good[:4]...), append([]byte{0xFF}, good[5:]...)...),
		"truncated payload": good[:len(good)-1],
	}
	for name, b := range cases {
		if _, _, _, err := DecodeEntry(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: DecodeEntry err = %v, want ErrCorrupt", name, err)
		}
	}
	if _, err := DecodeEntryVersion([]byte("short")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("DecodeEntryVersion on garbage: %v", err)
	}
}

func TestEncodeEntryRejectsBadID(t *testing.T) {
	for name, id := range map[string]string{
		"empty":     "",
		"oversized": strings.Repeat("x", MaxIDLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for %s identity", name)
				}
			}()
			EncodeEntry(1, id, nil)
		})
	}
}

func TestParseMeta(t *testing.T) {
	m, err := ParseMeta([]byte(`{"id":"ns/a","version":"12","name":"web"}`))
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if m.ID != "ns/a" || m.Version != "12" {
		t.Fatalf("meta = %+v", m)
	}

	if _, err := ParseMeta([]byte(`{"version":"12"}`)); err == nil {
		t.Fatal("expected error for missing identity")
	}
	if _, err := ParseMeta([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed object")
	}
}
