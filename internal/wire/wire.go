package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

// Mode tags an entry as a positive result or a negative marker.
type Mode byte

const (
	ModePositive Mode = 1
	ModeNegative Mode = 2
)

var (
	ErrCorrupt = errors.New("tenantcache: corrupt entry")
	magic4     = [...]byte{'T', 'N', 'C', 'E'}
)

const hdr = 4 + 1 + 1 + 8 + 8 + 4

// Entry is the envelope stored in a provider for every cache key.
type Entry struct {
	Mode       Mode
	InsertedAt time.Time
	TTL        time.Duration // <= 0 => no expiry; Decode never returns one
	Payload    []byte
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.InsertedAt.Add(e.TTL))
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames e as:
//
//	magic(4) | ver(1) | mode(1) | insertedAt(i64 be, unix nanos) | ttl(i64 be, nanos) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(hdr + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(e.Mode))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.InsertedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.TTL))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses an envelope produced by Encode. The returned payload aliases b.
// An envelope without a positive TTL is ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	mode := Mode(b[5])
	if mode != ModePositive && mode != ModeNegative {
		return Entry{}, ErrCorrupt
	}

	off := 6
	inserted := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	ttl := time.Duration(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	// writers always frame a positive ttl
	if ttl <= 0 {
		return Entry{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// trailing bytes are as suspicious as missing ones
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Mode:       mode,
		InsertedAt: time.Unix(0, inserted),
		TTL:        ttl,
		Payload:    b[off:],
	}, nil
}
