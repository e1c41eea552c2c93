// Package wire implements the canonical, protobuf-shaped binary encoding
// for every message this module puts on the wire: the LLB graph messages
// (Op, Mount, CacheOpt, Meta, Platform, Definition), the FileSync Packet,
// and the Solve/Status control-service messages.
//
// Reproducing the daemon's actual protobuf schema byte-for-byte would
// require running protoc, which this module does not do (see DESIGN.md).
// Instead every message here hand-implements the same tag/wire-type/
// varint-length framing protobuf uses, with a fixed field order and
// sorted map keys, so that encoding is deterministic: encoding identical
// field values always produces identical bytes, and decode(encode(m))
// re-encodes byte-for-byte the same as encode(m).
package wire

import (
	"encoding/binary"
	"fmt"
)

// wire types, as in protobuf.
const (
	wireVarint = 0
	wireLen    = 2
)

type fieldReader struct {
	buf []byte
}

// field is one decoded (field number, wire type, raw payload) triple.
// For wireVarint, varint holds the decoded value; for wireLen, bytes holds
// a copy of the raw payload.
type field struct {
	num  int
	typ  int
	varint uint64
	bytes  []byte
}

func putTag(buf []byte, num, typ int) []byte {
	return binary.AppendUvarint(buf, uint64(num)<<3|uint64(typ))
}

func putVarintField(buf []byte, num int, v uint64) []byte {
	buf = putTag(buf, num, wireVarint)
	return binary.AppendUvarint(buf, v)
}

func putBoolField(buf []byte, num int, v bool) []byte {
	if !v {
		return buf
	}
	return putVarintField(buf, num, 1)
}

func putBytesField(buf []byte, num int, v []byte) []byte {
	buf = putTag(buf, num, wireLen)
	buf = binary.AppendUvarint(buf, uint64(len(v)))
	return append(buf, v...)
}

func putStringField(buf []byte, num int, v string) []byte {
	if v == "" {
		return buf
	}
	return putBytesField(buf, num, []byte(v))
}

// putMessageField encodes a nested message as a length-delimited field.
func putMessageField(buf []byte, num int, m interface{ Marshal() ([]byte, error) }) ([]byte, error) {
	if m == nil {
		return buf, nil
	}
	b, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	return putBytesField(buf, num, b), nil
}

// parseFields decodes a buffer into its raw (number, type, payload) triples
// in wire order. Unknown field numbers are preserved by callers that care,
// but every message in this package enumerates all fields it writes.
func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		tag, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, fmt.Errorf("wire: malformed tag")
		}
		b = b[n:]
		num := int(tag >> 3)
		typ := int(tag & 0x7)
		switch typ {
		case wireVarint:
			v, n := binary.Uvarint(b)
			if n <= 0 {
				return nil, fmt.Errorf("wire: malformed varint for field %d", num)
			}
			b = b[n:]
			out = append(out, field{num: num, typ: typ, varint: v})
		case wireLen:
			l, n := binary.Uvarint(b)
			if n <= 0 {
				return nil, fmt.Errorf("wire: malformed length for field %d", num)
			}
			b = b[n:]
			if uint64(len(b)) < l {
				return nil, fmt.Errorf("wire: truncated payload for field %d", num)
			}
			out = append(out, field{num: num, typ: typ, bytes: append([]byte(nil), b[:l]...)})
			b = b[l:]
		default:
			return nil, fmt.Errorf("wire: unsupported wire type %d for field %d", typ, num)
		}
	}
	return out, nil
}
