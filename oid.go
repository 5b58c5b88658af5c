// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"math"
	"strconv"
	"strings"
)

// OID is a numeric SNMP object identifier.
//
// The arc count is not limited in memory; Encode rejects more than
// MaxOIDArcs arcs. Methods never modify the receiver.
type OID []uint32

// ParseOID parses dotted decimal text such as "1.3.6.1.2.1.1.1.0".
// Every segment must be a non-negative 32-bit integer.
func ParseOID(text string) (OID, error) {
	if text == "" {
		return nil, &ParseError{Text: text}
	}
	parts := strings.Split(text, ".")
	oid := make(OID, 0, len(parts))
	for _, p := range parts {
		if p == "" || p[0] == '+' || p[0] == '-' {
			return nil, &ParseError{Text: text}
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, &ParseError{Text: text}
		}
		oid = append(oid, uint32(v))
	}
	return oid, nil
}

// MustParseOID is ParseOID for constants; it panics on malformed text.
func MustParseOID(text string) OID {
	oid, err := ParseOID(text)
	if err != nil {
		panic(err)
	}
	return oid
}

// FromArcs builds an OID from arcs without validation.
func FromArcs(arcs ...uint32) OID {
	oid := make(OID, len(arcs))
	copy(oid, arcs)
	return oid
}

func (o OID) String() string {
	var sb strings.Builder
	for i, arc := range o {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(uint64(arc), 10))
	}
	return sb.String()
}

// Equal reports whether o and other have the same arcs.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders OIDs lexicographically by arc, the order agents walk in.
// It returns -1, 0 or +1.
func (o OID) Compare(other OID) int {
	n := min(len(o), len(other))
	for i := 0; i < n; i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

// HasPrefix reports whether prefix is a (not necessarily proper) prefix of o.
func (o OID) HasPrefix(prefix OID) bool {
	if len(o) < len(prefix) {
		return false
	}
	return o[:len(prefix)].Equal(prefix)
}

// IsDescendantOf reports whether o lies strictly below root.
func (o OID) IsDescendantOf(root OID) bool {
	return len(o) > len(root) && o.HasPrefix(root)
}

// Append returns a new OID with arcs added after o.
func (o OID) Append(arcs ...uint32) OID {
	out := make(OID, 0, len(o)+len(arcs))
	out = append(out, o...)
	return append(out, arcs...)
}

// Encode returns the BER content octets of the OID (without tag and length).
func (o OID) Encode() ([]byte, error) {
	if len(o) > MaxOIDArcs {
		return nil, &TooLongError{Arcs: len(o)}
	}
	if len(o) < 2 {
		return nil, encodeErr("OID "+o.String(), errShortOID)
	}
	if o[0] > 2 {
		return nil, &EncodeError{What: "OID " + o.String() + ": first arc must be 0, 1 or 2"}
	}
	if o[0] < 2 && o[1] >= 40 {
		return nil, &EncodeError{What: "OID " + o.String() + ": second arc must be below 40"}
	}
	first := uint64(o[0])*40 + uint64(o[1])
	out := make([]byte, 0, len(o)+4)
	out = appendBase128(out, first)
	for i := 2; i < len(o); i++ {
		out = appendBase128(out, uint64(o[i]))
	}
	return out, nil
}

// appendBase128 writes v big-endian, seven bits per byte, continuation bit
// set on every byte but the last.
func appendBase128(dst []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7f)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
	}
	return append(dst, tmp[i:]...)
}

// DecodeOID is the inverse of Encode.
func DecodeOID(content []byte) (OID, error) {
	if len(content) == 0 {
		return nil, decodeErr("OID", errShortOID)
	}
	if content[len(content)-1]&0x80 != 0 {
		return nil, decodeErrf("OID: truncated sub-identifier")
	}
	oid := make(OID, 0, len(content)+1)
	var v uint64
	start := true
	for i, b := range content {
		if start && b == 0x80 {
			return nil, decodeErrf("OID: non-minimal sub-identifier at byte %d", i)
		}
		start = false
		v = v<<7 | uint64(b&0x7f)
		if v > math.MaxUint32+80 {
			return nil, decodeErrf("OID: sub-identifier overflows 32 bits at byte %d", i)
		}
		if b&0x80 != 0 {
			continue
		}
		if len(oid) == 0 {
			// Первый subidentifier несет две дуги: 40*X+Y
			switch {
			case v < 40:
				oid = append(oid, 0, uint32(v))
			case v < 80:
				oid = append(oid, 1, uint32(v-40))
			default:
				if v-80 > math.MaxUint32 {
					return nil, decodeErrf("OID: second arc overflows 32 bits")
				}
				oid = append(oid, 2, uint32(v-80))
			}
		} else {
			if v > math.MaxUint32 {
				return nil, decodeErrf("OID: sub-identifier overflows 32 bits at byte %d", i)
			}
			oid = append(oid, uint32(v))
		}
		v = 0
		start = true
	}
	if oid[0] < 2 && oid[1] >= 40 {
		return nil, decodeErrf("OID: invalid first arc pair %d.%d", oid[0], oid[1])
	}
	return oid, nil
}
