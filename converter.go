// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"encoding/hex"
	"fmt"
	"net"
	"time"
)

// encodeIntContent returns the minimal two's complement content octets of v.
func encodeIntContent(v int64) []byte {
	n := 1
	for x := v; x > 127 || x < -128; x >>= 8 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// encodeUintContent returns the minimal content octets of an unsigned value,
// with a leading zero octet when the high bit would read as a sign.
func encodeUintContent(v uint64) []byte {
	n := 1
	for x := v; x > 0xff; x >>= 8 {
		n++
	}
	if v>>(uint(n)*8-1)&1 == 1 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// decodeIntContent sign-extends content into an integer of at most bits.
func decodeIntContent(content []byte, bits int) (int64, error) {
	if len(content) == 0 {
		return 0, decodeErrf("INTEGER: empty content")
	}
	if len(content) > bits/8 {
		return 0, decodeErrf("INTEGER: %d octets do not fit %d bits", len(content), bits)
	}
	var v int64
	for _, b := range content {
		v = v<<8 | int64(b)
	}
	// Расширение знака
	shift := uint(64 - 8*len(content))
	return v << shift >> shift, nil
}

// decodeUintContent reads an unsigned value of at most bits. A leading zero
// octet is allowed; content with the high bit set is taken as raw bits, as
// some agents send Counter32 that way.
func decodeUintContent(content []byte, bits int) (uint64, error) {
	if len(content) == 0 {
		return 0, decodeErrf("unsigned: empty content")
	}
	if len(content) == bits/8+1 {
		if content[0] != 0 {
			return 0, decodeErrf("unsigned: %d octets do not fit %d bits", len(content), bits)
		}
		content = content[1:]
	}
	if len(content) > bits/8 {
		return 0, decodeErrf("unsigned: %d octets do not fit %d bits", len(content), bits)
	}
	var v uint64
	for _, b := range content {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// isASCII reports whether data is printable text, allowing tab/CR/LF and
// trailing NUL padding. The second result is the index of the last printable
// octet.
func isASCII(data []byte) (bool, int) {
	firstZero := -1
	last := 0
	printable := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c < 0x20 || c > 0x7e {
			if c == 0x09 || c == 0x0a || c == 0x0d {
				continue
			}
			if c == 0x00 {
				if firstZero == -1 {
					firstZero = i
				}
				continue
			}
			return false, last
		}
		last = i
		printable = true
	}
	if firstZero > -1 && firstZero < last {
		return false, last
	}
	return printable, last
}

func formatOctetString(data []byte) string {
	if ok, last := isASCII(data); ok {
		return string(data[:last+1])
	}
	return hex.EncodeToString(data)
}

func formatTimeTicks(t uint32) string {
	return (time.Duration(t) * 10 * time.Millisecond).String()
}

// FormatValue renders a var-bind value the way snmpwalk output shows it.
func FormatValue(v BindValue) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// TypeName returns the SMI type name of v.
func TypeName(v BindValue) string {
	switch x := v.(type) {
	case Integer:
		return "INTEGER"
	case OctetString:
		if ok, _ := isASCII(x); ok || len(x) == 0 {
			return "STRING"
		}
		return "Hex-STRING"
	case OID:
		return "OID"
	case IPAddress:
		return "IpAddress"
	case Counter32:
		return "Counter32"
	case Unsigned32:
		return "Gauge32"
	case TimeTicks:
		return "Timeticks"
	case Opaque:
		return "Opaque"
	case Counter64:
		return "Counter64"
	case Null:
		return "NULL"
	case Exception:
		return "Exception"
	}
	return "Unknown"
}

// NewOctetString converts text to an OctetString value for Set.
func NewOctetString(s string) OctetString {
	return OctetString(s)
}

// NewIPAddress converts a dotted IPv4 address to an IPAddress value.
func NewIPAddress(s string) (IPAddress, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return IPAddress{}, fmt.Errorf("cannot convert %q to an IPv4 address", s)
	}
	var out IPAddress
	copy(out[:], ip)
	return out, nil
}
