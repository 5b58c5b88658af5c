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
	"strconv"

	ASNber "github.com/OlegPowerC/asn1modsnmp"
)

// BindValue is the value half of a VarBind: Unspecified, an ObjectValue,
// or one of the SNMPv2 exceptions.
type BindValue interface {
	rawValue() (ASNber.RawValue, error)
	String() string
}

// ObjectValue is a concrete SMI value.
type ObjectValue interface {
	BindValue
	objectValue()
}

type (
	Integer     int32
	OctetString []byte
	IPAddress   [4]byte
	Counter32   uint32
	Unsigned32  uint32
	// TimeTicks counts hundredths of a second since an agent-defined epoch.
	TimeTicks uint32
	Opaque    []byte
	Counter64 uint64
)

// Gauge32 shares the wire type of Unsigned32.
type Gauge32 = Unsigned32

// Null is the placeholder value of GET-style request var-binds.
type Null struct{}

// Unspecified is the value sent for every var-bind of a get, get-next and
// get-bulk request.
var Unspecified = Null{}

// Exception is one of the SNMPv2 per-var-bind exception markers.
type Exception uint8

const (
	NoSuchObject   Exception = tagNoSuchObject
	NoSuchInstance Exception = tagNoSuchInstance
	EndOfMibView   Exception = tagEndOfMibView
)

func (Integer) objectValue()     {}
func (OctetString) objectValue() {}
func (OID) objectValue()         {}
func (IPAddress) objectValue()   {}
func (Counter32) objectValue()   {}
func (Unsigned32) objectValue()  {}
func (TimeTicks) objectValue()   {}
func (Opaque) objectValue()      {}
func (Counter64) objectValue()   {}

func universal(tag int, content []byte) ASNber.RawValue {
	return ASNber.RawValue{Class: ASNber.ClassUniversal, Tag: tag, Bytes: content}
}

func application(tag int, content []byte) ASNber.RawValue {
	return ASNber.RawValue{Class: ASNber.ClassApplication, Tag: tag, Bytes: content}
}

func (v Integer) rawValue() (ASNber.RawValue, error) {
	return universal(ASNber.TagInteger, encodeIntContent(int64(v))), nil
}

func (v OctetString) rawValue() (ASNber.RawValue, error) {
	return universal(ASNber.TagOctetString, []byte(v)), nil
}

func (v OID) rawValue() (ASNber.RawValue, error) {
	content, err := v.Encode()
	if err != nil {
		return ASNber.RawValue{}, err
	}
	return universal(ASNber.TagOID, content), nil
}

func (v IPAddress) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeIPAddress, v[:]), nil
}

func (v Counter32) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeCounter32, encodeUintContent(uint64(v))), nil
}

func (v Unsigned32) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeUnsigned32, encodeUintContent(uint64(v))), nil
}

func (v TimeTicks) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeTimeTicks, encodeUintContent(uint64(v))), nil
}

func (v Opaque) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeOpaque, []byte(v)), nil
}

func (v Counter64) rawValue() (ASNber.RawValue, error) {
	return application(snmpTypeCounter64, encodeUintContent(uint64(v))), nil
}

func (Null) rawValue() (ASNber.RawValue, error) {
	return universal(ASNber.TagNull, nil), nil
}

func (e Exception) rawValue() (ASNber.RawValue, error) {
	if e > EndOfMibView {
		return ASNber.RawValue{}, &EncodeError{What: fmt.Sprintf("exception %d", int(e))}
	}
	return ASNber.RawValue{Class: ASNber.ClassContextSpecific, Tag: int(e)}, nil
}

func (v Integer) String() string     { return strconv.FormatInt(int64(v), 10) }
func (v OctetString) String() string { return formatOctetString(v) }
func (v IPAddress) String() string   { return net.IP(v[:]).String() }
func (v Counter32) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v Unsigned32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v TimeTicks) String() string   { return formatTimeTicks(uint32(v)) }
func (v Opaque) String() string      { return hex.EncodeToString(v) }
func (v Counter64) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (Null) String() string          { return "NULL" }

func (e Exception) String() string {
	switch e {
	case NoSuchObject:
		return "noSuchObject"
	case NoSuchInstance:
		return "noSuchInstance"
	case EndOfMibView:
		return "endOfMibView"
	}
	return fmt.Sprintf("exception(%d)", int(e))
}

// IsException reports whether v is NoSuchObject, NoSuchInstance or
// EndOfMibView.
func IsException(v BindValue) bool {
	_, ok := v.(Exception)
	return ok
}

// EncodeValue returns the complete BER element (tag, length, content) of v.
func EncodeValue(v BindValue) ([]byte, error) {
	if v == nil {
		v = Unspecified
	}
	raw, err := v.rawValue()
	if err != nil {
		return nil, err
	}
	out, err := ASNber.Marshal(raw)
	if err != nil {
		return nil, encodeErr("value "+TypeName(v), err)
	}
	return out, nil
}

// DecodeValue parses one BER element into a BindValue.
func DecodeValue(b []byte) (BindValue, error) {
	var raw ASNber.RawValue
	rest, err := ASNber.Unmarshal(b, &raw)
	if err != nil {
		return nil, decodeErr("value", err)
	}
	if len(rest) > 0 {
		return nil, decodeErrf("value: %d trailing octets", len(rest))
	}
	return decodeBindValue(raw)
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func decodeBindValue(raw ASNber.RawValue) (BindValue, error) {
	if raw.IsCompound {
		return nil, decodeErrf("value: unexpected constructed element class %d tag %d", raw.Class, raw.Tag)
	}
	switch raw.Class {
	case ASNber.ClassUniversal:
		switch raw.Tag {
		case ASNber.TagInteger:
			v, err := decodeIntContent(raw.Bytes, 32)
			if err != nil {
				return nil, err
			}
			return Integer(v), nil
		case ASNber.TagOctetString:
			return OctetString(copyBytes(raw.Bytes)), nil
		case ASNber.TagOID:
			return DecodeOID(raw.Bytes)
		case ASNber.TagNull:
			if len(raw.Bytes) != 0 {
				return nil, decodeErrf("NULL with %d content octets", len(raw.Bytes))
			}
			return Unspecified, nil
		}
	case ASNber.ClassApplication:
		switch raw.Tag {
		case snmpTypeIPAddress:
			if len(raw.Bytes) != 4 {
				return nil, decodeErrf("IpAddress of %d octets", len(raw.Bytes))
			}
			var ip IPAddress
			copy(ip[:], raw.Bytes)
			return ip, nil
		case snmpTypeCounter32, snmpTypeUnsigned32, snmpTypeTimeTicks:
			v, err := decodeUintContent(raw.Bytes, 32)
			if err != nil {
				return nil, err
			}
			switch raw.Tag {
			case snmpTypeCounter32:
				return Counter32(v), nil
			case snmpTypeUnsigned32:
				return Unsigned32(v), nil
			}
			return TimeTicks(v), nil
		case snmpTypeOpaque:
			return Opaque(copyBytes(raw.Bytes)), nil
		case snmpTypeCounter64:
			v, err := decodeUintContent(raw.Bytes, 64)
			if err != nil {
				return nil, err
			}
			return Counter64(v), nil
		}
	case ASNber.ClassContextSpecific:
		if raw.Tag >= tagNoSuchObject && raw.Tag <= tagEndOfMibView {
			if len(raw.Bytes) != 0 {
				return nil, decodeErrf("%s with %d content octets", Exception(raw.Tag), len(raw.Bytes))
			}
			return Exception(raw.Tag), nil
		}
	}
	return nil, decodeErrf("value: unrecognized class %d tag %d", raw.Class, raw.Tag)
}
