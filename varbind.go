// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"fmt"

	ASNber "github.com/OlegPowerC/asn1modsnmp"
)

// VarBind binds an OID to a value or to an exception marker.
//
// Requests built by Get, GetNext and GetBulk carry Unspecified values;
// responses carry whatever the agent returned, exceptions included.
type VarBind struct {
	Name  OID
	Value BindValue
}

// NewNullVarBind returns a var-bind for oid with an Unspecified value.
func NewNullVarBind(oid OID) VarBind {
	return VarBind{Name: oid, Value: Unspecified}
}

// String renders the bind the way snmpwalk prints it.
func (vb VarBind) String() string {
	if IsException(vb.Value) {
		return fmt.Sprintf("%s = %s", vb.Name, vb.Value)
	}
	return fmt.Sprintf("%s = %s: %s", vb.Name, TypeName(vb.Value), FormatValue(vb.Value))
}

type varbindWire struct {
	Name  ASNber.RawValue
	Value ASNber.RawValue
}

func encodeVarBinds(vbs []VarBind) ([]varbindWire, error) {
	out := make([]varbindWire, 0, len(vbs))
	for i, vb := range vbs {
		name, err := vb.Name.rawValue()
		if err != nil {
			return nil, err
		}
		value := vb.Value
		if value == nil {
			value = Unspecified
		}
		raw, err := value.rawValue()
		if err != nil {
			return nil, fmt.Errorf("var-bind %d (%s): %w", i+1, vb.Name, err)
		}
		out = append(out, varbindWire{Name: name, Value: raw})
	}
	return out, nil
}

func decodeVarBinds(wire []varbindWire) ([]VarBind, error) {
	out := make([]VarBind, 0, len(wire))
	for i, w := range wire {
		if w.Name.Class != ASNber.ClassUniversal || w.Name.Tag != ASNber.TagOID || w.Name.IsCompound {
			return nil, decodeErrf("var-bind %d: name is not an OBJECT IDENTIFIER", i+1)
		}
		name, err := DecodeOID(w.Name.Bytes)
		if err != nil {
			return nil, err
		}
		value, err := decodeBindValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("var-bind %d (%s): %w", i+1, name, err)
		}
		out = append(out, VarBind{Name: name, Value: value})
	}
	return out, nil
}

func varBindNames(vbs []VarBind) []OID {
	out := make([]OID, len(vbs))
	for i, vb := range vbs {
		out[i] = vb.Name
	}
	return out
}
