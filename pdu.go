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

// PDUType is the implicit context tag number of a PDU.
type PDUType int

const (
	GetRequest     PDUType = 0
	GetNextRequest PDUType = 1
	Response       PDUType = 2
	SetRequest     PDUType = 3
	// 4 was the SNMPv1 Trap-PDU
	GetBulkRequest PDUType = 5
	InformRequest  PDUType = 6
	SNMPv2Trap     PDUType = 7
	Report         PDUType = 8
)

var pduTypeNames = map[PDUType]string{
	GetRequest:     "get",
	GetNextRequest: "getnext",
	Response:       "response",
	SetRequest:     "set",
	GetBulkRequest: "getbulk",
	InformRequest:  "inform",
	SNMPv2Trap:     "trap",
	Report:         "report",
}

func (t PDUType) String() string {
	if s, ok := pduTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("pdu(%d)", int(t))
}

// ErrorStatus is the error-status field of a response (RFC 3416 §3).
type ErrorStatus int32

const (
	NoError ErrorStatus = iota
	TooBig
	NoSuchName
	BadValue
	ReadOnly
	GenErr
	NoAccess
	WrongType
	WrongLength
	WrongEncoding
	WrongValue
	NoCreation
	InconsistentValue
	ResourceUnavailable
	CommitFailed
	UndoFailed
	AuthorizationError
	NotWritable
	InconsistentName
)

var errorStatusNames = [...]string{
	"noError", "tooBig", "noSuchName", "badValue", "readOnly", "genErr",
	"noAccess", "wrongType", "wrongLength", "wrongEncoding", "wrongValue",
	"noCreation", "inconsistentValue", "resourceUnavailable", "commitFailed",
	"undoFailed", "authorizationError", "notWritable", "inconsistentName",
}

func (s ErrorStatus) String() string {
	if s >= 0 && int(s) < len(errorStatusNames) {
		return errorStatusNames[s]
	}
	return fmt.Sprintf("errorStatus(%d)", int32(s))
}

// ProtocolDataUnit is implemented by *PDU and *BulkPDU.
type ProtocolDataUnit interface {
	PDUType() PDUType
	ID() int32
	Bindings() []VarBind
}

// PDU is every PDU except GetBulkRequest.
type PDU struct {
	Type        PDUType
	RequestID   int32
	ErrorStatus ErrorStatus
	// ErrorIndex is 1-based; 0 means no var-bind is singled out.
	ErrorIndex uint32
	VarBinds   []VarBind
}

func (p *PDU) PDUType() PDUType    { return p.Type }
func (p *PDU) ID() int32           { return p.RequestID }
func (p *PDU) Bindings() []VarBind { return p.VarBinds }

// BulkPDU is a GetBulkRequest. NonRepeaters and MaxRepetitions occupy the
// error-status and error-index positions on the wire.
type BulkPDU struct {
	RequestID      int32
	NonRepeaters   int32
	MaxRepetitions int32
	VarBinds       []VarBind
}

func (p *BulkPDU) PDUType() PDUType    { return GetBulkRequest }
func (p *BulkPDU) ID() int32           { return p.RequestID }
func (p *BulkPDU) Bindings() []VarBind { return p.VarBinds }

type pduWire struct {
	RequestID   int32
	ErrorStatus int32
	ErrorIndex  int32
	VarBinds    []varbindWire
}

func encodePDU(p ProtocolDataUnit) (ASNber.RawValue, error) {
	var w pduWire
	switch x := p.(type) {
	case *PDU:
		if x.Type == GetBulkRequest || pduTypeNames[x.Type] == "" {
			return ASNber.RawValue{}, &EncodeError{What: "PDU of type " + x.Type.String()}
		}
		if x.ErrorIndex > uint32(len(x.VarBinds)) {
			return ASNber.RawValue{}, &EncodeError{What: fmt.Sprintf("error-index %d beyond %d var-binds", x.ErrorIndex, len(x.VarBinds))}
		}
		w.RequestID = x.RequestID
		w.ErrorStatus = int32(x.ErrorStatus)
		w.ErrorIndex = int32(x.ErrorIndex)
	case *BulkPDU:
		if x.NonRepeaters < 0 || x.MaxRepetitions < 0 {
			return ASNber.RawValue{}, &EncodeError{What: "get-bulk with negative non-repeaters or max-repetitions"}
		}
		w.RequestID = x.RequestID
		w.ErrorStatus = x.NonRepeaters
		w.ErrorIndex = x.MaxRepetitions
	default:
		return ASNber.RawValue{}, &EncodeError{What: fmt.Sprintf("PDU %T", p)}
	}
	vbs, err := encodeVarBinds(p.Bindings())
	if err != nil {
		return ASNber.RawValue{}, err
	}
	w.VarBinds = vbs

	body, err := ASNber.Marshal(w)
	if err != nil {
		return ASNber.RawValue{}, encodeErr("PDU "+p.PDUType().String(), err)
	}
	// Тело SEQUENCE без тега и длины, тег заменяется на [type] IMPLICIT
	content, err := ASNber.ExtractDataWOTagAndLen(body)
	if err != nil {
		return ASNber.RawValue{}, encodeErr("PDU "+p.PDUType().String(), err)
	}
	return ASNber.RawValue{
		Class:      ASNber.ClassContextSpecific,
		Tag:        int(p.PDUType()),
		IsCompound: true,
		Bytes:      content,
	}, nil
}

func decodePDU(raw ASNber.RawValue) (ProtocolDataUnit, error) {
	if raw.Class != ASNber.ClassContextSpecific || !raw.IsCompound {
		return nil, decodeErrf("PDU: unexpected class %d tag %d", raw.Class, raw.Tag)
	}
	t := PDUType(raw.Tag)
	if pduTypeNames[t] == "" {
		return nil, decodeErrf("PDU: unknown type %d", raw.Tag)
	}
	full := copyBytes(raw.FullBytes)
	if len(full) == 0 {
		var err error
		if full, err = ASNber.Marshal(raw); err != nil {
			return nil, decodeErr("PDU "+t.String(), err)
		}
	}
	// Контекстный тег PDU меняем на SEQUENCE (0x30), чтобы Unmarshal разобрал тело
	full[0] = 0x30
	var w pduWire
	if _, err := ASNber.Unmarshal(full, &w); err != nil {
		return nil, decodeErr("PDU "+t.String(), err)
	}
	vbs, err := decodeVarBinds(w.VarBinds)
	if err != nil {
		return nil, err
	}
	if t == GetBulkRequest {
		return &BulkPDU{
			RequestID:      w.RequestID,
			NonRepeaters:   w.ErrorStatus,
			MaxRepetitions: w.ErrorIndex,
			VarBinds:       vbs,
		}, nil
	}
	if w.ErrorStatus < int32(NoError) || w.ErrorStatus > int32(InconsistentName) {
		return nil, decodeErrf("PDU %s: error-status %d out of range", t, w.ErrorStatus)
	}
	if w.ErrorIndex < 0 {
		return nil, decodeErrf("PDU %s: negative error-index %d", t, w.ErrorIndex)
	}
	return &PDU{
		Type:        t,
		RequestID:   w.RequestID,
		ErrorStatus: ErrorStatus(w.ErrorStatus),
		ErrorIndex:  uint32(w.ErrorIndex),
		VarBinds:    vbs,
	}, nil
}
