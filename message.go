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

// MessageV2c is a community-based SNMPv2c message.
type MessageV2c struct {
	Community []byte
	PDU       ProtocolDataUnit
}

// SecurityParameters is the USM block of an SNMPv3 message (RFC 3414 §2.4).
type SecurityParameters struct {
	EngineID    []byte
	EngineBoots uint32
	EngineTime  uint32
	UserName    string
	AuthParams  []byte
	PrivParams  []byte
}

// MessageV3 is an SNMPv3 message.
//
// When the privacy flag is set, Encrypted holds the ciphertext of the scoped
// PDU and the context fields and PDU are only valid after decryption.
type MessageV3 struct {
	MsgID           int32
	MaxSize         int32
	Flags           byte
	SecurityModel   int
	Security        SecurityParameters
	ContextEngineID []byte
	ContextName     []byte
	PDU             ProtocolDataUnit
	Encrypted       []byte
}

func (m *MessageV3) authenticated() bool { return m.Flags&msgFlagAuth != 0 }
func (m *MessageV3) private() bool       { return m.Flags&msgFlagPriv != 0 }
func (m *MessageV3) reportable() bool    { return m.Flags&msgFlagReportable != 0 }

type versionWire struct {
	Version int
	Rest    ASNber.RawValue
}

type v2cWire struct {
	Version   int
	Community []byte
	PDU       ASNber.RawValue
}

type v3Wire struct {
	Version  int
	Header   ASNber.RawValue
	Security []byte
	Data     ASNber.RawValue
}

type v3HeaderWire struct {
	MsgID         int32
	MaxSize       int32
	Flags         []byte
	SecurityModel int
}

type usmWire struct {
	EngineID   []byte
	Boots      int32
	Time       int32
	User       []byte
	AuthParams []byte
	PrivParams []byte
}

type scopedPDUWire struct {
	ContextEngineID []byte
	ContextName     []byte
	PDU             ASNber.RawValue
}

// messageVersion reads the version field without decoding the rest.
func messageVersion(packet []byte) (int, error) {
	var w versionWire
	if _, err := ASNber.Unmarshal(packet, &w); err != nil {
		return 0, decodeErr("message header", err)
	}
	switch w.Version {
	case versionV2c, versionV3:
		return w.Version, nil
	}
	return 0, decodeErrf("unsupported SNMP version %d", w.Version)
}

func encodeV2c(m *MessageV2c) ([]byte, error) {
	pdu, err := encodePDU(m.PDU)
	if err != nil {
		return nil, err
	}
	out, err := ASNber.Marshal(v2cWire{Version: versionV2c, Community: m.Community, PDU: pdu})
	if err != nil {
		return nil, encodeErr("v2c message", err)
	}
	return out, nil
}

func decodeV2c(packet []byte) (*MessageV2c, error) {
	var w v2cWire
	if _, err := ASNber.Unmarshal(packet, &w); err != nil {
		return nil, decodeErr("v2c message", err)
	}
	if w.Version != versionV2c {
		return nil, decodeErrf("v2c message: version %d", w.Version)
	}
	pdu, err := decodePDU(w.PDU)
	if err != nil {
		return nil, err
	}
	return &MessageV2c{Community: copyBytes(w.Community), PDU: pdu}, nil
}

func encodeScopedPDU(contextEngineID, contextName []byte, p ProtocolDataUnit) ([]byte, error) {
	pdu, err := encodePDU(p)
	if err != nil {
		return nil, err
	}
	out, err := ASNber.Marshal(scopedPDUWire{ContextEngineID: contextEngineID, ContextName: contextName, PDU: pdu})
	if err != nil {
		return nil, encodeErr("scoped PDU", err)
	}
	return out, nil
}

// decodeScopedPDU fills the context fields and PDU of m. Octets after the
// scoped PDU (cipher padding) are ignored.
func decodeScopedPDU(b []byte, m *MessageV3) error {
	var w scopedPDUWire
	if _, err := ASNber.Unmarshal(b, &w); err != nil {
		return decodeErr("scoped PDU", err)
	}
	pdu, err := decodePDU(w.PDU)
	if err != nil {
		return err
	}
	m.ContextEngineID = copyBytes(w.ContextEngineID)
	m.ContextName = copyBytes(w.ContextName)
	m.PDU = pdu
	return nil
}

func encodeUSM(sp SecurityParameters) ([]byte, error) {
	out, err := ASNber.Marshal(usmWire{
		EngineID:   sp.EngineID,
		Boots:      int32(sp.EngineBoots),
		Time:       int32(sp.EngineTime),
		User:       []byte(sp.UserName),
		AuthParams: sp.AuthParams,
		PrivParams: sp.PrivParams,
	})
	if err != nil {
		return nil, encodeErr("USM security parameters", err)
	}
	return out, nil
}

func decodeUSM(b []byte) (SecurityParameters, error) {
	var w usmWire
	if _, err := ASNber.Unmarshal(b, &w); err != nil {
		return SecurityParameters{}, decodeErr("USM security parameters", err)
	}
	if w.Boots < 0 || w.Time < 0 {
		return SecurityParameters{}, decodeErrf("USM security parameters: negative boots %d or time %d", w.Boots, w.Time)
	}
	return SecurityParameters{
		EngineID:    copyBytes(w.EngineID),
		EngineBoots: uint32(w.Boots),
		EngineTime:  uint32(w.Time),
		UserName:    string(w.User),
		AuthParams:  copyBytes(w.AuthParams),
		PrivParams:  copyBytes(w.PrivParams),
	}, nil
}

// encodeV3 serializes m as is: AuthParams are written verbatim and, when
// Encrypted is set, it replaces the plaintext scoped PDU.
func encodeV3(m *MessageV3) ([]byte, error) {
	header, err := ASNber.Marshal(v3HeaderWire{
		MsgID:         m.MsgID,
		MaxSize:       m.MaxSize,
		Flags:         []byte{m.Flags},
		SecurityModel: securityModelUSM,
	})
	if err != nil {
		return nil, encodeErr("v3 header", err)
	}
	security, err := encodeUSM(m.Security)
	if err != nil {
		return nil, err
	}
	var data ASNber.RawValue
	if m.Encrypted != nil {
		data = universal(ASNber.TagOctetString, m.Encrypted)
	} else {
		scoped, err := encodeScopedPDU(m.ContextEngineID, m.ContextName, m.PDU)
		if err != nil {
			return nil, err
		}
		data.FullBytes = scoped
	}
	out, err := ASNber.Marshal(v3Wire{
		Version:  versionV3,
		Header:   ASNber.RawValue{FullBytes: header},
		Security: security,
		Data:     data,
	})
	if err != nil {
		return nil, encodeErr("v3 message", err)
	}
	return out, nil
}

// decodeV3 decodes the envelope and the USM block. A plaintext scoped PDU is
// decoded too; an encrypted one is left in Encrypted.
func decodeV3(packet []byte) (*MessageV3, error) {
	var w v3Wire
	if _, err := ASNber.Unmarshal(packet, &w); err != nil {
		return nil, decodeErr("v3 message", err)
	}
	if w.Version != versionV3 {
		return nil, decodeErrf("v3 message: version %d", w.Version)
	}
	var h v3HeaderWire
	if _, err := ASNber.Unmarshal(w.Header.FullBytes, &h); err != nil {
		return nil, decodeErr("v3 header", err)
	}
	if len(h.Flags) != 1 {
		return nil, decodeErrf("v3 header: msgFlags of %d octets", len(h.Flags))
	}
	if h.SecurityModel != securityModelUSM {
		return nil, decodeErrf("v3 header: security model %d", h.SecurityModel)
	}
	m := &MessageV3{
		MsgID:         h.MsgID,
		MaxSize:       h.MaxSize,
		Flags:         h.Flags[0],
		SecurityModel: h.SecurityModel,
	}
	if m.private() && !m.authenticated() {
		return nil, decodeErrf("v3 header: privacy without authentication")
	}
	sp, err := decodeUSM(w.Security)
	if err != nil {
		return nil, err
	}
	m.Security = sp

	encrypted := w.Data.Class == ASNber.ClassUniversal && w.Data.Tag == ASNber.TagOctetString && !w.Data.IsCompound
	switch {
	case m.private() && encrypted:
		m.Encrypted = copyBytes(w.Data.Bytes)
		return m, nil
	case m.private() || encrypted:
		return nil, decodeErrf("v3 message: privacy flag %v does not match msgData", m.private())
	}
	if w.Data.Class != ASNber.ClassUniversal || w.Data.Tag != ASNber.TagSequence {
		return nil, decodeErrf("v3 message: msgData class %d tag %d", w.Data.Class, w.Data.Tag)
	}
	if err := decodeScopedPDU(w.Data.FullBytes, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MessageV3) String() string {
	pdu := "encrypted"
	if m.PDU != nil {
		pdu = m.PDU.PDUType().String()
	}
	return fmt.Sprintf("v3 msgID=%d flags=%#x user=%q boots=%d time=%d pdu=%s",
		m.MsgID, m.Flags, m.Security.UserName, m.Security.EngineBoots, m.Security.EngineTime, pdu)
}
