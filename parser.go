// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"
)

// ErrUnknownCommunity is returned by ParseNotification for a v2c message
// whose community is not accepted.
var ErrUnknownCommunity = errors.New("unknown community")

// USMCredentials are the protocols and passwords of one USM user.
type USMCredentials struct {
	Auth         AuthProtocol
	AuthPassword string
	Priv         PrivProtocol
	PrivPassword string
}

func (c USMCredentials) level() SecurityLevel {
	switch {
	case c.Auth == AuthNone:
		return NoAuthNoPriv
	case c.Priv == PrivNone:
		return AuthNoPriv
	}
	return AuthPriv
}

// NotificationCredentials decide which notifications are accepted.
//
// Communities lists the accepted v2c communities; an empty list accepts
// any. Users maps USM user names to their credentials. LocalEngine is the
// authoritative engine for received informs. Engines tracks boots and time
// of trap senders. Nil LocalEngine and Engines are created on first use.
// Use one NotificationCredentials for the lifetime of a receiver: it caches
// localized keys.
type NotificationCredentials struct {
	Communities []string
	Users       map[string]USMCredentials
	LocalEngine *LocalEngine
	Engines     *EngineCache

	mu   sync.Mutex
	keys map[string]usmKeys
	now  func() time.Time
}

func (nc *NotificationCredentials) init() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.LocalEngine == nil {
		nc.LocalEngine = NewLocalEngine(nil)
	}
	if nc.Engines == nil {
		nc.Engines = NewEngineCache()
	}
	if nc.keys == nil {
		nc.keys = make(map[string]usmKeys)
	}
	if nc.now == nil {
		nc.now = time.Now
	}
}

func (nc *NotificationCredentials) localizedKeys(engineID []byte, user string, uc USMCredentials) usmKeys {
	k := engineCacheKey(string(engineID), user)
	nc.mu.Lock()
	keys, ok := nc.keys[k]
	nc.mu.Unlock()
	if ok {
		return keys
	}
	keys = localizeKeys(engineID, uc.Auth, uc.AuthPassword, uc.Priv, uc.PrivPassword)
	nc.mu.Lock()
	nc.keys[k] = keys
	nc.mu.Unlock()
	return keys
}

// Notification is a received SNMPv2-Trap or InformRequest.
type Notification struct {
	Version Version
	Type    PDUType

	// v2c
	Community string

	// v3
	UserName        string
	SecurityLevel   SecurityLevel
	EngineID        []byte
	ContextEngineID []byte
	ContextName     []byte
	MsgID           int32

	RequestID int32
	Uptime    TimeTicks
	TrapOID   OID
	// VarBinds holds every var-bind, sysUpTime.0 and snmpTrapOID.0 included.
	VarBinds []VarBind

	maxSize int32
	keys    usmKeys
	local   *LocalEngine
}

// PeekSender returns the version and the community (v2c) or user name (v3)
// of a message without checking credentials.
func PeekSender(packet []byte) (Version, string, error) {
	ver, err := messageVersion(packet)
	if err != nil {
		return 0, "", err
	}
	if ver == versionV2c {
		m, err := decodeV2c(packet)
		if err != nil {
			return 0, "", err
		}
		return Version2c, string(m.Community), nil
	}
	m, err := decodeV3(packet)
	if err != nil {
		return 0, "", err
	}
	return Version3, m.Security.UserName, nil
}

// ParseNotification decodes a v2c or v3 SNMPv2-Trap or InformRequest and
// checks it against creds.
//
// Keys of a v3 trap are localized to the sender's engine ID and the
// sender's clock is tracked in creds.Engines. An inform must be addressed
// to creds.LocalEngine. A v3 message with an empty engine ID is a discovery
// probe: the error is a SecurityError of kind SecUnknownEngineID and the
// caller answers with DiscoveryReport.
//
// Example:
//
//	n, err := powersnmp.ParseNotification(pkt, creds)
//	if powersnmp.IsSecurityKind(err, powersnmp.SecUnknownEngineID) {
//	    report, _ := powersnmp.DiscoveryReport(pkt, creds.LocalEngine)
//	    conn.WriteTo(report, src)
//	}
//	if n != nil && n.Type == powersnmp.InformRequest {
//	    ack, _ := n.Acknowledge()
//	    conn.WriteTo(ack, src)
//	}
func ParseNotification(packet []byte, creds *NotificationCredentials) (*Notification, error) {
	creds.init()
	ver, err := messageVersion(packet)
	if err != nil {
		return nil, err
	}
	var n *Notification
	if ver == versionV2c {
		n, err = parseV2cNotification(packet, creds)
	} else {
		n, err = parseV3Notification(packet, creds)
	}
	if err != nil {
		return nil, err
	}
	n.extractHeader()
	return n, nil
}

func checkNotificationType(p ProtocolDataUnit) error {
	switch p.PDUType() {
	case SNMPv2Trap, InformRequest:
		return nil
	}
	return protocolViolationf("%s is not a notification", p.PDUType())
}

func parseV2cNotification(packet []byte, creds *NotificationCredentials) (*Notification, error) {
	m, err := decodeV2c(packet)
	if err != nil {
		return nil, err
	}
	if len(creds.Communities) > 0 && !slices.Contains(creds.Communities, string(m.Community)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommunity, m.Community)
	}
	if err := checkNotificationType(m.PDU); err != nil {
		return nil, err
	}
	return &Notification{
		Version:   Version2c,
		Type:      m.PDU.PDUType(),
		Community: string(m.Community),
		RequestID: m.PDU.ID(),
		VarBinds:  m.PDU.Bindings(),
	}, nil
}

func parseV3Notification(packet []byte, creds *NotificationCredentials) (*Notification, error) {
	m, err := decodeV3(packet)
	if err != nil {
		return nil, err
	}
	sp := m.Security
	if len(sp.EngineID) == 0 {
		creds.LocalEngine.unknownEngineIDs.Add(1)
		return nil, &SecurityError{Kind: SecUnknownEngineID, Err: errors.New("discovery probe")}
	}
	uc, ok := creds.Users[sp.UserName]
	if !ok {
		return nil, &SecurityError{Kind: SecUnknownUserName, Err: fmt.Errorf("user %q", sp.UserName)}
	}
	level := NoAuthNoPriv
	switch {
	case m.private():
		level = AuthPriv
	case m.authenticated():
		level = AuthNoPriv
	}
	if level < uc.level() {
		return nil, &SecurityError{Kind: SecUnsupportedSecLevel, Err: fmt.Errorf("%s message for a %s user", level, uc.level())}
	}

	local := creds.LocalEngine
	toLocal := bytes.Equal(sp.EngineID, local.id)
	keys := creds.localizedKeys(sp.EngineID, sp.UserName, uc)
	if err := openV3(packet, m, keys); err != nil {
		return nil, err
	}
	if err := checkNotificationType(m.PDU); err != nil {
		return nil, err
	}
	if m.PDU.PDUType() == InformRequest && !toLocal {
		local.unknownEngineIDs.Add(1)
		return nil, &SecurityError{Kind: SecUnknownEngineID, Err: fmt.Errorf("inform for engine %s", hex.EncodeToString(sp.EngineID))}
	}
	if m.authenticated() {
		if toLocal {
			if !local.inTimeWindow(sp.EngineBoots, sp.EngineTime) {
				return nil, &SecurityError{Kind: SecNotInTimeWindow, Err: fmt.Errorf("boots %d time %d", sp.EngineBoots, sp.EngineTime)}
			}
		} else {
			// Источник трапа авторитетен, отслеживаем его часы
			e := creds.Engines.entry(hex.EncodeToString(sp.EngineID), sp.UserName)
			if e.isDiscovered() {
				if err := e.checkTimeliness(sp.EngineBoots, sp.EngineTime, creds.now()); err != nil {
					return nil, err
				}
			} else {
				e.store(sp.EngineID, sp.EngineBoots, sp.EngineTime, creds.now(), func([]byte) usmKeys { return keys })
			}
		}
	}
	return &Notification{
		Version:         Version3,
		Type:            m.PDU.PDUType(),
		UserName:        sp.UserName,
		SecurityLevel:   level,
		EngineID:        sp.EngineID,
		ContextEngineID: m.ContextEngineID,
		ContextName:     m.ContextName,
		MsgID:           m.MsgID,
		RequestID:       m.PDU.ID(),
		VarBinds:        m.PDU.Bindings(),
		maxSize:         m.MaxSize,
		keys:            keys,
		local:           local,
	}, nil
}

// extractHeader fills Uptime and TrapOID from the leading var-binds.
func (n *Notification) extractHeader() {
	for _, vb := range n.VarBinds[:min(2, len(n.VarBinds))] {
		switch {
		case vb.Name.Equal(OIDSysUpTime):
			if t, ok := vb.Value.(TimeTicks); ok {
				n.Uptime = t
			}
		case vb.Name.Equal(OIDSnmpTrapOID):
			if o, ok := vb.Value.(OID); ok {
				n.TrapOID = o
			}
		}
	}
}

// Acknowledge builds the Response to an InformRequest: same request-id,
// same var-binds, at the security level of the inform.
func (n *Notification) Acknowledge() ([]byte, error) {
	if n.Type != InformRequest {
		return nil, fmt.Errorf("acknowledge: %s needs no response", n.Type)
	}
	resp := &PDU{Type: Response, RequestID: n.RequestID, VarBinds: n.VarBinds}
	if n.Version == Version2c {
		return encodeV2c(&MessageV2c{Community: []byte(n.Community), PDU: resp})
	}
	maxSize := n.maxSize
	if maxSize < MinMaxMsgSize {
		maxSize = DefaultMaxMsgSize
	}
	m := &MessageV3{
		MsgID:         n.MsgID,
		MaxSize:       maxSize,
		Flags:         n.SecurityLevel.flags(),
		SecurityModel: securityModelUSM,
		Security: SecurityParameters{
			EngineID:    n.local.ID(),
			EngineBoots: n.local.Boots(),
			EngineTime:  n.local.Time(),
			UserName:    n.UserName,
		},
		ContextEngineID: n.ContextEngineID,
		ContextName:     n.ContextName,
		PDU:             resp,
	}
	return sealV3(m, n.keys, rand.Uint64())
}

// DiscoveryReport answers the discovery probe of an inform sender with an
// unauthenticated usmStatsUnknownEngineIDs REPORT carrying the engine ID,
// boots and time of local (RFC 3414 §4).
func DiscoveryReport(packet []byte, local *LocalEngine) ([]byte, error) {
	m, err := decodeV3(packet)
	if err != nil {
		return nil, err
	}
	if !m.reportable() {
		return nil, protocolViolationf("message %d does not request a report", m.MsgID)
	}
	var requestID int32
	if m.PDU != nil {
		requestID = m.PDU.ID()
	}
	engineID := local.ID()
	report := &MessageV3{
		MsgID:         m.MsgID,
		MaxSize:       DefaultMaxMsgSize,
		SecurityModel: securityModelUSM,
		Security: SecurityParameters{
			EngineID:    engineID,
			EngineBoots: local.Boots(),
			EngineTime:  local.Time(),
			UserName:    m.Security.UserName,
		},
		ContextEngineID: engineID,
		PDU: &PDU{
			Type:      Report,
			RequestID: requestID,
			VarBinds: []VarBind{{
				Name:  oidUsmStatsUnknownEngineIDs,
				Value: Counter32(local.unknownEngineIDs.Load()),
			}},
		},
	}
	return encodeV3(report)
}
