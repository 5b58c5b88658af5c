// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// errResynced marks an exchange that ended with an authenticated
// notInTimeWindows report whose boots and time were adopted.
var errResynced = errors.New("engine boots and time resynchronized")

// ClientV3 is an SNMPv3 client with the User-based Security Model.
//
// The authoritative engine of the agent is discovered before the first
// request (or by Dial) and kept in an EngineCache. Keys are localized once
// per discovered engine ID.
//
// Example:
//
//	params := powersnmp.NewParamsV3("192.168.5.252", "SNMPv3User",
//	    powersnmp.AuthSHA, "authpass1", powersnmp.PrivAES256, "privpass1")
//	client, err := powersnmp.Dial(ctx, params,
//	    powersnmp.WithLogger(logger), powersnmp.WithEngineCache(cache))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	vbs, err := client.Get(ctx, powersnmp.MustParseOID("1.3.6.1.2.1.1.5.0"))
//
// Handles:
//   - engine discovery (usmStatsUnknownEngineIDs report)
//   - boots/time synchronization (usmStatsNotInTimeWindows report)
//   - rediscovery after the agent forgets or changes its engine ID
type ClientV3 struct {
	*session
	cache  *EngineCache
	entry  *engineEntry
	msgIDs RequestIDGenerator
	salt   atomic.Uint64
	local  *LocalEngine
	level  SecurityLevel

	user     string
	auth     AuthProtocol
	authPass string
	priv     PrivProtocol
	privPass string

	trapOnce sync.Once
	trapKeys usmKeys
}

func newClientV3(s *session, o options) *ClientV3 {
	p := s.params
	c := &ClientV3{
		session: s,
		cache:   o.cache,
		msgIDs:  o.msgIDs,
		local:   o.local,
		user:    p.Username(),
	}
	c.auth, _ = p.AuthProtocol()
	c.authPass, _ = p.AuthPassword()
	c.priv, _ = p.PrivProtocol()
	c.privPass, _ = p.PrivPassword()
	c.level, _ = p.SecurityLevel()
	if c.cache == nil {
		c.cache = NewEngineCache()
	}
	if c.msgIDs == nil {
		c.msgIDs = NewRandomRequestIDs()
	}
	if c.local == nil {
		c.local = NewLocalEngine(p.LocalEngineID)
	}
	c.entry = c.cache.entry(p.Address(), c.user)
	c.salt.Store(rand.Uint64())
	s.exchange = c.exchange
	return c
}

func (c *ClientV3) localize(engineID []byte) usmKeys {
	return localizeKeys(engineID, c.auth, c.authPass, c.priv, c.privPass)
}

// Engine returns the cached authoritative engine of the agent.
func (c *ClientV3) Engine() (EngineInfo, bool) {
	return c.cache.Lookup(c.params.Address(), c.user)
}

// Discover forgets the cached engine of the agent and discovers it again.
func (c *ClientV3) Discover(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.cmux.Lock()
	defer c.cmux.Unlock()
	c.entry.invalidate()
	err := c.discover(ctx)
	if err != nil {
		var se *SecurityError
		if errors.As(err, &se) {
			c.metrics.securityError(se.Kind)
		}
	}
	return err
}

// discover sends an unauthenticated reportable GET without var-binds and
// takes engineID, boots and time from the REPORT. When authentication is
// configured and the agent did not reveal its clock, an authenticated probe
// follows (RFC 3414 §4).
func (c *ClientV3) discover(ctx context.Context) error {
	probe := &PDU{Type: GetRequest, RequestID: c.reqIDs.NextRequestID()}
	msgID := c.msgIDs.NextRequestID()
	var report *MessageV3

	build := func() ([]byte, error) {
		return encodeV3(&MessageV3{
			MsgID:         msgID,
			MaxSize:       int32(c.params.MaxMsgSize),
			Flags:         msgFlagReportable,
			SecurityModel: securityModelUSM,
			PDU:           probe,
		})
	}
	accept := func(packet []byte) (bool, error) {
		m, err := decodeV3(packet)
		if err != nil {
			return false, err
		}
		if m.MsgID != msgID {
			c.log.Debugf("%s: dropping message %d, waiting for %d", c.params.Address(), m.MsgID, msgID)
			return false, nil
		}
		if m.PDU == nil || m.PDU.PDUType() != Report {
			return false, protocolViolationf("discovery probe answered with %s", m)
		}
		if len(m.Security.EngineID) == 0 {
			return false, protocolViolationf("discovery report without engine ID")
		}
		report = m
		return true, nil
	}
	if err := c.roundTrip(ctx, "discovery", build, accept); err != nil {
		return &SecurityError{Kind: SecDiscoveryFailed, Err: err}
	}
	c.metrics.discovery()

	sp := report.Security
	c.entry.store(sp.EngineID, sp.EngineBoots, sp.EngineTime, c.now(), c.localize)
	c.log.Debugf("%s: discovered engine %s boots %d time %d", c.params.Address(), hex.EncodeToString(sp.EngineID), sp.EngineBoots, sp.EngineTime)

	if c.level == NoAuthNoPriv || sp.EngineBoots != 0 || sp.EngineTime != 0 {
		return nil
	}
	//Boots и Time нулевые, получаем их аутентифицированным запросом
	_, err := c.exchangeOnce(ctx, &PDU{Type: GetRequest, RequestID: c.reqIDs.NextRequestID()})
	if err != nil && !errors.Is(err, errResynced) {
		return err
	}
	return nil
}

// exchange runs one request, discovering the engine first when needed. An
// unknownEngineIDs failure triggers one rediscovery and an authenticated
// notInTimeWindows report one retry with the reported clock.
func (c *ClientV3) exchange(ctx context.Context, req ProtocolDataUnit) (*PDU, error) {
	if !c.entry.isDiscovered() {
		if err := c.discover(ctx); err != nil {
			return nil, err
		}
	}
	resynced, rediscovered := false, false
	for {
		resp, err := c.exchangeOnce(ctx, req)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, errResynced):
			if resynced {
				return nil, &SecurityError{Kind: SecNotInTimeWindow, Reported: true}
			}
			resynced = true
			c.log.Debugf("%s: engine clock resynchronized, repeating %s", c.params.Address(), req.PDUType())
			continue
		case IsSecurityKind(err, SecUnknownEngineID) && !rediscovered:
			rediscovered = true
			c.log.Debugf("%s: %v, rediscovering", c.params.Address(), err)
			c.entry.invalidate()
			if err := c.discover(ctx); err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

// exchangeOnce sends req at the configured security level and waits for the
// Response with the same msgID and request-id.
func (c *ClientV3) exchangeOnce(ctx context.Context, req ProtocolDataUnit) (*PDU, error) {
	msgID := c.msgIDs.NextRequestID()
	var (
		st   engineState
		resp *PDU
	)
	build := func() ([]byte, error) {
		st = c.entry.snapshot(c.now())
		contextEngineID := c.params.ContextEngineID
		if len(contextEngineID) == 0 {
			contextEngineID = st.engineID
		}
		m := &MessageV3{
			MsgID:         msgID,
			MaxSize:       int32(c.params.MaxMsgSize),
			Flags:         c.level.flags() | msgFlagReportable,
			SecurityModel: securityModelUSM,
			Security: SecurityParameters{
				EngineID:    st.engineID,
				EngineBoots: st.boots,
				EngineTime:  st.time,
				UserName:    c.user,
			},
			ContextEngineID: contextEngineID,
			ContextName:     []byte(c.params.ContextName),
			PDU:             req,
		}
		out, err := sealV3(m, st.keys, c.salt.Add(1))
		if err != nil {
			return nil, err
		}
		c.log.Tracef("%s: sending %s", c.params.Address(), m)
		return out, nil
	}
	accept := func(packet []byte) (bool, error) {
		m, err := decodeV3(packet)
		if err != nil {
			return false, err
		}
		if m.MsgID != msgID {
			c.log.Debugf("%s: dropping message %d, waiting for %d", c.params.Address(), m.MsgID, msgID)
			return false, nil
		}
		if m.authenticated() && !bytes.Equal(m.Security.EngineID, st.engineID) {
			return false, &SecurityError{Kind: SecUnknownEngineID, Err: errors.New("authoritative engine ID changed")}
		}
		if err := openV3(packet, m, st.keys); err != nil {
			return false, err
		}
		c.log.Tracef("%s: received %s\n%s", c.params.Address(), m, dump{m.PDU})

		switch m.PDU.PDUType() {
		case Report:
			kind, _ := classifyReport(m.PDU)
			c.log.Debugf("%s: report %s (authenticated %v)", c.params.Address(), kind, m.authenticated())
			if kind == SecNotInTimeWindow && m.authenticated() {
				c.entry.resync(m.Security.EngineBoots, m.Security.EngineTime, c.now())
				return false, &SecurityError{Kind: SecNotInTimeWindow, Reported: true, Err: errResynced}
			}
			return false, reportError(m.PDU)
		case Response:
		default:
			return false, protocolViolationf("%s answered with %s", req.PDUType(), m.PDU.PDUType())
		}
		p := m.PDU.(*PDU)
		if p.RequestID != req.ID() {
			c.log.Debugf("%s: dropping response %d, waiting for %d", c.params.Address(), p.RequestID, req.ID())
			return false, nil
		}
		if m.Flags&(msgFlagAuth|msgFlagPriv) != c.level.flags() {
			return false, &SecurityError{Kind: SecUnsupportedSecLevel, Err: errors.New("response security level differs from the request")}
		}
		if m.authenticated() {
			if err := c.entry.checkTimeliness(m.Security.EngineBoots, m.Security.EngineTime, c.now()); err != nil {
				return false, err
			}
		}
		resp = p
		return true, nil
	}
	if err := c.roundTrip(ctx, req.PDUType().String(), build, accept); err != nil {
		return nil, err
	}
	return resp, nil
}

// Trap sends an SNMPv2-Trap. This process is the authoritative engine of a
// trap, so the message carries the local engine ID, boots and time and the
// keys are localized to the local engine.
func (c *ClientV3) Trap(ctx context.Context, trapOID OID, uptime TimeTicks, bindings ...VarBind) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.trapOnce.Do(func() {
		c.trapKeys = c.localize(c.local.ID())
	})
	engineID := c.local.ID()
	contextEngineID := c.params.ContextEngineID
	if len(contextEngineID) == 0 {
		contextEngineID = engineID
	}
	m := &MessageV3{
		MsgID:         c.msgIDs.NextRequestID(),
		MaxSize:       int32(c.params.MaxMsgSize),
		Flags:         c.level.flags(),
		SecurityModel: securityModelUSM,
		Security: SecurityParameters{
			EngineID:    engineID,
			EngineBoots: c.local.Boots(),
			EngineTime:  c.local.Time(),
			UserName:    c.user,
		},
		ContextEngineID: contextEngineID,
		ContextName:     []byte(c.params.ContextName),
		PDU: &PDU{
			Type:      SNMPv2Trap,
			RequestID: c.reqIDs.NextRequestID(),
			VarBinds:  notificationBinds(trapOID, uptime, bindings),
		},
	}
	msg, err := sealV3(m, c.trapKeys, c.salt.Add(1))
	if err != nil {
		return err
	}
	c.cmux.Lock()
	defer c.cmux.Unlock()
	started := time.Now()
	err = c.sendOnly("trap", msg)
	c.metrics.observeRequest(c.version, "trap", started, err)
	return err
}
