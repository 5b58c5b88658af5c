// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"context"
	"time"
)

// ClientV2 is a community-based SNMPv2c client.
//
// Example:
//
//	params := powersnmp.NewParamsV2c("192.168.5.252", "", "public")
//	client, err := powersnmp.Dial(ctx, params)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	vbs, err := client.BulkWalk(ctx, powersnmp.MustParseOID("1.3.6.1.2.1.2.2.1.2"))
type ClientV2 struct {
	*session
	community []byte
}

func newClientV2(s *session) *ClientV2 {
	community, _ := s.params.Community()
	c := &ClientV2{session: s, community: []byte(community)}
	s.exchange = c.exchange
	return c
}

// exchange sends req and waits for the Response with the same request-id.
// Replies to earlier requests are dropped.
func (c *ClientV2) exchange(ctx context.Context, req ProtocolDataUnit) (*PDU, error) {
	msg, err := encodeV2c(&MessageV2c{Community: c.community, PDU: req})
	if err != nil {
		return nil, err
	}
	var resp *PDU
	build := func() ([]byte, error) { return msg, nil }
	accept := func(packet []byte) (bool, error) {
		m, err := decodeV2c(packet)
		if err != nil {
			return false, err
		}
		if m.PDU.ID() != req.ID() {
			c.log.Debugf("%s: dropping response %d, waiting for %d", c.params.Address(), m.PDU.ID(), req.ID())
			return false, nil
		}
		p, ok := m.PDU.(*PDU)
		if !ok || p.Type != Response {
			return false, protocolViolationf("%s answered with %s", req.PDUType(), m.PDU.PDUType())
		}
		resp = p
		return true, nil
	}
	if err := c.roundTrip(ctx, req.PDUType().String(), build, accept); err != nil {
		return nil, err
	}
	return resp, nil
}

// Trap sends an SNMPv2-Trap. The first two var-binds are sysUpTime.0 and
// snmpTrapOID.0, followed by bindings.
func (c *ClientV2) Trap(ctx context.Context, trapOID OID, uptime TimeTicks, bindings ...VarBind) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pdu := &PDU{
		Type:      SNMPv2Trap,
		RequestID: c.reqIDs.NextRequestID(),
		VarBinds:  notificationBinds(trapOID, uptime, bindings),
	}
	msg, err := encodeV2c(&MessageV2c{Community: c.community, PDU: pdu})
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
