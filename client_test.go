//go:build !integration

// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ASNber "github.com/OlegPowerC/asn1modsnmp"
)

var (
	ifDescr   = MustParseOID("1.3.6.1.2.1.2.2.1.2")
	sysName   = MustParseOID("1.3.6.1.2.1.1.5.0")
	coldStart = MustParseOID("1.3.6.1.6.3.1.1.5.1")
)

func newV2Client(t *testing.T, a *fakeAgent, opts ...Option) (*ClientV2, *agentTransport) {
	t.Helper()
	tr := newAgentTransport(a)
	p := NewParamsV2c("192.0.2.1", "", "public")
	p.Retries = 1
	c, err := NewClient(p, tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c.(*ClientV2), tr
}

func newV3Client(t *testing.T, a *fakeAgent, user string, uc USMCredentials, opts ...Option) (*ClientV3, *agentTransport) {
	t.Helper()
	tr := newAgentTransport(a)
	p := NewParamsV3("192.0.2.1", user, uc.Auth, uc.AuthPassword, uc.Priv, uc.PrivPassword)
	p.Retries = 1
	c, err := NewClient(p, tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c.(*ClientV3), tr
}

var shaAES = USMCredentials{Auth: AuthSHA, AuthPassword: "authpass1", Priv: PrivAES, PrivPassword: "privpass1"}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(nil, &agentTransport{})
	assert.Error(t, err)
	_, err = NewClient(NewParamsV2c("h", "", ""), &agentTransport{})
	assert.Error(t, err)
}

func TestClientV2_Get(t *testing.T) {
	c, _ := newV2Client(t, newFakeAgent())
	vbs, err := c.Get(context.Background(), sysDescr, sysName, MustParseOID("1.3.6.1.2.1.1.99.0"))
	require.NoError(t, err)
	want := []VarBind{
		{Name: sysDescr, Value: OctetString("PowerSNMP test agent")},
		{Name: sysName, Value: OctetString("sw1")},
		{Name: MustParseOID("1.3.6.1.2.1.1.99.0"), Value: NoSuchObject},
	}
	if diff := cmp.Diff(want, vbs); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestClientV2_GetNextAndBulk(t *testing.T) {
	c, _ := newV2Client(t, newFakeAgent())
	vbs, err := c.GetNext(context.Background(), sysDescr)
	require.NoError(t, err)
	require.Len(t, vbs, 1)
	assert.Equal(t, OIDSysUpTime, vbs[0].Name)
	assert.Equal(t, TimeTicks(123456), vbs[0].Value)

	vbs, err = c.GetBulk(context.Background(), 0, 3, ifDescr)
	require.NoError(t, err)
	require.Len(t, vbs, 3)
	assert.Equal(t, OctetString("eth2"), vbs[2].Value)

	_, err = c.GetBulk(context.Background(), 2, 3, ifDescr)
	var ee *EncodeError
	assert.ErrorAs(t, err, &ee)
}

func TestClientV2_WrongCommunityTimesOut(t *testing.T) {
	a := newFakeAgent()
	a.community = "private"
	c, tr := newV2Client(t, a)
	_, err := c.Get(context.Background(), sysDescr)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
	assert.Equal(t, 2, te.Attempts)
	assert.Equal(t, 2, tr.sentCount())
}

func TestClientV2_NoSuchName(t *testing.T) {
	a := newFakeAgent()
	a.respond = func(req ProtocolDataUnit) *PDU {
		return &PDU{Type: Response, RequestID: req.ID(), ErrorStatus: NoSuchName, ErrorIndex: 1, VarBinds: req.Bindings()}
	}
	c, _ := newV2Client(t, a)
	_, err := c.Get(context.Background(), sysName, sysDescr)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, NoSuchName, pe.Status)
	assert.Equal(t, 1, pe.Index)
	assert.Equal(t, sysName, pe.Name)
}

func TestClientV2_VarBindCountMismatch(t *testing.T) {
	a := newFakeAgent()
	a.respond = func(req ProtocolDataUnit) *PDU {
		return &PDU{Type: Response, RequestID: req.ID(), VarBinds: req.Bindings()[:1]}
	}
	c, _ := newV2Client(t, a)
	_, err := c.Get(context.Background(), sysName, sysDescr)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestClientV2_Set(t *testing.T) {
	c, _ := newV2Client(t, newFakeAgent())
	in := []VarBind{
		{Name: MustParseOID("1.3.6.1.2.1.1.6.0"), Value: NewOctetString("Test location from V2")},
		{Name: MustParseOID("1.3.6.1.4.1.9.9.1.0"), Value: Integer(-7)},
	}
	vbs, err := c.Set(context.Background(), in...)
	require.NoError(t, err)
	if diff := cmp.Diff(in, vbs); diff != "" {
		t.Errorf("Set echo mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Set(context.Background(), VarBind{Name: sysName, Value: EndOfMibView})
	var ee *EncodeError
	assert.ErrorAs(t, err, &ee)
	_, err = c.Set(context.Background(), VarBind{Name: sysName})
	assert.ErrorAs(t, err, &ee)
}

func TestClientV2_TrapAndInform(t *testing.T) {
	c, tr := newV2Client(t, newFakeAgent())
	extra := VarBind{Name: MustParseOID("1.3.6.1.2.1.2.2.1.1.3"), Value: Integer(3)}

	require.NoError(t, c.Trap(context.Background(), coldStart, 4200, extra))
	assert.Equal(t, 1, tr.sentCount())
	n, err := ParseNotification(tr.lastSent(), &NotificationCredentials{Communities: []string{"public"}})
	require.NoError(t, err)
	assert.Equal(t, SNMPv2Trap, n.Type)
	assert.Equal(t, TimeTicks(4200), n.Uptime)
	assert.Equal(t, coldStart, n.TrapOID)
	require.Len(t, n.VarBinds, 3)
	assert.Equal(t, extra, n.VarBinds[2])

	vbs, err := c.Inform(context.Background(), coldStart, 4300, extra)
	require.NoError(t, err)
	require.Len(t, vbs, 3)
	assert.Equal(t, OIDSysUpTime, vbs[0].Name)
	assert.Equal(t, OIDSnmpTrapOID, vbs[1].Name)
}

func TestClientV2_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	a := newFakeAgent()
	c, _ := newV2Client(t, a, WithMetrics(m))

	_, err := c.Get(context.Background(), sysDescr)
	require.NoError(t, err)
	a.community = "other"
	_, err = c.Get(context.Background(), sysDescr)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("v2c", "get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("v2c", "get", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("v2c")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimeoutsTotal.WithLabelValues("v2c")))
}

func TestClientV2_TrapDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	// часы клиента не влияют на длительность отправки
	skewed := func() time.Time { return time.Now().Add(time.Hour) }
	c, _ := newV2Client(t, newFakeAgent(), WithMetrics(m), withClock(skewed))

	require.NoError(t, c.Trap(context.Background(), coldStart, 1))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "powersnmp_request_duration_seconds" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(1), h.GetSampleCount())
		assert.GreaterOrEqual(t, h.GetSampleSum(), 0.0)
		assert.Less(t, h.GetSampleSum(), 1.0)
	}
	assert.True(t, found)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("v2c", "trap", "ok")))
}

func TestClientV3_DiscoveryAndGet(t *testing.T) {
	tests := []struct {
		name string
		uc   USMCredentials
	}{
		{"noAuthNoPriv", USMCredentials{}},
		{"MD5", USMCredentials{Auth: AuthMD5, AuthPassword: "authpass1"}},
		{"MD5+DES", USMCredentials{Auth: AuthMD5, AuthPassword: "authpass1", Priv: PrivDES, PrivPassword: "privpass1"}},
		{"SHA+AES", shaAES},
		{"SHA256+AES256", USMCredentials{Auth: AuthSHA256, AuthPassword: "authpass1", Priv: PrivAES256, PrivPassword: "privpass1"}},
		{"SHA512+AES256A", USMCredentials{Auth: AuthSHA512, AuthPassword: "authpass1", Priv: PrivAES256A, PrivPassword: "privpass1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFakeAgent()
			a.addUser("SNMPv3User", tt.uc)
			c, _ := newV3Client(t, a, "SNMPv3User", tt.uc)

			vbs, err := c.Get(context.Background(), sysName)
			require.NoError(t, err)
			require.Len(t, vbs, 1)
			assert.Equal(t, OctetString("sw1"), vbs[0].Value)
			assert.Equal(t, 1, a.discoveryCount())

			info, ok := c.Engine()
			require.True(t, ok)
			assert.Equal(t, testEngineID, info.EngineID)
			assert.Equal(t, uint32(5), info.Boots)

			// повторный запрос идет без discovery
			_, err = c.Get(context.Background(), sysDescr)
			require.NoError(t, err)
			assert.Equal(t, 1, a.discoveryCount())
		})
	}
}

func TestClientV3_DiscoveryWithZeroClock(t *testing.T) {
	a := newFakeAgent()
	a.zeroTimeInReport = true
	a.addUser("user", shaAES)
	c, _ := newV3Client(t, a, "user", shaAES)

	require.NoError(t, c.Discover(context.Background()))
	info, ok := c.Engine()
	require.True(t, ok)
	assert.Equal(t, uint32(5), info.Boots)
	assert.Equal(t, uint32(1000), info.Time)
	assert.Equal(t, 1, a.reportCount(oidUsmStatsNotInTimeWindows))

	_, err := c.Get(context.Background(), sysName)
	require.NoError(t, err)
}

func TestClientV3_ResyncAfterAgentClockJump(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	c, tr := newV3Client(t, a, "user", shaAES)
	require.NoError(t, c.Discover(context.Background()))

	a.mu.Lock()
	a.time += 1000
	a.mu.Unlock()
	sent := tr.sentCount()

	_, err := c.Get(context.Background(), sysName)
	require.NoError(t, err)
	assert.Equal(t, 1, a.reportCount(oidUsmStatsNotInTimeWindows))
	assert.Equal(t, sent+2, tr.sentCount(), "one rejected request and one repeat")
	info, _ := c.Engine()
	assert.Equal(t, uint32(2000), info.Time)
}

func TestClientV3_RediscoveryAfterEngineChange(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	c, _ := newV3Client(t, a, "user", shaAES)
	_, err := c.Get(context.Background(), sysName)
	require.NoError(t, err)

	newID := []byte{0x80, 0x00, 0x1f, 0x88, 0x04, 'n', 'e', 'w'}
	a.rekey(newID)
	vbs, err := c.Get(context.Background(), sysName)
	require.NoError(t, err)
	assert.Equal(t, OctetString("sw1"), vbs[0].Value)
	assert.Equal(t, 2, a.discoveryCount())
	// два ответа на discovery и один на запрос со старым EngineID
	assert.Equal(t, 3, a.reportCount(oidUsmStatsUnknownEngineIDs))

	info, ok := c.Engine()
	require.True(t, ok)
	assert.Equal(t, newID, info.EngineID)
}

func TestClientV3_WrongPasswordReported(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	wrong := shaAES
	wrong.AuthPassword = "wrongpass"
	c, _ := newV3Client(t, a, "user", wrong)

	_, err := c.Get(context.Background(), sysName)
	var se *SecurityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SecWrongDigest, se.Kind)
	assert.True(t, se.Reported)
}

func TestClientV3_UnknownUserReported(t *testing.T) {
	a := newFakeAgent()
	c, _ := newV3Client(t, a, "nobody", shaAES)

	_, err := c.Get(context.Background(), sysName)
	var se *SecurityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SecUnknownUserName, se.Kind)
	assert.True(t, se.Reported)
}

func TestClientV3_TamperedResponse(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, _ := newV3Client(t, a, "user", shaAES, WithMetrics(m))
	require.NoError(t, c.Discover(context.Background()))

	a.tamper = func(out []byte) []byte {
		offset, n, err := ASNber.FindSNMPv3AuthParamsOffset(out)
		if err == nil && offset > 0 && n > 0 {
			out[offset] ^= 0x01
		}
		return out
	}
	_, err := c.Get(context.Background(), sysName)
	var se *SecurityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SecWrongDigest, se.Kind)
	assert.False(t, se.Reported, "detected locally")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SecurityErrors.WithLabelValues("wrong digest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Discoveries))
}

func TestClientV3_ResponseOutsideTimeWindow(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	c, _ := newV3Client(t, a, "user", shaAES)
	require.NoError(t, c.Discover(context.Background()))

	a.mu.Lock()
	a.ignoreTime = true
	a.boots = 4
	a.mu.Unlock()
	_, err := c.Get(context.Background(), sysName)
	assert.True(t, IsSecurityKind(err, SecNotInTimeWindow), "got %v", err)
}

func TestClientV3_DiscoveryTimeout(t *testing.T) {
	a := newFakeAgent()
	c, tr := newV3Client(t, a, "user", shaAES)
	tr.drop = 10

	err := c.Discover(context.Background())
	var se *SecurityError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SecDiscoveryFailed, se.Kind)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestClientV3_ContextEngineID(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	var got *MessageV3
	tr := &agentTransport{agent: func(msg []byte) [][]byte {
		if m, err := decodeV3(msg); err == nil && len(m.Security.EngineID) > 0 {
			keys := localizeKeys(testEngineID, shaAES.Auth, shaAES.AuthPassword, shaAES.Priv, shaAES.PrivPassword)
			if openV3(msg, m, keys) == nil {
				got = m
			}
		}
		return a.handle(msg)
	}}
	p := NewParamsV3("192.0.2.1", "user", shaAES.Auth, shaAES.AuthPassword, shaAES.Priv, shaAES.PrivPassword)
	p.ContextName = "vlan-10"
	cl, err := NewClient(p, tr)
	require.NoError(t, err)
	defer cl.Close()

	_, err = cl.Get(context.Background(), sysName)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testEngineID, got.ContextEngineID)
	assert.Equal(t, []byte("vlan-10"), got.ContextName)
	assert.Equal(t, byte(msgFlagAuth|msgFlagPriv|msgFlagReportable), got.Flags)
}

func TestClientV3_SharedEngineCache(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	cache := NewEngineCache()
	c1, _ := newV3Client(t, a, "user", shaAES, WithEngineCache(cache))
	c2, _ := newV3Client(t, a, "user", shaAES, WithEngineCache(cache))

	_, err := c1.Get(context.Background(), sysName)
	require.NoError(t, err)
	_, err = c2.Get(context.Background(), sysName)
	require.NoError(t, err)
	assert.Equal(t, 1, a.discoveryCount())

	_, ok := cache.Lookup("192.0.2.1:161", "user")
	assert.True(t, ok)
}

func TestClientV3_TrapToReceiver(t *testing.T) {
	a := newFakeAgent()
	local := NewLocalEngine([]byte{0x80, 0x00, 0x00, 0x00, 0x04, 's', 'e', 'n', 'd', 'e', 'r'})
	c, tr := newV3Client(t, a, "trapuser", shaAES, WithLocalEngine(local))

	require.NoError(t, c.Trap(context.Background(), coldStart, 100))
	require.NoError(t, c.Trap(context.Background(), coldStart, 200))
	assert.Equal(t, 2, tr.sentCount())
	assert.Zero(t, a.discoveryCount(), "traps need no discovery")

	creds := &NotificationCredentials{Users: map[string]USMCredentials{"trapuser": shaAES}}
	n, err := ParseNotification(tr.lastSent(), creds)
	require.NoError(t, err)
	assert.Equal(t, SNMPv2Trap, n.Type)
	assert.Equal(t, AuthPriv, n.SecurityLevel)
	assert.Equal(t, local.ID(), n.EngineID)
	assert.Equal(t, TimeTicks(200), n.Uptime)
	assert.Equal(t, coldStart, n.TrapOID)
}

func TestClientV3_InformToReceiver(t *testing.T) {
	receiver := NewLocalEngine(nil)
	creds := &NotificationCredentials{
		Users:       map[string]USMCredentials{"informer": shaAES},
		LocalEngine: receiver,
	}
	var received []*Notification
	tr := &agentTransport{agent: func(msg []byte) [][]byte {
		n, err := ParseNotification(msg, creds)
		if IsSecurityKind(err, SecUnknownEngineID) {
			report, err := DiscoveryReport(msg, receiver)
			if err != nil {
				return nil
			}
			return [][]byte{report}
		}
		if err != nil {
			return nil
		}
		received = append(received, n)
		ack, err := n.Acknowledge()
		if err != nil {
			return nil
		}
		return [][]byte{ack}
	}}
	p := NewParamsV3("192.0.2.9", "informer", shaAES.Auth, shaAES.AuthPassword, shaAES.Priv, shaAES.PrivPassword)
	cl, err := NewClient(p, tr)
	require.NoError(t, err)
	defer cl.Close()

	extra := VarBind{Name: sysName, Value: OctetString("sw1")}
	vbs, err := cl.Inform(context.Background(), coldStart, 77, extra)
	require.NoError(t, err)
	require.Len(t, vbs, 3)
	assert.Equal(t, extra, vbs[2])

	require.Len(t, received, 1)
	assert.Equal(t, InformRequest, received[0].Type)
	assert.Equal(t, "informer", received[0].UserName)
	info, ok := cl.(*ClientV3).Engine()
	require.True(t, ok)
	assert.Equal(t, receiver.ID(), info.EngineID)
}

func TestClientV3_ConcurrentRequests(t *testing.T) {
	a := newFakeAgent()
	a.addUser("user", shaAES)
	c, _ := newV3Client(t, a, "user", shaAES)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := c.Get(ctx, sysName, sysDescr)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 1, a.discoveryCount())
}
