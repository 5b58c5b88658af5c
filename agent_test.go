//go:build !integration

// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"
)

// agentTransport hands every sent message to an agent and queues its
// replies. Receive never blocks: an empty queue is a timeout.
type agentTransport struct {
	mu     sync.Mutex
	agent  func([]byte) [][]byte
	queue  [][]byte
	sent   [][]byte
	drop   int
	closed bool
}

func newAgentTransport(a *fakeAgent) *agentTransport {
	return &agentTransport{agent: a.handle}
}

func (tr *agentTransport) Send(dest string, msg []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.closed {
		return ErrClosed
	}
	tr.sent = append(tr.sent, copyBytes(msg))
	if tr.drop > 0 {
		tr.drop--
		return nil
	}
	if tr.agent != nil {
		tr.queue = append(tr.queue, tr.agent(msg)...)
	}
	return nil
}

func (tr *agentTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tr.queue) == 0 {
		return nil, ErrTimeout
	}
	p := tr.queue[0]
	tr.queue = tr.queue[1:]
	return p, nil
}

func (tr *agentTransport) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.closed = true
	return nil
}

func (tr *agentTransport) sentCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.sent)
}

func (tr *agentTransport) lastSent() []byte {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.sent) == 0 {
		return nil
	}
	return tr.sent[len(tr.sent)-1]
}

// inject queues a datagram as if it had arrived before the next reply.
func (tr *agentTransport) inject(p []byte) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.queue = append(tr.queue, p)
}

var testEngineID = []byte{0x80, 0x00, 0x1f, 0x88, 0x80, 0xf7, 0x99, 0x6d, 0x5a, 0x41, 0x96, 0x5d, 0x69}

// fakeAgent is a minimal command responder over a static MIB. It speaks
// v2c and v3 (discovery, authentication, privacy, time window reports).
type fakeAgent struct {
	mu        sync.Mutex
	community string
	mib       []VarBind

	engineID []byte
	boots    uint32
	time     uint32
	users    map[string]USMCredentials
	keys     map[string]usmKeys

	// discovery reports carry boots = time = 0
	zeroTimeInReport bool
	// authenticated requests are answered whatever their time
	ignoreTime bool
	// respond replaces the MIB lookup when it returns non-nil
	respond func(ProtocolDataUnit) *PDU
	// tamper rewrites every reply
	tamper func([]byte) []byte

	discoveries int
	reports     map[string]int
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		community: "public",
		mib:       testMIB(),
		engineID:  testEngineID,
		boots:     5,
		time:      1000,
		users:     make(map[string]USMCredentials),
		keys:      make(map[string]usmKeys),
		reports:   make(map[string]int),
	}
}

func testMIB() []VarBind {
	mib := []VarBind{
		{Name: MustParseOID("1.3.6.1.2.1.1.1.0"), Value: OctetString("PowerSNMP test agent")},
		{Name: MustParseOID("1.3.6.1.2.1.1.3.0"), Value: TimeTicks(123456)},
		{Name: MustParseOID("1.3.6.1.2.1.1.5.0"), Value: OctetString("sw1")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.2.1"), Value: OctetString("eth0")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.2.2"), Value: OctetString("eth1")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.2.3"), Value: OctetString("eth2")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.2.4"), Value: OctetString("eth3")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.2.5"), Value: OctetString("eth4")},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.10.1"), Value: Counter32(1000)},
		{Name: MustParseOID("1.3.6.1.2.1.2.2.1.10.2"), Value: Counter32(2000)},
		{Name: MustParseOID("1.3.6.1.2.1.31.1.1.1.6.1"), Value: Counter64(1 << 40)},
	}
	slices.SortFunc(mib, func(a, b VarBind) int { return a.Name.Compare(b.Name) })
	return mib
}

func (a *fakeAgent) addUser(name string, uc USMCredentials) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[name] = uc
}

// rekey simulates an agent restart with a new engine ID.
func (a *fakeAgent) rekey(engineID []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.engineID = engineID
	a.keys = make(map[string]usmKeys)
}

func (a *fakeAgent) reportCount(oid OID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reports[oid.String()]
}

func (a *fakeAgent) discoveryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoveries
}

func (a *fakeAgent) get(oid OID) VarBind {
	for _, vb := range a.mib {
		if vb.Name.Equal(oid) {
			return vb
		}
	}
	return VarBind{Name: oid, Value: NoSuchObject}
}

func (a *fakeAgent) next(oid OID) VarBind {
	for _, vb := range a.mib {
		if vb.Name.Compare(oid) > 0 {
			return vb
		}
	}
	return VarBind{Name: oid, Value: EndOfMibView}
}

// process answers one request. Get-bulk repetitions are not interleaved;
// the tests send a single repeater.
func (a *fakeAgent) process(req ProtocolDataUnit) *PDU {
	if a.respond != nil {
		if r := a.respond(req); r != nil {
			return r
		}
	}
	resp := &PDU{Type: Response, RequestID: req.ID()}
	switch r := req.(type) {
	case *BulkPDU:
		for _, vb := range r.VarBinds {
			cursor := vb.Name
			for i := 0; i < int(r.MaxRepetitions); i++ {
				next := a.next(cursor)
				resp.VarBinds = append(resp.VarBinds, next)
				if next.Value == EndOfMibView {
					break
				}
				cursor = next.Name
			}
		}
	case *PDU:
		for _, vb := range r.VarBinds {
			switch r.Type {
			case GetRequest:
				resp.VarBinds = append(resp.VarBinds, a.get(vb.Name))
			case GetNextRequest:
				resp.VarBinds = append(resp.VarBinds, a.next(vb.Name))
			default:
				resp.VarBinds = append(resp.VarBinds, vb)
			}
		}
	}
	return resp
}

func (a *fakeAgent) handle(msg []byte) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	ver, err := messageVersion(msg)
	if err != nil {
		return nil
	}
	var out []byte
	if ver == versionV2c {
		out = a.handleV2c(msg)
	} else {
		out = a.handleV3(msg)
	}
	if out == nil {
		return nil
	}
	if a.tamper != nil {
		out = a.tamper(out)
	}
	return [][]byte{out}
}

func (a *fakeAgent) handleV2c(msg []byte) []byte {
	m, err := decodeV2c(msg)
	if err != nil || string(m.Community) != a.community {
		return nil
	}
	if m.PDU.PDUType() == SNMPv2Trap {
		return nil
	}
	out, err := encodeV2c(&MessageV2c{Community: m.Community, PDU: a.process(m.PDU)})
	if err != nil {
		return nil
	}
	return out
}

func (a *fakeAgent) keysFor(user string, uc USMCredentials) usmKeys {
	k, ok := a.keys[user]
	if !ok {
		k = localizeKeys(a.engineID, uc.Auth, uc.AuthPassword, uc.Priv, uc.PrivPassword)
		a.keys[user] = k
	}
	return k
}

func (a *fakeAgent) handleV3(msg []byte) []byte {
	m, err := decodeV3(msg)
	if err != nil {
		return nil
	}
	sp := m.Security
	var reqID int32
	if m.PDU != nil {
		reqID = m.PDU.ID()
	}
	if len(sp.EngineID) == 0 {
		a.discoveries++
		boots, t := a.boots, a.time
		if a.zeroTimeInReport {
			boots, t = 0, 0
		}
		return a.report(m, reqID, oidUsmStatsUnknownEngineIDs, boots, t, usmKeys{}, 0)
	}
	uc, ok := a.users[sp.UserName]
	if !ok {
		return a.report(m, reqID, oidUsmStatsUnknownUserNames, a.boots, a.time, usmKeys{}, 0)
	}
	if !bytes.Equal(sp.EngineID, a.engineID) {
		return a.report(m, reqID, oidUsmStatsUnknownEngineIDs, a.boots, a.time, usmKeys{}, 0)
	}
	keys := a.keysFor(sp.UserName, uc)
	if err := openV3(msg, m, keys); err != nil {
		switch {
		case IsSecurityKind(err, SecWrongDigest):
			return a.report(m, reqID, oidUsmStatsWrongDigests, a.boots, a.time, usmKeys{}, 0)
		case IsSecurityKind(err, SecDecryptionError):
			return a.report(m, reqID, oidUsmStatsDecryptionErrors, a.boots, a.time, usmKeys{}, 0)
		}
		return a.report(m, reqID, oidUsmStatsUnsupportedSecLevels, a.boots, a.time, usmKeys{}, 0)
	}
	if m.authenticated() && !a.ignoreTime {
		d := int64(sp.EngineTime) - int64(a.time)
		if sp.EngineBoots != a.boots || d > timeWindowSeconds || d < -timeWindowSeconds {
			return a.report(m, m.PDU.ID(), oidUsmStatsNotInTimeWindows, a.boots, a.time, keys, msgFlagAuth)
		}
	}
	resp := &MessageV3{
		MsgID:         m.MsgID,
		MaxSize:       MaxDatagramSize,
		Flags:         m.Flags &^ msgFlagReportable,
		SecurityModel: securityModelUSM,
		Security: SecurityParameters{
			EngineID:    a.engineID,
			EngineBoots: a.boots,
			EngineTime:  a.time,
			UserName:    sp.UserName,
		},
		ContextEngineID: m.ContextEngineID,
		ContextName:     m.ContextName,
		PDU:             a.process(m.PDU),
	}
	out, err := sealV3(resp, keys, 42)
	if err != nil {
		return nil
	}
	return out
}

func (a *fakeAgent) report(req *MessageV3, reqID int32, oid OID, boots, t uint32, keys usmKeys, flags byte) []byte {
	a.reports[oid.String()]++
	m := &MessageV3{
		MsgID:         req.MsgID,
		MaxSize:       MaxDatagramSize,
		Flags:         flags,
		SecurityModel: securityModelUSM,
		Security: SecurityParameters{
			EngineID:    a.engineID,
			EngineBoots: boots,
			EngineTime:  t,
			UserName:    req.Security.UserName,
		},
		ContextEngineID: a.engineID,
		PDU: &PDU{
			Type:      Report,
			RequestID: reqID,
			VarBinds:  []VarBind{{Name: oid, Value: Counter32(1)}},
		},
	}
	out, err := sealV3(m, keys, 7)
	if err != nil {
		return nil
	}
	return out
}
