// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)

// Package powersnmp is an SNMP v2c/v3 manager library with the User-based
// Security Model (MD5, SHA-1, SHA-2 authentication; DES and AES privacy).
//
// Example:
//
//	params := powersnmp.NewParamsV3("192.168.5.252", "SNMPv3User",
//	    powersnmp.AuthSHA256, "authpass1", powersnmp.PrivAES, "privpass1")
//	client, err := powersnmp.Dial(ctx, params)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	vbs, err := client.Get(ctx, powersnmp.MustParseOID("1.3.6.1.2.1.1.1.0"))
package powersnmp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cihub/seelog"
)

// Client is the operation set shared by ClientV2 and ClientV3. Calls on one
// client are serialized; every call makes at most one request at a time.
type Client interface {
	// Get reads the values of oids.
	Get(ctx context.Context, oids ...OID) ([]VarBind, error)
	// GetNext returns the lexicographic successor of each of oids.
	GetNext(ctx context.Context, oids ...OID) ([]VarBind, error)
	// GetBulk sends one get-bulk request.
	GetBulk(ctx context.Context, nonRepeaters, maxRepetitions int, oids ...OID) ([]VarBind, error)
	// Set writes bindings and returns the agent's echo of them.
	Set(ctx context.Context, bindings ...VarBind) ([]VarBind, error)

	Walk(ctx context.Context, root OID) ([]VarBind, error)
	BulkWalk(ctx context.Context, root OID) ([]VarBind, error)
	WalkFunc(ctx context.Context, root OID, bulk bool, fn func(VarBind) error) error
	WalkChan(ctx context.Context, root OID, bulk bool) <-chan WalkResult

	// Inform sends an InformRequest and waits for the Response.
	Inform(ctx context.Context, trapOID OID, uptime TimeTicks, bindings ...VarBind) ([]VarBind, error)
	// Trap sends an SNMPv2-Trap; nothing is awaited.
	Trap(ctx context.Context, trapOID OID, uptime TimeTicks, bindings ...VarBind) error

	Params() *Params
	// Close closes the client and its transport.
	Close() error
}

// Option customizes a client.
type Option func(*options)

type options struct {
	logger  seelog.LoggerInterface
	metrics *Metrics
	reqIDs  RequestIDGenerator
	msgIDs  RequestIDGenerator
	cache   *EngineCache
	local   *LocalEngine
	now     func() time.Time
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l seelog.LoggerInterface) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRequestIDs sets the request-id generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(o *options) { o.reqIDs = g }
}

// WithMsgIDs sets the SNMPv3 msgID generator.
func WithMsgIDs(g RequestIDGenerator) Option {
	return func(o *options) { o.msgIDs = g }
}

// WithEngineCache shares discovered SNMPv3 engines between clients.
func WithEngineCache(c *EngineCache) Option {
	return func(o *options) { o.cache = c }
}

// WithLocalEngine sets the engine that is authoritative for v3 traps.
func WithLocalEngine(e *LocalEngine) Option {
	return func(o *options) { o.local = e }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewClient validates params and builds the client for its version. The
// client owns transport and closes it on Close.
func NewClient(params *Params, transport Transport, opts ...Option) (Client, error) {
	if params == nil {
		return nil, errors.New("nil params")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: seelog.Disabled, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reqIDs == nil {
		o.reqIDs = NewRandomRequestIDs()
	}
	s := &session{
		params:    params,
		transport: transport,
		log:       o.logger,
		metrics:   o.metrics,
		reqIDs:    o.reqIDs,
		now:       o.now,
		version:   params.Version().String(),
	}
	switch params.Version() {
	case Version2c:
		return newClientV2(s), nil
	case Version3:
		return newClientV3(s, o), nil
	}
	return nil, ErrWrongVersion
}

// Dial opens a UDP transport to params and builds the client. SNMPv3
// clients discover the agent's engine before returning.
func Dial(ctx context.Context, params *Params, opts ...Option) (Client, error) {
	if params == nil {
		return nil, errors.New("nil params")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	t, err := NewUDPTransport("")
	if err != nil {
		return nil, err
	}
	c, err := NewClient(params, t, opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if v3, ok := c.(*ClientV3); ok {
		if err := v3.Discover(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// session is the state and operation set common to both versions; the
// version-specific part is exchange.
type session struct {
	params    *Params
	transport Transport
	log       seelog.LoggerInterface
	metrics   *Metrics
	reqIDs    RequestIDGenerator
	now       func() time.Time
	version   string

	exchange func(ctx context.Context, req ProtocolDataUnit) (*PDU, error)

	cmux   sync.Mutex
	closed atomic.Bool
}

func (s *session) Params() *Params { return s.params }

func (s *session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.transport.Close()
}

// request runs one exchange and validates the Response.
func (s *session) request(ctx context.Context, req ProtocolDataUnit) ([]VarBind, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.cmux.Lock()
	defer s.cmux.Unlock()

	started := time.Now()
	resp, err := s.exchange(ctx, req)
	if err == nil {
		err = validateResponse(req, resp)
	}
	s.metrics.observeRequest(s.version, req.PDUType().String(), started, err)
	if err != nil {
		var se *SecurityError
		if errors.As(err, &se) {
			s.metrics.securityError(se.Kind)
		}
		s.log.Debugf("%s %s request %d failed: %v", s.params.Address(), req.PDUType(), req.ID(), err)
		return nil, err
	}
	s.log.Tracef("%s %s request %d answered:\n%s", s.params.Address(), req.PDUType(), req.ID(), dump{resp.VarBinds})
	return resp.VarBinds, nil
}

func nullBinds(oids []OID) []VarBind {
	vbs := make([]VarBind, len(oids))
	for i, oid := range oids {
		vbs[i] = NewNullVarBind(oid)
	}
	return vbs
}

func (s *session) Get(ctx context.Context, oids ...OID) ([]VarBind, error) {
	return s.request(ctx, &PDU{Type: GetRequest, RequestID: s.reqIDs.NextRequestID(), VarBinds: nullBinds(oids)})
}

func (s *session) GetNext(ctx context.Context, oids ...OID) ([]VarBind, error) {
	return s.request(ctx, &PDU{Type: GetNextRequest, RequestID: s.reqIDs.NextRequestID(), VarBinds: nullBinds(oids)})
}

// GetBulk returns up to maxRepetitions successors for each OID after the
// first nonRepeaters, which get a single successor each.
func (s *session) GetBulk(ctx context.Context, nonRepeaters, maxRepetitions int, oids ...OID) ([]VarBind, error) {
	if nonRepeaters < 0 || maxRepetitions < 0 || nonRepeaters > len(oids) {
		return nil, &EncodeError{What: "get-bulk: non-repeaters must be within [0, len(oids)] and max-repetitions non-negative"}
	}
	return s.request(ctx, &BulkPDU{
		RequestID:      s.reqIDs.NextRequestID(),
		NonRepeaters:   int32(nonRepeaters),
		MaxRepetitions: int32(maxRepetitions),
		VarBinds:       nullBinds(oids),
	})
}

// Set requires every value to be an ObjectValue.
func (s *session) Set(ctx context.Context, bindings ...VarBind) ([]VarBind, error) {
	for i, vb := range bindings {
		if _, ok := vb.Value.(ObjectValue); !ok {
			return nil, &EncodeError{What: fmt.Sprintf("set: var-bind %d (%s) without a value", i+1, vb.Name)}
		}
	}
	return s.request(ctx, &PDU{Type: SetRequest, RequestID: s.reqIDs.NextRequestID(), VarBinds: bindings})
}

func (s *session) Inform(ctx context.Context, trapOID OID, uptime TimeTicks, bindings ...VarBind) ([]VarBind, error) {
	return s.request(ctx, &PDU{
		Type:      InformRequest,
		RequestID: s.reqIDs.NextRequestID(),
		VarBinds:  notificationBinds(trapOID, uptime, bindings),
	})
}

// notificationBinds puts sysUpTime.0 and snmpTrapOID.0 in front of bindings
// (RFC 3416 §4.2.6).
func notificationBinds(trapOID OID, uptime TimeTicks, bindings []VarBind) []VarBind {
	vbs := make([]VarBind, 0, len(bindings)+2)
	vbs = append(vbs,
		VarBind{Name: OIDSysUpTime, Value: uptime},
		VarBind{Name: OIDSnmpTrapOID, Value: trapOID},
	)
	return append(vbs, bindings...)
}
