// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"context"
	"errors"
	"time"
)

// roundTrip sends the output of build and passes every datagram received
// to accept until accept takes one (true) or fails.
//
// build runs on every attempt so that v3 messages get a fresh time estimate,
// salt and digest. accept returns (false, nil) for datagrams that belong to
// another exchange; they are dropped and waiting continues. An accept error
// ends the exchange without retrying. Attempt n waits Timeout*(n+1).
func (s *session) roundTrip(ctx context.Context, op string, build func() ([]byte, error), accept func([]byte) (bool, error)) error {
	attempts := s.params.Retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			s.metrics.retry(s.version)
			s.log.Debugf("%s %s: attempt %d of %d after %v", s.params.Address(), op, attempt+1, attempts, lastErr)
		}
		msg, err := build()
		if err != nil {
			return err
		}
		s.log.Tracef("%s %s: sending %d octets\n%s", s.params.Address(), op, len(msg), hexDump(msg))
		if err := s.transport.Send(s.params.Address(), msg); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			lastErr = err
			continue
		}

		//Таймаут растет с каждой попыткой
		deadline := time.Now().Add(s.params.Timeout * time.Duration(attempt+1))
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				lastErr = ErrTimeout
				break
			}
			packet, err := s.transport.Receive(ctx, remaining)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(err, ErrClosed) {
					return err
				}
				lastErr = err
				break
			}
			s.log.Tracef("%s %s: received %d octets\n%s", s.params.Address(), op, len(packet), hexDump(packet))
			ok, err := accept(packet)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
	if errors.Is(lastErr, ErrTimeout) {
		s.metrics.timeout(s.version)
	}
	return &TransportError{Op: op, Attempts: attempts, Err: lastErr}
}

// sendOnly transmits a message that expects no reply.
func (s *session) sendOnly(op string, msg []byte) error {
	s.log.Tracef("%s %s: sending %d octets\n%s", s.params.Address(), op, len(msg), hexDump(msg))
	if err := s.transport.Send(s.params.Address(), msg); err != nil {
		return &TransportError{Op: op, Attempts: 1, Err: err}
	}
	return nil
}

// validateResponse checks a Response against the request it answers.
func validateResponse(req ProtocolDataUnit, resp *PDU) error {
	if resp.Type != Response {
		return protocolViolationf("%s answered with %s", req.PDUType(), resp.Type)
	}
	sent := req.Bindings()
	if resp.ErrorIndex > uint32(len(sent)) {
		return decodeErrf("error-index %d outside 0..%d", resp.ErrorIndex, len(sent))
	}
	if resp.ErrorStatus != NoError {
		pe := &ProtocolError{Status: resp.ErrorStatus, Index: int(resp.ErrorIndex)}
		if pe.Index > 0 {
			pe.Name = sent[pe.Index-1].Name
		}
		return pe
	}
	switch r := req.(type) {
	case *BulkPDU:
		nonRep := min(int(r.NonRepeaters), len(sent))
		limit := nonRep + (len(sent)-nonRep)*int(r.MaxRepetitions)
		if len(resp.VarBinds) > limit {
			return protocolViolationf("get-bulk returned %d var-binds, at most %d allowed", len(resp.VarBinds), limit)
		}
	default:
		if len(resp.VarBinds) != len(sent) {
			return protocolViolationf("%s of %d var-binds answered with %d", req.PDUType(), len(sent), len(resp.VarBinds))
		}
	}
	return nil
}
