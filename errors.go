// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is reported by a Transport when no datagram arrived in time.
	ErrTimeout = errors.New("timeout")

	// ErrWrongVersion is returned by a Params accessor that does not apply to
	// the configured SNMP version.
	ErrWrongVersion = errors.New("wrong version")

	// ErrProtocolViolation marks a response the agent was not allowed to send:
	// a non-increasing OID during a walk, a var-bind count mismatch, an
	// unexpected PDU type.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrClosed is returned by operations on a closed client or transport.
	ErrClosed = errors.New("client closed")

	errShortOID = errors.New("an OID needs at least two arcs")
)

// ParseError reports OID text that is not dotted decimal.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s is not the right format", e.Text)
}

// TooLongError reports an OID with more arcs than the wire format allows.
type TooLongError struct {
	Arcs int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("OID of length %d exceeds the maximum: %d", e.Arcs, MaxOIDArcs)
}

// EncodeError reports a value or message that cannot be serialized.
type EncodeError struct {
	What string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Err == nil {
		return "encode " + e.What
	}
	return fmt.Sprintf("encode %s: %v", e.What, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports malformed or unrecognized BER input.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode " + e.What
	}
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func encodeErr(what string, err error) error {
	return &EncodeError{What: what, Err: err}
}

func decodeErr(what string, err error) error {
	return &DecodeError{What: what, Err: err}
}

func decodeErrf(format string, a ...any) error {
	return &DecodeError{What: fmt.Sprintf(format, a...)}
}

// ProtocolError carries a nonzero error-status returned by the agent.
//
// Index is the 1-based position of the offending var-bind in the request,
// 0 when the agent did not name one. Name is the OID at that position.
type ProtocolError struct {
	Status ErrorStatus
	Index  int
	Name   OID
}

func (e *ProtocolError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("agent returned %s", e.Status)
	}
	return fmt.Sprintf("agent returned %s for var-bind %d (%s)", e.Status, e.Index, e.Name)
}

// SecurityErrorKind classifies USM failures.
type SecurityErrorKind int

const (
	SecUnknownEngineID SecurityErrorKind = iota + 1
	SecUnknownUserName
	SecWrongDigest
	SecDecryptionError
	SecNotInTimeWindow
	SecUnsupportedSecLevel
	SecUnknownContext
	SecDiscoveryFailed
)

var securityErrorNames = map[SecurityErrorKind]string{
	SecUnknownEngineID:     "unknown engine id",
	SecUnknownUserName:     "unknown user name",
	SecWrongDigest:         "wrong digest",
	SecDecryptionError:     "decryption error",
	SecNotInTimeWindow:     "not in time window",
	SecUnsupportedSecLevel: "unsupported security level",
	SecUnknownContext:      "unknown context",
	SecDiscoveryFailed:     "discovery failed",
}

func (k SecurityErrorKind) String() string {
	if s, ok := securityErrorNames[k]; ok {
		return s
	}
	return fmt.Sprintf("security error %d", int(k))
}

// SecurityError aborts a v3 exchange.
type SecurityError struct {
	Kind SecurityErrorKind
	// Reported is true when the agent signalled the failure in a REPORT PDU,
	// false when it was detected locally.
	Reported bool
	Err      error
}

func (e *SecurityError) Error() string {
	src := "local"
	if e.Reported {
		src = "agent report"
	}
	if e.Err != nil {
		return fmt.Sprintf("usm: %s (%s): %v", e.Kind, src, e.Err)
	}
	return fmt.Sprintf("usm: %s (%s)", e.Kind, src)
}

func (e *SecurityError) Unwrap() error { return e.Err }

// IsSecurityKind reports whether err is a SecurityError of the given kind.
func IsSecurityKind(err error, kind SecurityErrorKind) bool {
	var se *SecurityError
	return errors.As(err, &se) && se.Kind == kind
}

// TransportError wraps failures of the Transport collaborator after the retry
// budget is spent.
type TransportError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the last failure was a receive timeout.
func (e *TransportError) Timeout() bool { return errors.Is(e.Err, ErrTimeout) }

func protocolViolationf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, a...))
}
