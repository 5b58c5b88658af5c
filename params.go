// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Version is the SNMP message version of a target.
type Version int

const (
	Version2c Version = 2
	Version3  Version = 3
)

func (v Version) String() string {
	switch v {
	case Version2c:
		return "v2c"
	case Version3:
		return "v3"
	}
	return fmt.Sprintf("version(%d)", int(v))
}

// ParseVersion accepts "2", "2c", "v2c", "3" and "v3".
func ParseVersion(s string) (Version, error) {
	switch s {
	case "2", "2c", "v2c", "v2":
		return Version2c, nil
	case "3", "v3":
		return Version3, nil
	}
	return 0, fmt.Errorf("version error: %s", s)
}

// Params describes one SNMP target and the credentials used for it.
//
// The exported fields are tuning knobs with defaults set by the
// constructors. Credentials are fixed at construction and read through
// accessors; an accessor that does not apply to the version returns
// ErrWrongVersion.
type Params struct {
	Port    int
	Timeout time.Duration
	// Retries is the number of attempts after the first one.
	Retries        int
	MaxRepetitions int
	MaxMsgSize     int

	ContextName     string
	ContextEngineID []byte
	// LocalEngineID is the engine ID used as authoritative engine for v3
	// traps. Generated when empty.
	LocalEngineID []byte

	host      string
	username  string
	version   Version
	community string
	authProto AuthProtocol
	authPass  string
	privProto PrivProtocol
	privPass  string
}

func defaultParams(host, username string, v Version) *Params {
	return &Params{
		Port:           DefaultPort,
		Timeout:        DefaultTimeout,
		Retries:        DefaultRetries,
		MaxRepetitions: DefaultMaxRepetitions,
		MaxMsgSize:     DefaultMaxMsgSize,
		host:           host,
		username:       username,
		version:        v,
	}
}

// NewParamsV2c configures a community-based target.
func NewParamsV2c(host, username, community string) *Params {
	p := defaultParams(host, username, Version2c)
	p.community = community
	return p
}

// NewParamsV3 configures a USM target. Use AuthNone/PrivNone for lower
// security levels.
func NewParamsV3(host, username string, authProto AuthProtocol, authPass string, privProto PrivProtocol, privPass string) *Params {
	p := defaultParams(host, username, Version3)
	p.authProto, p.authPass = authProto, authPass
	p.privProto, p.privPass = privProto, privPass
	return p
}

func (p *Params) Host() string     { return p.host }
func (p *Params) Username() string { return p.username }
func (p *Params) Version() Version { return p.version }
func (p *Params) Address() string  { return net.JoinHostPort(p.host, strconv.Itoa(p.Port)) }

func (p *Params) Community() (string, error) {
	if p.version != Version2c {
		return "", ErrWrongVersion
	}
	return p.community, nil
}

func (p *Params) AuthProtocol() (AuthProtocol, error) {
	if p.version != Version3 {
		return AuthNone, ErrWrongVersion
	}
	return p.authProto, nil
}

func (p *Params) AuthPassword() (string, error) {
	if p.version != Version3 {
		return "", ErrWrongVersion
	}
	return p.authPass, nil
}

func (p *Params) PrivProtocol() (PrivProtocol, error) {
	if p.version != Version3 {
		return PrivNone, ErrWrongVersion
	}
	return p.privProto, nil
}

func (p *Params) PrivPassword() (string, error) {
	if p.version != Version3 {
		return "", ErrWrongVersion
	}
	return p.privPass, nil
}

// SecurityLevel is derived from the configured protocols.
func (p *Params) SecurityLevel() (SecurityLevel, error) {
	if p.version != Version3 {
		return NoAuthNoPriv, ErrWrongVersion
	}
	switch {
	case p.authProto == AuthNone:
		return NoAuthNoPriv, nil
	case p.privProto == PrivNone:
		return AuthNoPriv, nil
	}
	return AuthPriv, nil
}

// Validate checks the target before a client is built.
func (p *Params) Validate() error {
	if p.host == "" {
		return errors.New("host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("wrong port number %d, must be from 1 to 65535", p.Port)
	}
	if p.Timeout <= 0 || p.Timeout > MaxTimeout {
		return fmt.Errorf("timeout %s out of range (0, %s]", p.Timeout, MaxTimeout)
	}
	if p.Retries < 0 || p.Retries > MaxRetries {
		return fmt.Errorf("retries %d out of range [0, %d]", p.Retries, MaxRetries)
	}
	if p.MaxRepetitions < 1 || p.MaxRepetitions > MaxMaxRepetitions {
		return fmt.Errorf("max repetitions %d out of range [1, %d]", p.MaxRepetitions, MaxMaxRepetitions)
	}
	if p.MaxMsgSize < MinMaxMsgSize || p.MaxMsgSize > MaxDatagramSize {
		return fmt.Errorf("max message size %d out of range [%d, %d]", p.MaxMsgSize, MinMaxMsgSize, MaxDatagramSize)
	}

	switch p.version {
	case Version2c:
		if p.community == "" {
			return errors.New("for version 2c, snmp community is required")
		}
		return nil
	case Version3:
	default:
		return fmt.Errorf("version error: %d", int(p.version))
	}

	if p.username == "" {
		return errors.New("for version 3, USM user is required")
	}
	if _, ok := authProtocolNames[p.authProto]; !ok {
		return fmt.Errorf("unsupported auth protocol: %s", p.authProto)
	}
	if _, ok := privProtocolNames[p.privProto]; !ok {
		return fmt.Errorf("unsupported priv protocol: %s", p.privProto)
	}
	if p.privProto != PrivNone && p.authProto == AuthNone {
		return errors.New("priv protocol accepted only with auth protocol")
	}
	if p.authProto != AuthNone && len(p.authPass) < 8 {
		return errors.New("auth key too short")
	}
	if p.privProto != PrivNone && len(p.privPass) < 8 {
		return errors.New("priv key too short")
	}
	return nil
}
