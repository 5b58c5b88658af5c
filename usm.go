// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// AuthProtocol selects the USM authentication digest.
type AuthProtocol int

const (
	AuthNone AuthProtocol = iota
	AuthMD5
	AuthSHA
	AuthSHA224
	AuthSHA256
	AuthSHA384
	AuthSHA512
)

var authProtocolNames = map[AuthProtocol]string{
	AuthNone:   "none",
	AuthMD5:    "md5",
	AuthSHA:    "sha",
	AuthSHA224: "sha224",
	AuthSHA256: "sha256",
	AuthSHA384: "sha384",
	AuthSHA512: "sha512",
}

func (p AuthProtocol) String() string {
	if s, ok := authProtocolNames[p]; ok {
		return s
	}
	return fmt.Sprintf("auth(%d)", int(p))
}

// ParseAuthProtocol accepts the names used in configuration files: "md5",
// "sha", "sha224", "sha256", "sha384", "sha512"; "" and "none" mean no
// authentication. Case and surrounding space are ignored.
func ParseAuthProtocol(s string) (AuthProtocol, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return AuthNone, nil
	case "sha1":
		return AuthSHA, nil
	}
	for p, name := range authProtocolNames {
		if name == s {
			return p, nil
		}
	}
	return AuthNone, fmt.Errorf("unsupported auth protocol: %s", s)
}

// PrivProtocol selects the USM privacy cipher.
type PrivProtocol int

const (
	PrivNone PrivProtocol = iota
	PrivDES
	PrivAES
	PrivAES192
	PrivAES256
	// AES key extension by K1||H(K1), as AGENT++ and Huawei agents do it.
	PrivAES192A
	PrivAES256A
)

var privProtocolNames = map[PrivProtocol]string{
	PrivNone:    "none",
	PrivDES:     "des",
	PrivAES:     "aes",
	PrivAES192:  "aes192",
	PrivAES256:  "aes256",
	PrivAES192A: "aes192a",
	PrivAES256A: "aes256a",
}

func (p PrivProtocol) String() string {
	if s, ok := privProtocolNames[p]; ok {
		return s
	}
	return fmt.Sprintf("priv(%d)", int(p))
}

// KeyLength is the cipher key length in octets.
func (p PrivProtocol) KeyLength() int {
	switch p {
	case PrivDES:
		return 8
	case PrivAES192, PrivAES192A:
		return 24
	case PrivAES256, PrivAES256A:
		return 32
	case PrivNone:
		return 0
	}
	return 16
}

// ParsePrivProtocol accepts "des", "aes" (also "aes128"), "aes192", "aes256",
// "aes192a", "aes256a"; "" and "none" mean no privacy.
func ParsePrivProtocol(s string) (PrivProtocol, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return PrivNone, nil
	case "aes128":
		return PrivAES, nil
	}
	for p, name := range privProtocolNames {
		if name == s {
			return p, nil
		}
	}
	return PrivNone, fmt.Errorf("unsupported priv protocol: %s", s)
}

// SecurityLevel is derived from the configured protocols.
type SecurityLevel int

const (
	NoAuthNoPriv SecurityLevel = iota
	AuthNoPriv
	AuthPriv
)

func (l SecurityLevel) String() string {
	switch l {
	case AuthNoPriv:
		return "authNoPriv"
	case AuthPriv:
		return "authPriv"
	}
	return "noAuthNoPriv"
}

func (l SecurityLevel) flags() byte {
	switch l {
	case AuthNoPriv:
		return msgFlagAuth
	case AuthPriv:
		return msgFlagAuth | msgFlagPriv
	}
	return 0
}

// usmKeys are the localized keys of one user at one authoritative engine.
type usmKeys struct {
	auth    AuthProtocol
	authKey []byte
	priv    PrivProtocol
	privKey []byte
}

func localizeKeys(engineID []byte, auth AuthProtocol, authPass string, priv PrivProtocol, privPass string) usmKeys {
	k := usmKeys{auth: auth, priv: priv}
	if auth != AuthNone {
		k.authKey = makeLocalizedKey(authPass, engineID, auth)
	}
	if priv != PrivNone {
		k.privKey = makePrivKey(privPass, engineID, auth, priv)
	}
	return k
}

// sealV3 applies privacy and authentication to m according to its flags and
// serializes it. The digest is computed with zeroed authentication
// parameters and the message is then serialized again with the digest in
// place.
func sealV3(m *MessageV3, keys usmKeys, salt uint64) ([]byte, error) {
	m.Security.AuthParams = nil
	m.Security.PrivParams = nil
	m.Encrypted = nil
	if m.private() {
		plain, err := encodeScopedPDU(m.ContextEngineID, m.ContextName, m.PDU)
		if err != nil {
			return nil, err
		}
		ct, params, err := encryptScopedPDU(keys.priv, keys.privKey, plain, m.Security.EngineBoots, m.Security.EngineTime, salt)
		if err != nil {
			return nil, encodeErr("encrypted scoped PDU", err)
		}
		m.Encrypted = ct
		m.Security.PrivParams = params
	}
	if !m.authenticated() {
		return encodeV3(m)
	}
	m.Security.AuthParams = make([]byte, keys.auth.DigestLength())
	out, err := encodeV3(m)
	if err != nil {
		return nil, err
	}
	m.Security.AuthParams = makeDigest(out, keys.authKey, keys.auth)
	return encodeV3(m)
}

// openV3 verifies the digest of packet and decrypts m in place.
func openV3(packet []byte, m *MessageV3, keys usmKeys) error {
	if m.authenticated() {
		if keys.auth == AuthNone {
			return &SecurityError{Kind: SecUnsupportedSecLevel, Err: errors.New("authenticated message for a user without authentication")}
		}
		ok, err := verifyDigest(packet, keys.authKey, keys.auth)
		if err != nil {
			return &SecurityError{Kind: SecWrongDigest, Err: err}
		}
		if !ok {
			return &SecurityError{Kind: SecWrongDigest}
		}
	}
	if !m.private() {
		return nil
	}
	if keys.priv == PrivNone {
		return &SecurityError{Kind: SecUnsupportedSecLevel, Err: errors.New("encrypted message for a user without privacy")}
	}
	plain, err := decryptScopedPDU(keys.priv, keys.privKey, m.Encrypted, m.Security.PrivParams, m.Security.EngineBoots, m.Security.EngineTime)
	if err != nil {
		return &SecurityError{Kind: SecDecryptionError, Err: err}
	}
	if err := decodeScopedPDU(plain, m); err != nil {
		return &SecurityError{Kind: SecDecryptionError, Err: err}
	}
	m.Encrypted = nil
	return nil
}

var reportKinds = []struct {
	oid  OID
	kind SecurityErrorKind
}{
	{oidUsmStatsUnsupportedSecLevels, SecUnsupportedSecLevel},
	{oidUsmStatsNotInTimeWindows, SecNotInTimeWindow},
	{oidUsmStatsUnknownUserNames, SecUnknownUserName},
	{oidUsmStatsUnknownEngineIDs, SecUnknownEngineID},
	{oidUsmStatsWrongDigests, SecWrongDigest},
	{oidUsmStatsDecryptionErrors, SecDecryptionError},
	{oidSnmpUnknownContexts, SecUnknownContext},
}

// classifyReport maps the first var-bind of a REPORT to a SecurityErrorKind.
func classifyReport(p ProtocolDataUnit) (SecurityErrorKind, bool) {
	vbs := p.Bindings()
	if len(vbs) == 0 {
		return 0, false
	}
	for _, r := range reportKinds {
		if vbs[0].Name.Equal(r.oid) {
			return r.kind, true
		}
	}
	return 0, false
}

// reportError converts a REPORT PDU into the error returned to the caller.
func reportError(p ProtocolDataUnit) error {
	kind, ok := classifyReport(p)
	if !ok {
		name := "empty report"
		if vbs := p.Bindings(); len(vbs) > 0 {
			name = "report " + vbs[0].Name.String()
		}
		return protocolViolationf("unexpected %s", name)
	}
	return &SecurityError{Kind: kind, Reported: true}
}

// LocalEngine is the SNMP engine of this process. It is authoritative for
// traps sent by a ClientV3 and for informs received by ParseNotification.
type LocalEngine struct {
	id      []byte
	boots   uint32
	started time.Time

	unknownEngineIDs atomic.Uint32
}

// NewLocalEngine uses id as the snmpEngineID, or generates an RFC 3411
// format 5 ID from a random UUID when id is empty.
func NewLocalEngine(id []byte) *LocalEngine {
	if len(id) == 0 {
		u := uuid.New()
		// enterprise 0 с установленным старшим битом, формат 5 (octets)
		id = append([]byte{0x80, 0x00, 0x00, 0x00, 0x05}, u[:]...)
	}
	return &LocalEngine{id: copyBytes(id), boots: 1, started: time.Now()}
}

func (e *LocalEngine) ID() []byte    { return copyBytes(e.id) }
func (e *LocalEngine) Boots() uint32 { return e.boots }

// Time is snmpEngineTime: seconds since the engine was created.
func (e *LocalEngine) Time() uint32 {
	return uint32(min(int64(time.Since(e.started)/time.Second), math.MaxInt32))
}

// inTimeWindow checks a message for which this engine is authoritative
// (RFC 3414 §3.2 step 7a).
func (e *LocalEngine) inTimeWindow(boots, engineTime uint32) bool {
	if boots != e.boots || boots == math.MaxInt32 {
		return false
	}
	d := int64(engineTime) - int64(e.Time())
	return d <= timeWindowSeconds && d >= -timeWindowSeconds
}
