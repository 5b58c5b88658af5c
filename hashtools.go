// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"hash"

	ASNber "github.com/OlegPowerC/asn1modsnmp"
)

// passwordExpansion is the number of password octets hashed into Ku
// (RFC 3414 A.2.1).
const passwordExpansion = 1048576

func (p AuthProtocol) newHash() func() hash.Hash {
	switch p {
	case AuthMD5:
		return md5.New
	case AuthSHA224:
		return sha256.New224
	case AuthSHA256:
		return sha256.New
	case AuthSHA384:
		return sha512.New384
	case AuthSHA512:
		return sha512.New
	}
	return sha1.New
}

// DigestLength is the truncated HMAC length carried in
// msgAuthenticationParameters (RFC 3414, RFC 7860).
func (p AuthProtocol) DigestLength() int {
	switch p {
	case AuthSHA224:
		return 16
	case AuthSHA256:
		return 24
	case AuthSHA384:
		return 32
	case AuthSHA512:
		return 48
	case AuthNone:
		return 0
	}
	return 12
}

// passwordToKey expands password to 1 MiB in 64-octet chunks and hashes it.
func passwordToKey(password []byte, proto AuthProtocol) []byte {
	h := proto.newHash()()
	if len(password) == 0 {
		return h.Sum(nil)
	}
	buf := make([]byte, 64)
	idx := 0
	for count := 0; count < passwordExpansion; count += len(buf) {
		for i := range buf {
			buf[i] = password[idx%len(password)]
			idx++
		}
		h.Write(buf)
	}
	return h.Sum(nil)
}

// localizeKey binds ku to one authoritative engine: H(ku || engineID || ku).
func localizeKey(ku, engineID []byte, proto AuthProtocol) []byte {
	h := proto.newHash()()
	h.Write(ku)
	h.Write(engineID)
	h.Write(ku)
	return h.Sum(nil)
}

func makeLocalizedKeyFromBytes(password, engineID []byte, proto AuthProtocol) []byte {
	return localizeKey(passwordToKey(password, proto), engineID, proto)
}

// makeLocalizedKey derives the localized authentication key Kul.
func makeLocalizedKey(password string, engineID []byte, proto AuthProtocol) []byte {
	return makeLocalizedKeyFromBytes([]byte(password), engineID, proto)
}

// makePrivKey derives the privacy key material for priv: DES gets 16 octets
// (key and pre-IV), AES variants get exactly their key length.
func makePrivKey(password string, engineID []byte, auth AuthProtocol, priv PrivProtocol) []byte {
	kul := makeLocalizedKey(password, engineID, auth)
	if priv == PrivDES {
		return kul[:16]
	}
	return expandPrivKey(kul, priv, auth, engineID)
}

// expandPrivKey sizes a localized key for the AES key length of priv.
//
// AES-192/256 keys longer than the digest are extended by localizing the
// key once more and appending the head of the result. The "A" variants
// (AGENT++, Huawei) append H(K1) instead.
func expandPrivKey(kul []byte, priv PrivProtocol, auth AuthProtocol, engineID []byte) []byte {
	need := priv.KeyLength()
	if len(kul) >= need {
		return kul[:need]
	}
	out := make([]byte, need)
	copy(out, kul)
	var ext []byte
	switch priv {
	case PrivAES192A, PrivAES256A:
		h := auth.newHash()()
		h.Write(kul)
		ext = h.Sum(nil)
	default:
		ext = makeLocalizedKeyFromBytes(kul, engineID, auth)
	}
	copy(out[len(kul):], ext)
	return out
}

// makeDigest computes the truncated HMAC of msg.
func makeDigest(msg, key []byte, proto AuthProtocol) []byte {
	mac := hmac.New(proto.newHash(), key)
	mac.Write(msg)
	return mac.Sum(nil)[:proto.DigestLength()]
}

// verifyDigest recomputes the digest of packet with msgAuthenticationParameters
// zeroed and compares it in constant time with the received one.
func verifyDigest(packet, key []byte, proto AuthProtocol) (bool, error) {
	offset, n, err := ASNber.FindSNMPv3AuthParamsOffset(packet)
	if err != nil {
		return false, err
	}
	if offset == 0 || offset+n > len(packet) {
		return false, errors.New("authentication parameters not found")
	}
	if n != proto.DigestLength() {
		return false, nil
	}
	received := packet[offset : offset+n]
	zeroed := copyBytes(packet)
	clear(zeroed[offset : offset+n])
	return hmac.Equal(makeDigest(zeroed, key, proto), received), nil
}
