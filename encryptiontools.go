// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"errors"
	"fmt"
)

// padToBlock pads src with zero octets up to a multiple of blockSize. The
// scoped PDU carries its own length, so the receiver never strips padding.
func padToBlock(src []byte, blockSize int) []byte {
	if rem := len(src) % blockSize; rem != 0 {
		return append(src, make([]byte, blockSize-rem)...)
	}
	return src
}

// encryptAESCFB encrypts with AES-CFB128 (RFC 3826). key is 16, 24 or 32
// octets.
func encryptAESCFB(src, key, iv []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("source data length error")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("IV length error")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(dst, src)
	return dst, nil
}

func decryptAESCFB(src, key, iv []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("source data length error")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("IV length error")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(dst, src)
	return dst, nil
}

// encryptDES encrypts with DES-CBC (RFC 3414 §8), padding src to 8 octets.
func encryptDES(src, key, iv []byte) ([]byte, error) {
	if len(iv) != des.BlockSize {
		return nil, errors.New("IV length error")
	}
	if len(src) == 0 {
		return nil, errors.New("source data length error")
	}
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := padToBlock(copyBytes(src), des.BlockSize)
	dst := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(dst, padded)
	return dst, nil
}

func decryptDES(src, key, iv []byte) ([]byte, error) {
	if len(iv) != des.BlockSize {
		return nil, errors.New("IV length error")
	}
	if len(src) == 0 || len(src)%des.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext of %d octets is not a multiple of %d", len(src), des.BlockSize)
	}
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(dst, src)
	return dst, nil
}

// desIV is the pre-IV (second half of the 16 octet DES key material)
// XORed with the salt.
func desIV(privKey, salt []byte) []byte {
	iv := make([]byte, des.BlockSize)
	for i := range iv {
		iv[i] = privKey[8+i] ^ salt[i]
	}
	return iv
}

// aesIV is boots || time || salt (RFC 3826 §3.1.2.1).
func aesIV(boots, engineTime uint32, salt []byte) []byte {
	iv := make([]byte, 0, aes.BlockSize)
	iv = binary.BigEndian.AppendUint32(iv, boots)
	iv = binary.BigEndian.AppendUint32(iv, engineTime)
	return append(iv, salt...)
}

// encryptScopedPDU encrypts a serialized scoped PDU and returns the
// ciphertext with the msgPrivacyParameters to send. salt is a per-message
// local counter value.
func encryptScopedPDU(priv PrivProtocol, privKey, plain []byte, boots, engineTime uint32, salt uint64) ([]byte, []byte, error) {
	switch priv {
	case PrivDES:
		if len(privKey) < 16 {
			return nil, nil, errors.New("DES needs 16 octets of localized key")
		}
		params := binary.BigEndian.AppendUint32(nil, boots)
		params = binary.BigEndian.AppendUint32(params, uint32(salt))
		ct, err := encryptDES(plain, privKey[:8], desIV(privKey, params))
		return ct, params, err
	case PrivAES, PrivAES192, PrivAES256, PrivAES192A, PrivAES256A:
		params := binary.BigEndian.AppendUint64(nil, salt)
		ct, err := encryptAESCFB(plain, privKey, aesIV(boots, engineTime, params))
		return ct, params, err
	}
	return nil, nil, fmt.Errorf("privacy flag set with protocol %s", priv)
}

// decryptScopedPDU reverses encryptScopedPDU using the boots and time carried
// in the received message.
func decryptScopedPDU(priv PrivProtocol, privKey, ciphertext, privParams []byte, boots, engineTime uint32) ([]byte, error) {
	if len(privParams) != 8 {
		return nil, fmt.Errorf("msgPrivacyParameters of %d octets, want 8", len(privParams))
	}
	switch priv {
	case PrivDES:
		if len(privKey) < 16 {
			return nil, errors.New("DES needs 16 octets of localized key")
		}
		return decryptDES(ciphertext, privKey[:8], desIV(privKey, privParams))
	case PrivAES, PrivAES192, PrivAES256, PrivAES192A, PrivAES256A:
		return decryptAESCFB(ciphertext, privKey, aesIV(boots, engineTime, privParams))
	}
	return nil, fmt.Errorf("privacy flag set with protocol %s", priv)
}
