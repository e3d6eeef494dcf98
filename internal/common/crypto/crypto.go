// Package crypto 提供收款账户等敏感字段的加密与脱敏
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// 预定义错误
var (
	ErrInvalidKeySize   = errors.New("invalid key size: must be 16, 24, or 32 bytes")
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// AES AES-GCM 加密器，密文为 base64(nonce || sealed)
type AES struct {
	aead cipher.AEAD
}

// NewAES 创建加密器
// key 长度必须是 16（AES-128）、24（AES-192）或 32（AES-256）字节
func NewAES(key string) (*AES, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AES{aead: aead}, nil
}

// Encrypt 加密，空串原样返回
func (a *AES) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := a.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密，密钥不匹配或密文被篡改返回 ErrDecryptionFailed
func (a *AES) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	nonceSize := a.aead.NonceSize()
	if len(data) < nonceSize+a.aead.Overhead() {
		return "", ErrCiphertextShort
	}

	plain, err := a.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// MaskAccount 收款账户脱敏，保留首尾各 keep 个字符
func MaskAccount(account string, keep int) string {
	n := utf8.RuneCountInString(account)
	if keep <= 0 || n <= keep*2 {
		return strings.Repeat("*", n)
	}
	runes := []rune(account)
	return string(runes[:keep]) + "****" + string(runes[n-keep:])
}

