// Package crypto implements the Hot Wallet Manager's signing-key-at-rest
// format: a process-level password, stretched through Argon2id, decrypts an
// AES-256-CBC blob into either a raw hex private key or an ENV:<NAME>
// indirection resolved from the process environment.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	KeySize  = 32 // AES-256 requires 32 bytes
	IVSize   = aes.BlockSize
	SaltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// legacySalt is the fixed salt used by blobs encoded in the old
// "iv:ciphertext" format (pre-dating per-blob random salts). Those blobs
// are still accepted for decryption so that existing chain rows don't need
// re-encrypting in lockstep with a deploy.
var legacySalt = []byte("cryptopay-legacy-fixed-salt-v1!!")[:SaltSize]

// DeriveKey stretches password with salt into a 32-byte AES key using
// Argon2id. Memory-hard by construction: a brute-force attacker pays the
// same memory cost as a legitimate unlock.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// pkcs7Pad / pkcs7Unpad implement the padding CBC mode requires.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, errors.New("empty plaintext")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > n {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:n-padLen], nil
}

// EncryptBlob produces the "salt:iv:ciphertext" (hex, colon-joined) format
// consumed by DecryptBlob. Used by operator tooling when onboarding a new
// chain's signing key.
func EncryptBlob(plaintext, password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := DeriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// DecryptBlob decrypts a signing-key blob in either the new
// "salt:iv:ciphertext" format or the legacy "iv:ciphertext" format (which
// implies legacySalt), then resolves an ENV:<NAME> indirection if present.
func DecryptBlob(blob, password string) (string, error) {
	parts := strings.Split(blob, ":")

	var saltHex, ivHex, ciphertextHex string
	switch len(parts) {
	case 3:
		saltHex, ivHex, ciphertextHex = parts[0], parts[1], parts[2]
	case 2:
		ivHex, ciphertextHex = parts[0], parts[1]
	default:
		return "", errors.New("malformed signing key blob")
	}

	var salt []byte
	if saltHex != "" {
		decoded, err := hex.DecodeString(saltHex)
		if err != nil {
			return "", fmt.Errorf("decode salt: %w", err)
		}
		salt = decoded
	} else {
		salt = legacySalt
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	if len(iv) != IVSize {
		return "", errors.New("invalid iv length")
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("invalid ciphertext length")
	}

	key := DeriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return "", errors.New("decryption failed: invalid password or corrupted data")
	}

	return resolveEnvIndirection(string(plaintext))
}

// resolveEnvIndirection turns a decrypted "ENV:<NAME>" payload into the
// value of the named process environment variable. Any other payload is
// returned unchanged (it's the raw hex key itself).
func resolveEnvIndirection(plaintext string) (string, error) {
	const prefix = "ENV:"
	if !strings.HasPrefix(plaintext, prefix) {
		return plaintext, nil
	}
	name := strings.TrimPrefix(plaintext, prefix)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s referenced by signing key blob is not set", name)
	}
	return value, nil
}

// SecureCompare reports whether two secrets are equal, in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
