package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptBlob_RoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"hex private key", "4c0483d6b37c3a3e8f7e2a4b1c9d0e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d", "correct-horse-battery-staple-32chars!"},
		{"ENV indirection", "ENV:CHAIN_BSC_SIGNING_KEY", "another-long-enough-password-value"},
		{"unicode password", "rawkeyvalue", "パスワード-with-enough-length-123456"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := EncryptBlob(tc.plaintext, tc.password)
			require.NoError(t, err)
			assert.NotEmpty(t, encrypted)
			assert.Equal(t, 2, strings.Count(encrypted, ":"), "new-format blob has salt:iv:ciphertext")

			decrypted, err := DecryptBlob(encrypted, tc.password)
			if strings.HasPrefix(tc.plaintext, "ENV:") {
				// unset env var: expect a specific error, not a decryption failure
				require.Error(t, err)
				assert.Contains(t, err.Error(), "is not set")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, decrypted)
		})
	}
}

func TestEncryptBlob_DifferentOutputsEachTime(t *testing.T) {
	password := "same-password-used-twice-here-ok"
	plaintext := "same plaintext"

	enc1, err := EncryptBlob(plaintext, password)
	require.NoError(t, err)
	enc2, err := EncryptBlob(plaintext, password)
	require.NoError(t, err)

	assert.NotEqual(t, enc1, enc2, "different random salt/iv must produce different blobs")

	dec1, err := DecryptBlob(enc1, password)
	require.NoError(t, err)
	dec2, err := DecryptBlob(enc2, password)
	require.NoError(t, err)
	assert.Equal(t, plaintext, dec1)
	assert.Equal(t, plaintext, dec2)
}

func TestDecryptBlob_WrongPassword(t *testing.T) {
	encrypted, err := EncryptBlob("secret key material", "correct-password-with-enough-length")
	require.NoError(t, err)

	_, err = DecryptBlob(encrypted, "wrong-password-also-long-enough-ok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestDecryptBlob_LegacyTwoPartFormat(t *testing.T) {
	password := "legacy-blob-password-with-enough-len"
	plaintext := "legacy raw key material"

	legacyBlob := encryptWithSalt(t, plaintext, password, legacySalt)
	parts := strings.Split(legacyBlob, ":")
	require.Len(t, parts, 3)

	// Drop the salt segment to produce the old "iv:ciphertext" shape.
	twoPart := parts[1] + ":" + parts[2]

	decrypted, err := DecryptBlob(twoPart, password)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// encryptWithSalt mirrors EncryptBlob but with a caller-supplied salt, so
// tests can build a blob against a known (e.g. legacy) salt.
func encryptWithSalt(t *testing.T, plaintext, password string, salt []byte) string {
	t.Helper()

	key := DeriveKey(password, salt)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	iv := make([]byte, IVSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
	}, ":")
}

func TestDecryptBlob_MalformedInput(t *testing.T) {
	testCases := []struct {
		name string
		blob string
	}{
		{"no colons", "notavalidblob"},
		{"too many parts", "a:b:c:d"},
		{"bad hex salt", "zz:00112233445566778899aabbccddeeff:00112233445566778899aabbccddeeff"},
		{"empty", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecryptBlob(tc.blob, "any-password-long-enough-for-this")
			assert.Error(t, err)
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	password := "mypassword"
	salt := []byte("1234567890123456")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)

	key3 := DeriveKey(password, []byte("9876543210987654"))
	assert.NotEqual(t, key1, key3)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("abc", "abc"))
	assert.False(t, SecureCompare("abc", "abd"))
	assert.False(t, SecureCompare("abc", "abcd"))
}
