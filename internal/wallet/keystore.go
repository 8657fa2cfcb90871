package wallet

import (
	"fmt"
	"sync"

	"cryptopay/internal/crypto"
	"cryptopay/internal/database"
)

// Keystore holds decrypted chain signing keys in memory, indexed by chain
// slug. Keys never touch disk or a log line once decrypted.
type Keystore struct {
	mu       sync.RWMutex
	keys     map[string]string // chain slug -> raw hex private key
	password string
}

// NewKeystore creates an empty keystore that decrypts blobs with password.
// password is the process-level key-derivation secret (>=32 chars).
func NewKeystore(password string) *Keystore {
	return &Keystore{keys: make(map[string]string), password: password}
}

// Refresh decrypts every active chain's signing-key blob and replaces the
// in-memory key table atomically. Call at startup and on a config reload.
func (k *Keystore) Refresh(chains []*database.Chain) error {
	decrypted := make(map[string]string, len(chains))

	for _, chain := range chains {
		if chain.EncryptedKeyBlob == "" {
			continue
		}

		key, err := crypto.DecryptBlob(chain.EncryptedKeyBlob, k.password)
		if err != nil {
			return fmt.Errorf("wallet: failed to decrypt signing key for chain %s: %w", chain.Slug, err)
		}

		decrypted[chain.Slug] = key
	}

	k.mu.Lock()
	k.keys = decrypted
	k.mu.Unlock()

	return nil
}

// Key returns the decrypted signing key for a chain slug.
func (k *Keystore) Key(chainSlug string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	key, ok := k.keys[chainSlug]
	if !ok {
		return "", fmt.Errorf("wallet: no signing key loaded for chain %s", chainSlug)
	}

	return key, nil
}
