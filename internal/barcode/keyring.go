package barcode

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"healthcert/pkg/platform/sentinel"
)

// Keyring resolves signing key identifiers. Key material itself stays behind
// the Signer; the pipeline only needs identifiers for payload metadata.
type Keyring interface {
	// GetKeyByTag resolves the key pinned to a PKI country tag.
	GetKeyByTag(ctx context.Context, tag string) (string, error)
	// GetRandomKey picks any key from the active ring.
	GetRandomKey(ctx context.Context) (string, error)
}

// MemoryKeyring is an in-process key ring, used in tests and single-node
// deployments.
type MemoryKeyring struct {
	mu     sync.RWMutex
	byTag  map[string]string
	keyIDs []string
}

// NewMemoryKeyring builds a ring from tag->keyID entries.
func NewMemoryKeyring(byTag map[string]string) *MemoryKeyring {
	ring := &MemoryKeyring{byTag: make(map[string]string, len(byTag))}
	for tag, keyID := range byTag {
		ring.byTag[tag] = keyID
		ring.keyIDs = append(ring.keyIDs, keyID)
	}
	return ring
}

func (k *MemoryKeyring) GetKeyByTag(_ context.Context, tag string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keyID, ok := k.byTag[tag]
	if !ok {
		return "", fmt.Errorf("key for tag %q: %w", tag, sentinel.ErrNotFound)
	}
	return keyID, nil
}

func (k *MemoryKeyring) GetRandomKey(_ context.Context) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.keyIDs) == 0 {
		return "", fmt.Errorf("key ring is empty: %w", sentinel.ErrNotFound)
	}
	return k.keyIDs[rand.Intn(len(k.keyIDs))], nil
}
