package settings

import (
	"os"
	"sync"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// MsgNoServiceAccount prefixes the error returned when no key is known for a project.
const MsgNoServiceAccount = "No service account configured for project"

// CredentialCache maps project IDs to service account JSON keys. Last write wins.
type CredentialCache struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewCredentialCache creates an empty cache.
func NewCredentialCache() *CredentialCache {
	return &CredentialCache{keys: make(map[string][]byte)}
}

// Put stores key for projectID.
func (c *CredentialCache) Put(projectID string, key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[projectID] = append([]byte(nil), key...)
}

// Get returns the key for projectID.
func (c *CredentialCache) Get(projectID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[projectID]
	return key, ok
}

// Delete forgets projectID.
func (c *CredentialCache) Delete(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, projectID)
}

// Credentials resolves service account keys for Admin SDK sessions.
type Credentials struct {
	cache      *CredentialCache
	defaultDir string
}

// NewCredentials creates a resolver that falls back to keys stored in defaultDir.
func NewCredentials(cache *CredentialCache, defaultDir string) *Credentials {
	return &Credentials{cache: cache, defaultDir: defaultDir}
}

// Has reports whether a key is known for projectID.
func (c *Credentials) Has(dir, projectID string) bool {
	_, err := c.Lookup(dir, projectID)
	return err == nil
}

// Lookup returns the key for projectID, reading <dir>/.gfm/<projectID>.json when the cache
// has none. dir may be empty.
func (c *Credentials) Lookup(dir, projectID string) ([]byte, error) {
	if projectID == "" {
		return nil, apperrors.Precondition("projectId is required")
	}
	if key, ok := c.cache.Get(projectID); ok {
		return key, nil
	}
	for _, d := range []string{dir, c.defaultDir} {
		if d == "" {
			continue
		}
		key, err := os.ReadFile(KeyPath(d, projectID))
		if err != nil {
			continue
		}
		if _, err := ParseKey(key); err != nil {
			continue
		}
		c.cache.Put(projectID, key)
		return key, nil
	}
	return nil, apperrors.Preconditionf("%s %s", MsgNoServiceAccount, projectID)
}
