// Package login implements the credential core: username hashing, the kit
// merge engine, the per-factor protocols (password, pin2, recovery2, otp,
// secret key, wallet keys), account creation, and voucher approval. All
// operations go through a Core, which owns the AuthClient, the stash
// repository, and the username-hash cache.
package login

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/cryptox"
	"golang.org/x/sync/singleflight"
)

// asciiSpace reports the whitespace bytes that normalization collapses. Only
// ASCII whitespace counts; Unicode spaces like U+00A0 must survive collapsing
// so the byte check below can reject them.
func asciiSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// FixUsername normalizes a username: lower-case, runs of ASCII whitespace
// collapsed to a single space, leading/trailing space trimmed. Usernames
// containing any byte outside printable ASCII (0x20-0x7E), and empty
// usernames, are rejected with common.ErrInvalidUsername. Normalization is
// idempotent.
func FixUsername(username string) (string, error) {
	fixed := strings.ToLower(strings.Join(strings.FieldsFunc(username, asciiSpace), " "))
	if fixed == "" {
		return "", fmt.Errorf("%w: empty username", common.ErrInvalidUsername)
	}
	for i := 0; i < len(fixed); i++ {
		if fixed[i] < 0x20 || fixed[i] > 0x7e {
			return "", fmt.Errorf("%w: unprintable byte 0x%02x", common.ErrInvalidUsername, fixed[i])
		}
	}
	return fixed, nil
}

// stretchFunc matches cryptox.Stretch; tests substitute a counting stub.
type stretchFunc func(ctx context.Context, data []byte, snrp cryptox.SNRP) ([]byte, error)

// HashCache memoizes username -> userId derivations for the lifetime of one
// Core. Entries are appended, never evicted. Concurrent calls for the same
// name share a single stretch via singleflight.
type HashCache struct {
	stretch stretchFunc

	group singleflight.Group

	mu  sync.RWMutex
	ids map[string][]byte
}

// NewHashCache builds an empty cache backed by the real scrypt stretch.
func NewHashCache() *HashCache {
	return &HashCache{stretch: cryptox.Stretch, ids: make(map[string][]byte)}
}

// HashUsername normalizes username and derives its deterministic pseudonymous
// userId under the fixed user-id SNRP, consulting the cache first.
func (c *HashCache) HashUsername(ctx context.Context, username string) ([]byte, error) {
	fixed, err := FixUsername(username)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	id, ok := c.ids[fixed]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := c.group.Do(fixed, func() (any, error) {
		c.mu.RLock()
		id, ok := c.ids[fixed]
		c.mu.RUnlock()
		if ok {
			return id, nil
		}

		id, err := c.stretch(ctx, []byte(fixed), cryptox.UserIDSNRP())
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.ids[fixed] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
