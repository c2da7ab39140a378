package transform

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32

	// bounds accepted from a stream header
	maxArgon2Memory     = 1024 * 1024 // 1GiB in KiB
	maxArgon2Iterations = 64
	maxKeyCacheEntries  = 32
)

// Argon2Params defines the parameters for Argon2id key derivation.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params returns the parameters written into new streams.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      19 * 1024,
		Iterations:  2,
		Parallelism: 1,
	}
}

func (p Argon2Params) validate() error {
	if p.Memory == 0 || p.Memory > maxArgon2Memory {
		return fmt.Errorf("argon2 memory %d KiB out of range", p.Memory)
	}
	if p.Iterations == 0 || p.Iterations > maxArgon2Iterations {
		return fmt.Errorf("argon2 iterations %d out of range", p.Iterations)
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("argon2 parallelism must be positive")
	}
	return nil
}

// keyCache remembers derived keys so repeated reads of the same stream do not
// pay for Argon2 each time. Entries are addressed by a digest of the inputs.
type keyCache struct {
	mu   sync.Mutex
	keys map[[sha256.Size]byte][]byte
}

func newKeyCache() *keyCache {
	return &keyCache{keys: make(map[[sha256.Size]byte][]byte)}
}

func (c *keyCache) derive(password string, salt []byte, p Argon2Params) []byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	var params [9]byte
	binary.LittleEndian.PutUint32(params[0:4], p.Memory)
	binary.LittleEndian.PutUint32(params[4:8], p.Iterations)
	params[8] = p.Parallelism
	h.Write(params[:])
	var id [sha256.Size]byte
	copy(id[:], h.Sum(nil))

	c.mu.Lock()
	key, ok := c.keys[id]
	c.mu.Unlock()
	if ok {
		return key
	}

	key = argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, keyLength)

	c.mu.Lock()
	if len(c.keys) >= maxKeyCacheEntries {
		c.keys = make(map[[sha256.Size]byte][]byte)
	}
	c.keys[id] = key
	c.mu.Unlock()
	return key
}
