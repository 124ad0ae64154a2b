package vault

import "sync"

// MasterKeySize is the length of the AES-256 master key
const MasterKeySize = 32

// MasterKey is the symmetric key that seals stored secrets. Its memory is
// locked against swapping where the platform allows; Destroy zeroes it.
type MasterKey struct {
	mu     sync.Mutex
	b      []byte
	locked bool
}

func newMasterKey(b []byte) *MasterKey {
	k := &MasterKey{b: b}
	k.locked = lockMemory(b) == nil
	return k
}

// bytes returns the raw key, or nil once destroyed
func (k *MasterKey) bytes() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.b
}

// Destroy zeroes the key. The key is unusable afterwards.
func (k *MasterKey) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.b == nil {
		return
	}
	zero(k.b)
	if k.locked {
		_ = unlockMemory(k.b)
	}
	k.b = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
