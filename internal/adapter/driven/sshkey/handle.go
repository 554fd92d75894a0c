package sshkey

import (
	"bytes"
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA keys are recognized so they can be rejected by type.
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/ssh"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ model.PrivateKeyHandle = (*Handle)(nil)

// Handle is a decoded private key. The key is held as an unencrypted OpenSSH
// encoding inside a memguard locked buffer (mlocked, guard-paged) and is only
// parsed into a crypto.PrivateKey for the duration of a single operation.
type Handle struct {
	keyType model.KeyType

	mu     sync.Mutex
	locked *memguard.LockedBuffer
	// plain is used only when the locked buffer could not be allocated, e.g.
	// when RLIMIT_MEMLOCK is exhausted.
	plain     []byte
	destroyed bool
}

// newHandle takes a parsed private key and moves it into protected memory.
func newHandle(key crypto.PrivateKey) (*Handle, error) {
	key = normalizeKey(key)
	keyType := keyTypeOf(key)
	if !encodable(keyType) {
		return nil, fmt.Errorf("%w: %s", driven.ErrUnsupportedKeyType, keyType)
	}

	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	encoded := pem.EncodeToMemory(block)
	memguard.WipeBytes(block.Bytes)
	defer memguard.WipeBytes(encoded)

	h := &Handle{keyType: keyType}
	buf := memguard.NewBuffer(len(encoded))
	if buf.Size() == len(encoded) {
		buf.Copy(encoded)
		h.locked = buf
	} else {
		h.plain = bytes.Clone(encoded)
	}

	return h, nil
}

// KeyType returns the algorithm of the decoded key.
func (h *Handle) KeyType() model.KeyType { return h.keyType }

// Destroy wipes the key material. It is safe to call more than once.
func (h *Handle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return
	}
	h.destroyed = true
	if h.locked != nil {
		h.locked.Destroy()
		h.locked = nil
	}
	if h.plain != nil {
		memguard.WipeBytes(h.plain)
		h.plain = nil
	}
}

// Destroyed reports whether Destroy has been called.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Signer returns an ssh.Signer for the key. The signer holds its own copy of
// the key and is not invalidated by Destroy.
func (h *Handle) Signer() (ssh.Signer, error) {
	key, err := h.privateKey()
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return signer, nil
}

// privateKey parses the protected encoding into a usable key.
func (h *Handle) privateKey() (crypto.PrivateKey, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return nil, driven.ErrHandleDestroyed
	}

	encoded := h.plain
	if h.locked != nil {
		encoded = h.locked.Bytes()
	}

	key, err := ssh.ParseRawPrivateKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse protected key: %w", err)
	}
	return normalizeKey(key), nil
}

// normalizeKey converts the pointer form of ed25519 keys returned by the
// OpenSSH parser into the value form the marshaler expects.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if k, ok := key.(*ed25519.PrivateKey); ok && k != nil {
		return *k
	}
	return key
}

func keyTypeOf(key crypto.PrivateKey) model.KeyType {
	switch key.(type) {
	case *rsa.PrivateKey:
		return model.KeyTypeRSA
	case *ecdsa.PrivateKey:
		return model.KeyTypeEC
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return model.KeyTypeED25519
	case *dsa.PrivateKey:
		return model.KeyTypeDSA
	default:
		return model.KeyTypeUnknown
	}
}

// encodable reports whether x/crypto/ssh can write keys of type t in the
// OpenSSH format. DSA can be parsed but not written, so it is rejected.
func encodable(t model.KeyType) bool {
	switch t {
	case model.KeyTypeRSA, model.KeyTypeEC, model.KeyTypeED25519:
		return true
	case model.KeyTypeDSA, model.KeyTypeUnknown:
		return false
	default:
		return false
	}
}
