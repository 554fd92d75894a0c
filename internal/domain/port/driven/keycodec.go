// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"errors"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
)

// Sentinel errors returned by KeyCodec implementations.
var (
	// ErrUnsupportedKeyType indicates the codec cannot handle the algorithm.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrKeyTypeMismatch indicates the decoded key is not of the expected type.
	ErrKeyTypeMismatch = errors.New("key type mismatch")

	// ErrInvalidKeySize indicates a key size the algorithm does not allow.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrHandleDestroyed indicates a decoded key was used after Destroy.
	ErrHandleDestroyed = errors.New("private key handle destroyed")
)

// KeyCodec converts private keys between their encoded, optionally
// passphrase-protected form and decoded handles. An empty passphrase means the
// encoded form is not encrypted.
type KeyCodec interface {
	// Parse decodes a private key of any supported type.
	Parse(encoded []byte, passphrase string) (model.PrivateKeyHandle, error)

	// Decode decodes a private key and fails with ErrKeyTypeMismatch when it is
	// not of keyType. A wrong passphrase or corrupt input is an error.
	Decode(encoded []byte, keyType model.KeyType, passphrase string) (model.PrivateKeyHandle, error)

	// Encode serializes a decoded key, encrypting it when passphrase is non-empty.
	Encode(handle model.PrivateKeyHandle, passphrase string) ([]byte, error)

	// Generate creates a new key pair. bits is ignored for ED25519 and a zero
	// value selects the algorithm default.
	Generate(keyType model.KeyType, bits int) (model.PrivateKeyHandle, error)

	// PublicKey returns the encoded public half of a decoded key.
	PublicKey(handle model.PrivateKeyHandle) ([]byte, error)
}

// KeyInspector derives display information from encoded public keys.
type KeyInspector interface {
	model.StrengthInferrer

	// Fingerprint returns the SHA256 fingerprint of an encoded public key.
	Fingerprint(publicKey []byte) (string, error)

	// AuthorizedKey renders an encoded public key as an authorized_keys line.
	AuthorizedKey(publicKey []byte, comment string) (string, error)

	// ParsePublicKey accepts a public key in any supported text or binary
	// encoding and returns its canonical encoding and algorithm.
	ParsePublicKey(encoded []byte) ([]byte, model.KeyType, error)
}
