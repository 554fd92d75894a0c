// Package sshkey implements the key codec and public key inspection ports with
// golang.org/x/crypto/ssh. Private keys are written in the OpenSSH format,
// encrypted with bcrypt-pbkdf and aes256-ctr when a passphrase is given.
package sshkey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/ssh"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Key generation defaults and limits.
const (
	DefaultRSABits = 3072
	MinRSABits     = 2048
	MaxRSABits     = 8192
	DefaultECBits  = 256
)

// Compile-time interface satisfaction checks.
var (
	_ driven.KeyCodec     = (*Codec)(nil)
	_ driven.KeyInspector = (*Codec)(nil)
)

// Codec converts private keys between OpenSSH/PEM encodings and Handles.
type Codec struct {
	// comment is written into the OpenSSH private key envelope.
	comment string
}

// NewCodec creates a Codec that stamps comment into encoded private keys.
func NewCodec(comment string) *Codec {
	return &Codec{comment: comment}
}

// Parse decodes an OpenSSH, PKCS#1, PKCS#8 or SEC 1 PEM private key. An empty
// passphrase only decodes unencrypted keys; a non-empty one only encrypted keys.
func (c *Codec) Parse(encoded []byte, passphrase string) (model.PrivateKeyHandle, error) {
	var (
		raw any
		err error
	)
	if passphrase == "" {
		raw, err = ssh.ParseRawPrivateKey(encoded)
	} else {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(encoded, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return newHandle(raw)
}

// Decode is Parse with a check that the key is of keyType.
func (c *Codec) Decode(encoded []byte, keyType model.KeyType, passphrase string) (model.PrivateKeyHandle, error) {
	if !encodable(keyType) {
		return nil, fmt.Errorf("decode %s key: %w", keyType, driven.ErrUnsupportedKeyType)
	}

	h, err := c.Parse(encoded, passphrase)
	if err != nil {
		return nil, err
	}
	if h.KeyType() != keyType {
		got := h.KeyType()
		h.Destroy()
		return nil, fmt.Errorf("%w: want %s, got %s", driven.ErrKeyTypeMismatch, keyType, got)
	}

	return h, nil
}

// Encode writes the key in the OpenSSH format, encrypted when passphrase is
// non-empty.
func (c *Codec) Encode(handle model.PrivateKeyHandle, passphrase string) ([]byte, error) {
	key, err := keyFromHandle(handle)
	if err != nil {
		return nil, err
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(key, c.comment)
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(key, c.comment, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	encoded := pem.EncodeToMemory(block)
	memguard.WipeBytes(block.Bytes)
	return encoded, nil
}

// Generate creates a fresh key pair.
func (c *Codec) Generate(keyType model.KeyType, bits int) (model.PrivateKeyHandle, error) {
	var (
		key crypto.PrivateKey
		err error
	)

	switch keyType {
	case model.KeyTypeRSA:
		if bits == 0 {
			bits = DefaultRSABits
		}
		if bits < MinRSABits || bits > MaxRSABits {
			return nil, fmt.Errorf("%w: rsa %d outside %d-%d", driven.ErrInvalidKeySize, bits, MinRSABits, MaxRSABits)
		}
		key, err = rsa.GenerateKey(rand.Reader, bits)
	case model.KeyTypeEC:
		if bits == 0 {
			bits = DefaultECBits
		}
		curve, cerr := curveForBits(bits)
		if cerr != nil {
			return nil, cerr
		}
		key, err = ecdsa.GenerateKey(curve, rand.Reader)
	case model.KeyTypeED25519:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	case model.KeyTypeDSA, model.KeyTypeUnknown:
		return nil, fmt.Errorf("generate %s key: %w", keyType, driven.ErrUnsupportedKeyType)
	default:
		return nil, fmt.Errorf("generate %s key: %w", keyType, driven.ErrUnsupportedKeyType)
	}
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", keyType, err)
	}

	return newHandle(key)
}

// PublicKey returns the SSH wire encoding of the key's public half.
func (c *Codec) PublicKey(handle model.PrivateKeyHandle) ([]byte, error) {
	key, err := keyFromHandle(handle)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return signer.PublicKey().Marshal(), nil
}

func keyFromHandle(handle model.PrivateKeyHandle) (crypto.PrivateKey, error) {
	h, ok := handle.(*Handle)
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: foreign handle %T", driven.ErrUnsupportedKeyType, handle)
	}
	return h.privateKey()
}

func curveForBits(bits int) (elliptic.Curve, error) {
	switch bits {
	case 256:
		return elliptic.P256(), nil
	case 384:
		return elliptic.P384(), nil
	case 521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: ec %d", driven.ErrInvalidKeySize, bits)
	}
}
