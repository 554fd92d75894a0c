package sshkey

import (
	"bytes"
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA public keys still need a strength.
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// ErrMalformedPublicKey is returned when a public key is in none of the
// accepted encodings.
var ErrMalformedPublicKey = errors.New("malformed public key")

// InferBits returns the strength of an encoded public key. RSA reports the
// modulus length, EC the curve size and ED25519 a fixed 256.
func (c *Codec) InferBits(publicKey []byte, keyType model.KeyType) (int, error) {
	pub, err := parseCryptoPublicKey(publicKey)
	if err != nil {
		return 0, err
	}

	switch keyType {
	case model.KeyTypeRSA:
		if k, ok := pub.(*rsa.PublicKey); ok {
			return k.N.BitLen(), nil
		}
	case model.KeyTypeDSA:
		if k, ok := pub.(*dsa.PublicKey); ok {
			return k.P.BitLen(), nil
		}
	case model.KeyTypeEC:
		if k, ok := pub.(*ecdsa.PublicKey); ok {
			return k.Curve.Params().BitSize, nil
		}
	case model.KeyTypeED25519:
		if _, ok := pub.(ed25519.PublicKey); ok {
			return 256, nil
		}
	case model.KeyTypeUnknown:
		return 0, fmt.Errorf("infer strength: %w", driven.ErrUnsupportedKeyType)
	default:
		return 0, fmt.Errorf("infer strength: %w", driven.ErrUnsupportedKeyType)
	}

	return 0, fmt.Errorf("%w: want %s, got %T", driven.ErrKeyTypeMismatch, keyType, pub)
}

// Fingerprint returns the OpenSSH SHA256 fingerprint ("SHA256:...").
func (c *Codec) Fingerprint(publicKey []byte) (string, error) {
	pk, err := parseSSHPublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(pk), nil
}

// AuthorizedKey renders the key as a single authorized_keys line.
func (c *Codec) AuthorizedKey(publicKey []byte, comment string) (string, error) {
	pk, err := parseSSHPublicKey(publicKey)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pk)))
	if comment != "" {
		line += " " + comment
	}
	return line, nil
}

// ParsePublicKey returns the SSH wire encoding and algorithm of a public key.
// FIDO security-key algorithms map to the type of their underlying curve.
func (c *Codec) ParsePublicKey(encoded []byte) ([]byte, model.KeyType, error) {
	pk, err := parseSSHPublicKey(bytes.TrimSpace(encoded))
	if err != nil {
		return nil, model.KeyTypeUnknown, err
	}
	return pk.Marshal(), keyTypeOfAlgo(pk.Type()), nil
}

func keyTypeOfAlgo(algo string) model.KeyType {
	switch algo {
	case ssh.KeyAlgoRSA:
		return model.KeyTypeRSA
	case ssh.KeyAlgoDSA:
		return model.KeyTypeDSA
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521, ssh.KeyAlgoSKECDSA256:
		return model.KeyTypeEC
	case ssh.KeyAlgoED25519, ssh.KeyAlgoSKED25519:
		return model.KeyTypeED25519
	default:
		return model.KeyTypeUnknown
	}
}

// parseSSHPublicKey accepts the SSH wire format, an authorized_keys line, or
// PKIX DER (the X.509 SubjectPublicKeyInfo encoding older records carry).
func parseSSHPublicKey(b []byte) (ssh.PublicKey, error) {
	if len(b) == 0 {
		return nil, ErrMalformedPublicKey
	}
	if pk, err := ssh.ParsePublicKey(b); err == nil {
		return pk, nil
	}
	if pk, _, _, _, err := ssh.ParseAuthorizedKey(b); err == nil {
		return pk, nil
	}
	pub, err := x509.ParsePKIXPublicKey(b)
	if err != nil {
		return nil, ErrMalformedPublicKey
	}
	pk, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPublicKey, err)
	}
	return pk, nil
}

func parseCryptoPublicKey(b []byte) (crypto.PublicKey, error) {
	pk, err := parseSSHPublicKey(b)
	if err != nil {
		return nil, err
	}
	cpk, ok := pk.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", driven.ErrUnsupportedKeyType, pk.Type())
	}
	return cpk.CryptoPublicKey(), nil
}
