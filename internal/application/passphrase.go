package application

import (
	"errors"
	"fmt"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Errors returned by RotatePassphrase. All of them leave the key unchanged.
var (
	// ErrDecodeFailed means the stored private key could not be decoded with the
	// old passphrase: usually a mistyped passphrase, otherwise corrupt data or
	// an unsupported algorithm.
	ErrDecodeFailed = errors.New("private key could not be decoded with the old passphrase")

	// ErrEncodeFailed means the decoded key could not be written back out.
	ErrEncodeFailed = errors.New("private key could not be re-encoded")

	// ErrNoLocalKeyMaterial means the key has no private bytes to re-encrypt,
	// for example because it lives on a hardware security key.
	ErrNoLocalKeyMaterial = errors.New("key has no local private key material")
)

// RotatePassphrase re-encrypts key's private key under newPassphrase. The old
// passphrase is passed to the codec verbatim, including when empty. An empty
// new passphrase stores the key unencrypted.
//
// Either both the private key bytes and the encrypted flag are updated, or key
// is left exactly as it was and an error wrapping ErrDecodeFailed,
// ErrEncodeFailed or ErrNoLocalKeyMaterial is returned. Persisting the result
// is the caller's job.
func RotatePassphrase(codec driven.KeyCodec, key *model.Pubkey, oldPassphrase, newPassphrase string) error {
	if key.SecurityKey() || !key.HasPrivateKey() {
		return fmt.Errorf("rotate passphrase for %q: %w", key.Nickname(), ErrNoLocalKeyMaterial)
	}

	handle, err := codec.Decode(key.PrivateKey(), key.KeyType(), oldPassphrase)
	if err != nil {
		return fmt.Errorf("rotate passphrase for %q: %w: %w", key.Nickname(), ErrDecodeFailed, err)
	}
	defer handle.Destroy()

	encoded, err := codec.Encode(handle, newPassphrase)
	if err != nil {
		return fmt.Errorf("rotate passphrase for %q: %w: %w", key.Nickname(), ErrEncodeFailed, err)
	}

	key.SetPrivateKey(encoded)
	key.SetEncrypted(newPassphrase != "")

	return nil
}

// rotationOutcome maps a RotatePassphrase error onto a metrics label.
func rotationOutcome(err error) string {
	switch {
	case err == nil:
		return driven.OutcomeSuccess
	case errors.Is(err, ErrDecodeFailed):
		return driven.OutcomeDecodeFailed
	case errors.Is(err, ErrEncodeFailed):
		return driven.OutcomeEncodeFailed
	case errors.Is(err, ErrNoLocalKeyMaterial):
		return driven.OutcomeNoLocalKey
	default:
		return driven.OutcomeError
	}
}
