package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// ErrInvalidInput is returned when a request fails validation before any key
// material is touched.
var ErrInvalidInput = errors.New("invalid input")

// GenerateRequest describes a key pair to create.
type GenerateRequest struct {
	Nickname   string
	KeyType    model.KeyType
	Bits       int
	Passphrase string
	Startup    bool
	ConfirmUse bool
	Lifetime   int
}

// ImportRequest describes an existing private key to store. The key is
// re-encoded in the OpenSSH format under the same passphrase.
type ImportRequest struct {
	Nickname   string
	PrivateKey []byte
	Passphrase string
	Startup    bool
	ConfirmUse bool
	Lifetime   int
}

// SecurityKeyRequest registers a hardware-backed key by its public half.
type SecurityKeyRequest struct {
	Nickname  string
	PublicKey []byte
	Label     string
}

// SettingsUpdate changes the non-secret settings of a key. Nil fields are left
// as they are.
type SettingsUpdate struct {
	Nickname   *string
	Startup    *bool
	ConfirmUse *bool
	Lifetime   *int
}

// PubkeyService implements the key management use cases on top of the store,
// codec and keyring.
type PubkeyService struct {
	store     driven.PubkeyStore
	codec     driven.KeyCodec
	inspector driven.KeyInspector
	keyring   *Keyring
	recorder  driven.RotationRecorder
}

// NewPubkeyService creates a PubkeyService. recorder may be nil.
func NewPubkeyService(
	store driven.PubkeyStore,
	codec driven.KeyCodec,
	inspector driven.KeyInspector,
	keyring *Keyring,
	recorder driven.RotationRecorder,
) *PubkeyService {
	if recorder == nil {
		recorder = driven.NopRecorder{}
	}
	return &PubkeyService{
		store:     store,
		codec:     codec,
		inspector: inspector,
		keyring:   keyring,
		recorder:  recorder,
	}
}

// List returns every stored key ordered by nickname.
func (s *PubkeyService) List(ctx context.Context) ([]*model.Pubkey, error) {
	keys, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pubkeys: %w", err)
	}
	return keys, nil
}

// Get returns the key with the given id.
func (s *PubkeyService) Get(ctx context.Context, id int64) (*model.Pubkey, error) {
	key, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get pubkey %d: %w", id, err)
	}
	return key, nil
}

// GetByNickname returns the key with the given nickname.
func (s *PubkeyService) GetByNickname(ctx context.Context, nickname string) (*model.Pubkey, error) {
	key, err := s.store.GetByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("get pubkey %q: %w", nickname, err)
	}
	return key, nil
}

// Describe renders the one-line summary of key in the language of messages.
func (s *PubkeyService) Describe(key *model.Pubkey, messages model.MessageFormatter) string {
	return key.Describe(s.inspector, messages)
}

// Fingerprint returns the SHA256 fingerprint of key, or "" when its public key
// cannot be read.
func (s *PubkeyService) Fingerprint(key *model.Pubkey) string {
	fp, err := s.inspector.Fingerprint(key.PublicKey())
	if err != nil {
		slog.Debug("fingerprint unavailable", "id", key.ID(), "error", err)
		return ""
	}
	return fp
}

// AuthorizedKey renders key as an authorized_keys line commented with its
// nickname.
func (s *PubkeyService) AuthorizedKey(key *model.Pubkey) (string, error) {
	line, err := s.inspector.AuthorizedKey(key.PublicKey(), key.Nickname())
	if err != nil {
		return "", fmt.Errorf("authorized key for %q: %w", key.Nickname(), err)
	}
	return line, nil
}

// IsUnlocked reports whether the keyring holds a decoded copy of key.
func (s *PubkeyService) IsUnlocked(key *model.Pubkey) bool {
	return s.keyring.IsUnlocked(key.ID())
}

// Generate creates, encodes and stores a new key pair.
func (s *PubkeyService) Generate(ctx context.Context, req GenerateRequest) (*model.Pubkey, error) {
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		return nil, err
	}
	if err := validateLifetime(req.Lifetime); err != nil {
		return nil, err
	}

	handle, err := s.codec.Generate(req.KeyType, req.Bits)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", req.KeyType, err)
	}
	defer handle.Destroy()

	key, err := s.newLocalKey(nickname, handle, req.Passphrase)
	if err != nil {
		return nil, err
	}
	key.SetStartup(req.Startup)
	key.SetConfirmUse(req.ConfirmUse)
	key.SetLifetime(req.Lifetime)

	if err := s.store.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("store pubkey %q: %w", nickname, err)
	}

	slog.Info("key generated", "id", key.ID(), "nickname", nickname, "type", key.KeyType())
	return key, nil
}

// Import decodes an existing private key with its passphrase and stores it.
func (s *PubkeyService) Import(ctx context.Context, req ImportRequest) (*model.Pubkey, error) {
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		return nil, err
	}
	if err := validateLifetime(req.Lifetime); err != nil {
		return nil, err
	}
	if len(req.PrivateKey) == 0 {
		return nil, fmt.Errorf("%w: private key is empty", ErrInvalidInput)
	}

	handle, err := s.codec.Parse(req.PrivateKey, req.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("import %q: %w: %w", nickname, ErrDecodeFailed, err)
	}
	defer handle.Destroy()

	key, err := s.newLocalKey(nickname, handle, req.Passphrase)
	if err != nil {
		return nil, err
	}
	key.SetStartup(req.Startup)
	key.SetConfirmUse(req.ConfirmUse)
	key.SetLifetime(req.Lifetime)

	if err := s.store.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("store pubkey %q: %w", nickname, err)
	}

	slog.Info("key imported", "id", key.ID(), "nickname", nickname, "type", key.KeyType())
	return key, nil
}

// RegisterSecurityKey stores a hardware-backed key. Only the public half is
// kept; label names the kind of device and is shown verbatim in descriptions.
func (s *PubkeyService) RegisterSecurityKey(ctx context.Context, req SecurityKeyRequest) (*model.Pubkey, error) {
	nickname, err := validateNickname(req.Nickname)
	if err != nil {
		return nil, err
	}

	pub, keyType, err := s.inspector.ParsePublicKey(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	key := model.NewPubkey(nickname, keyType)
	key.SetPublicKey(pub)
	key.SetSecurityKey(true)
	key.SetSecurityKeyType(strings.TrimSpace(req.Label))

	if err := s.store.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("store pubkey %q: %w", nickname, err)
	}

	slog.Info("security key registered", "id", key.ID(), "nickname", nickname, "type", keyType)
	return key, nil
}

// UpdateSettings applies update to the key with the given id.
func (s *PubkeyService) UpdateSettings(ctx context.Context, id int64, update SettingsUpdate) (*model.Pubkey, error) {
	key, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get pubkey %d: %w", id, err)
	}

	if update.Nickname != nil {
		nickname, err := validateNickname(*update.Nickname)
		if err != nil {
			return nil, err
		}
		key.SetNickname(nickname)
	}
	if update.Lifetime != nil {
		if err := validateLifetime(*update.Lifetime); err != nil {
			return nil, err
		}
		key.SetLifetime(*update.Lifetime)
	}
	if update.Startup != nil {
		key.SetStartup(*update.Startup)
	}
	if update.ConfirmUse != nil {
		key.SetConfirmUse(*update.ConfirmUse)
	}

	if err := s.store.Update(ctx, key); err != nil {
		return nil, fmt.Errorf("update pubkey %d: %w", id, err)
	}
	return key, nil
}

// ChangePassphrase re-encrypts the stored private key of id. A wrong old
// passphrase yields ErrDecodeFailed and leaves the stored key unchanged.
func (s *PubkeyService) ChangePassphrase(ctx context.Context, id int64, oldPassphrase, newPassphrase string) error {
	key, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get pubkey %d: %w", id, err)
	}

	if err := RotatePassphrase(s.codec, key, oldPassphrase, newPassphrase); err != nil {
		s.recorder.RecordRotation(key.KeyType(), rotationOutcome(err))
		slog.Warn("passphrase change rejected", "id", id, "nickname", key.Nickname(), "error", err)
		return err
	}

	if err := s.store.Update(ctx, key); err != nil {
		s.recorder.RecordRotation(key.KeyType(), driven.OutcomeError)
		return fmt.Errorf("update pubkey %d: %w", id, err)
	}
	s.recorder.RecordRotation(key.KeyType(), driven.OutcomeSuccess)

	slog.Info("passphrase changed", "id", id, "nickname", key.Nickname(), "encrypted", key.Encrypted())
	return nil
}

// Unlock decodes the key into the keyring.
func (s *PubkeyService) Unlock(ctx context.Context, id int64, passphrase string) error {
	return s.keyring.Unlock(ctx, id, passphrase)
}

// Lock removes the key from the keyring. It reports whether it was unlocked.
func (s *PubkeyService) Lock(id int64) bool {
	return s.keyring.Lock(id)
}

// Delete locks and removes the key with the given id.
func (s *PubkeyService) Delete(ctx context.Context, id int64) error {
	s.keyring.Lock(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete pubkey %d: %w", id, err)
	}
	slog.Info("key deleted", "id", id)
	return nil
}

// newLocalKey builds an unsaved record holding handle encoded under passphrase.
func (s *PubkeyService) newLocalKey(nickname string, handle model.PrivateKeyHandle, passphrase string) (*model.Pubkey, error) {
	pub, err := s.codec.PublicKey(handle)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	encoded, err := s.codec.Encode(handle, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	key := model.NewPubkey(nickname, handle.KeyType())
	key.SetPublicKey(pub)
	key.SetPrivateKey(encoded)
	key.SetEncrypted(passphrase != "")
	return key, nil
}

func validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}
	return nickname, nil
}

func validateLifetime(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: lifetime must not be negative", ErrInvalidInput)
	}
	if int64(seconds) > model.MaxLifetime {
		return fmt.Errorf("%w: lifetime exceeds %d seconds", ErrInvalidInput, model.MaxLifetime)
	}
	return nil
}
