package application_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sshkey"
	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

type serviceFixture struct {
	svc      *application.PubkeyService
	store    *mockPubkeyStore
	codec    *sshkey.Codec
	keyring  *application.Keyring
	recorder *spyRecorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newMockPubkeyStore()
	codec := sshkey.NewCodec("")
	recorder := &spyRecorder{}
	keyring := application.NewKeyring(store, codec, recorder)
	t.Cleanup(keyring.LockAll)
	return &serviceFixture{
		svc:      application.NewPubkeyService(store, codec, codec, keyring, recorder),
		store:    store,
		codec:    codec,
		keyring:  keyring,
		recorder: recorder,
	}
}

func TestPubkeyService_Generate(t *testing.T) {
	tests := []struct {
		name     string
		req      application.GenerateRequest
		wantDesc string
	}{
		{
			name:     "ed25519 unencrypted",
			req:      application.GenerateRequest{Nickname: "laptop", KeyType: model.KeyTypeED25519},
			wantDesc: "ED25519",
		},
		{
			name:     "ec 384 encrypted",
			req:      application.GenerateRequest{Nickname: "ci", KeyType: model.KeyTypeEC, Bits: 384, Passphrase: "pw"},
			wantDesc: "EC 384-bit encrypted",
		},
		{
			name:     "rsa default size",
			req:      application.GenerateRequest{Nickname: "legacy", KeyType: model.KeyTypeRSA, Startup: true, Lifetime: 600},
			wantDesc: "RSA 3072-bit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			ctx := context.Background()

			key, err := f.svc.Generate(ctx, tt.req)
			require.NoError(t, err)
			require.True(t, key.IsPersisted())

			stored, err := f.svc.Get(ctx, key.ID())
			require.NoError(t, err)
			assert.Equal(t, tt.req.KeyType, stored.KeyType())
			assert.Equal(t, tt.req.Passphrase != "", stored.Encrypted())
			assert.Equal(t, tt.req.Startup, stored.Startup())
			assert.Equal(t, tt.req.Lifetime, stored.Lifetime())
			assert.Equal(t, tt.wantDesc, f.svc.Describe(stored, englishMessages{}))
			assert.True(t, strings.HasPrefix(f.svc.Fingerprint(stored), "SHA256:"))

			line, err := f.svc.AuthorizedKey(stored)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(line, " "+tt.req.Nickname), line)

			h, err := f.codec.Decode(stored.PrivateKey(), stored.KeyType(), tt.req.Passphrase)
			require.NoError(t, err)
			h.Destroy()
		})
	}
}

func TestPubkeyService_GenerateValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     application.GenerateRequest
		wantErr error
	}{
		{name: "blank nickname", req: application.GenerateRequest{Nickname: "  ", KeyType: model.KeyTypeED25519}, wantErr: application.ErrInvalidInput},
		{name: "negative lifetime", req: application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeED25519, Lifetime: -1}, wantErr: application.ErrInvalidInput},
		{name: "overflowing lifetime", req: application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeED25519, Lifetime: math.MaxInt}, wantErr: application.ErrInvalidInput},
		{name: "bad size", req: application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeRSA, Bits: 1024}, wantErr: driven.ErrInvalidKeySize},
		{name: "dsa", req: application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeDSA}, wantErr: driven.ErrUnsupportedKeyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)

			_, err := f.svc.Generate(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			keys, err := f.svc.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestPubkeyService_GenerateDuplicateNickname(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	req := application.GenerateRequest{Nickname: "laptop", KeyType: model.KeyTypeED25519}

	_, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Generate(ctx, req)
	assert.ErrorIs(t, err, driven.ErrNicknameTaken)
}

func TestPubkeyService_Import(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	h, err := f.codec.Generate(model.KeyTypeED25519, 0)
	require.NoError(t, err)
	defer h.Destroy()
	encoded, err := f.codec.Encode(h, "pw")
	require.NoError(t, err)
	pub, err := f.codec.PublicKey(h)
	require.NoError(t, err)

	_, err = f.svc.Import(ctx, application.ImportRequest{Nickname: "old", PrivateKey: encoded, Passphrase: "wrong"})
	require.ErrorIs(t, err, application.ErrDecodeFailed)

	_, err = f.svc.Import(ctx, application.ImportRequest{Nickname: "old"})
	require.ErrorIs(t, err, application.ErrInvalidInput)

	key, err := f.svc.Import(ctx, application.ImportRequest{
		Nickname:   "old",
		PrivateKey: encoded,
		Passphrase: "pw",
		ConfirmUse: true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.KeyTypeED25519, key.KeyType())
	assert.True(t, key.Encrypted())
	assert.True(t, key.ConfirmUse())
	assert.Equal(t, pub, key.PublicKey())

	require.NoError(t, f.svc.Unlock(ctx, key.ID(), "pw"))
	assert.True(t, f.svc.IsUnlocked(key))
}

func TestPubkeyService_RegisterSecurityKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	skWire := ssh.Marshal(struct {
		Name        string
		KeyBytes    []byte
		Application string
	}{ssh.KeyAlgoSKED25519, make([]byte, 32), "ssh:"})
	pk, err := ssh.ParsePublicKey(skWire)
	require.NoError(t, err)

	key, err := f.svc.RegisterSecurityKey(ctx, application.SecurityKeyRequest{
		Nickname:  "yubikey",
		PublicKey: ssh.MarshalAuthorizedKey(pk),
		Label:     " FIDO2 ",
	})
	require.NoError(t, err)

	assert.True(t, key.SecurityKey())
	assert.False(t, key.HasPrivateKey())
	assert.Equal(t, "FIDO2", key.SecurityKeyType())
	assert.Equal(t, "ED25519 hardware-backed (FIDO2)", f.svc.Describe(key, englishMessages{}))

	err = f.svc.ChangePassphrase(ctx, key.ID(), "", "new")
	require.ErrorIs(t, err, application.ErrNoLocalKeyMaterial)
	assert.Equal(t, []recorderCall{{model.KeyTypeED25519, driven.OutcomeNoLocalKey}}, f.recorder.rotations)

	err = f.svc.Unlock(ctx, key.ID(), "")
	assert.ErrorIs(t, err, application.ErrNoLocalKeyMaterial)

	_, err = f.svc.RegisterSecurityKey(ctx, application.SecurityKeyRequest{Nickname: "bad", PublicKey: []byte("junk")})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestPubkeyService_ChangePassphrase(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	key, err := f.svc.Generate(ctx, application.GenerateRequest{Nickname: "laptop", KeyType: model.KeyTypeED25519, Passphrase: "old"})
	require.NoError(t, err)
	before := f.store.stored(key.ID()).Clone()

	err = f.svc.ChangePassphrase(ctx, key.ID(), "wrong", "new")
	require.ErrorIs(t, err, application.ErrDecodeFailed)
	assert.True(t, before.Equal(f.store.stored(key.ID())), "failed rotation must not change the stored key")
	assert.Zero(t, f.store.updates)

	require.NoError(t, f.svc.ChangePassphrase(ctx, key.ID(), "old", ""))
	assert.Equal(t, 1, f.store.updates)

	stored, err := f.svc.Get(ctx, key.ID())
	require.NoError(t, err)
	assert.False(t, stored.Encrypted())
	h, err := f.codec.Decode(stored.PrivateKey(), stored.KeyType(), "")
	require.NoError(t, err)
	h.Destroy()

	assert.Equal(t, []recorderCall{
		{model.KeyTypeED25519, driven.OutcomeDecodeFailed},
		{model.KeyTypeED25519, driven.OutcomeSuccess},
	}, f.recorder.rotations)

	err = f.svc.ChangePassphrase(ctx, 404, "", "")
	assert.ErrorIs(t, err, driven.ErrPubkeyNotFound)
}

func TestPubkeyService_UpdateSettings(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a, err := f.svc.Generate(ctx, application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeED25519})
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, application.GenerateRequest{Nickname: "b", KeyType: model.KeyTypeED25519})
	require.NoError(t, err)

	nickname := "renamed"
	startup := true
	lifetime := 120
	updated, err := f.svc.UpdateSettings(ctx, a.ID(), application.SettingsUpdate{
		Nickname: &nickname,
		Startup:  &startup,
		Lifetime: &lifetime,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Nickname())
	assert.True(t, updated.Startup())
	assert.False(t, updated.ConfirmUse())
	assert.Equal(t, 120, updated.Lifetime())
	assert.Equal(t, a.PrivateKey(), updated.PrivateKey())

	byName, err := f.svc.GetByNickname(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, a.ID(), byName.ID())

	taken := "b"
	_, err = f.svc.UpdateSettings(ctx, a.ID(), application.SettingsUpdate{Nickname: &taken})
	assert.ErrorIs(t, err, driven.ErrNicknameTaken)

	negative := -5
	_, err = f.svc.UpdateSettings(ctx, a.ID(), application.SettingsUpdate{Lifetime: &negative})
	assert.ErrorIs(t, err, application.ErrInvalidInput)

	huge := int(model.MaxLifetime) + 1
	_, err = f.svc.UpdateSettings(ctx, a.ID(), application.SettingsUpdate{Lifetime: &huge})
	assert.ErrorIs(t, err, application.ErrInvalidInput)

	longest := int(model.MaxLifetime)
	updated, err = f.svc.UpdateSettings(ctx, a.ID(), application.SettingsUpdate{Lifetime: &longest})
	require.NoError(t, err)
	assert.Positive(t, updated.LifetimeDuration())

	_, err = f.svc.UpdateSettings(ctx, 404, application.SettingsUpdate{})
	assert.ErrorIs(t, err, driven.ErrPubkeyNotFound)
}

func TestPubkeyService_DeleteLocksKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	key, err := f.svc.Generate(ctx, application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeED25519})
	require.NoError(t, err)
	require.NoError(t, f.svc.Unlock(ctx, key.ID(), ""))
	require.True(t, f.keyring.IsUnlocked(key.ID()))

	require.NoError(t, f.svc.Delete(ctx, key.ID()))
	assert.False(t, f.keyring.IsUnlocked(key.ID()))

	_, err = f.svc.Get(ctx, key.ID())
	assert.ErrorIs(t, err, driven.ErrPubkeyNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, key.ID()), driven.ErrPubkeyNotFound)
}

func TestPubkeyService_LockUnlock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	key, err := f.svc.Generate(ctx, application.GenerateRequest{Nickname: "a", KeyType: model.KeyTypeEC, Passphrase: "pw"})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Unlock(ctx, key.ID(), ""), application.ErrDecodeFailed)
	require.NoError(t, f.svc.Unlock(ctx, key.ID(), "pw"))
	assert.True(t, f.svc.IsUnlocked(key))
	assert.True(t, f.svc.Lock(key.ID()))
	assert.False(t, f.svc.IsUnlocked(key))
}
