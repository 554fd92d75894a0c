package application_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mykeypanel/internal/adapter/driven/sshkey"
	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

func TestRotatePassphrase_Success(t *testing.T) {
	tests := []struct {
		name          string
		oldPassphrase string
		newPassphrase string
		wantEncrypted bool
	}{
		{name: "change passphrase", oldPassphrase: "old", newPassphrase: "new", wantEncrypted: true},
		{name: "remove passphrase", oldPassphrase: "old", newPassphrase: "", wantEncrypted: false},
		{name: "add passphrase", oldPassphrase: "", newPassphrase: "new", wantEncrypted: true},
		{name: "keep unencrypted", oldPassphrase: "", newPassphrase: "", wantEncrypted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := &fakeCodec{}
			key := localKey("laptop", tt.oldPassphrase)

			err := application.RotatePassphrase(codec, key, tt.oldPassphrase, tt.newPassphrase)
			require.NoError(t, err)

			assert.Equal(t, sealed(tt.newPassphrase), key.PrivateKey())
			assert.Equal(t, tt.wantEncrypted, key.Encrypted())
			require.Len(t, codec.handles, 1)
			assert.True(t, codec.handles[0].destroyed, "decoded key must be destroyed")
			assert.False(t, key.Unlocked())
		})
	}
}

func TestRotatePassphrase_WrongOldPassphraseLeavesKeyUnchanged(t *testing.T) {
	codec := &fakeCodec{}
	key := localKey("laptop", "correct")
	before := key.Clone()

	err := application.RotatePassphrase(codec, key, "wrong", "new")
	require.ErrorIs(t, err, application.ErrDecodeFailed)
	assert.ErrorIs(t, err, errWrongPassphrase)

	assert.True(t, before.Equal(key))
	assert.Empty(t, codec.handles)
}

func TestRotatePassphrase_EmptyOldPassphraseIsPassedThrough(t *testing.T) {
	codec := &fakeCodec{}
	key := localKey("laptop", "secret")

	err := application.RotatePassphrase(codec, key, "", "new")
	require.ErrorIs(t, err, application.ErrDecodeFailed)
	assert.Equal(t, 1, codec.decodeCalls)
	assert.True(t, key.Encrypted())
}

func TestRotatePassphrase_EncodeFailureLeavesKeyUnchanged(t *testing.T) {
	codec := &fakeCodec{encodeErr: errors.New("disk full")}
	key := localKey("laptop", "old")
	before := key.Clone()

	err := application.RotatePassphrase(codec, key, "old", "new")
	require.ErrorIs(t, err, application.ErrEncodeFailed)

	assert.True(t, before.Equal(key))
	require.Len(t, codec.handles, 1)
	assert.True(t, codec.handles[0].destroyed)
}

func TestRotatePassphrase_NoLocalKeyMaterial(t *testing.T) {
	securityKey := model.NewPubkey("yubikey", model.KeyTypeED25519)
	securityKey.SetSecurityKey(true)
	securityKey.SetSecurityKeyType("FIDO2")
	securityKey.SetPublicKey([]byte("pub"))

	tests := []struct {
		name string
		key  *model.Pubkey
	}{
		{name: "security key", key: securityKey},
		{name: "no private bytes", key: model.NewPubkey("empty", model.KeyTypeRSA)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := &fakeCodec{}
			before := tt.key.Clone()

			err := application.RotatePassphrase(codec, tt.key, "", "new")
			require.ErrorIs(t, err, application.ErrNoLocalKeyMaterial)

			assert.Zero(t, codec.decodeCalls, "no decode may be attempted")
			assert.True(t, before.Equal(tt.key))
		})
	}
}

func TestRotatePassphrase_RealCodec(t *testing.T) {
	codec := sshkey.NewCodec("")

	for _, keyType := range []model.KeyType{model.KeyTypeRSA, model.KeyTypeEC, model.KeyTypeED25519} {
		t.Run(string(keyType), func(t *testing.T) {
			h, err := codec.Generate(keyType, 0)
			require.NoError(t, err)
			defer h.Destroy()

			encoded, err := codec.Encode(h, "old")
			require.NoError(t, err)

			key := model.NewPubkey("k", keyType)
			key.SetPrivateKey(encoded)
			key.SetEncrypted(true)

			require.NoError(t, application.RotatePassphrase(codec, key, "old", "new"))
			assert.True(t, key.Encrypted())

			_, err = codec.Decode(key.PrivateKey(), keyType, "old")
			assert.Error(t, err)

			decoded, err := codec.Decode(key.PrivateKey(), keyType, "new")
			require.NoError(t, err)
			decoded.Destroy()

			require.NoError(t, application.RotatePassphrase(codec, key, "new", ""))
			assert.False(t, key.Encrypted())

			decoded, err = codec.Decode(key.PrivateKey(), keyType, "")
			require.NoError(t, err)
			decoded.Destroy()

			err = application.RotatePassphrase(codec, key, "stale", "x")
			assert.ErrorIs(t, err, application.ErrDecodeFailed)
			assert.False(t, key.Encrypted())
		})
	}
}

func TestRotationOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: driven.OutcomeSuccess},
		{name: "decode", err: application.ErrDecodeFailed, want: driven.OutcomeDecodeFailed},
		{name: "encode", err: application.ErrEncodeFailed, want: driven.OutcomeEncodeFailed},
		{name: "no key", err: application.ErrNoLocalKeyMaterial, want: driven.OutcomeNoLocalKey},
		{name: "other", err: errors.New("boom"), want: driven.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.RotationOutcome(tt.err))
		})
	}
}
