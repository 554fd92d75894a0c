package application_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockPubkeyStore keeps clones of persisted records so callers cannot mutate
// stored state except through Create and Update.
type mockPubkeyStore struct {
	mu      sync.Mutex
	nextID  int64
	keys    map[int64]*model.Pubkey
	updates int
	listErr error
}

func newMockPubkeyStore(keys ...*model.Pubkey) *mockPubkeyStore {
	m := &mockPubkeyStore{keys: make(map[int64]*model.Pubkey)}
	for _, k := range keys {
		if err := m.Create(context.Background(), k); err != nil {
			panic(err)
		}
	}
	return m
}

func (m *mockPubkeyStore) Create(_ context.Context, key *model.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.Nickname() == key.Nickname() {
			return driven.ErrNicknameTaken
		}
	}
	m.nextID++
	key.SetID(m.nextID)
	m.keys[key.ID()] = key.Clone()
	return nil
}

func (m *mockPubkeyStore) Update(_ context.Context, key *model.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key.ID()]; !ok {
		return driven.ErrPubkeyNotFound
	}
	for id, k := range m.keys {
		if id != key.ID() && k.Nickname() == key.Nickname() {
			return driven.ErrNicknameTaken
		}
	}
	m.updates++
	m.keys[key.ID()] = key.Clone()
	return nil
}

func (m *mockPubkeyStore) GetByID(_ context.Context, id int64) (*model.Pubkey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[id]
	if !ok {
		return nil, driven.ErrPubkeyNotFound
	}
	return k.Clone(), nil
}

func (m *mockPubkeyStore) GetByNickname(_ context.Context, nickname string) (*model.Pubkey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.Nickname() == nickname {
			return k.Clone(), nil
		}
	}
	return nil, driven.ErrPubkeyNotFound
}

func (m *mockPubkeyStore) ListAll(_ context.Context) ([]*model.Pubkey, error) {
	return m.list(func(*model.Pubkey) bool { return true })
}

func (m *mockPubkeyStore) ListStartup(_ context.Context) ([]*model.Pubkey, error) {
	return m.list((*model.Pubkey).Startup)
}

func (m *mockPubkeyStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[id]; !ok {
		return driven.ErrPubkeyNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *mockPubkeyStore) list(keep func(*model.Pubkey) bool) ([]*model.Pubkey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.Pubkey
	for _, k := range m.keys {
		if keep(k) {
			out = append(out, k.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname() < out[j].Nickname() })
	return out, nil
}

// stored returns the persisted copy of id without going through GetByID.
func (m *mockPubkeyStore) stored(id int64) *model.Pubkey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[id]
}

type fakeHandle struct {
	keyType   model.KeyType
	destroyed bool
}

func (h *fakeHandle) KeyType() model.KeyType { return h.keyType }
func (h *fakeHandle) Destroy()               { h.destroyed = true }

var errWrongPassphrase = errors.New("wrong passphrase")

// fakeCodec "encrypts" a key by writing "sealed:<passphrase>". Decoding
// succeeds only when the passphrase matches.
type fakeCodec struct {
	encodeErr   error
	decodeCalls int
	handles     []*fakeHandle
}

func sealed(passphrase string) []byte { return []byte("sealed:" + passphrase) }

func (c *fakeCodec) Parse(encoded []byte, passphrase string) (model.PrivateKeyHandle, error) {
	return c.Decode(encoded, model.KeyTypeED25519, passphrase)
}

func (c *fakeCodec) Decode(encoded []byte, keyType model.KeyType, passphrase string) (model.PrivateKeyHandle, error) {
	c.decodeCalls++
	if string(encoded) != string(sealed(passphrase)) {
		return nil, errWrongPassphrase
	}
	h := &fakeHandle{keyType: keyType}
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeCodec) Encode(handle model.PrivateKeyHandle, passphrase string) ([]byte, error) {
	if c.encodeErr != nil {
		return nil, c.encodeErr
	}
	if h, ok := handle.(*fakeHandle); ok && h.destroyed {
		return nil, driven.ErrHandleDestroyed
	}
	return sealed(passphrase), nil
}

func (c *fakeCodec) Generate(keyType model.KeyType, _ int) (model.PrivateKeyHandle, error) {
	h := &fakeHandle{keyType: keyType}
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeCodec) PublicKey(model.PrivateKeyHandle) ([]byte, error) {
	return []byte("pub"), nil
}

type recorderCall struct {
	keyType model.KeyType
	outcome string
}

type spyRecorder struct {
	mu        sync.Mutex
	rotations []recorderCall
	unlocks   []recorderCall
	unlocked  int
}

func (r *spyRecorder) RecordRotation(keyType model.KeyType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, recorderCall{keyType, outcome})
}

func (r *spyRecorder) RecordUnlock(keyType model.KeyType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocks = append(r.unlocks, recorderCall{keyType, outcome})
}

func (r *spyRecorder) SetUnlockedKeys(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocked = n
}

// englishMessages renders messages with fixed English templates.
type englishMessages struct{}

func (englishMessages) Format(id model.MessageID, args ...any) string {
	templates := map[model.MessageID]string{
		model.MsgKeyTypeRSABits:         "RSA %d-bit",
		model.MsgKeyTypeDSABits:         "DSA %d-bit",
		model.MsgKeyTypeECBits:          "EC %d-bit",
		model.MsgKeyTypeED25519:         "ED25519",
		model.MsgKeyTypeUnknown:         "unknown type",
		model.MsgKeyTypeUnknownStrength: "%s (unknown strength)",
		model.MsgKeyAttributeEncrypted:  "encrypted",
		model.MsgKeyAttributeHardware:   "hardware-backed (%s)",
	}
	return fmt.Sprintf(templates[id], args...)
}

// localKey returns an unsaved record whose private key is sealed under
// passphrase by fakeCodec.
func localKey(nickname, passphrase string) *model.Pubkey {
	k := model.NewPubkey(nickname, model.KeyTypeED25519)
	k.SetPrivateKey(sealed(passphrase))
	k.SetPublicKey([]byte("pub"))
	k.SetEncrypted(passphrase != "")
	return k
}
