// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// scheduleFunc runs fn after d and returns a function that cancels it.
type scheduleFunc func(d time.Duration, fn func()) (cancel func() bool)

func timeAfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type keyringEntry struct {
	key        *model.Pubkey
	unlockedAt time.Time
	cancel     func() bool
}

// Keyring holds decoded private keys in memory. Each unlocked key is owned by
// the keyring, which serializes all access with a single mutex. Keys with a
// non-zero lifetime are locked automatically once it elapses.
type Keyring struct {
	store    driven.PubkeyStore
	codec    driven.KeyCodec
	recorder driven.RotationRecorder
	schedule scheduleFunc
	now      func() time.Time

	mu      sync.Mutex
	entries map[int64]*keyringEntry
}

// NewKeyring creates an empty Keyring. recorder may be nil.
func NewKeyring(store driven.PubkeyStore, codec driven.KeyCodec, recorder driven.RotationRecorder) *Keyring {
	if recorder == nil {
		recorder = driven.NopRecorder{}
	}
	return &Keyring{
		store:    store,
		codec:    codec,
		recorder: recorder,
		schedule: timeAfterFunc,
		now:      time.Now,
		entries:  make(map[int64]*keyringEntry),
	}
}

// Unlock decodes the stored private key of id with passphrase and keeps it in
// memory. Unlocking an already unlocked key replaces the previous handle and
// restarts its lifetime.
func (k *Keyring) Unlock(ctx context.Context, id int64, passphrase string) error {
	key, err := k.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if key.SecurityKey() || !key.HasPrivateKey() {
		k.recorder.RecordUnlock(key.KeyType(), driven.OutcomeNoLocalKey)
		return fmt.Errorf("unlock %q: %w", key.Nickname(), ErrNoLocalKeyMaterial)
	}

	handle, err := k.codec.Decode(key.PrivateKey(), key.KeyType(), passphrase)
	if err != nil {
		k.recorder.RecordUnlock(key.KeyType(), driven.OutcomeDecodeFailed)
		return fmt.Errorf("unlock %q: %w: %w", key.Nickname(), ErrDecodeFailed, err)
	}
	key.SetUnlockedHandle(handle)

	entry := &keyringEntry{key: key, unlockedAt: k.now()}

	k.mu.Lock()
	defer k.mu.Unlock()

	k.removeLocked(id)
	if lifetime := key.LifetimeDuration(); lifetime > 0 {
		entry.cancel = k.schedule(lifetime, func() { k.expire(id, entry) })
	}
	k.entries[id] = entry
	k.recorder.RecordUnlock(key.KeyType(), driven.OutcomeSuccess)
	k.recorder.SetUnlockedKeys(len(k.entries))

	slog.Info("key unlocked", "id", id, "nickname", key.Nickname(), "lifetime", key.LifetimeDuration())
	return nil
}

// Lock destroys the decoded key of id. It reports whether the key was unlocked.
func (k *Keyring) Lock(id int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	locked := k.removeLocked(id)
	k.recorder.SetUnlockedKeys(len(k.entries))
	return locked
}

// LockAll destroys every decoded key.
func (k *Keyring) LockAll() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for id := range k.entries {
		k.removeLocked(id)
	}
	k.recorder.SetUnlockedKeys(0)
}

// IsUnlocked reports whether id currently has a decoded key.
func (k *Keyring) IsUnlocked(id int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, ok := k.entries[id]
	return ok
}

// UnlockedAt returns when id was last unlocked.
func (k *Keyring) UnlockedAt(id int64) (time.Time, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.unlockedAt, true
}

// UnlockedIDs returns the ids of all unlocked keys in ascending order.
func (k *Keyring) UnlockedIDs() []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	ids := make([]int64, 0, len(k.entries))
	for id := range k.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UnlockStartupKeys unlocks every unencrypted key flagged for startup.
// Encrypted startup keys need a passphrase and are left locked. It returns the
// number of keys unlocked; failures for individual keys are joined.
func (k *Keyring) UnlockStartupKeys(ctx context.Context) (int, error) {
	keys, err := k.store.ListStartup(ctx)
	if err != nil {
		return 0, fmt.Errorf("list startup keys: %w", err)
	}

	var (
		unlocked int
		errs     []error
	)
	for _, key := range keys {
		if key.Encrypted() || key.SecurityKey() {
			slog.Info("startup key needs interactive unlock", "id", key.ID(), "nickname", key.Nickname())
			continue
		}
		if err := k.Unlock(ctx, key.ID(), ""); err != nil {
			errs = append(errs, err)
			continue
		}
		unlocked++
	}

	return unlocked, errors.Join(errs...)
}

// expire locks id if entry is still the current unlock of that key.
func (k *Keyring) expire(id int64, entry *keyringEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.entries[id] != entry {
		return
	}
	k.removeLocked(id)
	k.recorder.SetUnlockedKeys(len(k.entries))
	slog.Info("key lifetime expired", "id", id, "nickname", entry.key.Nickname())
}

// removeLocked destroys and forgets the entry for id. k.mu must be held.
func (k *Keyring) removeLocked(id int64) bool {
	entry, ok := k.entries[id]
	if !ok {
		return false
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	entry.key.Lock()
	delete(k.entries, id)
	return true
}
