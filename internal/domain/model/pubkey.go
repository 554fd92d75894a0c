package model

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"
)

// DSAKeyBits is the strength rendered for every DSA key. DSA keys are only ever
// created as 1024-bit keys, so the public key is not inspected.
const DSAKeyBits = 1024

// MaxLifetime is the longest lifetime, in seconds, that fits in a time.Duration.
const MaxLifetime = math.MaxInt64 / int64(time.Second)

// Column names produced by Pubkey.PersistedFields and consumed by
// PubkeyFromFields.
const (
	FieldID              = "id"
	FieldNickname        = "nickname"
	FieldType            = "type"
	FieldPrivate         = "private"
	FieldPublic          = "public"
	FieldEncrypted       = "encrypted"
	FieldStartup         = "startup"
	FieldConfirmUse      = "confirmuse"
	FieldLifetime        = "lifetime"
	FieldSecurityKey     = "securitykey"
	FieldSecurityKeyType = "securitykeytype"
)

// PersistedFieldNames lists every column written by PersistedFields, in table
// order, excluding the store-assigned id.
var PersistedFieldNames = []string{
	FieldNickname,
	FieldType,
	FieldPrivate,
	FieldPublic,
	FieldEncrypted,
	FieldStartup,
	FieldConfirmUse,
	FieldLifetime,
	FieldSecurityKey,
	FieldSecurityKeyType,
}

// PrivateKeyHandle is a decoded, usable private key. Destroy wipes the key
// material and must be safe to call more than once.
type PrivateKeyHandle interface {
	KeyType() KeyType
	Destroy()
}

// pubkeyState holds everything that is written to the store.
type pubkeyState struct {
	id              int64
	nickname        string
	keyType         KeyType
	privateKey      []byte
	publicKey       []byte
	encrypted       bool
	startup         bool
	confirmUse      bool
	securityKey     bool
	securityKeyType string
	lifetime        int
}

// pubkeyTransient holds in-memory state that is never persisted and never
// takes part in Equal.
type pubkeyTransient struct {
	handle PrivateKeyHandle
	bits   *int
}

// Pubkey is a stored asymmetric key pair used to authenticate SSH connections,
// together with its security attributes.
//
// A Pubkey is not safe for concurrent use; callers sharing one across
// goroutines must serialize access.
type Pubkey struct {
	state     pubkeyState
	transient pubkeyTransient
}

// NewPubkey creates an unsaved key record with the given nickname and type.
func NewPubkey(nickname string, keyType KeyType) *Pubkey {
	return &Pubkey{state: pubkeyState{nickname: nickname, keyType: keyType}}
}

func (p *Pubkey) ID() int64         { return p.state.id }
func (p *Pubkey) SetID(id int64)    { p.state.id = id }
func (p *Pubkey) IsPersisted() bool { return p.state.id != 0 }

func (p *Pubkey) Nickname() string        { return p.state.nickname }
func (p *Pubkey) SetNickname(name string) { p.state.nickname = name }

func (p *Pubkey) KeyType() KeyType { return p.state.keyType }

// SetKeyType changes the algorithm tag and drops the cached strength.
func (p *Pubkey) SetKeyType(t KeyType) {
	if t != p.state.keyType {
		p.transient.bits = nil
	}
	p.state.keyType = t
}

// PrivateKey returns a copy of the encoded private key, or nil if none is stored.
func (p *Pubkey) PrivateKey() []byte { return cloneBytes(p.state.privateKey) }

// SetPrivateKey stores a copy of b. The caller keeps ownership of b.
func (p *Pubkey) SetPrivateKey(b []byte) { p.state.privateKey = cloneBytes(b) }

// HasPrivateKey reports whether any private key bytes are stored locally.
func (p *Pubkey) HasPrivateKey() bool { return len(p.state.privateKey) > 0 }

// PublicKey returns a copy of the encoded public key, or nil if none is stored.
func (p *Pubkey) PublicKey() []byte { return cloneBytes(p.state.publicKey) }

// SetPublicKey stores a copy of b and drops the cached strength.
func (p *Pubkey) SetPublicKey(b []byte) {
	p.state.publicKey = cloneBytes(b)
	p.transient.bits = nil
}

func (p *Pubkey) Encrypted() bool     { return p.state.encrypted }
func (p *Pubkey) SetEncrypted(v bool) { p.state.encrypted = v }

func (p *Pubkey) Startup() bool     { return p.state.startup }
func (p *Pubkey) SetStartup(v bool) { p.state.startup = v }

func (p *Pubkey) ConfirmUse() bool     { return p.state.confirmUse }
func (p *Pubkey) SetConfirmUse(v bool) { p.state.confirmUse = v }

// SecurityKey reports whether the private key lives on an external device.
func (p *Pubkey) SecurityKey() bool     { return p.state.securityKey }
func (p *Pubkey) SetSecurityKey(v bool) { p.state.securityKey = v }

func (p *Pubkey) SecurityKeyType() string        { return p.state.securityKeyType }
func (p *Pubkey) SetSecurityKeyType(kind string) { p.state.securityKeyType = kind }

// Lifetime is the number of seconds a decoded key may stay unlocked; zero
// means no limit.
func (p *Pubkey) Lifetime() int           { return p.state.lifetime }
func (p *Pubkey) SetLifetime(seconds int) { p.state.lifetime = seconds }

// LifetimeDuration returns Lifetime as a time.Duration, capped at MaxLifetime.
func (p *Pubkey) LifetimeDuration() time.Duration {
	return time.Duration(min(int64(p.state.lifetime), MaxLifetime)) * time.Second
}

// Unlocked reports whether a decoded private key is currently installed.
func (p *Pubkey) Unlocked() bool { return p.transient.handle != nil }

// UnlockedHandle returns the installed decoded key, or nil when locked.
func (p *Pubkey) UnlockedHandle() PrivateKeyHandle { return p.transient.handle }

// SetUnlockedHandle installs h as the decoded key. The record takes ownership:
// a previously installed handle is destroyed, and h is destroyed by Lock.
// Passing nil is equivalent to Lock.
func (p *Pubkey) SetUnlockedHandle(h PrivateKeyHandle) {
	if old := p.transient.handle; old != nil && old != h {
		old.Destroy()
	}
	p.transient.handle = h
}

// Lock destroys the installed decoded key, if any. It is safe to call on a
// locked record.
func (p *Pubkey) Lock() {
	if h := p.transient.handle; h != nil {
		p.transient.handle = nil
		h.Destroy()
	}
}

// KeyBits returns the cached strength and whether it has been computed.
func (p *Pubkey) KeyBits() (int, bool) {
	if p.transient.bits == nil {
		return 0, false
	}
	return *p.transient.bits, true
}

// Describe renders a one-line summary such as "RSA 3072-bit encrypted". The
// strength of RSA and EC keys is computed once through inferrer and cached
// until the public key or type changes. Inference failures only degrade the
// type clause.
func (p *Pubkey) Describe(inferrer StrengthInferrer, messages MessageFormatter) string {
	if p.transient.bits == nil && inferrer != nil {
		if bits, err := inferrer.InferBits(p.state.publicKey, p.state.keyType); err == nil {
			p.transient.bits = &bits
		}
	}

	clauses := []string{p.typeClause(messages)}
	if p.state.encrypted {
		clauses = append(clauses, messages.Format(MsgKeyAttributeEncrypted))
	}
	if p.state.securityKey {
		clauses = append(clauses, messages.Format(MsgKeyAttributeHardware, p.state.securityKeyType))
	}

	return strings.Join(clauses, " ")
}

func (p *Pubkey) typeClause(messages MessageFormatter) string {
	switch p.state.keyType {
	case KeyTypeRSA:
		if bits, ok := p.KeyBits(); ok {
			return messages.Format(MsgKeyTypeRSABits, bits)
		}
		return messages.Format(MsgKeyTypeUnknownStrength, string(KeyTypeRSA))
	case KeyTypeDSA:
		return messages.Format(MsgKeyTypeDSABits, DSAKeyBits)
	case KeyTypeEC:
		if bits, ok := p.KeyBits(); ok {
			return messages.Format(MsgKeyTypeECBits, bits)
		}
		return messages.Format(MsgKeyTypeUnknownStrength, string(KeyTypeEC))
	case KeyTypeED25519:
		return messages.Format(MsgKeyTypeED25519)
	case KeyTypeUnknown:
		return messages.Format(MsgKeyTypeUnknown)
	default:
		return messages.Format(MsgKeyTypeUnknown)
	}
}

// Equal reports whether two records hold the same persisted state. Transient
// state (unlocked handle, cached strength) is ignored.
func (p *Pubkey) Equal(other *Pubkey) bool {
	if p == nil || other == nil {
		return p == other
	}
	a, b := p.state, other.state
	return a.id == b.id &&
		a.nickname == b.nickname &&
		a.keyType == b.keyType &&
		bytes.Equal(a.privateKey, b.privateKey) &&
		bytes.Equal(a.publicKey, b.publicKey) &&
		a.encrypted == b.encrypted &&
		a.startup == b.startup &&
		a.confirmUse == b.confirmUse &&
		a.securityKey == b.securityKey &&
		a.securityKeyType == b.securityKeyType &&
		a.lifetime == b.lifetime
}

// Clone returns a copy of the persisted state. The copy starts locked with an
// empty strength cache.
func (p *Pubkey) Clone() *Pubkey {
	c := &Pubkey{state: p.state}
	c.state.privateKey = cloneBytes(p.state.privateKey)
	c.state.publicKey = cloneBytes(p.state.publicKey)
	return c
}

// PersistedFields projects the record onto its store columns. Booleans become
// 1 or 0, byte slices are copied, absent key material and an empty security
// key type become nil. The id is included only once the record has been saved.
func (p *Pubkey) PersistedFields() map[string]any {
	fields := map[string]any{
		FieldNickname:        p.state.nickname,
		FieldType:            string(p.state.keyType),
		FieldPrivate:         nullableBytes(p.state.privateKey),
		FieldPublic:          nullableBytes(p.state.publicKey),
		FieldEncrypted:       boolToInt(p.state.encrypted),
		FieldStartup:         boolToInt(p.state.startup),
		FieldConfirmUse:      boolToInt(p.state.confirmUse),
		FieldLifetime:        int64(p.state.lifetime),
		FieldSecurityKey:     boolToInt(p.state.securityKey),
		FieldSecurityKeyType: nullableString(p.state.securityKeyType),
	}
	if p.state.id != 0 {
		fields[FieldID] = p.state.id
	}
	return fields
}

// PubkeyFromFields rebuilds a record from a column mapping as produced by
// PersistedFields or scanned from the store. Integer columns may arrive as any
// Go integer type or bool; byte columns as []byte or string.
func PubkeyFromFields(fields map[string]any) (*Pubkey, error) {
	var (
		p   Pubkey
		err error
	)

	if v, ok := fields[FieldID]; ok && v != nil {
		if p.state.id, err = toInt64(FieldID, v); err != nil {
			return nil, err
		}
	}
	if p.state.nickname, err = toString(FieldNickname, fields[FieldNickname]); err != nil {
		return nil, err
	}
	typeName, err := toString(FieldType, fields[FieldType])
	if err != nil {
		return nil, err
	}
	p.state.keyType = ParseKeyType(typeName)

	if p.state.privateKey, err = toBytes(FieldPrivate, fields[FieldPrivate]); err != nil {
		return nil, err
	}
	if p.state.publicKey, err = toBytes(FieldPublic, fields[FieldPublic]); err != nil {
		return nil, err
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{FieldEncrypted, &p.state.encrypted},
		{FieldStartup, &p.state.startup},
		{FieldConfirmUse, &p.state.confirmUse},
		{FieldSecurityKey, &p.state.securityKey},
	}
	for _, f := range flags {
		n, err := toInt64(f.name, fields[f.name])
		if err != nil {
			return nil, err
		}
		*f.dst = n != 0
	}

	lifetime, err := toInt64(FieldLifetime, fields[FieldLifetime])
	if err != nil {
		return nil, err
	}
	p.state.lifetime = int(lifetime)

	if p.state.securityKeyType, err = toString(FieldSecurityKeyType, fields[FieldSecurityKeyType]); err != nil {
		return nil, err
	}

	return &p, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toInt64(field string, v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case bool:
		return boolToInt(n), nil
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}

func toString(field string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}

func toBytes(field string, v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.Clone(b), nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("field %s: unexpected type %T", field, v)
	}
}
