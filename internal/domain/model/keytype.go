package model

// KeyType identifies the algorithm of a stored key pair. The string values
// are the ones written to the type column of the pubkeys table.
type KeyType string

const (
	KeyTypeRSA     KeyType = "RSA"
	KeyTypeDSA     KeyType = "DSA"
	KeyTypeEC      KeyType = "EC"
	KeyTypeED25519 KeyType = "ED25519"
	KeyTypeUnknown KeyType = "UNKNOWN"
)

// KeyTypes lists every known algorithm in display order. KeyTypeUnknown is
// deliberately absent.
var KeyTypes = []KeyType{KeyTypeRSA, KeyTypeDSA, KeyTypeEC, KeyTypeED25519}

// ParseKeyType maps a stored or user-supplied type name onto the closed set of
// key types. Anything unrecognized becomes KeyTypeUnknown.
func ParseKeyType(s string) KeyType {
	switch KeyType(s) {
	case KeyTypeRSA, KeyTypeDSA, KeyTypeEC, KeyTypeED25519:
		return KeyType(s)
	}

	// Lowercase spellings are accepted on input (CLI flags, JSON bodies).
	switch s {
	case "rsa":
		return KeyTypeRSA
	case "dsa":
		return KeyTypeDSA
	case "ec", "ecdsa":
		return KeyTypeEC
	case "ed25519":
		return KeyTypeED25519
	}

	return KeyTypeUnknown
}

// IsKnown reports whether t is one of the supported algorithms.
func (t KeyType) IsKnown() bool {
	return t != KeyTypeUnknown && ParseKeyType(string(t)) == t
}

func (t KeyType) String() string {
	return string(t)
}
