package model

// MessageID names a fixed-format, localizable template used when rendering a
// key description.
type MessageID string

const (
	MsgKeyTypeRSABits         MessageID = "key_type_rsa_bits"         // arg: bit length
	MsgKeyTypeDSABits         MessageID = "key_type_dsa_bits"         // arg: bit length
	MsgKeyTypeECBits          MessageID = "key_type_ec_bits"          // arg: bit length
	MsgKeyTypeED25519         MessageID = "key_type_ed25519"          // no args
	MsgKeyTypeUnknown         MessageID = "key_type_unknown"          // no args
	MsgKeyTypeUnknownStrength MessageID = "key_type_unknown_strength" // arg: key type name
	MsgKeyAttributeEncrypted  MessageID = "key_attribute_encrypted"   // no args
	MsgKeyAttributeHardware   MessageID = "key_attribute_hardware"    // arg: security key type
)

// MessageIDs lists every identifier a MessageFormatter must be able to render.
var MessageIDs = []MessageID{
	MsgKeyTypeRSABits,
	MsgKeyTypeDSABits,
	MsgKeyTypeECBits,
	MsgKeyTypeED25519,
	MsgKeyTypeUnknown,
	MsgKeyTypeUnknownStrength,
	MsgKeyAttributeEncrypted,
	MsgKeyAttributeHardware,
}

// MessageFormatter renders a message template with its arguments. Implementations
// are expected to be pure: the same id and args always produce the same text.
type MessageFormatter interface {
	Format(id MessageID, args ...any) string
}

// StrengthInferrer computes the bit strength of an encoded public key. It
// returns an error for malformed keys or algorithms it does not understand.
type StrengthInferrer interface {
	InferBits(publicKey []byte, keyType KeyType) (int, error)
}
