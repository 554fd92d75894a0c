package driven

import "github.com/ericfisherdev/mykeypanel/internal/domain/model"

// Outcome labels passed to RotationRecorder.
const (
	OutcomeSuccess      = "success"
	OutcomeDecodeFailed = "decode_failed"
	OutcomeEncodeFailed = "encode_failed"
	OutcomeNoLocalKey   = "no_local_key"
	OutcomeError        = "error"
)

// RotationRecorder records key lifecycle events for monitoring.
type RotationRecorder interface {
	RecordRotation(keyType model.KeyType, outcome string)
	RecordUnlock(keyType model.KeyType, outcome string)
	SetUnlockedKeys(n int)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RecordRotation(model.KeyType, string) {}
func (NopRecorder) RecordUnlock(model.KeyType, string)   {}
func (NopRecorder) SetUnlockedKeys(int)                  {}
