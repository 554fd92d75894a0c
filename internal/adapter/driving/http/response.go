package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// PubkeyResponse is the JSON representation of a stored key. Private key
// material is never included.
type PubkeyResponse struct {
	ID              int64  `json:"id"`
	Nickname        string `json:"nickname"`
	Type            string `json:"type"`
	Description     string `json:"description"`
	Fingerprint     string `json:"fingerprint"`
	Encrypted       bool   `json:"encrypted"`
	Startup         bool   `json:"startup"`
	ConfirmUse      bool   `json:"confirm_use"`
	Lifetime        int    `json:"lifetime"`
	SecurityKey     bool   `json:"security_key"`
	SecurityKeyType string `json:"security_key_type,omitempty"`
	Unlocked        bool   `json:"unlocked"`

	// Populated only on the single key endpoint.
	AuthorizedKey string `json:"authorized_key,omitempty"`
}

// GenerateRequest is the JSON body for POST /api/v1/pubkeys.
type GenerateRequest struct {
	Nickname   string `json:"nickname"`
	Type       string `json:"type"`
	Bits       int    `json:"bits"`
	Passphrase string `json:"passphrase"`
	Startup    bool   `json:"startup"`
	ConfirmUse bool   `json:"confirm_use"`
	Lifetime   int    `json:"lifetime"`
}

// ImportRequest is the JSON body for POST /api/v1/pubkeys/import.
type ImportRequest struct {
	Nickname   string `json:"nickname"`
	PrivateKey string `json:"private_key"`
	Passphrase string `json:"passphrase"`
	Startup    bool   `json:"startup"`
	ConfirmUse bool   `json:"confirm_use"`
	Lifetime   int    `json:"lifetime"`
}

// SecurityKeyRequest is the JSON body for POST /api/v1/pubkeys/security-keys.
type SecurityKeyRequest struct {
	Nickname  string `json:"nickname"`
	PublicKey string `json:"public_key"`
	Label     string `json:"label"`
}

// UpdateRequest is the JSON body for PATCH /api/v1/pubkeys/{id}. Omitted
// fields are left unchanged.
type UpdateRequest struct {
	Nickname   *string `json:"nickname"`
	Startup    *bool   `json:"startup"`
	ConfirmUse *bool   `json:"confirm_use"`
	Lifetime   *int    `json:"lifetime"`
}

// PassphraseRequest is the JSON body for PUT /api/v1/pubkeys/{id}/passphrase.
type PassphraseRequest struct {
	OldPassphrase string `json:"old_passphrase"`
	NewPassphrase string `json:"new_passphrase"`
}

// UnlockRequest is the optional JSON body for POST /api/v1/pubkeys/{id}/unlock.
type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// HealthResponse is the JSON representation of the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func (h *Handler) toPubkeyResponse(key *model.Pubkey, messages model.MessageFormatter) PubkeyResponse {
	return PubkeyResponse{
		ID:              key.ID(),
		Nickname:        key.Nickname(),
		Type:            key.KeyType().String(),
		Description:     h.svc.Describe(key, messages),
		Fingerprint:     h.svc.Fingerprint(key),
		Encrypted:       key.Encrypted(),
		Startup:         key.Startup(),
		ConfirmUse:      key.ConfirmUse(),
		Lifetime:        key.Lifetime(),
		SecurityKey:     key.SecurityKey(),
		SecurityKeyType: key.SecurityKeyType(),
		Unlocked:        h.svc.IsUnlocked(key),
	}
}
