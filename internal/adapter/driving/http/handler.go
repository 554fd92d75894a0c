package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/mykeypanel/internal/application"
	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies; imported private keys are the largest.
const maxBodyBytes = 64 << 10

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	svc       *application.PubkeyService
	localizer driven.Localizer
	db        Pinger
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. db may be nil,
// in which case the health check does not probe storage.
func NewHandler(
	svc *application.PubkeyService,
	localizer driven.Localizer,
	db Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		svc:       svc,
		localizer: localizer,
		db:        db,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics is mounted at /metrics when
// non-nil.
func NewServeMux(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/pubkeys", h.ListPubkeys)
	mux.HandleFunc("POST /api/v1/pubkeys", h.GeneratePubkey)
	mux.HandleFunc("POST /api/v1/pubkeys/import", h.ImportPubkey)
	mux.HandleFunc("POST /api/v1/pubkeys/security-keys", h.RegisterSecurityKey)
	mux.HandleFunc("GET /api/v1/pubkeys/{id}", h.GetPubkey)
	mux.HandleFunc("PATCH /api/v1/pubkeys/{id}", h.UpdatePubkey)
	mux.HandleFunc("DELETE /api/v1/pubkeys/{id}", h.DeletePubkey)
	mux.HandleFunc("PUT /api/v1/pubkeys/{id}/passphrase", h.ChangePassphrase)
	mux.HandleFunc("POST /api/v1/pubkeys/{id}/unlock", h.UnlockPubkey)
	mux.HandleFunc("POST /api/v1/pubkeys/{id}/lock", h.LockPubkey)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = crossOriginMiddleware(logger, wrapped)
	wrapped = noStoreMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListPubkeys returns all stored keys.
func (h *Handler) ListPubkeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "list pubkeys", err)
		return
	}

	messages := h.messages(r)
	resp := make([]PubkeyResponse, 0, len(keys))
	for _, key := range keys {
		resp = append(resp, h.toPubkeyResponse(key, messages))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPubkey returns a single key including its authorized_keys line.
func (h *Handler) GetPubkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	key, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get pubkey", err)
		return
	}

	resp := h.toPubkeyResponse(key, h.messages(r))
	if line, err := h.svc.AuthorizedKey(key); err == nil {
		resp.AuthorizedKey = line
	}

	writeJSON(w, http.StatusOK, resp)
}

// GeneratePubkey creates a new key pair.
func (h *Handler) GeneratePubkey(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	keyType := model.ParseKeyType(req.Type)
	if !keyType.IsKnown() {
		writeError(w, http.StatusBadRequest, "unknown key type")
		return
	}

	key, err := h.svc.Generate(r.Context(), application.GenerateRequest{
		Nickname:   req.Nickname,
		KeyType:    keyType,
		Bits:       req.Bits,
		Passphrase: req.Passphrase,
		Startup:    req.Startup,
		ConfirmUse: req.ConfirmUse,
		Lifetime:   req.Lifetime,
	})
	if err != nil {
		h.writeServiceError(w, "generate pubkey", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toPubkeyResponse(key, h.messages(r)))
}

// ImportPubkey stores an existing PEM or OpenSSH private key.
func (h *Handler) ImportPubkey(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key, err := h.svc.Import(r.Context(), application.ImportRequest{
		Nickname:   req.Nickname,
		PrivateKey: []byte(req.PrivateKey),
		Passphrase: req.Passphrase,
		Startup:    req.Startup,
		ConfirmUse: req.ConfirmUse,
		Lifetime:   req.Lifetime,
	})
	if err != nil {
		h.writeServiceError(w, "import pubkey", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toPubkeyResponse(key, h.messages(r)))
}

// RegisterSecurityKey stores the public half of a hardware-backed key.
func (h *Handler) RegisterSecurityKey(w http.ResponseWriter, r *http.Request) {
	var req SecurityKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key, err := h.svc.RegisterSecurityKey(r.Context(), application.SecurityKeyRequest{
		Nickname:  req.Nickname,
		PublicKey: []byte(req.PublicKey),
		Label:     req.Label,
	})
	if err != nil {
		h.writeServiceError(w, "register security key", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toPubkeyResponse(key, h.messages(r)))
}

// UpdatePubkey changes nickname, startup, confirm-use or lifetime.
func (h *Handler) UpdatePubkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key, err := h.svc.UpdateSettings(r.Context(), id, application.SettingsUpdate{
		Nickname:   req.Nickname,
		Startup:    req.Startup,
		ConfirmUse: req.ConfirmUse,
		Lifetime:   req.Lifetime,
	})
	if err != nil {
		h.writeServiceError(w, "update pubkey", err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPubkeyResponse(key, h.messages(r)))
}

// DeletePubkey locks and removes a key.
func (h *Handler) DeletePubkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete pubkey", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassphrase re-encrypts a key's private half. A wrong old passphrase is
// answered with 403 and changes nothing.
func (h *Handler) ChangePassphrase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req PassphraseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.svc.ChangePassphrase(r.Context(), id, req.OldPassphrase, req.NewPassphrase); err != nil {
		h.writeServiceError(w, "change passphrase", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlockPubkey decodes a key into the in-memory keyring.
func (h *Handler) UnlockPubkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// The body is optional: unencrypted keys unlock without a passphrase.
	var req UnlockRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Unlock(r.Context(), id, req.Passphrase); err != nil {
		h.writeServiceError(w, "unlock pubkey", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LockPubkey removes a key from the keyring.
func (h *Handler) LockPubkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeServiceError(w, "lock pubkey", err)
		return
	}
	h.svc.Lock(id)

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness and, when configured, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check database ping failed", "error", err)
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// messages picks the formatter for the request's Accept-Language header.
func (h *Handler) messages(r *http.Request) model.MessageFormatter {
	return h.localizer.Formatter(r.Header.Get("Accept-Language"))
}

// writeServiceError maps application and port errors onto status codes.
// Anything unrecognized is logged and reported as a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrPubkeyNotFound):
		writeError(w, http.StatusNotFound, "pubkey not found")
	case errors.Is(err, driven.ErrNicknameTaken):
		writeError(w, http.StatusConflict, "nickname already in use")
	case errors.Is(err, application.ErrNoLocalKeyMaterial):
		writeError(w, http.StatusConflict, "key has no local private key material")
	case errors.Is(err, application.ErrDecodeFailed):
		writeError(w, http.StatusForbidden, "private key could not be decoded with the given passphrase")
	case errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, driven.ErrInvalidKeySize),
		errors.Is(err, driven.ErrUnsupportedKeyType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the {id} path value, writing a 400 when it is not a positive
// integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid pubkey id")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
