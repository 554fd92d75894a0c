package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

func TestRecorder_RecordRotation(t *testing.T) {
	r := NewRecorder(false)

	r.RecordRotation(model.KeyTypeRSA, driven.OutcomeSuccess)
	r.RecordRotation(model.KeyTypeRSA, driven.OutcomeSuccess)
	r.RecordRotation(model.KeyTypeEC, driven.OutcomeDecodeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.rotations.WithLabelValues("RSA", driven.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rotations.WithLabelValues("EC", driven.OutcomeDecodeFailed)))
}

func TestRecorder_UnlockMetrics(t *testing.T) {
	r := NewRecorder(false)

	r.RecordUnlock(model.KeyTypeED25519, driven.OutcomeSuccess)
	r.SetUnlockedKeys(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.unlocks.WithLabelValues("ED25519", driven.OutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.unlockedKeys))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(true)
	r.RecordRotation(model.KeyTypeRSA, driven.OutcomeSuccess)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mykeypanel_passphrase_rotations_total{key_type="RSA",outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
