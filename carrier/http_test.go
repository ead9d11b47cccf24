package carrier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_ParsesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls", r.URL.Path)
		json.NewEncoder(w).Encode(DialResult{CarrierID: "carrier-1", InitialStatus: StatusQueued})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	result, err := client.Dial(t.Context(), DialSpec{To: "+15551234567", CorrelationID: "call-1"})
	require.NoError(t, err)
	assert.Equal(t, "carrier-1", result.CarrierID)
	assert.Equal(t, StatusQueued, result.InitialStatus)
}

func TestDial_ClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.Dial(t.Context(), DialSpec{To: "+15551234567"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestDial_ClassifiesInvalidNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	_, err := client.Dial(t.Context(), DialSpec{To: "not-a-number"})
	assert.ErrorIs(t, err, ErrInvalidNumber)
}
