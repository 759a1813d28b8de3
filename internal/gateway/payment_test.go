package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentGatewayRequests(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		switch r.URL.Path {
		case "/preauthorizations":
			json.NewEncoder(w).Encode(PreauthResult{AuthorizationCode: "auth-1", TransactionID: "txn-1"})
		case "/captures":
			json.NewEncoder(w).Encode(CaptureResult{CaptureCode: "cap-1"})
		case "/refunds":
			json.NewEncoder(w).Encode(RefundResult{RefundID: "ref-1"})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	gw := NewHTTPPaymentGateway(server.URL, 5*time.Second)
	ctx := context.Background()

	preauth, err := gw.Preauthorize(ctx, 1500, "tok-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "auth-1", preauth.AuthorizationCode)
	assert.Equal(t, "/preauthorizations", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, float64(1500), gotBody["amount_cents"])
	assert.Equal(t, "tok-1", gotBody["payment_token"])

	capture, err := gw.Capture(ctx, "auth-1", "key-1:capture")
	require.NoError(t, err)
	assert.Equal(t, "cap-1", capture.CaptureCode)
	assert.Equal(t, "key-1:capture", gotKey)
	assert.Equal(t, "auth-1", gotBody["authorization_code"])

	require.NoError(t, gw.Void(ctx, "auth-1", "key-1:void"))
	assert.Equal(t, "/voids", gotPath)

	refund, err := gw.Refund(ctx, "cap-1", 1500, "key-1:refund")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", refund.RefundID)
	assert.Equal(t, "cap-1", gotBody["capture_code"])
}

func TestPaymentGatewayRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	gw := NewHTTPPaymentGateway(server.URL, 5*time.Second)
	_, err := gw.Preauthorize(context.Background(), 100, "tok-1", "key-1")
	assert.Error(t, err)
}

func TestCatalogAvailability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items/3/stock":
			json.NewEncoder(w).Encode(map[string]int{"stock": 2})
		case "/items/3":
			json.NewEncoder(w).Encode(CatalogItem{ID: 3, Name: "surprise bag", PriceCents: 500})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	catalog := NewHTTPCatalog(server.URL, 5*time.Second)
	ctx := context.Background()

	available, err := catalog.CheckAvailability(ctx, 3, 2)
	require.NoError(t, err)
	assert.True(t, available)

	available, err = catalog.CheckAvailability(ctx, 3, 5)
	require.NoError(t, err)
	assert.False(t, available)

	item, err := catalog.GetItem(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "surprise bag", item.Name)

	_, err = catalog.GetItem(ctx, 99)
	assert.Error(t, err)
}
