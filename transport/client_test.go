package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/stretchr/testify/require"
)

func TestClient_RequestDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, transport.EndpointLogin, r.URL.Path)
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "value", r.Header.Get("X-Extra"))

		_ = json.NewEncoder(w).Encode(transport.Response{
			Success: true,
			Data:    json.RawMessage(`{"field":"payload"}`),
		})
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)
	resp, err := client.Request(context.Background(), transport.EndpointLogin, transport.MethodPost,
		[]byte(`{}`), map[string]string{"X-Extra": "value"})

	require.NoError(t, err)
	require.True(t, resp.Success)

	var payload struct {
		Field string `json:"field"`
	}
	require.NoError(t, resp.Decode(&payload))
	require.Equal(t, "payload", payload.Field)
}

func TestClient_MalformedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := transport.NewClient(server.URL)
	_, err := client.Request(context.Background(), transport.EndpointLogin, transport.MethodGet, nil, nil)

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	require.Equal(t, http.StatusBadGateway, terr.Status)
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := transport.NewClient(server.URL)
	_, err := client.Request(ctx, transport.EndpointLogin, transport.MethodGet, nil, nil)

	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
}
