package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTokenIsCached(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)
	client := NewClientCred(Config{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})

	for i := 0; i < 3; i++ {
		token, err := client.GetToken()
		require.NoError(t, err)
		assert.Equal(t, "token123", token)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestCredentials(t *testing.T) {
	var calls atomic.Int32
	srv := tokenServer(t, &calls)

	user, pass := NewClientCred(Config{ClientID: "line-3", TokenURL: srv.URL}).Credentials()
	assert.Equal(t, "line-3", user)
	assert.Equal(t, "token123", pass)

	user, _ = NewClientCred(Config{ClientID: "line-3", TokenURL: srv.URL, Username: "planner"}).Credentials()
	assert.Equal(t, "planner", user)
}

func TestCredentialsTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClientCred(Config{ClientID: "id", TokenURL: srv.URL})
	_, err := client.GetToken()
	assert.Error(t, err)
	user, pass := client.Credentials()
	assert.Equal(t, "id", user)
	assert.Empty(t, pass)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{ClientID: "id", TokenURL: "https://idp/token"}.Validate())
	assert.Error(t, Config{ClientID: "id"}.Validate())
	assert.Error(t, Config{TokenURL: "https://idp/token"}.Validate())
}
