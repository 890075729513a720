package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/realty-gateway/pkg/client"
)

func newTransport(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(client.DefaultConfig("RealtyGateway/test"))
	require.NoError(t, err)
	return c
}

func TestManager_PasswordLoginFromBody(t *testing.T) {
	var gotPhone, gotClient, gotAppID, gotOrigin string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPhone = r.PostForm.Get("phone")
		gotClient = r.PostForm.Get("client")
		gotAppID = r.URL.Query().Get("app_id")
		gotOrigin = r.Header.Get("Origin")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"auth_token":"tok-1","expires_in":3600}}`))
	}))
	defer server.Close()

	m := NewManager(Config{
		LoginURL: server.URL + "/login",
		AppID:    "42",
		Phone:    "8 (999) 123-45-67",
		Password: "secret",
		Origin:   "https://portal.example.com",
	}, newTransport(t), nil)

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, "+79991234567", gotPhone)
	assert.Equal(t, "web", gotClient)
	assert.Equal(t, "42", gotAppID)
	assert.Equal(t, "https://portal.example.com", gotOrigin)

	stored, _ := m.store.Load(context.Background())
	require.NotNil(t, stored)
	assert.WithinDuration(t, time.Now().Add(time.Hour), stored.ExpiresAt, 5*time.Second)
}

func TestManager_PasswordLoginFromRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cabinet?auth_token=redirect-tok", http.StatusFound)
	}))
	defer server.Close()

	m := NewManager(Config{LoginURL: server.URL, Phone: "9991234567", Password: "p"}, newTransport(t), nil)
	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "redirect-tok", tok)
}

func TestManager_PasswordLoginFromCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "cookie-tok"})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	m := NewManager(Config{LoginURL: server.URL, Phone: "+7 999 123 45 67", Password: "p"}, newTransport(t), nil)
	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cookie-tok", tok)
}

func TestManager_FallsBackToClientCredentials(t *testing.T) {
	var loginCalls, getCalls, postCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		loginCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		getCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/client-login", func(w http.ResponseWriter, r *http.Request) {
		postCalls.Add(1)
		r.ParseForm()
		if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "cs" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"client-tok"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := NewManager(Config{
		LoginURL:       server.URL + "/login",
		Phone:          "79991234567",
		Password:       "p",
		TokenURL:       server.URL + "/token",
		ClientLoginURL: server.URL + "/client-login",
		ClientID:       "cid",
		ClientSecret:   "cs",
	}, newTransport(t), nil)

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client-tok", tok)
	assert.Equal(t, int32(1), loginCalls.Load())
	assert.Equal(t, int32(1), getCalls.Load())
	assert.Equal(t, int32(1), postCalls.Load())
}

func TestManager_AllStrategiesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	m := NewManager(Config{
		LoginURL: server.URL, Phone: "79991234567", Password: "p",
		TokenURL: server.URL, ClientID: "a", ClientSecret: "b",
	}, newTransport(t), nil)

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthExpired))
	assert.Equal(t, http.StatusForbidden, client.StatusCodeOf(err))
}

func TestManager_NoCredentials(t *testing.T) {
	m := NewManager(Config{}, newTransport(t), nil)
	_, err := m.GetValidToken(context.Background())
	assert.True(t, errors.Is(err, ErrAuthExpired))
}

func TestManager_SingleFlightRefresh(t *testing.T) {
	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"auth_token":"shared","expires_in":600}`))
	}))
	defer server.Close()

	m := NewManager(Config{LoginURL: server.URL, Phone: "79991234567", Password: "p"}, newTransport(t), nil)

	var wg sync.WaitGroup
	results := make([]string, 20)
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.GetValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), logins.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestManager_RefreshesWithinMargin(t *testing.T) {
	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Write([]byte(`{"auth_token":"fresh","expires_in":600}`))
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	now := time.Now()
	require.NoError(t, store.Save(context.Background(), Token{Value: "old", ExpiresAt: now.Add(30 * time.Second)}))

	m := NewManager(Config{LoginURL: server.URL, Phone: "79991234567", Password: "p"}, newTransport(t), store)
	m.now = func() time.Time { return now }

	tok, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(1), logins.Load())

	// Cached now.
	tok, err = m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(1), logins.Load())
}

func TestManager_InvalidateAndLogout(t *testing.T) {
	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Write([]byte(`{"token":"t","expires_in":600}`))
	}))
	defer server.Close()

	m := NewManager(Config{LoginURL: server.URL, Phone: "79991234567", Password: "p"}, newTransport(t), nil)
	ctx := context.Background()

	_, err := m.GetValidToken(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Invalidate(ctx))
	_, err = m.GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), logins.Load())

	require.NoError(t, m.Logout(ctx))
	stored, _ := m.store.Load(ctx)
	assert.Nil(t, stored)
}

func TestManager_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	m := NewManager(Config{}, nil, nil)
	assert.True(t, m.expiry(signed, 0).Equal(exp))
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), m.expiry("opaque", 0), 2*time.Second)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), m.expiry(signed, 10*time.Second), 2*time.Second)
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"8 (999) 123-45-67": "+79991234567",
		"+7 999 123 45 67":  "+79991234567",
		"9991234567":        "+79991234567",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestTokenFromBody(t *testing.T) {
	tok, exp := tokenFromBody([]byte(`{"access_token":"a","expires_in":"120"}`))
	assert.Equal(t, "a", tok)
	assert.Equal(t, 120*time.Second, exp)

	tok, _ = tokenFromBody([]byte(`{"data":{"token":"nested"}}`))
	assert.Equal(t, "nested", tok)

	tok, _ = tokenFromBody([]byte(`[1,2]`))
	assert.Empty(t, tok)
}
