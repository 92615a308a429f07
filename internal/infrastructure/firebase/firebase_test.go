package firebase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doauth "cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/domain/support"
)

func testServiceAccount(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	b, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "cookout-test",
		"private_key_id": "k1",
		"private_key":    string(pemKey),
		"client_email":   "svc@cookout-test.iam.gserviceaccount.com",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(t, err)
	return b, key
}

func TestLoadServiceAccount(t *testing.T) {
	raw, _ := testServiceAccount(t)

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "serviceAccountKey.json")
		require.NoError(t, os.WriteFile(path, raw, 0o600))
		sa, err := LoadServiceAccount(path, "", "")
		require.NoError(t, err)
		assert.Equal(t, "cookout-test", sa.ProjectID)
		assert.Equal(t, raw, sa.JSON())
	})

	t.Run("missing file falls back to json", func(t *testing.T) {
		sa, err := LoadServiceAccount(filepath.Join(t.TempDir(), "nope.json"), string(raw), "")
		require.NoError(t, err)
		assert.Equal(t, "svc@cookout-test.iam.gserviceaccount.com", sa.ClientEmail)
	})

	t.Run("base64", func(t *testing.T) {
		sa, err := LoadServiceAccount("", "", base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, "k1", sa.PrivateKeyID)
	})

	t.Run("none", func(t *testing.T) {
		_, err := LoadServiceAccount("", "", "")
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("incomplete", func(t *testing.T) {
		_, err := ParseServiceAccount([]byte(`{"project_id":"x"}`))
		assert.Error(t, err)
	})
}

func TestMinter_Mint(t *testing.T) {
	raw, key := testServiceAccount(t)
	sa, err := ParseServiceAccount(raw)
	require.NoError(t, err)
	m, err := NewMinter(sa)
	require.NoError(t, err)

	signed, err := m.Mint(context.Background(), "tiktok:abc", map[string]any{"provider": "tiktok"})
	require.NoError(t, err)

	claims := &customTokenClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(CustomTokenAudience))
	require.NoError(t, err)
	assert.Equal(t, "tiktok:abc", claims.UID)
	assert.Equal(t, map[string]any{"provider": "tiktok"}, claims.Claims)
	assert.Equal(t, sa.ClientEmail, claims.Issuer)
	assert.Equal(t, sa.ClientEmail, claims.Subject)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestMinter_Rejects(t *testing.T) {
	m := NewEmulatorMinter()

	_, err := m.Mint(context.Background(), "", nil)
	assert.Equal(t, doauth.KindTokenMintFailed, doauth.KindOf(err))

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	_, err = m.Mint(context.Background(), string(long), nil)
	assert.Equal(t, doauth.KindTokenMintFailed, doauth.KindOf(err))

	_, err = m.Mint(context.Background(), "google:1", map[string]any{"sub": "x"})
	assert.Equal(t, doauth.KindTokenMintFailed, doauth.KindOf(err))
}

func TestMinter_EmulatorUnsigned(t *testing.T) {
	signed, err := NewEmulatorMinter().Mint(context.Background(), "google:1", map[string]any{"provider": "google"})
	require.NoError(t, err)

	claims := &customTokenClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(tok *jwt.Token) (any, error) {
		return jwt.UnsafeAllowNoneSignatureType, nil
	}, jwt.WithValidMethods([]string{"none"}))
	require.NoError(t, err)
	assert.Equal(t, "google:1", claims.UID)
}

// fakeToolkit is a minimal Identity Toolkit admin API.
type fakeToolkit struct {
	mu    sync.Mutex
	users map[string]map[string]any
	auth  []string
}

func (f *fakeToolkit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	fail := func(msg string) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": msg}})
	}

	switch filepath.Base(r.URL.Path) {
	case "accounts:lookup":
		var found []map[string]any
		if ids, ok := body["localId"].([]any); ok {
			if u, ok := f.users[ids[0].(string)]; ok {
				found = append(found, u)
			}
		}
		if emails, ok := body["email"].([]any); ok {
			for _, u := range f.users {
				if u["email"] == emails[0] {
					found = append(found, u)
				}
			}
		}
		resp := map[string]any{"kind": "identitytoolkit#GetAccountInfoResponse"}
		if len(found) > 0 {
			resp["users"] = found
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "accounts":
		id := body["localId"].(string)
		if _, ok := f.users[id]; ok {
			fail("DUPLICATE_LOCAL_ID : uid already in use")
			return
		}
		f.users[id] = body
		_ = json.NewEncoder(w).Encode(map[string]any{"localId": id})
	case "accounts:update":
		id := body["localId"].(string)
		u, ok := f.users[id]
		if !ok {
			fail("USER_NOT_FOUND")
			return
		}
		if v, ok := body["disableUser"]; ok {
			u["disabled"] = v
		}
		if v, ok := body["customAttributes"]; ok {
			u["customAttributes"] = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"localId": id})
	default:
		http.NotFound(w, r)
	}
}

func TestDirectory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeToolkit{users: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	d := NewDirectoryWithClient(srv.URL, "cookout-test", srv.Client())

	_, err := d.GetUser(ctx, "google:1")
	assert.ErrorIs(t, err, doauth.ErrUserNotFound)

	u := doauth.LocalUser{UID: "google:1", Provider: "google", Email: "cook@example.com", EmailVerified: true, DisplayName: "Cook", PhotoURL: "https://p"}
	require.NoError(t, d.CreateUser(ctx, u))
	assert.ErrorIs(t, d.CreateUser(ctx, u), doauth.ErrUserExists)

	got, err := d.GetUser(ctx, "google:1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = d.GetUserByEmail(ctx, "cook@example.com")
	require.NoError(t, err)
	assert.Equal(t, "google:1", got.UID)

	disabled := true
	require.NoError(t, d.UpdateUser(ctx, "google:1", support.Update{Disabled: &disabled, Claims: map[string]any{"role": "support"}}))
	assert.Equal(t, `{"role":"support"}`, fake.users["google:1"]["customAttributes"])
	assert.ErrorIs(t, d.UpdateUser(ctx, "nobody", support.Update{Disabled: &disabled}), doauth.ErrUserNotFound)
}

func TestDirectory_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()
	d := NewDirectoryWithClient(srv.URL, "p", srv.Client())

	err := d.CreateUser(context.Background(), doauth.LocalUser{UID: "google:1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, doauth.ErrUserExists)
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestEmulatorDirectory_SendsOwnerToken(t *testing.T) {
	fake := &fakeToolkit{users: map[string]map[string]any{}}
	srv := httptest.NewServer(http.StripPrefix("/identitytoolkit.googleapis.com", fake))
	defer srv.Close()

	host := srv.Listener.Addr().String()
	d := NewEmulatorDirectory(host, "demo-cookout", nil)
	_, err := d.GetUser(context.Background(), "tiktok:x")
	assert.ErrorIs(t, err, doauth.ErrUserNotFound)
	require.NotEmpty(t, fake.auth)
	assert.Equal(t, "Bearer owner", fake.auth[0])
}
