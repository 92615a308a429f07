package tiktok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	doauth "cookout-auth/internal/domain/oauth"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		ClientKey:    "ck",
		ClientSecret: "cs",
		HTTP:         srv.Client(),
		TokenURL:     srv.URL + "/v2/oauth/token/",
		UserInfoURL:  srv.URL + "/v2/user/info/",
	}
}

func TestClient_AuthURL(t *testing.T) {
	c := &Client{ClientKey: "ck"}
	raw := c.AuthURL("st", "https://svc/tiktokCallback", "user.info.basic")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.tiktok.com", u.Host)
	q := u.Query()
	assert.Equal(t, "ck", q.Get("client_key"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "user.info.basic", q.Get("scope"))
	assert.Equal(t, "https://svc/tiktokCallback", q.Get("redirect_uri"))
	assert.Equal(t, "st", q.Get("state"))
}

func TestClient_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ck", r.PostForm.Get("client_key"))
		assert.Equal(t, "cs", r.PostForm.Get("client_secret"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://cb", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"act","refresh_token":"rft","expires_in":86400,"open_id":"oid","scope":"user.info.basic","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(srv).Exchange(context.Background(), "the-code", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, doauth.Token{AccessToken: "act", RefreshToken: "rft", ExpiresIn: 86400, OpenID: "oid", Scope: "user.info.basic", TokenType: "Bearer"}, tok)
}

func TestClient_Exchange_WrappedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"access_token":"act","open_id":"oid"},"message":"success"}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(srv).Exchange(context.Background(), "c", "https://cb")
	require.NoError(t, err)
	assert.Equal(t, "act", tok.AccessToken)
	assert.Equal(t, "oid", tok.OpenID)
}

func TestClient_Exchange_LooseExpiresIn(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want int64
	}{
		"integer":  {raw: `86400`, want: 86400},
		"string":   {raw: `"86400"`, want: 86400},
		"exponent": {raw: `8.64e4`, want: 86400},
		"float":    {raw: `86400.0`, want: 86400},
		"null":     {raw: `null`, want: 0},
		"garbage":  {raw: `"soon"`, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"access_token":"act","open_id":"oid","expires_in":` + tc.raw + `}`))
			}))
			defer srv.Close()

			tok, err := newTestClient(srv).Exchange(context.Background(), "c", "https://cb")
			require.NoError(t, err)
			assert.Equal(t, "act", tok.AccessToken)
			assert.Equal(t, tc.want, tok.ExpiresIn)
		})
	}
}

func TestClient_Exchange_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"non-2xx":         {http.StatusBadRequest, `{"access_token":"act"}`},
		"provider error":  {http.StatusOK, `{"error":"invalid_grant","error_description":"Authorization code is expired."}`},
		"no access token": {http.StatusOK, `{"open_id":"oid"}`},
		"not json":        {http.StatusOK, `<html>`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Exchange(context.Background(), "c", "https://cb")
			require.Error(t, err)
			assert.Equal(t, doauth.KindTokenExchangeFailed, doauth.KindOf(err))
		})
	}
}

func TestClient_Exchange_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.HTTP = &http.Client{Timeout: 20 * time.Millisecond}
	_, err := c.Exchange(context.Background(), "c", "https://cb")
	require.Error(t, err)
	assert.Equal(t, doauth.KindProviderUnavailable, doauth.KindOf(err))
}

func TestClient_FetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer act", r.Header.Get("Authorization"))
		assert.Equal(t, "open_id,union_id,display_name,avatar_url", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"data":{"user":{"open_id":"oid","display_name":"Chef","avatar_url":"https://img/a.png"}},"error":{"code":"ok","message":"","log_id":"l"}}`))
	}))
	defer srv.Close()

	ident, err := newTestClient(srv).FetchProfile(context.Background(), "act")
	require.NoError(t, err)
	assert.Equal(t, doauth.ProviderIdentity{Provider: "tiktok", SubjectID: "oid", DisplayName: "Chef", PhotoURL: "https://img/a.png"}, ident)
}

func TestClient_FetchProfile_NestedData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"data":{"user":{"open_id":"oid"}}}}`))
	}))
	defer srv.Close()

	ident, err := newTestClient(srv).FetchProfile(context.Background(), "act")
	require.NoError(t, err)
	assert.Equal(t, "oid", ident.SubjectID)
	assert.Empty(t, ident.DisplayName)
}

func TestClient_FetchProfile_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"unauthorized":   {http.StatusUnauthorized, `{"error":{"code":"access_token_invalid"}}`},
		"api error":      {http.StatusOK, `{"data":{},"error":{"code":"scope_not_authorized","message":"nope"}}`},
		"missing openid": {http.StatusOK, `{"data":{"user":{"display_name":"x"}}}`},
		"empty":          {http.StatusOK, `{}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).FetchProfile(context.Background(), "act")
			require.Error(t, err)
			assert.Equal(t, doauth.KindProfileFetchFailed, doauth.KindOf(err))
		})
	}

	t.Run("no token", func(t *testing.T) {
		_, err := (&Client{}).FetchProfile(context.Background(), "")
		assert.Equal(t, doauth.KindProfileFetchFailed, doauth.KindOf(err))
	})
}
