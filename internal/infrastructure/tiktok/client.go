package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	doauth "cookout-auth/internal/domain/oauth"
)

const (
	AuthEndpoint  = "https://www.tiktok.com/v2/auth/authorize/"
	TokenEndpoint = "https://open.tiktokapis.com/v2/oauth/token/"
	UserInfoURL   = "https://open.tiktokapis.com/v2/user/info/"
)

// ProfileFields is what the callback asks the user info endpoint for.
var ProfileFields = []string{"open_id", "union_id", "display_name", "avatar_url"}

type Client struct {
	ClientKey    string
	ClientSecret string
	HTTP         *http.Client

	// Endpoint overrides, empty means production.
	AuthURLBase string
	TokenURL    string
	UserInfoURL string
}

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// AuthURL builds TikTok v2 authorization URL.
func (c *Client) AuthURL(state, redirectURI, scope string) string {
	v := url.Values{}
	v.Set("client_key", c.ClientKey)
	v.Set("response_type", "code")
	if scope != "" {
		v.Set("scope", scope)
	}
	v.Set("redirect_uri", redirectURI)
	if state != "" {
		v.Set("state", state)
	}
	return orDefault(c.AuthURLBase, AuthEndpoint) + "?" + v.Encode()
}

// Exchange exchanges authorization code for tokens using x-www-form-urlencoded.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (doauth.Token, error) {
	form := url.Values{}
	form.Set("client_key", c.ClientKey)
	form.Set("client_secret", c.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	// must match the authorization request
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orDefault(c.TokenURL, TokenEndpoint), strings.NewReader(form.Encode()))
	if err != nil {
		return doauth.Token{}, doauth.Wrap(doauth.KindTokenExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req, 1<<20)
	if err != nil {
		return doauth.Token{}, err
	}
	if status < 200 || status >= 300 {
		return doauth.Token{}, doauth.Errorf(doauth.KindTokenExchangeFailed, "status=%d body=%s", status, trunc(body, 2048))
	}

	var raw tokenResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return doauth.Token{}, doauth.Errorf(doauth.KindTokenExchangeFailed, "decode token response: %w", err)
	}
	return normalizeToken(raw)
}

// FetchProfile reads the logged in user's profile with the bearer token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (doauth.ProviderIdentity, error) {
	if accessToken == "" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindProfileFetchFailed, "missing access token")
	}
	q := url.Values{}
	q.Set("fields", strings.Join(ProfileFields, ","))
	u := orDefault(c.UserInfoURL, UserInfoURL) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return doauth.ProviderIdentity{}, doauth.Wrap(doauth.KindProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	status, body, err := c.do(req, 2<<20)
	if err != nil {
		return doauth.ProviderIdentity{}, err
	}
	if status < 200 || status >= 300 {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindProfileFetchFailed, "status=%d body=%s", status, trunc(body, 2048))
	}

	var raw userInfoResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindProfileFetchFailed, "decode user info: %w", err)
	}
	return normalizeProfile(raw)
}

// do sends req and reads at most limit bytes. Transport failures and
// timeouts are reported as provider unavailability.
func (c *Client) do(req *http.Request, limit int64) (int, []byte, error) {
	resp, err := defaultHTTPClient(c.HTTP).Do(req)
	if err != nil {
		return 0, nil, doauth.Wrap(doauth.KindProviderUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, doauth.Wrap(doauth.KindProviderUnavailable, fmt.Errorf("read %s: %w", req.URL.Path, err))
	}
	return resp.StatusCode, body, nil
}

func trunc(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
