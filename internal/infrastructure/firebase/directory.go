package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	doauth "cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/domain/support"
)

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com"
	scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
	scopeIdentity      = "https://www.googleapis.com/auth/identitytoolkit"
)

// Directory manages identity-platform users through the Identity Toolkit
// admin REST API.
type Directory struct {
	base      string
	projectID string
	http      *http.Client
}

// NewDirectory authenticates with the service account. base supplies the
// transport and timeout; nil uses a 10s client.
func NewDirectory(ctx context.Context, sa *ServiceAccount, projectID string, base *http.Client) (*Directory, error) {
	if projectID == "" {
		projectID = sa.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("firebase: project id is not set")
	}
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	conf, err := google.JWTConfigFromJSON(sa.JSON(), scopeCloudPlatform, scopeIdentity)
	if err != nil {
		return nil, fmt.Errorf("firebase: service account token source: %w", err)
	}
	client := conf.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = base.Timeout
	return &Directory{base: identityToolkitURL, projectID: projectID, http: client}, nil
}

// NewEmulatorDirectory talks to a local Auth emulator at host.
func NewEmulatorDirectory(host, projectID string, base *http.Client) *Directory {
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	c := *base
	c.Transport = ownerTransport{base: base.Transport}
	return &Directory{base: "http://" + host + "/identitytoolkit.googleapis.com", projectID: projectID, http: &c}
}

// NewDirectoryWithClient uses an already authenticated client against base.
func NewDirectoryWithClient(base, projectID string, c *http.Client) *Directory {
	return &Directory{base: strings.TrimRight(base, "/"), projectID: projectID, http: c}
}

// ownerTransport authenticates as the emulator's admin.
type ownerTransport struct{ base http.RoundTripper }

func (t ownerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer owner")
	rt := t.base
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(r)
}

type userInfo struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email,omitempty"`
	EmailVerified    bool   `json:"emailVerified,omitempty"`
	DisplayName      string `json:"displayName,omitempty"`
	PhotoURL         string `json:"photoUrl,omitempty"`
	Disabled         bool   `json:"disabled,omitempty"`
	CustomAttributes string `json:"customAttributes,omitempty"`
}

func (u userInfo) local() doauth.LocalUser {
	provider, _, _ := strings.Cut(u.LocalID, ":")
	if provider == u.LocalID {
		provider = ""
	}
	return doauth.LocalUser{
		UID:           u.LocalID,
		Provider:      provider,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Disabled:      u.Disabled,
	}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (d *Directory) GetUser(ctx context.Context, uid string) (doauth.LocalUser, error) {
	return d.lookup(ctx, map[string]any{"localId": []string{uid}})
}

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (doauth.LocalUser, error) {
	return d.lookup(ctx, map[string]any{"email": []string{email}})
}

func (d *Directory) lookup(ctx context.Context, req map[string]any) (doauth.LocalUser, error) {
	var resp struct {
		Users []userInfo `json:"users"`
	}
	if err := d.call(ctx, "accounts:lookup", req, &resp); err != nil {
		return doauth.LocalUser{}, err
	}
	if len(resp.Users) == 0 {
		return doauth.LocalUser{}, doauth.ErrUserNotFound
	}
	return resp.Users[0].local(), nil
}

func (d *Directory) CreateUser(ctx context.Context, u doauth.LocalUser) error {
	req := userInfo{
		LocalID:       u.UID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		Disabled:      u.Disabled,
	}
	return d.call(ctx, "accounts", req, nil)
}

func (d *Directory) UpdateUser(ctx context.Context, uid string, upd support.Update) error {
	req := map[string]any{"localId": uid}
	if upd.Disabled != nil {
		req["disableUser"] = *upd.Disabled
	}
	if upd.Claims != nil {
		b, err := json.Marshal(upd.Claims)
		if err != nil {
			return fmt.Errorf("firebase: encode claims: %w", err)
		}
		req["customAttributes"] = string(b)
	}
	return d.call(ctx, "accounts:update", req, nil)
}

func (d *Directory) call(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v1/projects/%s/%s", d.base, d.projectID, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("firebase %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("firebase %s: read body: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		return classify(method, resp.StatusCode, ae.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("firebase %s: decode: %w", method, err)
	}
	return nil
}

// classify maps API error codes such as "DUPLICATE_LOCAL_ID : ..." onto the
// directory sentinels.
func classify(method string, status int, msg string) error {
	code, _, _ := strings.Cut(msg, " ")
	switch code {
	case "DUPLICATE_LOCAL_ID", "UID_ALREADY_EXISTS":
		return fmt.Errorf("firebase %s: %w", method, doauth.ErrUserExists)
	case "USER_NOT_FOUND":
		return fmt.Errorf("firebase %s: %w", method, doauth.ErrUserNotFound)
	}
	return fmt.Errorf("firebase %s: status=%d message=%s", method, status, msg)
}
