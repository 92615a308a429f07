package tiktok

import (
	"strconv"
	"strings"

	doauth "cookout-auth/internal/domain/oauth"
)

// lifetime is expires_in in seconds. Gateways send it as an integer, a float
// or a quoted string; anything unparseable is treated as unknown.
type lifetime int64

func (l *lifetime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*l = 0
		return nil
	}
	*l = lifetime(f)
	return nil
}

type tokenFields struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    lifetime `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	Scope        string   `json:"scope"`
	OpenID       string   `json:"open_id"`
}

// tokenResponse covers both the flat v2 body and the older {"data": {...}}
// envelope.
type tokenResponse struct {
	tokenFields
	Data             *tokenFields `json:"data"`
	Error            string       `json:"error"`
	ErrorDescription string       `json:"error_description"`
	Message          string       `json:"message"`
}

func normalizeToken(r tokenResponse) (doauth.Token, error) {
	if r.Error != "" {
		return doauth.Token{}, doauth.Errorf(doauth.KindTokenExchangeFailed, "%s: %s", r.Error, r.ErrorDescription)
	}
	f := r.tokenFields
	if r.Data != nil && r.Data.AccessToken != "" {
		f = *r.Data
	}
	if f.AccessToken == "" {
		return doauth.Token{}, doauth.Errorf(doauth.KindTokenExchangeFailed, "response has no access_token (message=%q)", r.Message)
	}
	return doauth.Token{
		AccessToken:  f.AccessToken,
		RefreshToken: f.RefreshToken,
		ExpiresIn:    int64(f.ExpiresIn),
		TokenType:    f.TokenType,
		Scope:        f.Scope,
		OpenID:       f.OpenID,
	}, nil
}

type tiktokUser struct {
	OpenID      string `json:"open_id"`
	UnionID     string `json:"union_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// userInfoResponse is {"data": {"user": {...}}} and, from some gateways,
// {"data": {"data": {"user": {...}}}}.
type userInfoResponse struct {
	Data *struct {
		User *tiktokUser `json:"user"`
		Data *struct {
			User *tiktokUser `json:"user"`
		} `json:"data"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

func normalizeProfile(r userInfoResponse) (doauth.ProviderIdentity, error) {
	if r.Error != nil && r.Error.Code != "" && r.Error.Code != "ok" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindProfileFetchFailed, "%s: %s (log_id=%s)", r.Error.Code, r.Error.Message, r.Error.LogID)
	}
	var u *tiktokUser
	if r.Data != nil {
		switch {
		case r.Data.User != nil:
			u = r.Data.User
		case r.Data.Data != nil:
			u = r.Data.Data.User
		}
	}
	if u == nil || u.OpenID == "" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindProfileFetchFailed, "profile has no open_id")
	}
	return doauth.ProviderIdentity{
		Provider:    doauth.ProviderTikTok,
		SubjectID:   u.OpenID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.AvatarURL,
	}, nil
}
