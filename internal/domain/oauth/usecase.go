package oauth

import (
	"context"
	"errors"
	"strings"
)

// StateStore issues and consumes one-time anti-CSRF state tokens.
// ValidateAndConsume must report true to at most one caller per token.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	ValidateAndConsume(ctx context.Context, token string) (bool, error)
}

type TikTokClient interface {
	AuthURL(state, redirectURI, scope string) string
	Exchange(ctx context.Context, code, redirectURI string) (Token, error)
	FetchProfile(ctx context.Context, accessToken string) (ProviderIdentity, error)
}

type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken, audience string) (ProviderIdentity, error)
}

// Minter signs identity-platform custom tokens.
type Minter interface {
	Mint(ctx context.Context, uid string, claims map[string]any) (string, error)
}

// Params wires a UseCase.
type Params struct {
	TikTok    TikTokClient
	Google    GoogleVerifier
	States    StateStore
	Directory Directory
	Minter    Minter

	Scope          string
	RedirectURI    string
	GoogleAudience string
}

// Result is the outcome of a successful login.
type Result struct {
	CustomToken string
	User        LocalUser
}

type UseCase struct {
	tiktok   TikTokClient
	google   GoogleVerifier
	states   StateStore
	mapper   *Mapper
	minter   Minter
	scope    string
	redirect string
	audience string
}

func NewUseCase(p Params) *UseCase {
	return &UseCase{
		tiktok:   p.TikTok,
		google:   p.Google,
		states:   p.States,
		mapper:   NewMapper(p.Directory),
		minter:   p.Minter,
		scope:    p.Scope,
		redirect: p.RedirectURI,
		audience: p.GoogleAudience,
	}
}

// LoginURL issues a state token and returns the TikTok authorization URL
// carrying it.
func (u *UseCase) LoginURL(ctx context.Context) (string, error) {
	state, err := u.states.Issue(ctx)
	if err != nil {
		return "", at(err, ProviderTikTok, StageStart, KindUnknown)
	}
	return u.tiktok.AuthURL(state, u.redirect, u.scope), nil
}

// Callback completes the TikTok flow. Stages run strictly in order and the
// first failure ends the flow.
func (u *UseCase) Callback(ctx context.Context, code, state string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" || state == "" {
		return Result{}, at(Errorf(KindMissingInput, "missing code or state"), ProviderTikTok, StageAwaitingCallback, KindMissingInput)
	}

	ok, err := u.states.ValidateAndConsume(ctx, state)
	if err != nil {
		return Result{}, at(err, ProviderTikTok, StageAwaitingCallback, KindUnknown)
	}
	if !ok {
		return Result{}, at(Errorf(KindInvalidState, "state not issued or already used"), ProviderTikTok, StageAwaitingCallback, KindInvalidState)
	}

	tok, err := u.tiktok.Exchange(ctx, code, u.redirect)
	if err != nil {
		return Result{}, at(err, ProviderTikTok, StageExchanging, KindTokenExchangeFailed)
	}
	if tok.AccessToken == "" {
		return Result{}, at(Errorf(KindTokenExchangeFailed, "no access token"), ProviderTikTok, StageExchanging, KindTokenExchangeFailed)
	}

	ident, err := u.tiktok.FetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return Result{}, at(err, ProviderTikTok, StageExchanging, KindProfileFetchFailed)
	}
	if ident.SubjectID == "" {
		return Result{}, at(Errorf(KindProfileFetchFailed, "profile has no open_id"), ProviderTikTok, StageExchanging, KindProfileFetchFailed)
	}
	// The token endpoint and the profile must agree on who logged in.
	if tok.OpenID != "" && tok.OpenID != ident.SubjectID {
		return Result{}, at(Errorf(KindIdentityMismatch, "open_id %q from token, %q from profile", tok.OpenID, ident.SubjectID), ProviderTikTok, StageExchanging, KindIdentityMismatch)
	}

	return u.finish(ctx, ProviderTikTok, ident)
}

// VerifyGoogle exchanges a Google ID token for a custom token.
func (u *UseCase) VerifyGoogle(ctx context.Context, idToken string) (Result, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Result{}, at(Errorf(KindMissingInput, "missing idToken"), ProviderGoogle, StageAwaitingCallback, KindMissingInput)
	}
	if u.audience == "" {
		return Result{}, at(Errorf(KindMisconfigured, "GOOGLE_CLIENT_ID is not set"), ProviderGoogle, StageAwaitingCallback, KindMisconfigured)
	}

	ident, err := u.google.VerifyIDToken(ctx, idToken, u.audience)
	if err != nil {
		return Result{}, at(err, ProviderGoogle, StageExchanging, KindInvalidToken)
	}
	return u.finish(ctx, ProviderGoogle, ident)
}

func (u *UseCase) finish(ctx context.Context, provider string, ident ProviderIdentity) (Result, error) {
	user, err := u.mapper.ResolveLocalUser(ctx, provider, ident)
	if err != nil {
		return Result{}, at(err, provider, StageProvisioning, KindProvisioningFailed)
	}

	token, err := u.minter.Mint(ctx, user.UID, map[string]any{"provider": provider})
	if err != nil {
		return Result{}, at(err, provider, StageMinting, KindTokenMintFailed)
	}
	if token == "" {
		return Result{}, at(errors.New("empty custom token"), provider, StageMinting, KindTokenMintFailed)
	}
	return Result{CustomToken: token, User: user}, nil
}
