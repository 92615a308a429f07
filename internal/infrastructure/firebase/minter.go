package firebase

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	doauth "cookout-auth/internal/domain/oauth"
)

const (
	// CustomTokenAudience is fixed by the identity platform.
	CustomTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"
	customTokenTTL      = time.Hour
	maxUIDLength        = 128
	emulatorEmail       = "firebase-auth-emulator@example.com"
)

var reservedClaims = map[string]bool{
	"acr": true, "amr": true, "at_hash": true, "aud": true, "auth_time": true,
	"azp": true, "cnf": true, "c_hash": true, "exp": true, "firebase": true,
	"iat": true, "iss": true, "jti": true, "nbf": true, "nonce": true, "sub": true,
}

type customTokenClaims struct {
	UID    string         `json:"uid"`
	Claims map[string]any `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// Minter signs custom tokens the client SDK exchanges for an ID token.
type Minter struct {
	email  string
	key    *rsa.PrivateKey
	method jwt.SigningMethod
	now    func() time.Time
}

func NewMinter(sa *ServiceAccount) (*Minter, error) {
	key, err := sa.RSAKey()
	if err != nil {
		return nil, err
	}
	return &Minter{
		email:  sa.ClientEmail,
		key:    key,
		method: jwt.SigningMethodRS256,
		now:    time.Now,
	}, nil
}

// NewEmulatorMinter produces unsigned tokens, which only the Auth emulator
// accepts.
func NewEmulatorMinter() *Minter {
	return &Minter{email: emulatorEmail, method: jwt.SigningMethodNone, now: time.Now}
}

func (m *Minter) Mint(ctx context.Context, uid string, claims map[string]any) (string, error) {
	if uid == "" || len(uid) > maxUIDLength {
		return "", doauth.Errorf(doauth.KindTokenMintFailed, "uid must be 1-%d characters", maxUIDLength)
	}
	for k := range claims {
		if reservedClaims[k] {
			return "", doauth.Errorf(doauth.KindTokenMintFailed, "claim %q is reserved", k)
		}
	}

	iat := m.now()
	tok := jwt.NewWithClaims(m.method, customTokenClaims{
		UID:    uid,
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.email,
			Subject:   m.email,
			Audience:  jwt.ClaimStrings{CustomTokenAudience},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(customTokenTTL)),
		},
	})

	var (
		signed string
		err    error
	)
	switch {
	case m.method == jwt.SigningMethodNone:
		signed, err = tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	case m.key != nil:
		signed, err = tok.SignedString(m.key)
	default:
		err = errors.New("no signing key")
	}
	if err != nil {
		return "", doauth.Errorf(doauth.KindTokenMintFailed, "sign custom token for %s: %w", uid, err)
	}
	return signed, nil
}
