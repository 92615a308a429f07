package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	doauth "cookout-auth/internal/domain/oauth"
)

const CertsURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	// minForcedRefresh limits refetches triggered by unknown key ids while
	// the cached set is still fresh.
	minForcedRefresh = time.Minute
	refreshTimeout   = 10 * time.Second
)

var issuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

type jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// Verifier checks Google ID tokens against Google's published keys.
type Verifier struct {
	certsURL string
	http     *http.Client
	now      func() time.Time

	group  singleflight.Group
	mu     sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expiry  time.Time
	fetched time.Time
}

type Option func(*Verifier)

// WithCertsURL points the verifier at another JWKS endpoint.
func WithCertsURL(u string) Option { return func(v *Verifier) { v.certsURL = u } }

func WithHTTPClient(c *http.Client) Option { return func(v *Verifier) { v.http = c } }

func WithClock(now func() time.Time) Option { return func(v *Verifier) { v.now = now } }

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		certsURL: CertsURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// VerifyIDToken validates signature, expiry, issuer and audience, and
// returns the identity from the verified claims only.
func (v *Verifier) VerifyIDToken(ctx context.Context, idToken, audience string) (doauth.ProviderIdentity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindInvalidToken, "empty id token")
	}
	if audience == "" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindMisconfigured, "no expected audience")
	}

	claims := &idTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30*time.Second),
	)
	_, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		var de *doauth.Error
		if errors.As(err, &de) && de.Kind == doauth.KindProviderUnavailable {
			return doauth.ProviderIdentity{}, de
		}
		return doauth.ProviderIdentity{}, doauth.Wrap(doauth.KindInvalidToken, err)
	}

	if !issuers[claims.Issuer] {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindInvalidToken, "unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindInvalidToken, "missing subject")
	}
	verified, ok := parseEmailVerified(claims.EmailVerified)
	if !ok {
		return doauth.ProviderIdentity{}, doauth.Errorf(doauth.KindInvalidToken, "invalid email_verified claim")
	}

	return doauth.ProviderIdentity{
		Provider:      doauth.ProviderGoogle,
		SubjectID:     claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: verified,
		DisplayName:   strings.TrimSpace(claims.Name),
		PhotoURL:      strings.TrimSpace(claims.Picture),
	}, nil
}

// parseEmailVerified accepts a bool or "true"/"false"; absent means false.
func parseEmailVerified(v any) (bool, bool) {
	switch val := v.(type) {
	case nil:
		return false, true
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return b, err == nil
	default:
		return false, false
	}
}

func (v *Verifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	now := v.now()
	fresh := now.Before(v.expiry)
	recent := !v.fetched.IsZero() && now.Sub(v.fetched) < minForcedRefresh
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if fresh && recent {
		return nil, fmt.Errorf("no key for kid %q", kid)
	}

	// Unknown kid or stale cache: one refresh shared by concurrent callers,
	// detached from any single caller's cancellation.
	_, err, _ := v.group.Do("jwks", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, v.refresh(rctx)
	})
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key for kid %q", kid)
	}
	return key, nil
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return doauth.Wrap(doauth.KindProviderUnavailable, fmt.Errorf("fetch google certs: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return doauth.Errorf(doauth.KindProviderUnavailable, "google certs status=%d body=%s", resp.StatusCode, string(body))
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return doauth.Errorf(doauth.KindProviderUnavailable, "decode google certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kid == "" || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return doauth.Errorf(doauth.KindProviderUnavailable, "no usable rsa keys in google certs")
	}

	ttl := maxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = time.Hour
	}

	v.mu.Lock()
	v.keys = keys
	v.fetched = v.now()
	v.expiry = v.fetched.Add(ttl)
	v.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nb)
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if len(eb) == 0 {
		e = 65537
	}
	if n.Sign() <= 0 || e <= 1 {
		return nil, errors.New("invalid rsa jwk")
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "max-age=") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimPrefix(part, "max-age="))
		if err != nil || secs <= 0 {
			return 0
		}
		if secs < 60 {
			secs = 60
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
