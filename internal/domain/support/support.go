// Package support provisions the staff account that backs in-app support
// conversations. The account exists for its uid and claims only and is kept
// disabled so nobody can sign in as it.
package support

import (
	"context"
	"errors"
	"fmt"

	"cookout-auth/internal/domain/oauth"
)

// Role is the custom claim value granted to the support account.
const Role = "support"

// Update is a partial user modification. Nil fields are left unchanged.
type Update struct {
	Disabled *bool
	Claims   map[string]any
}

type Directory interface {
	oauth.Directory
	GetUserByEmail(ctx context.Context, email string) (oauth.LocalUser, error)
	UpdateUser(ctx context.Context, uid string, upd Update) error
}

// Outcome reports what Provision did.
type Outcome struct {
	UID     string
	Created bool
}

type Service struct {
	dir    Directory
	newUID func() string
}

func NewService(dir Directory, newUID func() string) *Service {
	return &Service{dir: dir, newUID: newUID}
}

// Provision creates the disabled support account for email, or disables and
// re-claims it if it already exists.
func (s *Service) Provision(ctx context.Context, email, displayName string) (Outcome, error) {
	if email == "" {
		return Outcome{}, errors.New("support: email is required")
	}
	disabled := true
	upd := Update{Disabled: &disabled, Claims: map[string]any{"role": Role}}

	existing, err := s.dir.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.dir.UpdateUser(ctx, existing.UID, upd); err != nil {
			return Outcome{}, fmt.Errorf("support: update %s: %w", existing.UID, err)
		}
		return Outcome{UID: existing.UID}, nil
	case !errors.Is(err, oauth.ErrUserNotFound):
		return Outcome{}, fmt.Errorf("support: lookup %s: %w", email, err)
	}

	user := oauth.LocalUser{
		UID:           s.newUID(),
		Email:         email,
		EmailVerified: true,
		DisplayName:   displayName,
		Disabled:      true,
	}
	if err := s.dir.CreateUser(ctx, user); err != nil {
		return Outcome{}, fmt.Errorf("support: create: %w", err)
	}
	if err := s.dir.UpdateUser(ctx, user.UID, Update{Claims: upd.Claims}); err != nil {
		return Outcome{}, fmt.Errorf("support: set claims on %s: %w", user.UID, err)
	}
	return Outcome{UID: user.UID, Created: true}, nil
}
