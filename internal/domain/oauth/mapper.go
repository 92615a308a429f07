package oauth

import (
	"context"
	"errors"
	"fmt"
)

// Directory is the identity platform's user store.
type Directory interface {
	// GetUser returns ErrUserNotFound when uid has no record.
	GetUser(ctx context.Context, uid string) (LocalUser, error)
	// CreateUser returns ErrUserExists when uid is already taken.
	CreateUser(ctx context.Context, u LocalUser) error
}

// Mapper turns provider identities into local users.
type Mapper struct {
	dir Directory
}

func NewMapper(dir Directory) *Mapper {
	return &Mapper{dir: dir}
}

// ResolveLocalUser returns the user for provider+subject, creating it on
// first sight. Losing a creation race to another request is not an error.
func (m *Mapper) ResolveLocalUser(ctx context.Context, provider string, ident ProviderIdentity) (LocalUser, error) {
	if provider == "" || ident.SubjectID == "" {
		return LocalUser{}, &Error{Kind: KindProvisioningFailed, Provider: provider, Stage: StageProvisioning, Err: errors.New("empty provider or subject id")}
	}
	uid := UID(provider, ident.SubjectID)

	existing, err := m.dir.GetUser(ctx, uid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return LocalUser{}, &Error{Kind: KindProvisioningFailed, Provider: provider, Stage: StageProvisioning, Err: fmt.Errorf("lookup %s: %w", uid, err)}
	}

	user := LocalUser{
		UID:           uid,
		Provider:      provider,
		Email:         ident.Email,
		EmailVerified: ident.EmailVerified,
		DisplayName:   ident.DisplayName,
		PhotoURL:      ident.PhotoURL,
	}
	if err := m.dir.CreateUser(ctx, user); err != nil && !errors.Is(err, ErrUserExists) {
		return LocalUser{}, &Error{Kind: KindProvisioningFailed, Provider: provider, Stage: StageProvisioning, Err: fmt.Errorf("create %s: %w", uid, err)}
	}
	return user, nil
}
