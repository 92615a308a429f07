package oauth

import (
	"errors"
	"fmt"
)

// Kind categorizes flow failures.
type Kind string

const (
	KindMissingInput        Kind = "missing_input"
	KindInvalidState        Kind = "invalid_state"
	KindInvalidToken        Kind = "invalid_token"
	KindTokenExchangeFailed Kind = "token_exchange_failed"
	KindProfileFetchFailed  Kind = "profile_fetch_failed"
	KindIdentityMismatch    Kind = "identity_mismatch"
	KindProvisioningFailed  Kind = "provisioning_failed"
	KindTokenMintFailed     Kind = "token_mint_failed"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindMisconfigured       Kind = "misconfigured"
	KindUnknown             Kind = "unknown"
)

// Stage is a position in the login state machine.
type Stage string

const (
	StageStart                    Stage = "start"
	StageAwaitingProviderRedirect Stage = "awaiting_provider_redirect"
	StageAwaitingCallback         Stage = "awaiting_callback"
	StageExchanging               Stage = "exchanging"
	StageProvisioning             Stage = "provisioning"
	StageMinting                  Stage = "minting"
	StageDone                     Stage = "done"
)

var (
	// ErrUserNotFound is returned by a Directory when no record has the uid.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned by a Directory when the uid is already taken.
	ErrUserExists = errors.New("user already exists")
)

// Error is a terminal flow failure.
type Error struct {
	Kind     Kind
	Provider string
	Stage    Stage
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Stage != "" {
		msg += " (" + string(e.Stage) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind. An err that already carries a kind keeps it.
func Wrap(kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// at fills provider and stage when the error does not have them yet.
func at(err error, provider string, stage Stage, fallback Kind) *Error {
	e := Wrap(fallback, err)
	if e.Provider == "" {
		e.Provider = provider
	}
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}
