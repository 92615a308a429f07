package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"cookout-auth/internal/domain/oauth"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JSONError(c echo.Context, status int, msg string, code oauth.Kind) error {
	return c.JSON(status, ErrorResponse{Error: msg, Code: string(code)})
}

// StatusFor maps a flow error to the status returned to API callers.
func StatusFor(err error) int {
	switch oauth.KindOf(err) {
	case oauth.KindMissingInput, oauth.KindInvalidState:
		return http.StatusBadRequest
	case oauth.KindInvalidToken, oauth.KindTokenExchangeFailed, oauth.KindIdentityMismatch:
		return http.StatusUnauthorized
	case oauth.KindProfileFetchFailed:
		return http.StatusBadGateway
	case oauth.KindProviderUnavailable:
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[oauth.Kind]string{
	oauth.KindMissingInput:        "Missing input",
	oauth.KindInvalidState:        "Bad or missing state/code",
	oauth.KindInvalidToken:        "Invalid token",
	oauth.KindTokenExchangeFailed: "Token exchange failed",
	oauth.KindProfileFetchFailed:  "Profile fetch failed",
	oauth.KindIdentityMismatch:    "User mismatch",
	oauth.KindProvisioningFailed:  "User provisioning failed",
	oauth.KindTokenMintFailed:     "Token minting failed",
	oauth.KindProviderUnavailable: "Provider unavailable",
	oauth.KindMisconfigured:       "Server misconfigured",
}

// PublicMessage is the caller-facing text for err. It never includes the
// underlying cause.
func PublicMessage(err error) string {
	if m, ok := messages[oauth.KindOf(err)]; ok {
		return m
	}
	return "Verification failed"
}
