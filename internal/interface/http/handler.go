package httpiface

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/pkg/httpx"
	"cookout-auth/internal/pkg/metrics"
)

type Handler struct {
	UC      *oauth.UseCase
	AppLink string
	Metrics *metrics.Metrics
}

type GoogleVerifyRequest struct {
	IDToken string `json:"idToken"`
}

type GoogleVerifyResponse struct {
	CustomToken string `json:"customToken"`
}

// TikTokStart sends the browser to TikTok with a fresh state token.
func (h *Handler) TikTokStart(c echo.Context) error {
	u, err := h.UC.LoginURL(c.Request().Context())
	if err != nil {
		h.logFailure(c, oauth.ProviderTikTok, err)
		return c.String(http.StatusInternalServerError, httpx.PublicMessage(err))
	}
	c.Logger().Infof("redirecting to TikTok auth: state_generated")
	return c.Redirect(http.StatusFound, u)
}

// TikTokCallback finishes the browser flow. Failures are answered in place
// rather than redirected so no error detail ends up in the deep link.
func (h *Handler) TikTokCallback(c echo.Context) error {
	if e := c.QueryParam("error"); e != "" {
		c.Logger().Errorj(log.JSON{
			"msg":         "oauth error on callback",
			"provider":    oauth.ProviderTikTok,
			"error":       e,
			"description": c.QueryParam("error_description"),
		})
		return c.String(http.StatusBadRequest, "TikTok authorization was not granted")
	}

	res, err := h.UC.Callback(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state"))
	h.Metrics.FlowFinished(oauth.ProviderTikTok, err)
	if err != nil {
		h.logFailure(c, oauth.ProviderTikTok, err)
		return c.String(http.StatusBadRequest, httpx.PublicMessage(err))
	}

	h.logSuccess(c, oauth.ProviderTikTok, res.User.UID)
	return c.Redirect(http.StatusFound, deepLink(h.AppLink, res.CustomToken))
}

// GoogleVerify trades a Google ID token for a custom token.
func (h *Handler) GoogleVerify(c echo.Context) error {
	var req GoogleVerifyRequest
	if err := c.Bind(&req); err != nil {
		return h.googleFailure(c, http.StatusBadRequest, "Invalid request body", badInput("decode body: %w", err))
	}
	if strings.TrimSpace(req.IDToken) == "" {
		return h.googleFailure(c, http.StatusBadRequest, "Missing idToken", badInput("missing idToken"))
	}

	res, err := h.UC.VerifyGoogle(c.Request().Context(), req.IDToken)
	if err != nil {
		return h.googleFailure(c, httpx.StatusFor(err), httpx.PublicMessage(err), err)
	}

	h.Metrics.FlowFinished(oauth.ProviderGoogle, nil)
	h.logSuccess(c, oauth.ProviderGoogle, res.User.UID)
	return c.JSON(http.StatusOK, GoogleVerifyResponse{CustomToken: res.CustomToken})
}

func (h *Handler) googleFailure(c echo.Context, status int, msg string, err error) error {
	h.Metrics.FlowFinished(oauth.ProviderGoogle, err)
	h.logFailure(c, oauth.ProviderGoogle, err)
	return httpx.JSONError(c, status, msg, oauth.KindOf(err))
}

func badInput(format string, args ...any) *oauth.Error {
	e := oauth.Errorf(oauth.KindMissingInput, format, args...)
	e.Provider = oauth.ProviderGoogle
	e.Stage = oauth.StageAwaitingCallback
	return e
}

func deepLink(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (h *Handler) logFailure(c echo.Context, provider string, err error) {
	entry := log.JSON{
		"msg":        "login failed",
		"provider":   provider,
		"kind":       oauth.KindOf(err),
		"error":      err.Error(),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	}
	var e *oauth.Error
	if errors.As(err, &e) {
		entry["stage"] = e.Stage
	}
	c.Logger().Errorj(entry)
}

func (h *Handler) logSuccess(c echo.Context, provider, uid string) {
	c.Logger().Infoj(log.JSON{
		"msg":        "login succeeded",
		"provider":   provider,
		"uid":        uid,
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
	})
}
