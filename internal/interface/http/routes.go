package httpiface

import (
	"html"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type RouterOptions struct {
	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string
	Logger         echo.Logger
	RedirectURI    string
}

// NewRouter builds the echo instance with middleware and all routes.
func NewRouter(h *Handler, opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.Logger != nil {
		e.Logger = opts.Logger
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Logger())
	cors := middleware.DefaultCORSConfig
	if len(opts.AllowedOrigins) > 0 {
		cors.AllowOrigins = opts.AllowedOrigins
	}
	e.Use(middleware.CORSWithConfig(cors))

	e.GET("/", func(c echo.Context) error {
		return c.HTML(http.StatusOK, indexHTML(opts.RedirectURI))
	})
	e.GET("/health", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]bool{"ok": true}) })
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))
	}

	e.GET("/tiktokStart", h.TikTokStart)
	e.GET("/tiktokCallback", h.TikTokCallback)
	e.POST("/googleVerify", h.GoogleVerify)
	return e
}

func indexHTML(redirectURI string) string {
	return `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>The Cookout Auth Server</title>
  </head>
  <body>
    <h1>The Cookout Auth Server</h1>
    <ul>
      <li>Health: <a href="/health">/health</a></li>
      <li>TikTok start: <a href="/tiktokStart">/tiktokStart</a></li>
      <li>Google verify: <code>POST /googleVerify</code></li>
      <li>Redirect URI: <code>` + html.EscapeString(redirectURI) + `</code></li>
    </ul>
  </body>
</html>`
}
