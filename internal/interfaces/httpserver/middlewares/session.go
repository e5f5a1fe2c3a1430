package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/session"
)

// SessionConfig carries the HTTP-level knobs of the session gateway.
type SessionConfig struct {
	SessionCookie string
	AccessCookie  string
	PurgeCookies  []string

	LoginPath   string
	HomePath    string
	OnboardPath string
	StoreURL    string

	Production bool
	CSP        CSPDirectives
}

// SessionGateway enforces the session authentication gateway on every
// request ahead of page rendering. The gateway itself decides; this layer
// translates the decision into redirects, cookie purges, and headers.
func SessionGateway(gw *session.Gateway, cfg SessionConfig, logger zerolog.Logger) gin.HandlerFunc {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/home"
	}
	if cfg.OnboardPath == "" {
		cfg.OnboardPath = "/onboard"
	}
	cspHeader := cfg.CSP.Header()

	return func(c *gin.Context) {
		token := readToken(c, cfg)

		decision := decide(gw, c, token, logger)

		if decision.ClearCookies {
			clearSessionCookies(c, cfg.PurgeCookies)
		}

		switch decision.Action {
		case session.RedirectLogin:
			c.Redirect(http.StatusTemporaryRedirect, cfg.LoginPath)
			c.Abort()
		case session.RedirectHome:
			c.Redirect(http.StatusTemporaryRedirect, cfg.HomePath)
			c.Abort()
		case session.RedirectOnboarding:
			c.Redirect(http.StatusTemporaryRedirect, cfg.OnboardPath)
			c.Abort()
		case session.RedirectStore:
			c.Redirect(http.StatusTemporaryRedirect, cfg.StoreURL)
			c.Abort()
		default:
			if decision.UserID != "" {
				c.Set("user_id", decision.UserID)
			}
			if cfg.Production && cspHeader != "" {
				c.Writer.Header().Set("Content-Security-Policy", cspHeader)
			}
			c.Next()
		}
	}
}

// decide wraps the gateway call so an internal panic can not lock out a user
// who holds some token; downstream API calls still require a valid token
// independently.
func decide(gw *session.Gateway, c *gin.Context, token string, logger zerolog.Logger) (decision session.Decision) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("session gateway panicked")
		if token != "" || gw.Classify(c.Request.URL.Path) != session.RouteProtected {
			decision = session.Decision{Action: session.Allow}
		} else {
			decision = session.Decision{Action: session.RedirectLogin}
		}
	}()

	return gw.Decide(c.Request.Context(), session.Request{
		Path:      c.Request.URL.Path,
		Token:     token,
		UserAgent: c.Request.UserAgent(),
	})
}

// readToken prefers the primary session cookie over the fallback access
// cookie.
func readToken(c *gin.Context, cfg SessionConfig) string {
	if tok, err := c.Cookie(cfg.SessionCookie); err == nil && tok != "" {
		return tok
	}
	if tok, err := c.Cookie(cfg.AccessCookie); err == nil && tok != "" {
		return tok
	}
	return ""
}

func clearSessionCookies(c *gin.Context, names []string) {
	for _, name := range names {
		c.SetCookie(name, "", -1, "/", "", false, true)
	}
}
