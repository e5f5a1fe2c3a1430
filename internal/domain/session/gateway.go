package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/retry"
	"smartsite/edge-gateway/internal/infrastructure/metrics"
)

// Action is the gateway's verdict for a request.
type Action int

const (
	Allow Action = iota
	RedirectLogin
	RedirectHome
	RedirectOnboarding
	RedirectStore
)

func (a Action) String() string {
	switch a {
	case RedirectLogin:
		return "login"
	case RedirectHome:
		return "home"
	case RedirectOnboarding:
		return "onboarding"
	case RedirectStore:
		return "store"
	default:
		return "allow"
	}
}

// Decision tells the HTTP layer what to do with the request.
type Decision struct {
	Action       Action
	ClearCookies bool
	UserID       string
}

// Request carries the inputs the gateway needs from the HTTP layer.
type Request struct {
	Path      string
	Token     string
	UserAgent string
}

// Options tune cache freshness and eviction.
type Options struct {
	TTL            time.Duration // trust window, no background work
	VerifyInterval time.Duration // stale window, trusted but re-verified in background
	Retention      time.Duration // hard retention, entries older are purged
	MaxEntries     int
	MobileStoreURL string
	RetryPolicy    retry.Policy
}

// DefaultOptions mirrors the windows the web app has always used.
func DefaultOptions() Options {
	return Options{
		TTL:            15 * time.Minute,
		VerifyInterval: 30 * time.Minute,
		Retention:      24 * time.Hour,
		MaxEntries:     1000,
		RetryPolicy:    retry.DefaultPolicy(),
	}
}

// Gateway decides, per incoming request, whether to allow, redirect, or strip
// session state. Verification outcomes are cached so the identity provider is
// not consulted on every navigation.
type Gateway struct {
	store    Store
	verifier Verifier
	profiles ProfileChecker
	routes   *Routes
	opts     Options
	logger   zerolog.Logger

	now func() time.Time

	mu        sync.Mutex
	inflight  map[string]struct{}
	refreshCh chan string
}

// NewGateway wires the gateway with its collaborators.
func NewGateway(store Store, verifier Verifier, profiles ProfileChecker, routes *Routes, opts Options, logger zerolog.Logger) *Gateway {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Gateway{
		store:     store,
		verifier:  verifier,
		profiles:  profiles,
		routes:    routes,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
		refreshCh: make(chan string, 64),
	}
}

// Classify exposes route classification for callers that need it outside a
// full decision, e.g. the fail-open recovery path.
func (g *Gateway) Classify(path string) RouteClass {
	return g.routes.Classify(path)
}

// Decide runs the full gateway algorithm for one request.
func (g *Gateway) Decide(ctx context.Context, req Request) Decision {
	class := g.routes.Classify(req.Path)

	// Public routes pass untouched, no auth work performed.
	if class == RoutePublic {
		return Decision{Action: Allow}
	}

	// Mobile store redirect is independent of auth state.
	if g.opts.MobileStoreURL != "" && IsMobileAgent(req.UserAgent) && class != RouteAuth {
		metrics.RedirectsTotal.WithLabelValues("store").Inc()
		return Decision{Action: RedirectStore}
	}

	g.Maintain()

	if req.Token == "" {
		if class == RouteProtected {
			metrics.RedirectsTotal.WithLabelValues("login").Inc()
			return Decision{Action: RedirectLogin}
		}
		return Decision{Action: Allow}
	}

	now := g.now()
	entry, ok := g.store.Get(req.Token)
	if ok && entry.Valid {
		age := entry.Age(now)
		switch {
		case age < g.opts.TTL:
			metrics.SessionCacheHitsTotal.Inc()
			return Decision{Action: Allow, UserID: entry.UserID}
		case age < g.opts.VerifyInterval:
			// Stale but trusted: the current request passes, the cache is
			// refreshed off the request path.
			metrics.SessionCacheHitsTotal.Inc()
			g.queueBackgroundVerify(req.Token)
			return Decision{Action: Allow, UserID: entry.UserID}
		}
	}
	metrics.SessionCacheMissesTotal.Inc()

	userID, err := g.verifySync(ctx, req.Token)
	if err != nil {
		// The observed outcome is cached unconditionally, valid or not.
		g.store.Set(req.Token, Entry{Timestamp: g.now(), Valid: false})
		metrics.VerificationsTotal.WithLabelValues("invalid", "sync").Inc()
		if !errors.Is(err, ErrTokenInvalid) {
			g.logger.Warn().Err(err).Msg("token verification failed after retries")
		}
		if class == RouteProtected {
			metrics.RedirectsTotal.WithLabelValues("login").Inc()
			return Decision{Action: RedirectLogin, ClearCookies: true}
		}
		return Decision{Action: Allow, ClearCookies: true}
	}

	g.store.Set(req.Token, Entry{Timestamp: g.now(), Valid: true, UserID: userID, LastVerified: g.now()})
	metrics.VerificationsTotal.WithLabelValues("valid", "sync").Inc()

	if class == RouteAuth {
		return g.routeAuthPage(ctx, req.Path, userID)
	}
	return Decision{Action: Allow, UserID: userID}
}

// routeAuthPage sends an authenticated user away from login/onboarding pages
// they no longer need. Profile check errors fail open: blocking a legitimate
// new user is worse than a redundant page view.
func (g *Gateway) routeAuthPage(ctx context.Context, path, userID string) Decision {
	exists, err := g.profiles.Exists(ctx, userID)
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("profile check failed, allowing request")
		return Decision{Action: Allow, UserID: userID}
	}

	onLogin := strings.HasPrefix(path, "/login")
	switch {
	case exists && onLogin:
		metrics.RedirectsTotal.WithLabelValues("home").Inc()
		return Decision{Action: RedirectHome, UserID: userID}
	case !exists && onLogin:
		metrics.RedirectsTotal.WithLabelValues("onboarding").Inc()
		return Decision{Action: RedirectOnboarding, UserID: userID}
	case exists:
		// Onboarding with an existing profile: nothing left to onboard.
		metrics.RedirectsTotal.WithLabelValues("home").Inc()
		return Decision{Action: RedirectHome, UserID: userID}
	default:
		return Decision{Action: Allow, UserID: userID}
	}
}

// verifySync verifies a token against the identity provider, retrying
// transient failures with exponential backoff and jitter. Terminal token
// errors are not retried.
func (g *Gateway) verifySync(ctx context.Context, token string) (string, error) {
	return retry.ExecuteWithResult(ctx, g.opts.RetryPolicy, func(ctx context.Context, attempt int) (string, error) {
		userID, err := g.verifier.Verify(ctx, token)
		if err != nil && errors.Is(err, ErrTokenInvalid) {
			return "", retry.Permanent(err)
		}
		return userID, err
	})
}

// queueBackgroundVerify hands a token to the background worker. The send is
// non-blocking and deduplicated; a full queue just means the entry stays
// stale until the next request.
func (g *Gateway) queueBackgroundVerify(token string) {
	g.mu.Lock()
	if _, busy := g.inflight[token]; busy {
		g.mu.Unlock()
		return
	}
	g.inflight[token] = struct{}{}
	g.mu.Unlock()

	select {
	case g.refreshCh <- token:
	default:
		g.mu.Lock()
		delete(g.inflight, token)
		g.mu.Unlock()
	}
}

// Run drains the background verification queue until ctx is cancelled.
// Results only ever land in the cache; the requests that triggered them have
// long since been answered.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case token := <-g.refreshCh:
			g.backgroundVerify(token)
		}
	}
}

func (g *Gateway) backgroundVerify(token string) {
	defer func() {
		g.mu.Lock()
		delete(g.inflight, token)
		g.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := g.verifier.Verify(ctx, token)
	now := g.now()
	if err != nil {
		g.store.Set(token, Entry{Timestamp: now, Valid: false})
		metrics.VerificationsTotal.WithLabelValues("invalid", "background").Inc()
		g.logger.Debug().Err(err).Msg("background verification failed")
		return
	}
	g.store.Set(token, Entry{Timestamp: now, Valid: true, UserID: userID, LastVerified: now})
	metrics.VerificationsTotal.WithLabelValues("valid", "background").Inc()
}

// Maintain enforces the retention window and the entry cap. It runs ahead of
// every token lookup and from the scheduled janitor, which sweeps the cache
// even when no requests arrive.
func (g *Gateway) Maintain() int {
	removed := g.store.Purge(g.now().Add(-g.opts.Retention), g.opts.MaxEntries)
	if removed > 0 {
		metrics.SessionCacheEvictionsTotal.Add(float64(removed))
	}
	return removed
}

// WithClock overrides the gateway clock. Tests only.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}
