package session

import (
	"regexp"
	"strings"
)

// RouteClass partitions incoming paths into three disjoint sets.
type RouteClass int

const (
	RoutePublic RouteClass = iota
	RouteAuth
	RouteProtected
)

func (c RouteClass) String() string {
	switch c {
	case RouteAuth:
		return "auth"
	case RouteProtected:
		return "protected"
	default:
		return "public"
	}
}

// Routes classifies request paths. Feed detail pages are carved out of the
// protected set so shared links stay reachable without a session.
type Routes struct {
	protected      []string
	auth           []string
	publicPrefixes []string
	feedDetail     *regexp.Regexp
}

// DefaultRoutes returns the route sets the web app is built around.
func DefaultRoutes() *Routes {
	return &Routes{
		protected: []string{
			"/home", "/feed", "/dashboard", "/smartsite", "/qr-code",
			"/wallet", "/analytics", "/mint", "/order", "/content",
		},
		auth:           []string{"/login", "/onboard"},
		publicPrefixes: []string{"/guest-order"},
		feedDetail:     regexp.MustCompile(`^/feed/[^/]+/?$`),
	}
}

// Classify assigns a path to exactly one route class.
func (r *Routes) Classify(path string) RouteClass {
	for _, prefix := range r.publicPrefixes {
		if hasPathPrefix(path, prefix) {
			return RoutePublic
		}
	}
	if r.feedDetail != nil && r.feedDetail.MatchString(path) {
		return RoutePublic
	}
	for _, prefix := range r.auth {
		if hasPathPrefix(path, prefix) {
			return RouteAuth
		}
	}
	for _, prefix := range r.protected {
		if hasPathPrefix(path, prefix) {
			return RouteProtected
		}
	}
	return RoutePublic
}

// hasPathPrefix matches whole path segments, so /feedback is not /feed.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

var mobileAgent = regexp.MustCompile(`(?i)(android|iphone|ipad|ipod|blackberry|windows phone|mobile)`)

// IsMobileAgent reports whether the user agent indicates a mobile device.
func IsMobileAgent(userAgent string) bool {
	return userAgent != "" && mobileAgent.MatchString(userAgent)
}
