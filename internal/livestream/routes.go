package livestream

import (
	"strings"
)

// DefaultLivePagePrefix is the path under which livestream pages are served.
const DefaultLivePagePrefix = "/live"

// DefaultHiddenRoutes are the path prefixes where the overlay never renders.
var DefaultHiddenRoutes = []string{
	"/cart",
	"/checkout/result",
	"/checkout/success",
	"/checkout/failure",
	"/purchase/verify",
}

// RoutePolicy decides where the overlay may render.
type RoutePolicy struct {
	livePrefix string
	hidden     []string
}

// NewRoutePolicy returns a policy with the given live page prefix and hidden
// route prefixes. Empty values fall back to the defaults.
func NewRoutePolicy(livePrefix string, hidden []string) RoutePolicy {
	if livePrefix == "" {
		livePrefix = DefaultLivePagePrefix
	}
	if hidden == nil {
		hidden = DefaultHiddenRoutes
	}
	cleaned := make([]string, 0, len(hidden))
	for _, h := range hidden {
		if h = strings.TrimSpace(h); h != "" {
			cleaned = append(cleaned, h)
		}
	}
	return RoutePolicy{
		livePrefix: "/" + strings.Trim(livePrefix, "/"),
		hidden:     cleaned,
	}
}

// PagePath returns the canonical path of the livestream page for slug.
func (p RoutePolicy) PagePath(slug string) string {
	return p.livePrefix + "/" + slug
}

// Hidden reports whether path falls under a hidden-route prefix.
func (p RoutePolicy) Hidden(path string) bool {
	for _, prefix := range p.hidden {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Visible is the overlay visibility rule. It has no side effects.
func (p RoutePolicy) Visible(active *ActiveStream, dismissed bool, path string) bool {
	if active == nil || dismissed {
		return false
	}
	if normalizePath(path) == p.PagePath(active.Slug) {
		return false
	}
	return !p.Hidden(path)
}

// normalizePath drops a trailing slash so "/live/x/" matches "/live/x".
func normalizePath(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}
