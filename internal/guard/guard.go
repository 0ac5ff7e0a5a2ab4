// Package guard decides, per request path, whether a visitor may proceed,
// must sign in first, or is already signed in and should leave an auth page.
//
// Protected patterns are checked only for visitors without a valid session.
// Paths that match nothing are allowed: the public list is kept for
// introspection, and rejecting non-public paths is deliberately disabled.
package guard

import (
	"net/url"
	"regexp"
	"strings"
)

// Action is the outcome of a guard decision.
type Action int

const (
	Allow Action = iota
	RedirectToSignin
	RedirectAway
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case RedirectToSignin:
		return "redirect_to_signin"
	case RedirectAway:
		return "redirect_away"
	default:
		return "unknown"
	}
}

// Decision is an Action plus, for redirects, where to send the visitor.
type Decision struct {
	Action   Action
	Location string
}

// Policy holds the route classification. The zero value allows everything.
type Policy struct {
	Protected []*regexp.Regexp
	Public    []*regexp.Regexp

	SignInPath  string
	SignUpPath  string
	SignOutPath string

	// ExcludedPrefixes are never intercepted.
	ExcludedPrefixes []string
}

// DefaultPolicy returns the platform's route classification.
func DefaultPolicy() Policy {
	return Policy{
		Protected: compile(
			`/contributions$`,
			`/contributions/new$`,
		),
		Public: compile(
			`^/$`,
			`^/signin$`,
			`^/signup$`,
			`^/challenges(/[^/]+)?$`,
			`^/user(/[^/]+)?$`,
			`^/blog$`,
		),
		SignInPath:  "/signin",
		SignUpPath:  "/signup",
		SignOutPath: "/signout",
		ExcludedPrefixes: []string{
			"/api",
			"/_next/static",
			"/_next/image",
			"/favicon.ico",
			"/static/",
			"/healthz",
		},
	}
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Decide classifies path for a visitor with or without a valid session.
func (p Policy) Decide(path string, authenticated bool) Decision {
	if !authenticated {
		if p.IsProtected(path) {
			return Decision{Action: RedirectToSignin, Location: p.SigninLocation(path)}
		}
		return Decision{Action: Allow}
	}

	if path == p.SignInPath || path == p.SignUpPath {
		return Decision{Action: RedirectAway, Location: "/"}
	}
	return Decision{Action: Allow}
}

// IsProtected reports whether path requires a session.
func (p Policy) IsProtected(path string) bool {
	return matchAny(p.Protected, path)
}

// IsPublic reports whether path is on the public list. Decide does not
// consult it.
func (p Policy) IsPublic(path string) bool {
	return matchAny(p.Public, path)
}

// Excluded reports whether the guard should skip path entirely.
func (p Policy) Excluded(path string) bool {
	for _, prefix := range p.ExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SignoutLocation is the sign-out URL that continues to next. With no
// sign-out path configured it is next itself.
func (p Policy) SignoutLocation(next string) string {
	if p.SignOutPath == "" {
		return next
	}
	return p.SignOutPath + "?" + url.Values{"callbackUrl": {next}}.Encode()
}

// SigninLocation is the sign-in URL that returns the visitor to path.
func (p Policy) SigninLocation(path string) string {
	return p.SignInPath + "?" + url.Values{"callbackUrl": {path}}.Encode()
}

func matchAny(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// SafeCallback returns target if it is a same-site relative path, else
// fallback. It rejects absolute and scheme-relative URLs so a callbackUrl
// parameter cannot redirect off-site.
func SafeCallback(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}
