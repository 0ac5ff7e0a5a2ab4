package port

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/auth"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/errmap"
	"github.com/challengehub/web/internal/guard"
	"github.com/challengehub/web/internal/observability"
	"github.com/challengehub/web/internal/web/app"
)

// sessionService is the part of *app.SessionManager the handlers use.
type sessionService interface {
	SignIn(ctx context.Context, usernameOrEmail string, password domain.SecretString) (domain.SessionID, *app.Session, error)
	SignInFederated(ctx context.Context, assertion app.IdentityAssertion) (domain.SessionID, *app.Session, error)
	Read(ctx context.Context, id domain.SessionID) (*app.Session, error)
	Update(ctx context.Context, id domain.SessionID, u app.ClaimsUpdate) (*app.Session, error)
	SignOut(ctx context.Context, id domain.SessionID) error
	AllowSignIn(ctx context.Context, clientKey string) error
}

// platformAPI is the part of *apiclient.Client the pages read and write.
type platformAPI interface {
	Signup(ctx context.Context, in apiclient.SignupInput) error
	UserByUsername(ctx context.Context, username string) (*apiclient.User, error)
	UpdateUserInfo(ctx context.Context, in apiclient.UserInfoUpdate) (*apiclient.User, error)
	CheckUsernameAvailability(ctx context.Context, username string) (bool, error)
	AvailableChallenges(ctx context.Context, q apiclient.ChallengeQuery) (*apiclient.PaginatedChallenges, error)
	Topics(ctx context.Context) ([]apiclient.Topic, error)
	ViewChallenge(ctx context.Context, slug string) (*apiclient.ViewChallenge, error)
	TakeNewChallenge(ctx context.Context, id domain.ChallengeID) (*apiclient.TakenChallenge, error)
	SubmitChallengeSolution(ctx context.Context, in apiclient.SolutionInput) (*apiclient.TakenChallenge, error)
	YourContributions(ctx context.Context, approval domain.ApprovalStatus) ([]apiclient.ContributedChallenge, error)
	CreateNewChallenge(ctx context.Context, in apiclient.NewChallengeInput) (*apiclient.ContributedChallenge, error)
	ChallengesTakenBy(ctx context.Context, username string, status domain.TakenChallengeStatus) ([]apiclient.ChallengeTaken, error)
}

// cookieCodec signs and verifies the session cookie.
type cookieCodec interface {
	Sign(id domain.SessionID) (auth.SignedCookie, error)
	Verify(value string) (domain.SessionID, error)
}

var (
	_ sessionService = (*app.SessionManager)(nil)
	_ platformAPI    = (*apiclient.Client)(nil)
	_ cookieCodec    = (*auth.CookieSigner)(nil)
)

// HandlerConfig holds the dependencies for Handler.
type HandlerConfig struct {
	Sessions *app.SessionManager
	API      *apiclient.Client
	Cookies  *auth.CookieSigner
	Policy   guard.Policy
	Logger   *slog.Logger

	// Providers enables federated sign-in at /auth/{name}/login.
	Providers []app.IdentityProvider

	// CookieSecure marks every cookie Secure. Enable behind HTTPS.
	CookieSecure bool

	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

// Handler serves the web front-end.
type Handler struct {
	sessions  sessionService
	api       platformAPI
	cookies   cookieCodec
	policy    guard.Policy
	providers map[string]app.IdentityProvider
	pages     *renderer
	logger    *slog.Logger
	secure    bool
	trusted   []netip.Prefix
}

// NewHandler creates a Handler and parses the embedded templates.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	h, err := newHandler(cfg.Sessions, cfg.API, cfg.Cookies, cfg.Policy, cfg.Logger, cfg.CookieSecure, cfg.Providers...)
	if err != nil {
		return nil, err
	}
	h.trusted = cfg.TrustedProxies
	return h, nil
}

func newHandler(sessions sessionService, api platformAPI, cookies cookieCodec, policy guard.Policy,
	logger *slog.Logger, secure bool, providers ...app.IdentityProvider) (*Handler, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]app.IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Handler{
		sessions:  sessions,
		api:       api,
		cookies:   cookies,
		policy:    policy,
		providers: byName,
		pages:     pages,
		logger:    logger,
		secure:    secure,
	}, nil
}

// RegisterRoutes installs the middleware chain and every page on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.observe, securityHeaders, h.loadSession, h.guardRoutes)

	r.PathPrefix("/static/").Handler(staticHandler()).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/blog", h.blog).Methods(http.MethodGet)

	r.HandleFunc("/signin", h.signinPage).Methods(http.MethodGet)
	r.HandleFunc("/signin", h.signin).Methods(http.MethodPost)
	r.HandleFunc("/signup", h.signupPage).Methods(http.MethodGet)
	r.HandleFunc("/signup", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/signout", h.signout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/auth/{provider}/login", h.federatedLogin).Methods(http.MethodGet)
	r.HandleFunc("/auth/{provider}/callback", h.federatedCallback).Methods(http.MethodGet)

	r.HandleFunc("/challenges", h.challenges).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{slug}", h.challenge).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{slug}/take", h.takeChallenge).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{slug}/submit", h.submitSolution).Methods(http.MethodPost)

	r.HandleFunc("/user/me/edit", h.editProfile).Methods(http.MethodPost)
	r.HandleFunc("/user/{username}", h.userProfile).Methods(http.MethodGet)

	r.HandleFunc("/contributions", h.contributions).Methods(http.MethodGet)
	r.HandleFunc("/contributions/new", h.contributePage).Methods(http.MethodGet)
	r.HandleFunc("/contributions/new", h.contribute).Methods(http.MethodPost)

	r.HandleFunc("/api/topics", h.apiTopics).Methods(http.MethodGet)
}

// newPage fills the fields every template expects.
func (h *Handler) newPage(w http.ResponseWriter, r *http.Request, title string) page {
	p := page{
		Title:            title,
		Flash:            h.popFlash(w, r),
		Errors:           domain.FieldErrors{},
		Form:             url.Values{},
		GoogleEnabled:    h.providers["google"] != nil,
		SearchDebounceMS: domain.SearchDebounce.Milliseconds(),
		Difficulties:     domain.DifficultyTags,
	}
	if cs, ok := sessionFrom(r.Context()); ok {
		p.Session = cs.Session
	}
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if err := h.pages.render(w, status, name, p); err != nil {
		observability.WithTraceID(r.Context(), h.logger).ErrorContext(r.Context(), "render failed",
			"page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// fail turns err into a response. Errors that end the session sign the
// visitor out and send them to sign-in; everything else renders the error
// page with a user-facing message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := observability.WithTraceID(ctx, h.logger)

	if errmap.IsForcedSignOut(err) {
		h.forceSignOut(w, r, err)
		return
	}

	he := errmap.ToHTTPError(err)
	if he.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "path", r.URL.Path, "status", he.StatusCode, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "path", r.URL.Path, "status", he.StatusCode, "error", err)
	}

	p := h.newPage(w, r, http.StatusText(he.StatusCode))
	p.FormError = he.Message
	h.render(w, r, he.StatusCode, "error", p)
}

// notify reports a failed action as a transient notification on the page
// the visitor came from.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request, err error, back string) {
	if errmap.IsForcedSignOut(err) {
		h.forceSignOut(w, r, err)
		return
	}
	he := errmap.ToHTTPError(err)
	observability.WithTraceID(r.Context(), h.logger).WarnContext(r.Context(), "action failed",
		"path", r.URL.Path, "status", he.StatusCode, "error", err)
	h.setFlash(w, flashError, he.Message)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// forceSignOut ends the current session and sends the visitor to sign-out,
// returning them to the page they asked for when it was a GET.
func (h *Handler) forceSignOut(w http.ResponseWriter, r *http.Request, cause error) {
	ctx := r.Context()
	if cs, ok := sessionFrom(ctx); ok {
		if err := h.sessions.SignOut(ctx, cs.ID); err != nil {
			observability.WithTraceID(ctx, h.logger).WarnContext(ctx, "sign-out after auth failure", "error", err)
		}
	}
	h.clearCookie(w, sessionCookieName, "/")

	if errors.Is(cause, domain.ErrSessionExpired) || errors.Is(cause, domain.ErrRefreshFailed) || isSignedIn(r) {
		h.setFlash(w, flashError, errmap.ToHTTPError(domain.ErrSessionExpired).Message)
	}
	http.Redirect(w, r, h.signoutRedirect(r), http.StatusSeeOther)
}

// signoutRedirect routes a forced sign-out through the sign-out page, which
// then continues to sign-in.
func (h *Handler) signoutRedirect(r *http.Request) string {
	return h.policy.SignoutLocation(h.signinRedirect(r))
}

func (h *Handler) signinRedirect(r *http.Request) string {
	path := r.URL.Path
	if r.Method != http.MethodGet || path == h.policy.SignInPath || path == h.policy.SignUpPath {
		return h.policy.SignInPath
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return h.policy.SigninLocation(path)
}

func isSignedIn(r *http.Request) bool {
	_, ok := sessionFrom(r.Context())
	return ok
}

// requireSession returns the visitor's session or redirects to sign-in.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, back string) (currentSession, bool) {
	cs, ok := sessionFrom(r.Context())
	if !ok {
		http.Redirect(w, r, h.policy.SigninLocation(back), http.StatusSeeOther)
		return currentSession{}, false
	}
	return cs, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientIP keys the sign-in throttle. X-Forwarded-For is only read when the
// peer is a trusted proxy; then the right-most hop that is not itself a
// trusted proxy is the client.
func (h *Handler) clientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !h.isTrustedProxy(remote) {
		return remote
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			break
		}
		if !h.isTrustedProxy(hop) {
			return hop
		}
	}
	return remote
}

func (h *Handler) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
