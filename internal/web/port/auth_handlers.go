package port

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/auth"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/errmap"
	"github.com/challengehub/web/internal/forms"
	"github.com/challengehub/web/internal/guard"
	"github.com/challengehub/web/internal/observability"
	"github.com/challengehub/web/internal/web/app"
)

const msgBadCredentials = "Incorrect username/email or password."

func (h *Handler) signinPage(w http.ResponseWriter, r *http.Request) {
	p := h.newPage(w, r, "Sign in")
	if cb := r.URL.Query().Get("callbackUrl"); cb != "" {
		p.Form.Set("callbackUrl", guard.SafeCallback(cb, ""))
	}
	h.render(w, r, http.StatusOK, "signin", p)
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, domain.ErrInvalidInput)
		return
	}

	f := forms.ParseSignIn(r.PostForm)
	p := h.newPage(w, r, "Sign in")
	p.Form.Set("username_email", f.UsernameEmail)
	p.Form.Set("callbackUrl", guard.SafeCallback(f.CallbackURL, ""))

	if err := f.Validate(); err != nil {
		errors.As(err, &p.Errors)
		h.render(w, r, http.StatusBadRequest, "signin", p)
		return
	}

	if err := h.sessions.AllowSignIn(ctx, h.clientIP(r)); err != nil {
		he := errmap.ToHTTPError(err)
		p.FormError = he.Message
		h.render(w, r, he.StatusCode, "signin", p)
		return
	}

	id, _, err := h.sessions.SignIn(ctx, f.UsernameEmail, f.Password)
	if err != nil {
		he := errmap.ToHTTPError(err)
		p.FormError = he.Message
		if errors.Is(err, domain.ErrUnauthorized) {
			p.FormError = msgBadCredentials
		}
		h.render(w, r, he.StatusCode, "signin", p)
		return
	}

	if err := h.setSessionCookie(w, id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, guard.SafeCallback(f.CallbackURL, "/"), http.StatusSeeOther)
}

func (h *Handler) signupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup", h.newPage(w, r, "Sign up"))
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, domain.ErrInvalidInput)
		return
	}

	f := forms.ParseSignup(r.PostForm)
	p := h.newPage(w, r, "Sign up")
	for _, k := range []string{"first_name", "last_name", "username", "email"} {
		p.Form.Set(k, r.PostForm.Get(k))
	}

	if err := f.Validate(); err != nil {
		errors.As(err, &p.Errors)
		h.render(w, r, http.StatusBadRequest, "signup", p)
		return
	}

	err := h.api.Signup(r.Context(), apiclient.SignupInput{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Username:  f.Username,
		Email:     f.Email,
		Password:  f.Password,
	})
	if err != nil {
		h.renderBackendErrors(w, r, "signup", p, err)
		return
	}

	h.setFlash(w, flashSuccess, "Account created. Please sign in.")
	http.Redirect(w, r, h.policy.SignInPath, http.StatusSeeOther)
}

// renderBackendErrors shows a rejected form again with the backend's field
// messages inline. Errors that are not about the form go through fail.
func (h *Handler) renderBackendErrors(w http.ResponseWriter, r *http.Request, name string, p page, err error) {
	var ve *apiclient.ValidationError
	if !errors.As(err, &ve) {
		h.fail(w, r, err)
		return
	}
	for field, msg := range ve.Fields {
		p.Errors.Add(field, msg)
	}
	if len(ve.Fields) == 0 {
		p.FormError = errmap.ToHTTPError(err).Message
	}
	h.render(w, r, errmap.ToHTTPStatusCode(err), name, p)
}

// signout ends the session, then continues to a same-site callbackUrl or home.
func (h *Handler) signout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if cs, ok := sessionFrom(ctx); ok {
		if err := h.sessions.SignOut(ctx, cs.ID); err != nil {
			observability.WithTraceID(ctx, h.logger).ErrorContext(ctx, "sign-out failed",
				"session_id", cs.ID.String(), "error", err)
		}
	}
	h.clearCookie(w, sessionCookieName, "/")
	http.Redirect(w, r, guard.SafeCallback(r.FormValue("callbackUrl"), "/"), http.StatusSeeOther)
}

func (h *Handler) provider(r *http.Request) (app.IdentityProvider, error) {
	name := mux.Vars(r)["provider"]
	p, ok := h.providers[name]
	if !ok {
		return nil, domain.ErrProviderDisabled
	}
	return p, nil
}

// federatedLogin starts step one of federated sign-in: a state value is
// stored in a short-lived cookie and the browser is sent to the provider.
func (h *Handler) federatedLogin(w http.ResponseWriter, r *http.Request) {
	p, err := h.provider(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setJSONCookie(w, stateCookieName, "/auth/", oauthState{
		State:    state,
		Callback: guard.SafeCallback(r.URL.Query().Get("callbackUrl"), ""),
	}, domain.OAuthStateTTL)
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// federatedCallback finishes sign-in: the code is exchanged with the
// provider for an identity assertion, then the assertion for backend tokens.
func (h *Handler) federatedCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.provider(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var saved oauthState
	found := readJSONCookie(r, stateCookieName, &saved)
	h.clearCookie(w, stateCookieName, "/auth/")

	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		observability.WithTraceID(ctx, h.logger).InfoContext(ctx, "federated sign-in cancelled",
			"provider", p.Name(), "reason", reason)
		h.setFlash(w, flashError, "Sign-in was cancelled.")
		http.Redirect(w, r, h.policy.SignInPath, http.StatusSeeOther)
		return
	}

	if !found || !auth.StatesEqual(q.Get("state"), saved.State) {
		h.fail(w, r, domain.ErrOAuthState)
		return
	}

	assertion, err := p.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.federatedFailed(w, r, err)
		return
	}

	id, _, err := h.sessions.SignInFederated(ctx, assertion)
	if err != nil {
		h.federatedFailed(w, r, err)
		return
	}

	if err := h.setSessionCookie(w, id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, guard.SafeCallback(saved.Callback, "/"), http.StatusSeeOther)
}

func (h *Handler) federatedFailed(w http.ResponseWriter, r *http.Request, err error) {
	he := errmap.ToHTTPError(err)
	observability.WithTraceID(r.Context(), h.logger).WarnContext(r.Context(), "federated sign-in failed",
		"status", he.StatusCode, "error", err)
	msg := he.Message
	if errors.Is(err, domain.ErrUnauthorized) {
		msg = "We could not sign you in with that account."
	}
	h.setFlash(w, flashError, msg)
	http.Redirect(w, r, h.policy.SignInPath+"?"+url.Values{"error": {he.Code}}.Encode(), http.StatusSeeOther)
}
