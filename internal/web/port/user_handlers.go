package port

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/forms"
	"github.com/challengehub/web/internal/web/app"
)

const msgUsernameTaken = "This username is already taken"

var takenStatuses = []domain.TakenChallengeStatus{
	domain.TakenPending,
	domain.TakenSubmitted,
	domain.TakenAccepted,
	domain.TakenRejected,
}

type userData struct {
	User     *apiclient.User
	Taken    []apiclient.ChallengeTaken
	Stats    userStats
	IsOwner  bool
	Status   domain.TakenChallengeStatus
	Statuses []domain.TakenChallengeStatus
}

// userStats summarises accepted challenges: how many, and how many distinct
// topic names they cover.
type userStats struct {
	Accepted int
	Topics   int
}

func statsOf(taken []apiclient.ChallengeTaken) userStats {
	var st userStats
	topics := make(map[string]struct{})
	for _, c := range taken {
		if c.Status != domain.TakenAccepted {
			continue
		}
		st.Accepted++
		for _, t := range c.TopicTags {
			topics[t.Name] = struct{}{}
		}
	}
	st.Topics = len(topics)
	return st
}

func (h *Handler) userPage(w http.ResponseWriter, r *http.Request, username string, p page, status int) {
	ctx := r.Context()

	filter := domain.TakenChallengeStatus(r.URL.Query().Get("status"))
	if !domain.IsValidTakenStatus(filter) {
		filter = ""
	}

	user, err := h.api.UserByUsername(ctx, username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	taken, err := h.api.ChallengesTakenBy(ctx, user.Username, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The tab list may not contain the accepted challenges.
	accepted := taken
	if filter != "" && filter != domain.TakenAccepted {
		accepted, err = h.api.ChallengesTakenBy(ctx, user.Username, domain.TakenAccepted)
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}

	data := userData{User: user, Taken: taken, Stats: statsOf(accepted), Status: filter, Statuses: takenStatuses}
	if p.Session != nil && p.Session.Username == user.Username {
		data.IsOwner = true
	}

	p.Title = user.DisplayName()
	p.Data = data
	h.render(w, r, status, "user", p)
}

func (h *Handler) userProfile(w http.ResponseWriter, r *http.Request) {
	h.userPage(w, r, mux.Vars(r)["username"], h.newPage(w, r, ""), http.StatusOK)
}

// editProfile saves the profile and merges the new name and username into
// the cached session claims, so the header updates without signing in again.
func (h *Handler) editProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs, ok := sessionFrom(ctx)
	if !ok {
		http.Redirect(w, r, h.policy.SignInPath, http.StatusSeeOther)
		return
	}
	back := "/user/" + url.PathEscape(cs.Session.Username)

	if err := r.ParseForm(); err != nil {
		h.notify(w, r, domain.ErrInvalidInput, back)
		return
	}

	f := forms.ParseEditProfile(r.PostForm)
	p := h.newPage(w, r, "")
	p.Form = r.PostForm

	err := f.Validate()
	if err == nil && f.Username != cs.Session.Username {
		available, checkErr := h.api.CheckUsernameAvailability(ctx, f.Username)
		switch {
		case checkErr != nil:
			h.notify(w, r, checkErr, back)
			return
		case !available:
			err = domain.FieldErrors{"username": msgUsernameTaken}
		}
	}
	if err != nil {
		errors.As(err, &p.Errors)
		h.userPage(w, r, cs.Session.Username, p, http.StatusBadRequest)
		return
	}

	user, err := h.api.UpdateUserInfo(ctx, apiclient.UserInfoUpdate{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Username:  f.Username,
	})
	if err != nil {
		var ve *apiclient.ValidationError
		if errors.As(err, &ve) && len(ve.Fields) > 0 {
			for field, msg := range ve.Fields {
				p.Errors.Add(field, msg)
			}
			h.userPage(w, r, cs.Session.Username, p, ve.Status)
			return
		}
		h.notify(w, r, err, back)
		return
	}

	displayName := user.DisplayName()
	if _, err := h.sessions.Update(ctx, cs.ID, app.ClaimsUpdate{
		DisplayName: &displayName,
		Username:    &user.Username,
	}); err != nil {
		h.notify(w, r, err, back)
		return
	}

	h.setFlash(w, flashSuccess, "Profile updated.")
	http.Redirect(w, r, "/user/"+url.PathEscape(user.Username), http.StatusSeeOther)
}
