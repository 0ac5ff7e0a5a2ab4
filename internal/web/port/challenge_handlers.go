package port

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/forms"
)

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	latest, err := h.api.AvailableChallenges(r.Context(), apiclient.ChallengeQuery{Limit: domain.ChallengePageSize})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := h.newPage(w, r, "")
	p.Data = latest
	h.render(w, r, http.StatusOK, "home", p)
}

func (h *Handler) blog(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "blog", h.newPage(w, r, "Blog"))
}

type challengesData struct {
	Query   apiclient.ChallengeQuery
	Topics  []apiclient.Topic
	Page    *apiclient.PaginatedChallenges
	PrevURL string
	NextURL string
}

// parseChallengeQuery reads the list filters. Bad offsets fall back to the
// first page rather than failing the request.
func parseChallengeQuery(q url.Values) apiclient.ChallengeQuery {
	query := apiclient.ChallengeQuery{
		Limit: domain.ChallengePageSize,
		Title: strings.TrimSpace(q.Get("title")),
	}
	if off, err := strconv.Atoi(q.Get("offset")); err == nil && off > 0 {
		query.Offset = off
	}
	for _, t := range q["topics"] {
		if t = strings.TrimSpace(t); t != "" && len(query.Topics) < domain.MaxTopicFilters {
			query.Topics = append(query.Topics, t)
		}
	}
	return query
}

func challengesURL(q apiclient.ChallengeQuery, offset int) string {
	v := url.Values{}
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	for _, t := range q.Topics {
		v.Add("topics", t)
	}
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
	if len(v) == 0 {
		return "/challenges"
	}
	return "/challenges?" + v.Encode()
}

func (h *Handler) challenges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := parseChallengeQuery(r.URL.Query())

	result, err := h.api.AvailableChallenges(ctx, query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	topics, err := h.api.Topics(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := challengesData{Query: query, Topics: topics, Page: result}
	if result.HasPrev {
		data.PrevURL = challengesURL(query, max(query.Offset-query.Limit, 0))
	}
	if result.HasNext {
		data.NextURL = challengesURL(query, query.Offset+query.Limit)
	}

	p := h.newPage(w, r, "Challenges")
	p.Data = data
	h.render(w, r, http.StatusOK, "challenges", p)
}

type challengeData struct {
	View      *apiclient.ViewChallenge
	CanSubmit bool
}

func (h *Handler) challengePage(w http.ResponseWriter, r *http.Request, slug string, p page, status int) {
	view, err := h.api.ViewChallenge(r.Context(), slug)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := challengeData{View: view}
	if view.AcceptedChallenge != nil {
		data.CanSubmit = view.AcceptedChallenge.Status.CanSubmit()
	}

	p.Title = view.Challenge.Title
	p.Data = data
	h.render(w, r, status, "challenge", p)
}

func (h *Handler) challenge(w http.ResponseWriter, r *http.Request) {
	h.challengePage(w, r, mux.Vars(r)["slug"], h.newPage(w, r, ""), http.StatusOK)
}

func (h *Handler) takeChallenge(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	back := "/challenges/" + url.PathEscape(slug)
	if _, ok := h.requireSession(w, r, back); !ok {
		return
	}

	id, err := domain.NewChallengeID(r.PostFormValue("challenge_id"))
	if err != nil {
		h.notify(w, r, err, back)
		return
	}

	if _, err := h.api.TakeNewChallenge(r.Context(), id); err != nil {
		h.notify(w, r, err, back)
		return
	}

	h.setFlash(w, flashSuccess, "Challenge accepted. Good luck!")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) submitSolution(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	back := "/challenges/" + url.PathEscape(slug)
	if _, ok := h.requireSession(w, r, back); !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.notify(w, r, domain.ErrInvalidInput, back)
		return
	}

	id, err := domain.NewChallengeID(r.PostForm.Get("challenge_id"))
	if err != nil {
		h.notify(w, r, err, back)
		return
	}

	f := forms.ParseSubmission(r.PostForm)
	p := h.newPage(w, r, "")
	p.Form = r.PostForm

	if err := f.Validate(); err != nil {
		errors.As(err, &p.Errors)
		h.challengePage(w, r, slug, p, http.StatusBadRequest)
		return
	}

	_, err = h.api.SubmitChallengeSolution(r.Context(), apiclient.SolutionInput{
		ChallengeID:            id.String(),
		GithubURL:              f.GithubURL,
		PresentationVideoURL:   f.PresentationVideoURL,
		DeployedApplicationURL: f.DeployedApplicationURL,
	})
	if err != nil {
		var ve *apiclient.ValidationError
		if errors.As(err, &ve) && len(ve.Fields) > 0 {
			for field, msg := range ve.Fields {
				p.Errors.Add(field, msg)
			}
			h.challengePage(w, r, slug, p, ve.Status)
			return
		}
		h.notify(w, r, err, back)
		return
	}

	h.setFlash(w, flashSuccess, "Solution submitted for review.")
	http.Redirect(w, r, back, http.StatusSeeOther)
}
