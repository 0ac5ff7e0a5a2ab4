package port

import (
	"errors"
	"net/http"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/errmap"
	"github.com/challengehub/web/internal/forms"
)

var approvalStatuses = []domain.ApprovalStatus{
	domain.ApprovalPending,
	domain.ApprovalApproved,
	domain.ApprovalRejected,
}

type contributionsData struct {
	Challenges []apiclient.ContributedChallenge
	Approval   domain.ApprovalStatus
	Approvals  []domain.ApprovalStatus
}

func (h *Handler) contributions(w http.ResponseWriter, r *http.Request) {
	approval := domain.ApprovalStatus(r.URL.Query().Get("approval_status"))
	if !domain.IsValidApproval(approval) {
		approval = ""
	}

	list, err := h.api.YourContributions(r.Context(), approval)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p := h.newPage(w, r, "Your contributions")
	p.Data = contributionsData{Challenges: list, Approval: approval, Approvals: approvalStatuses}
	h.render(w, r, http.StatusOK, "contributions", p)
}

type contributeData struct {
	Topics []apiclient.Topic
}

func (h *Handler) contributeForm(w http.ResponseWriter, r *http.Request, p page, status int) {
	topics, err := h.api.Topics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p.Title = "Contribute a challenge"
	p.Data = contributeData{Topics: topics}
	h.render(w, r, status, "contribute", p)
}

func (h *Handler) contributePage(w http.ResponseWriter, r *http.Request) {
	h.contributeForm(w, r, h.newPage(w, r, ""), http.StatusOK)
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, domain.ErrInvalidInput)
		return
	}

	f := forms.ParseContribute(r.PostForm)
	p := h.newPage(w, r, "")
	p.Form = r.PostForm

	if err := f.Validate(); err != nil {
		errors.As(err, &p.Errors)
		h.contributeForm(w, r, p, http.StatusBadRequest)
		return
	}

	topics, err := h.api.Topics(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	selected, ok := pickTopics(topics, f.TopicIDs)
	if !ok {
		p.Errors.Add("topic_tags", forms.MsgTopics)
		h.contributeForm(w, r, p, http.StatusBadRequest)
		return
	}

	_, err = h.api.CreateNewChallenge(ctx, apiclient.NewChallengeInput{
		Title:         f.Title,
		Description:   f.Description,
		DifficultyTag: f.DifficultyTag,
		TopicTags:     selected,
	})
	if err != nil {
		var ve *apiclient.ValidationError
		if errors.As(err, &ve) {
			for field, msg := range ve.Fields {
				p.Errors.Add(field, msg)
			}
			if len(ve.Fields) == 0 {
				p.FormError = errmap.ToHTTPError(err).Message
			}
			h.contributeForm(w, r, p, ve.Status)
			return
		}
		h.fail(w, r, err)
		return
	}

	h.setFlash(w, flashSuccess, "Thanks! Your challenge was submitted for review.")
	http.Redirect(w, r, "/contributions", http.StatusSeeOther)
}

// pickTopics resolves submitted topic IDs against the known topics. Any
// unknown ID rejects the whole selection.
func pickTopics(known []apiclient.Topic, ids []string) ([]apiclient.Topic, bool) {
	byID := make(map[string]apiclient.Topic, len(known))
	for _, t := range known {
		byID[t.ID] = t
	}
	out := make([]apiclient.Topic, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}

// apiTopics feeds the topic multi-select.
func (h *Handler) apiTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.api.Topics(r.Context())
	if err != nil {
		he := errmap.ToHTTPError(err)
		writeJSON(w, he.StatusCode, he)
		return
	}
	if topics == nil {
		topics = []apiclient.Topic{}
	}
	writeJSON(w, http.StatusOK, topics)
}
