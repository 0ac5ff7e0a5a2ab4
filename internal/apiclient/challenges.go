package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/challengehub/web/internal/domain"
)

// Topic is a challenge topic tag.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Contributor is the author of a challenge.
type Contributor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ChallengeInfo is the listing view of a challenge.
type ChallengeInfo struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Slug          string               `json:"slug"`
	DifficultyTag domain.DifficultyTag `json:"difficulty_tag"`
	TopicTags     []Topic              `json:"topic_tags"`
	Contributor   Contributor          `json:"contributor"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Challenge is the full challenge including its markdown description.
type Challenge struct {
	ChallengeInfo
	Description string `json:"description"`
}

// ContributedChallenge is a challenge the current user authored.
type ContributedChallenge struct {
	ChallengeInfo
	Approval domain.ApprovalStatus `json:"approval"`
}

// PaginatedChallenges is one page of available challenges.
type PaginatedChallenges struct {
	Data    []ChallengeInfo `json:"data"`
	HasPrev bool            `json:"hasPrev"`
	HasNext bool            `json:"hasNext"`
}

// TakenChallenge is a user's attempt at a challenge.
type TakenChallenge struct {
	UserID                 string                      `json:"user_id"`
	ChallengeID            string                      `json:"challenge_id"`
	Status                 domain.TakenChallengeStatus `json:"status"`
	GithubURL              string                      `json:"github_url"`
	PresentationVideoURL   string                      `json:"presentation_video_url"`
	DeployedApplicationURL string                      `json:"deployed_application_url"`
	CreatedAt              time.Time                   `json:"created_at"`
	UpdatedAt              time.Time                   `json:"updated_at"`
}

// ViewChallenge is a challenge plus the viewer's attempt, if any.
type ViewChallenge struct {
	Challenge         Challenge       `json:"challenge"`
	AcceptedChallenge *TakenChallenge `json:"accepted_challenge"`
}

// ChallengeTaken is one row of a user's taken-challenge history.
type ChallengeTaken struct {
	ID                     string                      `json:"id"`
	Title                  string                      `json:"title"`
	Slug                   string                      `json:"slug"`
	DifficultyTag          domain.DifficultyTag        `json:"difficulty_tag"`
	TopicTags              []Topic                     `json:"topic_tags"`
	Status                 domain.TakenChallengeStatus `json:"status"`
	GithubURL              string                      `json:"github_url"`
	PresentationVideoURL   string                      `json:"presentation_video_url"`
	DeployedApplicationURL string                      `json:"deployed_application_url"`
}

// ChallengeQuery filters the available challenges. Topics are topic names.
type ChallengeQuery struct {
	Limit  int
	Offset int
	Title  string
	Topics []string
}

func (q ChallengeQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	for _, t := range q.Topics {
		v.Add("topics", t)
	}
	return v
}

// SolutionInput is a challenge submission.
type SolutionInput struct {
	ChallengeID            string `json:"challenge_id"`
	GithubURL              string `json:"github_url"`
	PresentationVideoURL   string `json:"presentation_video_url"`
	DeployedApplicationURL string `json:"deployed_application_url,omitempty"`
}

// NewChallengeInput is a contributed challenge awaiting approval.
type NewChallengeInput struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	DifficultyTag domain.DifficultyTag `json:"difficulty_tag"`
	TopicTags     []Topic              `json:"topic_tags"`
}

// AvailableChallenges lists approved challenges. With a positive Limit the
// backend pages the result; without one it returns everything on one page.
func (c *Client) AvailableChallenges(ctx context.Context, q ChallengeQuery) (*PaginatedChallenges, error) {
	req := Request{Method: http.MethodGet, Path: "/challenge/available", Query: q.values()}

	if q.Limit <= 0 {
		var all []ChallengeInfo
		if err := c.Do(ctx, req, &all); err != nil {
			return nil, err
		}
		return &PaginatedChallenges{Data: all}, nil
	}

	var out PaginatedChallenges
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Topics lists every topic tag.
func (c *Client) Topics(ctx context.Context) ([]Topic, error) {
	var out []Topic
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/challenge/topics"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ViewChallenge fetches a challenge by slug.
func (c *Client) ViewChallenge(ctx context.Context, slug string) (*ViewChallenge, error) {
	var out ViewChallenge
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/challenge/view/" + url.PathEscape(slug),
		Route:  "/challenge/view/{slug}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TakeNewChallenge starts the signed-in user on a challenge.
func (c *Client) TakeNewChallenge(ctx context.Context, id domain.ChallengeID) (*TakenChallenge, error) {
	var out TakenChallenge
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/challenge/take-new",
		Body:   JSON(map[string]string{"challenge_id": id.String()}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitChallengeSolution submits or resubmits a solution.
func (c *Client) SubmitChallengeSolution(ctx context.Context, in SolutionInput) (*TakenChallenge, error) {
	var out TakenChallenge
	err := c.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/challenge/submit-challenge-solution",
		Body:   JSON(in),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TakenChallengeInfo returns the signed-in user's attempt, or nil if the
// challenge has not been taken.
func (c *Client) TakenChallengeInfo(ctx context.Context, id domain.ChallengeID) (*TakenChallenge, error) {
	var out *TakenChallenge
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/challenge/taken-challenge-info",
		Body:   Form(url.Values{"challenge_id": {id.String()}}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// YourContributions lists the signed-in user's challenges, optionally
// filtered by approval status.
func (c *Client) YourContributions(ctx context.Context, approval domain.ApprovalStatus) ([]ContributedChallenge, error) {
	q := url.Values{}
	if approval != "" {
		q.Set("approval_status", string(approval))
	}
	var out []ContributedChallenge
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/challenge/your-contributions", Query: q}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNewChallenge submits a contributed challenge for approval.
func (c *Client) CreateNewChallenge(ctx context.Context, in NewChallengeInput) (*ContributedChallenge, error) {
	var out ContributedChallenge
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/challenge/create-new",
		Body:   JSON(in),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ChallengesTakenBy lists a user's taken challenges, optionally by status.
func (c *Client) ChallengesTakenBy(ctx context.Context, username string, status domain.TakenChallengeStatus) ([]ChallengeTaken, error) {
	q := url.Values{}
	if status != "" {
		q.Set("challenge_status", string(status))
	}
	var out []ChallengeTaken
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/challenge/" + url.PathEscape(username) + "/taken-all",
		Route:  "/challenge/{username}/taken-all",
		Query:  q,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
