package port

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/errmap"
	"github.com/challengehub/web/internal/web/app"
)

const testChallengeID = "0b7c1e52-4a57-4f3e-9a0c-2f4e6d8b1c3a"

func testChallengeInfo() apiclient.ChallengeInfo {
	return apiclient.ChallengeInfo{
		ID:            testChallengeID,
		Title:         "Todo App",
		Slug:          "todo-app",
		DifficultyTag: domain.DifficultyBeginner,
		TopicTags:     testTopics()[:1],
		Contributor:   apiclient.Contributor{Username: "grace"},
		CreatedAt:     fixedTime,
	}
}

func viewChallengeWith(taken *apiclient.TakenChallenge) func(context.Context, string) (*apiclient.ViewChallenge, error) {
	return func(_ context.Context, slug string) (*apiclient.ViewChallenge, error) {
		if slug != "todo-app" {
			return nil, &apiclient.ValidationError{Status: http.StatusNotFound, Message: "Challenge not found"}
		}
		return &apiclient.ViewChallenge{
			Challenge:         apiclient.Challenge{ChallengeInfo: testChallengeInfo(), Description: "Build a todo app."},
			AcceptedChallenge: taken,
		}, nil
	}
}

func TestHome_ListsLatestChallenges(t *testing.T) {
	var gotQuery apiclient.ChallengeQuery
	api := &stubAPI{
		availableChallengesFn: func(_ context.Context, q apiclient.ChallengeQuery) (*apiclient.PaginatedChallenges, error) {
			gotQuery = q
			return &apiclient.PaginatedChallenges{Data: []apiclient.ChallengeInfo{testChallengeInfo()}}, nil
		},
	}
	r := newTestRouter(t, nil, api)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ChallengePageSize, gotQuery.Limit)
	assert.Contains(t, rec.Body.String(), `href="/challenges/todo-app"`)
}

func TestHome_BackendDownRendersError(t *testing.T) {
	api := &stubAPI{
		availableChallengesFn: func(context.Context, apiclient.ChallengeQuery) (*apiclient.PaginatedChallenges, error) {
			return nil, &apiclient.NetworkError{Op: "GET /challenges", Err: context.DeadlineExceeded}
		},
	}
	r := newTestRouter(t, nil, api)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not reach the server")
}

func TestChallenges_FiltersAndPagination(t *testing.T) {
	var gotQuery apiclient.ChallengeQuery
	api := &stubAPI{
		availableChallengesFn: func(_ context.Context, q apiclient.ChallengeQuery) (*apiclient.PaginatedChallenges, error) {
			gotQuery = q
			return &apiclient.PaginatedChallenges{
				Data:    []apiclient.ChallengeInfo{testChallengeInfo()},
				HasPrev: true,
				HasNext: true,
			}, nil
		},
	}
	r := newTestRouter(t, nil, api)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/challenges?title=+todo+&topics=Go&topics=&offset=20", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "todo", gotQuery.Title)
	assert.Equal(t, []string{"Go"}, gotQuery.Topics)
	assert.Equal(t, 20, gotQuery.Offset)
	assert.Equal(t, domain.ChallengePageSize, gotQuery.Limit)
}

func TestParseChallengeQuery(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOffset int
		wantTopics int
	}{
		{"defaults", "", 0, 0},
		{"negative offset", "offset=-10", 0, 0},
		{"garbage offset", "offset=abc", 0, 0},
		{"offset", "offset=30", 30, 0},
		{"topics", "topics=a&topics=b", 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			q := parseChallengeQuery(v)

			assert.Equal(t, tt.wantOffset, q.Offset)
			assert.Len(t, q.Topics, tt.wantTopics)
			assert.Equal(t, domain.ChallengePageSize, q.Limit)
		})
	}
}

func TestChallengesURL(t *testing.T) {
	q := apiclient.ChallengeQuery{Limit: 10, Title: "todo app", Topics: []string{"Go", "Web"}}

	assert.Equal(t, "/challenges", challengesURL(apiclient.ChallengeQuery{}, 0))
	assert.Equal(t, "/challenges?offset=10", challengesURL(apiclient.ChallengeQuery{}, 10))
	assert.Equal(t, "/challenges?offset=20&title=todo+app&topics=Go&topics=Web", challengesURL(q, 20))
}

func TestChallenge_SubmitFormOnlyWhenAllowed(t *testing.T) {
	tests := []struct {
		name       string
		taken      *apiclient.TakenChallenge
		wantSubmit bool
		wantTake   bool
	}{
		{"not taken", nil, false, true},
		{"pending", &apiclient.TakenChallenge{Status: domain.TakenPending}, true, false},
		{"rejected", &apiclient.TakenChallenge{Status: domain.TakenRejected}, true, false},
		{"submitted", &apiclient.TakenChallenge{Status: domain.TakenSubmitted}, false, false},
		{"accepted", &apiclient.TakenChallenge{Status: domain.TakenAccepted}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, signedInSessions(), &stubAPI{viewChallengeFn: viewChallengeWith(tt.taken)})

			rec := serve(r, withSessionCookie(httptest.NewRequest(http.MethodGet, "/challenges/todo-app", nil)))

			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Equal(t, tt.wantSubmit, strings.Contains(body, `action="/challenges/todo-app/submit"`))
			assert.Equal(t, tt.wantTake, strings.Contains(body, `action="/challenges/todo-app/take"`))
		})
	}
}

func TestChallenge_NotFound(t *testing.T) {
	r := newTestRouter(t, nil, &stubAPI{viewChallengeFn: viewChallengeWith(nil)})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/challenges/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Challenge not found")
}

func TestTakeChallenge(t *testing.T) {
	t.Run("visitor is sent to sign-in", func(t *testing.T) {
		r := newTestRouter(t, nil, nil)

		rec := serve(r, postForm("/challenges/todo-app/take", url.Values{"challenge_id": {testChallengeID}}))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?callbackUrl=%2Fchallenges%2Ftodo-app", rec.Header().Get("Location"))
	})

	t.Run("success", func(t *testing.T) {
		var gotID domain.ChallengeID
		api := &stubAPI{
			takeNewChallengeFn: func(_ context.Context, id domain.ChallengeID) (*apiclient.TakenChallenge, error) {
				gotID = id
				return &apiclient.TakenChallenge{Status: domain.TakenPending}, nil
			},
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/challenges/todo-app/take", url.Values{"challenge_id": {testChallengeID}})))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/challenges/todo-app", rec.Header().Get("Location"))
		assert.Equal(t, testChallengeID, gotID.String())
		assert.Equal(t, flashSuccess, flashFrom(t, rec).Kind)
	})

	t.Run("bad id is a notification", func(t *testing.T) {
		r := newTestRouter(t, signedInSessions(), nil)

		rec := serve(r, withSessionCookie(postForm("/challenges/todo-app/take", url.Values{"challenge_id": {"nope"}})))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/challenges/todo-app", rec.Header().Get("Location"))
		assert.Equal(t, flashError, flashFrom(t, rec).Kind)
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		var signedOut bool
		sessions := signedInSessions()
		sessions.signOutFn = func(context.Context, domain.SessionID) error {
			signedOut = true
			return nil
		}
		api := &stubAPI{
			takeNewChallengeFn: func(context.Context, domain.ChallengeID) (*apiclient.TakenChallenge, error) {
				return nil, &apiclient.AuthError{Status: http.StatusUnauthorized, Detail: "token revoked"}
			},
		}
		r := newTestRouter(t, sessions, api)

		rec := serve(r, withSessionCookie(postForm("/challenges/todo-app/take", url.Values{"challenge_id": {testChallengeID}})))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signout?callbackUrl=%2Fsignin", rec.Header().Get("Location"))
		assert.True(t, signedOut)
		c := responseCookie(rec, sessionCookieName)
		require.NotNil(t, c)
		assert.Equal(t, -1, c.MaxAge)
	})
}

func TestSubmitSolution(t *testing.T) {
	pending := &apiclient.TakenChallenge{Status: domain.TakenPending}

	t.Run("invalid form re-renders with field errors", func(t *testing.T) {
		api := &stubAPI{
			viewChallengeFn: viewChallengeWith(pending),
			submitSolutionFn: func(context.Context, apiclient.SolutionInput) (*apiclient.TakenChallenge, error) {
				t.Fatal("invalid submission must not reach the backend")
				return nil, nil
			},
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/challenges/todo-app/submit", url.Values{
			"challenge_id":           {testChallengeID},
			"github_url":             {"https://example.com/repo"},
			"presentation_video_url": {"https://youtube.com/watch?v=abc"},
		})))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Only github or gitlab url is valid")
	})

	t.Run("success", func(t *testing.T) {
		var got apiclient.SolutionInput
		api := &stubAPI{
			viewChallengeFn: viewChallengeWith(pending),
			submitSolutionFn: func(_ context.Context, in apiclient.SolutionInput) (*apiclient.TakenChallenge, error) {
				got = in
				return &apiclient.TakenChallenge{Status: domain.TakenSubmitted}, nil
			},
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/challenges/todo-app/submit", url.Values{
			"challenge_id":           {testChallengeID},
			"github_url":             {"https://github.com/ada/todo"},
			"presentation_video_url": {"https://www.youtube.com/watch?v=abc123"},
		})))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, testChallengeID, got.ChallengeID)
		assert.Equal(t, "https://github.com/ada/todo", got.GithubURL)
		assert.Equal(t, flashSuccess, flashFrom(t, rec).Kind)
	})
}

func TestUserProfile(t *testing.T) {
	api := func(gotStatus *domain.TakenChallengeStatus) *stubAPI {
		return &stubAPI{
			userByUsernameFn: func(_ context.Context, username string) (*apiclient.User, error) {
				return &apiclient.User{Username: username, FirstName: "Ada", LastName: "Lovelace", CreatedAt: fixedTime}, nil
			},
			challengesTakenByFn: func(_ context.Context, _ string, status domain.TakenChallengeStatus) ([]apiclient.ChallengeTaken, error) {
				*gotStatus = status
				return []apiclient.ChallengeTaken{{Title: "Todo App", Slug: "todo-app", Status: status}}, nil
			},
		}
	}

	t.Run("owner sees edit form", func(t *testing.T) {
		var status domain.TakenChallengeStatus
		r := newTestRouter(t, signedInSessions(), api(&status))

		rec := serve(r, withSessionCookie(httptest.NewRequest(http.MethodGet, "/user/ada?status=accepted", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.TakenAccepted, status)
		assert.Contains(t, rec.Body.String(), `action="/user/me/edit"`)
	})

	t.Run("visitor sees no edit form and bad filter is dropped", func(t *testing.T) {
		status := domain.TakenChallengeStatus("unset")
		r := newTestRouter(t, nil, api(&status))

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/user/ada?status=bogus", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.TakenChallengeStatus(""), status)
		assert.NotContains(t, rec.Body.String(), `action="/user/me/edit"`)
	})
}

func TestUserProfile_Statistics(t *testing.T) {
	taken := []apiclient.ChallengeTaken{
		{Title: "Todo App", Slug: "todo-app", Status: domain.TakenAccepted,
			TopicTags: []apiclient.Topic{{ID: "1", Name: "Go"}, {ID: "2", Name: "SQL"}}},
		{Title: "Chat", Slug: "chat", Status: domain.TakenAccepted,
			TopicTags: []apiclient.Topic{{ID: "1", Name: "Go"}}},
		{Title: "Blog", Slug: "blog", Status: domain.TakenRejected,
			TopicTags: []apiclient.Topic{{ID: "3", Name: "React"}}},
	}
	byStatus := func(status domain.TakenChallengeStatus) []apiclient.ChallengeTaken {
		if status == "" {
			return taken
		}
		var out []apiclient.ChallengeTaken
		for _, c := range taken {
			if c.Status == status {
				out = append(out, c)
			}
		}
		return out
	}

	tests := []struct {
		name      string
		target    string
		wantCalls []domain.TakenChallengeStatus
	}{
		{"all tab", "/user/ada", []domain.TakenChallengeStatus{""}},
		{"accepted tab", "/user/ada?status=accepted", []domain.TakenChallengeStatus{domain.TakenAccepted}},
		{"rejected tab fetches accepted separately", "/user/ada?status=rejected",
			[]domain.TakenChallengeStatus{domain.TakenRejected, domain.TakenAccepted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []domain.TakenChallengeStatus
			api := &stubAPI{
				userByUsernameFn: func(_ context.Context, username string) (*apiclient.User, error) {
					return &apiclient.User{Username: username, FirstName: "Ada"}, nil
				},
				challengesTakenByFn: func(_ context.Context, _ string, status domain.TakenChallengeStatus) ([]apiclient.ChallengeTaken, error) {
					calls = append(calls, status)
					return byStatus(status), nil
				},
			}
			r := newTestRouter(t, nil, api)

			rec := serve(r, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantCalls, calls)
			body := rec.Body.String()
			assert.Contains(t, body, `<strong class="stat-accepted">2</strong>`)
			assert.Contains(t, body, `<strong class="stat-topics">2</strong>`)
		})
	}
}

func TestStatsOf(t *testing.T) {
	assert.Equal(t, userStats{}, statsOf(nil))
	assert.Equal(t, userStats{Accepted: 1, Topics: 0}, statsOf([]apiclient.ChallengeTaken{
		{Status: domain.TakenAccepted},
		{Status: domain.TakenPending, TopicTags: []apiclient.Topic{{Name: "Go"}}},
	}))
}

func TestEditProfile(t *testing.T) {
	profileAPI := func() *stubAPI {
		return &stubAPI{
			userByUsernameFn: func(_ context.Context, username string) (*apiclient.User, error) {
				return &apiclient.User{Username: username, FirstName: "Ada"}, nil
			},
		}
	}
	form := url.Values{"first_name": {"Augusta"}, "last_name": {"King"}, "username": {"augusta"}}

	t.Run("taken username is a field error", func(t *testing.T) {
		api := profileAPI()
		api.usernameAvailableFn = func(context.Context, string) (bool, error) { return false, nil }
		api.updateUserInfoFn = func(context.Context, apiclient.UserInfoUpdate) (*apiclient.User, error) {
			t.Fatal("update must not run for a taken username")
			return nil, nil
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/user/me/edit", form)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), msgUsernameTaken)
	})

	t.Run("success refreshes the session claims", func(t *testing.T) {
		var gotUpdate app.ClaimsUpdate
		sessions := signedInSessions()
		sessions.updateFn = func(_ context.Context, id domain.SessionID, u app.ClaimsUpdate) (*app.Session, error) {
			assert.Equal(t, testSessionID, id.String())
			gotUpdate = u
			return testSession(), nil
		}
		api := profileAPI()
		api.usernameAvailableFn = func(_ context.Context, username string) (bool, error) {
			assert.Equal(t, "augusta", username)
			return true, nil
		}
		api.updateUserInfoFn = func(_ context.Context, in apiclient.UserInfoUpdate) (*apiclient.User, error) {
			return &apiclient.User{FirstName: in.FirstName, LastName: in.LastName, Username: in.Username}, nil
		}
		r := newTestRouter(t, sessions, api)

		rec := serve(r, withSessionCookie(postForm("/user/me/edit", form)))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/user/augusta", rec.Header().Get("Location"))
		require.NotNil(t, gotUpdate.DisplayName)
		require.NotNil(t, gotUpdate.Username)
		assert.Equal(t, "Augusta King", *gotUpdate.DisplayName)
		assert.Equal(t, "augusta", *gotUpdate.Username)
	})

	t.Run("visitor is sent to sign-in", func(t *testing.T) {
		r := newTestRouter(t, nil, profileAPI())

		rec := serve(r, postForm("/user/me/edit", form))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin", rec.Header().Get("Location"))
	})
}

func TestContributions_ApprovalFilter(t *testing.T) {
	tests := []struct {
		query string
		want  domain.ApprovalStatus
	}{
		{"", ""},
		{"?approval_status=approved", domain.ApprovalApproved},
		{"?approval_status=bogus", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := domain.ApprovalStatus("unset")
			api := &stubAPI{
				yourContributionsFn: func(_ context.Context, approval domain.ApprovalStatus) ([]apiclient.ContributedChallenge, error) {
					got = approval
					return []apiclient.ContributedChallenge{{ChallengeInfo: testChallengeInfo(), Approval: domain.ApprovalPending}}, nil
				},
			}
			r := newTestRouter(t, signedInSessions(), api)

			rec := serve(r, withSessionCookie(httptest.NewRequest(http.MethodGet, "/contributions"+tt.query, nil)))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, rec.Body.String(), "Todo App")
		})
	}
}

func TestContribute(t *testing.T) {
	form := func(topics ...string) url.Values {
		return url.Values{
			"title":          {"Weather App"},
			"description":    {"Show the forecast."},
			"difficulty_tag": {"intermediate"},
			"topic_tags":     topics,
		}
	}

	t.Run("success resolves topic ids", func(t *testing.T) {
		var got apiclient.NewChallengeInput
		api := &stubAPI{
			createNewChallengeFn: func(_ context.Context, in apiclient.NewChallengeInput) (*apiclient.ContributedChallenge, error) {
				got = in
				return &apiclient.ContributedChallenge{Approval: domain.ApprovalPending}, nil
			},
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/contributions/new", form("t-go", "t-web"))))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/contributions", rec.Header().Get("Location"))
		assert.Equal(t, domain.DifficultyIntermediate, got.DifficultyTag)
		assert.Equal(t, testTopics(), got.TopicTags)
	})

	t.Run("unknown topic is a field error", func(t *testing.T) {
		api := &stubAPI{
			createNewChallengeFn: func(context.Context, apiclient.NewChallengeInput) (*apiclient.ContributedChallenge, error) {
				t.Fatal("unknown topics must not reach the backend")
				return nil, nil
			},
		}
		r := newTestRouter(t, signedInSessions(), api)

		rec := serve(r, withSessionCookie(postForm("/contributions/new", form("t-go", "t-cobol"))))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing topics fails validation", func(t *testing.T) {
		r := newTestRouter(t, signedInSessions(), &stubAPI{})

		rec := serve(r, withSessionCookie(postForm("/contributions/new", form())))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Choose at least one topic")
	})

	t.Run("visitor is redirected by the guard", func(t *testing.T) {
		r := newTestRouter(t, nil, nil)

		rec := serve(r, postForm("/contributions/new", form("t-go")))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signin?callbackUrl=%2Fcontributions%2Fnew", rec.Header().Get("Location"))
	})
}

func TestAPITopics(t *testing.T) {
	t.Run("lists topics", func(t *testing.T) {
		r := newTestRouter(t, nil, nil)

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/topics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var got []apiclient.Topic
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, testTopics(), got)
	})

	t.Run("backend failure is a JSON error", func(t *testing.T) {
		api := &stubAPI{
			topicsFn: func(context.Context) ([]apiclient.Topic, error) {
				return nil, &apiclient.APIError{Status: http.StatusInternalServerError, Message: "boom"}
			},
		}
		r := newTestRouter(t, nil, api)

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/topics", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var got errmap.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "UNAVAILABLE", got.Code)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		api := &stubAPI{
			topicsFn: func(context.Context) ([]apiclient.Topic, error) { return nil, nil },
		}
		r := newTestRouter(t, nil, api)

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/topics", nil))

		assert.JSONEq(t, "[]", rec.Body.String())
	})
}
