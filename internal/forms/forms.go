// Package forms validates the front-end's HTML forms. Each Validate method
// returns domain.FieldErrors keyed by form field name, or nil.
package forms

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/challengehub/web/internal/domain"
)

// Field messages shown next to inputs.
const (
	MsgRequired         = "This field is required"
	MsgPasswordLength   = "Password must be between 8 and 20 characters"
	MsgPasswordMismatch = "The passwords do not match"
	MsgInvalidEmail     = "Enter a valid email address"
	MsgGithubURL        = "Only github or gitlab url is valid"
	MsgYoutubeURL       = "Only youtube url is valid"
	MsgDeployedURL      = "Add a link so other can see your submission"
	MsgDifficulty       = "Choose a difficulty"
	MsgTopics           = "Choose at least one topic"
	MsgTooManyTopics    = "Too many topics selected"
)

var (
	githubURLPattern   = regexp.MustCompile(`(?i)^(https?://)?(www\.)?(github\.com|gitlab\.com)/[-a-zA-Z0-9_@:%+.~#?&/=]*/?$`)
	youtubeURLPattern  = regexp.MustCompile(`(?i)^(https?://)?(www\.)?(youtube\.com|youtu\.be)/[-a-zA-Z0-9_@:%+.~#?&/=]*$`)
	deployedURLPattern = regexp.MustCompile(`(?i)^https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)
	emailPattern       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func value(form url.Values, key string) string {
	return strings.TrimSpace(form.Get(key))
}

func required(fe domain.FieldErrors, field, v string) {
	if v == "" {
		fe.Add(field, MsgRequired)
	}
}

func password(fe domain.FieldErrors, field, v string) {
	n := utf8.RuneCountInString(v)
	if n == 0 {
		fe.Add(field, MsgRequired)
		return
	}
	if n < domain.PasswordMinLength || n > domain.PasswordMaxLength {
		fe.Add(field, MsgPasswordLength)
	}
}

// SignIn is the credentials form.
type SignIn struct {
	UsernameEmail string
	Password      domain.SecretString
	CallbackURL   string
}

// ParseSignIn reads a SignIn from a posted form. Passwords are not trimmed.
func ParseSignIn(form url.Values) SignIn {
	return SignIn{
		UsernameEmail: value(form, "username_email"),
		Password:      domain.SecretString(form.Get("password")),
		CallbackURL:   value(form, "callbackUrl"),
	}
}

func (f SignIn) Validate() error {
	fe := domain.FieldErrors{}
	required(fe, "username_email", f.UsernameEmail)
	password(fe, "password", f.Password.Expose())
	return fe.Err()
}

// Signup is the registration form. LastName is optional.
type Signup struct {
	FirstName       string
	LastName        string
	Username        string
	Email           string
	Password        domain.SecretString
	ConfirmPassword domain.SecretString
}

func ParseSignup(form url.Values) Signup {
	return Signup{
		FirstName:       value(form, "first_name"),
		LastName:        value(form, "last_name"),
		Username:        value(form, "username"),
		Email:           value(form, "email"),
		Password:        domain.SecretString(form.Get("password")),
		ConfirmPassword: domain.SecretString(form.Get("confirm_password")),
	}
}

func (f Signup) Validate() error {
	fe := domain.FieldErrors{}
	required(fe, "first_name", f.FirstName)
	required(fe, "username", f.Username)
	required(fe, "email", f.Email)
	if f.Email != "" && !emailPattern.MatchString(f.Email) {
		fe.Add("email", MsgInvalidEmail)
	}
	password(fe, "password", f.Password.Expose())
	if f.ConfirmPassword.Expose() != f.Password.Expose() {
		fe.Add("confirm_password", MsgPasswordMismatch)
	}
	return fe.Err()
}

// EditProfile is the profile form.
type EditProfile struct {
	FirstName string
	LastName  string
	Username  string
}

func ParseEditProfile(form url.Values) EditProfile {
	return EditProfile{
		FirstName: value(form, "first_name"),
		LastName:  value(form, "last_name"),
		Username:  value(form, "username"),
	}
}

func (f EditProfile) Validate() error {
	fe := domain.FieldErrors{}
	required(fe, "first_name", f.FirstName)
	required(fe, "last_name", f.LastName)
	required(fe, "username", f.Username)
	return fe.Err()
}

// Contribute is the new-challenge form. TopicIDs reference known topics.
type Contribute struct {
	Title         string
	Description   string
	DifficultyTag domain.DifficultyTag
	TopicIDs      []string
}

func ParseContribute(form url.Values) Contribute {
	var ids []string
	for _, id := range form["topic_tags"] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return Contribute{
		Title:         value(form, "title"),
		Description:   strings.TrimSpace(form.Get("description")),
		DifficultyTag: domain.DifficultyTag(value(form, "difficulty_tag")),
		TopicIDs:      ids,
	}
}

func (f Contribute) Validate() error {
	fe := domain.FieldErrors{}
	required(fe, "title", f.Title)
	required(fe, "description", f.Description)
	if !domain.IsValidDifficulty(f.DifficultyTag) {
		fe.Add("difficulty_tag", MsgDifficulty)
	}
	switch {
	case len(f.TopicIDs) == 0:
		fe.Add("topic_tags", MsgTopics)
	case len(f.TopicIDs) > domain.MaxTopicFilters:
		fe.Add("topic_tags", MsgTooManyTopics)
	}
	return fe.Err()
}

// Submission is a challenge solution. DeployedApplicationURL is optional.
type Submission struct {
	GithubURL              string
	PresentationVideoURL   string
	DeployedApplicationURL string
}

func ParseSubmission(form url.Values) Submission {
	return Submission{
		GithubURL:              value(form, "github_url"),
		PresentationVideoURL:   value(form, "presentation_video_url"),
		DeployedApplicationURL: value(form, "deployed_application_url"),
	}
}

func (f Submission) Validate() error {
	fe := domain.FieldErrors{}

	required(fe, "github_url", f.GithubURL)
	if f.GithubURL != "" && !githubURLPattern.MatchString(f.GithubURL) {
		fe.Add("github_url", MsgGithubURL)
	}

	required(fe, "presentation_video_url", f.PresentationVideoURL)
	if f.PresentationVideoURL != "" && !youtubeURLPattern.MatchString(f.PresentationVideoURL) {
		fe.Add("presentation_video_url", MsgYoutubeURL)
	}

	if f.DeployedApplicationURL != "" && !deployedURLPattern.MatchString(f.DeployedApplicationURL) {
		fe.Add("deployed_application_url", MsgDeployedURL)
	}
	return fe.Err()
}
