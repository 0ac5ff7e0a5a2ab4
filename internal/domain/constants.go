package domain

import "time"

// Session and token timing.
const (
	// AccessTokenExpiryMargin treats an access token as expired this long
	// before its literal expiry, absorbing clock skew and request latency.
	AccessTokenExpiryMargin = 10 * time.Second

	// SessionMaxAge bounds the lifetime of the session cookie (15 days).
	SessionMaxAge = 15 * 24 * time.Hour

	// OAuthStateTTL is how long a federated sign-in state cookie stays valid.
	OAuthStateTTL = 10 * time.Minute

	// FlashTTL is the lifetime of a one-shot notification cookie.
	FlashTTL = time.Minute

	// Sign-in throttle: attempts per client IP per window.
	SignInAttemptLimit  = 10
	SignInAttemptWindow = time.Minute
)

// Presentation defaults.
const (
	SearchDebounce    = 500 * time.Millisecond // rendered into the challenge search script
	ChallengePageSize = 10
	MaxTopicFilters   = 20
)

// Form limits enforced by the backend as well as the front-end forms.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 20
)

// Timeout contracts.
const (
	APITimeout   = 10 * time.Second // per outbound REST call
	RedisTimeout = 2 * time.Second

	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 15 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second
	GracefulShutdownTimeout = 30 * time.Second
)

// Role is the platform role carried in the session claims.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValidRole checks if a role is known.
func IsValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// DifficultyTag grades a challenge.
type DifficultyTag string

const (
	DifficultyBeginner     DifficultyTag = "beginner"
	DifficultyIntermediate DifficultyTag = "intermediate"
	DifficultyAdvance      DifficultyTag = "advance"
	DifficultyExpert       DifficultyTag = "expert"
)

// DifficultyTags lists difficulties in display order.
var DifficultyTags = []DifficultyTag{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvance,
	DifficultyExpert,
}

// IsValidDifficulty checks if a difficulty tag is supported.
func IsValidDifficulty(d DifficultyTag) bool {
	for _, known := range DifficultyTags {
		if d == known {
			return true
		}
	}
	return false
}

// TakenChallengeStatus tracks a user's progress on a taken challenge.
type TakenChallengeStatus string

const (
	TakenPending   TakenChallengeStatus = "pending"
	TakenAccepted  TakenChallengeStatus = "accepted"
	TakenRejected  TakenChallengeStatus = "rejected"
	TakenSubmitted TakenChallengeStatus = "submitted"
)

// IsValidTakenStatus checks if a taken-challenge status filter is valid.
func IsValidTakenStatus(s TakenChallengeStatus) bool {
	return s == TakenPending || s == TakenAccepted || s == TakenRejected || s == TakenSubmitted
}

// CanSubmit reports whether a solution may be (re)submitted in this status.
// Submitted solutions are under review and accepted ones are final.
func (s TakenChallengeStatus) CanSubmit() bool {
	return s == TakenPending || s == TakenRejected
}

// ApprovalStatus is the moderation state of a contributed challenge.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValidApproval checks if an approval status filter is valid.
func IsValidApproval(a ApprovalStatus) bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}
