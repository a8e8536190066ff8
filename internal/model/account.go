// Package model defines the data structures used throughout the application.
package model

import (
	"regexp"
	"time"
)

// Nickname rules: 3 to 50 characters from [A-Za-z0-9_-].
const (
	MinNicknameLength = 3
	MaxNicknameLength = 50
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// State is the lifecycle state of an account as clients observe it.
// Deleted accounts have no row, so there is no Deleted value here.
type State string

const (
	StateActive     State = "active"
	StateRedirected State = "redirected"
)

// Account is one hosted social.org file, keyed by nickname.
//
// The (VFileToken, VFileIssuedAt, VFileSignature) triple is minted once at
// signup and never regenerated. The signature is stored for reference only;
// every request recomputes it from the token, issuedAt and Nickname.
//
// WHY RedirectURL string (not *string)?
// An empty string means "no redirect". The database column is nullable, and
// the repositories translate NULL to "".
type Account struct {
	ID             string    `json:"id"`
	Nickname       string    `json:"nickname"`
	VFileToken     string    `json:"-"`
	VFileIssuedAt  int64     `json:"-"`
	VFileSignature string    `json:"-"`
	Content        string    `json:"-"`
	RedirectURL    string    `json:"redirectUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// IsRedirected reports whether the account points elsewhere.
func (a *Account) IsRedirected() bool {
	return a.RedirectURL != ""
}

// State derives the lifecycle state from the stored fields.
func (a *Account) State() State {
	if a.IsRedirected() {
		return StateRedirected
	}
	return StateActive
}

// ValidNickname reports whether n satisfies the nickname rules, with a
// message explaining the first rule it breaks.
func ValidNickname(n string) (bool, string) {
	switch {
	case n == "":
		return false, "Nickname is required"
	case len(n) < MinNicknameLength:
		return false, "Nickname must be at least 3 characters"
	case len(n) > MaxNicknameLength:
		return false, "Nickname must be at most 50 characters"
	case !nicknamePattern.MatchString(n):
		return false, "Nickname can only contain letters, numbers, hyphens, and underscores"
	}
	return true, ""
}
