// Package repository declares the persistence contract for hosted-file accounts.
//
// Implementations live in subpackages (sqlite, postgres). Both must enforce
// uniqueness of nickname and token in the database itself: the service relies
// on a failed insert, not on a prior lookup, to detect a taken nickname.
package repository

import (
	"context"
	"time"

	"github.com/sakif/social-host/internal/model"
)

type AccountRepository interface {
	// Create inserts a new account. A duplicate nickname or token returns an
	// apperror.Conflict (CodeNicknameTaken or CodeTokenCollision).
	Create(ctx context.Context, account *model.Account) error
	GetByNickname(ctx context.Context, nickname string) (*model.Account, error)
	GetByToken(ctx context.Context, token string) (*model.Account, error)
	UpdateContent(ctx context.Context, id, content string) error
	// UpdateRedirect sets the redirect target; "" clears it.
	UpdateRedirect(ctx context.Context, id, redirectURL string) error
	// Touch sets last_access for the account with the given nickname.
	Touch(ctx context.Context, nickname string, at time.Time) error
	Delete(ctx context.Context, id string) error

	// ListStale returns nicknames whose last access is before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]string, error)
	// DeleteIfStale deletes the account only if it is still older than cutoff.
	// It reports whether a row was deleted.
	DeleteIfStale(ctx context.Context, nickname string, cutoff time.Time) (bool, error)

	Ping(ctx context.Context) error
}
