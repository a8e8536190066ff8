package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/social-host/internal/apperror"
	"github.com/sakif/social-host/internal/model"
	"github.com/sakif/social-host/internal/repository"
)

var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, nickname, vfile_token, vfile_timestamp, vfile_signature,
	file_content, redirect_url, created_at, updated_at, last_access`

// pgUniqueViolation is SQLSTATE 23505.
const pgUniqueViolation = "23505"

func (db *DB) Create(ctx context.Context, a *model.Account) error {
	a.ID = xid.New().String()

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.LastAccessedAt.IsZero() {
		a.LastAccessedAt = a.CreatedAt
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO hosted_files (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Nickname, a.VFileToken, a.VFileIssuedAt, a.VFileSignature,
		a.Content, nullString(a.RedirectURL), a.CreatedAt, a.UpdatedAt, a.LastAccessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "hosted_files_nickname_key" {
				return apperror.Conflict(apperror.CodeNicknameTaken,
					fmt.Sprintf("Nickname '%s' is already taken", a.Nickname))
			}
			return apperror.Conflict(apperror.CodeTokenCollision, "vfile token already in use")
		}
		return fmt.Errorf("postgres: creating account %q: %w", a.Nickname, err)
	}
	return nil
}

func (db *DB) GetByNickname(ctx context.Context, nickname string) (*model.Account, error) {
	a, err := scanAccount(db.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM hosted_files WHERE nickname = $1`, nickname))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
		}
		return nil, fmt.Errorf("postgres: getting account %q: %w", nickname, err)
	}
	return a, nil
}

func (db *DB) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	a, err := scanAccount(db.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM hosted_files WHERE vfile_token = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
		}
		return nil, fmt.Errorf("postgres: getting account by token: %w", err)
	}
	return a, nil
}

func (db *DB) UpdateContent(ctx context.Context, id, content string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE hosted_files SET file_content = $1, updated_at = now() WHERE id = $2`, content, id)
	if err != nil {
		return fmt.Errorf("postgres: updating content of %s: %w", id, err)
	}
	return expectOneRow(tag)
}

func (db *DB) UpdateRedirect(ctx context.Context, id, redirectURL string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE hosted_files SET redirect_url = $1, updated_at = now() WHERE id = $2`,
		nullString(redirectURL), id)
	if err != nil {
		return fmt.Errorf("postgres: updating redirect of %s: %w", id, err)
	}
	return expectOneRow(tag)
}

func (db *DB) Touch(ctx context.Context, nickname string, at time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE hosted_files SET last_access = $1 WHERE nickname = $2`, at, nickname)
	if err != nil {
		return fmt.Errorf("postgres: touching %q: %w", nickname, err)
	}
	return expectOneRow(tag)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM hosted_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting %s: %w", id, err)
	}
	return expectOneRow(tag)
}

func (db *DB) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT nickname FROM hosted_files WHERE last_access < $1 ORDER BY last_access`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing stale accounts: %w", err)
	}
	nicknames, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: collecting stale accounts: %w", err)
	}
	return nicknames, nil
}

func (db *DB) DeleteIfStale(ctx context.Context, nickname string, cutoff time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM hosted_files WHERE nickname = $1 AND last_access < $2`, nickname, cutoff)
	if err != nil {
		return false, fmt.Errorf("postgres: deleting stale %q: %w", nickname, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a        model.Account
		redirect *string
	)
	err := row.Scan(
		&a.ID, &a.Nickname, &a.VFileToken, &a.VFileIssuedAt, &a.VFileSignature,
		&a.Content, &redirect, &a.CreatedAt, &a.UpdatedAt, &a.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}
	if redirect != nil {
		a.RedirectURL = *redirect
	}
	return &a, nil
}

func expectOneRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
