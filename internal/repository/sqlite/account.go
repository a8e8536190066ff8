package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-host/internal/apperror"
	"github.com/sakif/social-host/internal/model"
	"github.com/sakif/social-host/internal/repository"
)

// Compile-time check that *DB satisfies the repository contract.
var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, nickname, vfile_token, vfile_timestamp, vfile_signature,
	file_content, redirect_url, created_at, updated_at, last_access`

// Create inserts a new account.
//
// The ID is a fresh xid; CreatedAt, UpdatedAt and LastAccessedAt are set to
// now unless the caller already filled them. All times are stored in UTC so
// that the lexical comparison SQLite does on DATETIME text is chronological.
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

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO hosted_files (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Nickname,
		a.VFileToken,
		a.VFileIssuedAt,
		a.VFileSignature,
		a.Content,
		nullString(a.RedirectURL),
		a.CreatedAt.UTC(),
		a.UpdatedAt.UTC(),
		a.LastAccessedAt.UTC(),
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			if column == "nickname" {
				return apperror.Conflict(apperror.CodeNicknameTaken,
					fmt.Sprintf("Nickname '%s' is already taken", a.Nickname))
			}
			return apperror.Conflict(apperror.CodeTokenCollision, "vfile token already in use")
		}
		return fmt.Errorf("sqlite: creating account %q: %w", a.Nickname, err)
	}

	return nil
}

func (db *DB) GetByNickname(ctx context.Context, nickname string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM hosted_files WHERE nickname = ?`, nickname)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
		}
		return nil, fmt.Errorf("sqlite: getting account %q: %w", nickname, err)
	}
	return a, nil
}

// GetByToken looks an account up by its vfile token. The token column is
// UNIQUE, so the lookup uses its index.
func (db *DB) GetByToken(ctx context.Context, token string) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM hosted_files WHERE vfile_token = ?`, token)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
		}
		return nil, fmt.Errorf("sqlite: getting account by token: %w", err)
	}
	return a, nil
}

func (db *DB) UpdateContent(ctx context.Context, id, content string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE hosted_files SET file_content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating content of %s: %w", id, err)
	}
	return expectOneRow(result)
}

func (db *DB) UpdateRedirect(ctx context.Context, id, redirectURL string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE hosted_files SET redirect_url = ?, updated_at = ? WHERE id = ?`,
		nullString(redirectURL), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating redirect of %s: %w", id, err)
	}
	return expectOneRow(result)
}

// Touch records a read. It deliberately leaves updated_at alone: a read is
// not a modification.
func (db *DB) Touch(ctx context.Context, nickname string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE hosted_files SET last_access = ? WHERE nickname = ?`,
		at.UTC(), nickname,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching %q: %w", nickname, err)
	}
	return expectOneRow(result)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM hosted_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s: %w", id, err)
	}
	return expectOneRow(result)
}

func (db *DB) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT nickname FROM hosted_files WHERE last_access < ? ORDER BY last_access`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing stale accounts: %w", err)
	}
	defer rows.Close()

	var nicknames []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning stale account: %w", err)
		}
		nicknames = append(nicknames, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating stale accounts: %w", err)
	}
	return nicknames, nil
}

// DeleteIfStale repeats the staleness condition in the DELETE itself, so an
// account touched after ListStale ran survives the sweep.
func (db *DB) DeleteIfStale(ctx context.Context, nickname string, cutoff time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM hosted_files WHERE nickname = ? AND last_access < ?`,
		nickname, cutoff.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting stale %q: %w", nickname, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a        model.Account
		redirect sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.Nickname,
		&a.VFileToken,
		&a.VFileIssuedAt,
		&a.VFileSignature,
		&a.Content,
		&redirect,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}
	a.RedirectURL = redirect.String
	return &a, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
