// Package service holds the account lifecycle rules.
//
// AccountService sits between the HTTP handlers and the repository:
//
//	AccountHandler (HTTP) → AccountService (lifecycle rules) → AccountRepository (DB)
//	                      ↘ vfile.Signer / vfile.Codec (credentials)
//
// Every mutating operation takes a raw vfile URL and runs the same pipeline
// before touching the record:
//
//	decode → look up by token → verify MAC against that account's nickname
//
// Only the lookup-miss branch differs per operation; see missUnknownToken,
// missNotFound and missByShape.
package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/sakif/social-host/internal/apperror"
	"github.com/sakif/social-host/internal/model"
	"github.com/sakif/social-host/internal/repository"
	"github.com/sakif/social-host/internal/vfile"
)

//go:embed templates/default_social.org
var templatesFS embed.FS

var defaultContent = template.Must(template.ParseFS(templatesFS, "templates/default_social.org"))

// AccountService implements signup, upload, delete, redirect and serve.
type AccountService struct {
	repo        repository.AccountRepository
	signer      *vfile.Signer
	codec       *vfile.Codec
	cache       *CacheService
	maxFileSize int64
	logger      *slog.Logger
	now         func() time.Time
}

// NewAccountService wires the lifecycle manager. maxFileSize is the largest
// accepted upload in bytes.
func NewAccountService(
	repo repository.AccountRepository,
	signer *vfile.Signer,
	codec *vfile.Codec,
	cache *CacheService,
	maxFileSize int64,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:        repo,
		signer:      signer,
		codec:       codec,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger,
		now:         time.Now,
	}
}

// MaxFileSize returns the upload limit in bytes.
func (s *AccountService) MaxFileSize() int64 {
	return s.maxFileSize
}

type SignupResult struct {
	VFile     string
	PublicURL string
	Account   *model.Account
}

type UploadResult struct {
	PublicURL string
}

type RedirectResult struct {
	RedirectURL string
}

// ServeResult is what a public read resolves to: either a redirect target or
// file content, never both.
type ServeResult struct {
	RedirectURL string
	Content     string
}

// Signup claims nickname and returns the vfile URL that controls it.
//
// Uniqueness is decided by the store's constraint: two concurrent signups
// for one nickname both reach Create and exactly one fails.
func (s *AccountService) Signup(ctx context.Context, nickname string) (*SignupResult, error) {
	if ok, msg := model.ValidNickname(nickname); !ok {
		return nil, apperror.ValidationFailed(apperror.CodeInvalidNickname, "nick", msg)
	}

	cred := s.signer.Mint(nickname)
	publicURL := s.codec.PublicURL(nickname)

	content, err := renderDefaultContent(nickname, publicURL)
	if err != nil {
		return nil, fmt.Errorf("rendering default content: %w", err)
	}

	account := &model.Account{
		Nickname:       nickname,
		VFileToken:     cred.Token,
		VFileIssuedAt:  cred.IssuedAt,
		VFileSignature: cred.Signature,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create account",
			slog.String("nickname", nickname),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating account: %w", err)
	}

	accountTransitionsTotal.WithLabelValues("signup").Inc()
	s.logger.Info("account created",
		slog.String("id", account.ID),
		slog.String("nickname", nickname),
	)

	return &SignupResult{
		VFile:     s.codec.EncodeURL(cred),
		PublicURL: publicURL,
		Account:   account,
	}, nil
}

// Upload replaces the account's content with the bytes read from file.
//
// Checks run in this order: vfile present, decodes, token known, signature,
// file present, not redirected, size, UTF-8. A redirected account rejects
// every upload, whatever the file holds.
func (s *AccountService) Upload(ctx context.Context, rawVFile string, file io.Reader) (*UploadResult, error) {
	account, err := s.authenticate(ctx, "upload", rawVFile, missUnknownToken)
	if err != nil {
		return nil, err
	}

	if file == nil {
		return nil, apperror.ValidationFailed(apperror.CodeMissingFile, "file", "File is required")
	}
	if account.IsRedirected() {
		return nil, apperror.Conflict(apperror.CodeRedirectActive,
			"Cannot upload file while redirect is active. Remove redirect first.")
	}

	// Read one byte past the limit: that is enough to tell "exactly max" from "too big".
	data, err := io.ReadAll(io.LimitReader(file, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, s.tooLarge()
	}
	// NUL is valid UTF-8 but not storable as text in every backend.
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, apperror.ValidationFailed(apperror.CodeInvalidEncoding, "file", "File must be UTF-8 text without NUL bytes")
	}

	if err := s.repo.UpdateContent(ctx, account.ID, string(data)); err != nil {
		return nil, s.storeError("update content", account.Nickname, err)
	}
	s.cache.Invalidate(account.Nickname)

	accountTransitionsTotal.WithLabelValues("upload").Inc()
	s.logger.Info("content uploaded",
		slog.String("nickname", account.Nickname),
		slog.Int("bytes", len(data)),
	)

	return &UploadResult{PublicURL: s.codec.PublicURL(account.Nickname)}, nil
}

// Delete removes the account for good.
func (s *AccountService) Delete(ctx context.Context, rawVFile string) error {
	account, err := s.authenticate(ctx, "delete", rawVFile, missByShape)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, account.ID); err != nil {
		return s.storeError("delete", account.Nickname, err)
	}
	s.cache.Invalidate(account.Nickname)

	accountTransitionsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("account deleted", slog.String("nickname", account.Nickname))
	return nil
}

// SetRedirect points the account at target. Setting a redirect on an already
// redirected account replaces the target.
func (s *AccountService) SetRedirect(ctx context.Context, rawVFile, target string) (*RedirectResult, error) {
	if strings.TrimSpace(rawVFile) == "" {
		return nil, missingVFile()
	}
	if target == "" {
		return nil, apperror.ValidationFailed(apperror.CodeMissingTarget, "new-url", "new-url parameter is required")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, apperror.ValidationFailed(apperror.CodeInvalidTargetScheme, "new-url",
			"Invalid URL format. Must start with http:// or https://")
	}

	account, err := s.authenticate(ctx, "redirect", rawVFile, missNotFound)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRedirect(ctx, account.ID, target); err != nil {
		return nil, s.storeError("set redirect", account.Nickname, err)
	}
	s.cache.Invalidate(account.Nickname)

	accountTransitionsTotal.WithLabelValues("redirect_set").Inc()
	s.logger.Info("redirect set",
		slog.String("nickname", account.Nickname),
		slog.String("target", target),
	)

	return &RedirectResult{RedirectURL: target}, nil
}

// ClearRedirect returns a redirected account to serving its own content.
func (s *AccountService) ClearRedirect(ctx context.Context, rawVFile string) error {
	account, err := s.authenticate(ctx, "remove_redirect", rawVFile, missNotFound)
	if err != nil {
		return err
	}

	if !account.IsRedirected() {
		return apperror.Conflict(apperror.CodeNoRedirect, "No redirect configured for this account")
	}

	if err := s.repo.UpdateRedirect(ctx, account.ID, ""); err != nil {
		return s.storeError("clear redirect", account.Nickname, err)
	}
	s.cache.Invalidate(account.Nickname)

	accountTransitionsTotal.WithLabelValues("redirect_cleared").Inc()
	s.logger.Info("redirect cleared", slog.String("nickname", account.Nickname))
	return nil
}

// Serve resolves a public read of nickname's social.org.
//
// Redirected accounts yield their target and are not touched. Accounts with
// content yield it and have their last access moved to now, which is what
// keeps them out of the expiry sweep.
func (s *AccountService) Serve(ctx context.Context, nickname string) (*ServeResult, error) {
	account, err := s.lookupForServe(ctx, nickname)
	if err != nil {
		return nil, err
	}

	if account.IsRedirected() {
		return &ServeResult{RedirectURL: account.RedirectURL}, nil
	}
	if account.Content == "" {
		return nil, apperror.NotFound(apperror.CodeEmptyContent, "File has no content")
	}

	if err := s.repo.Touch(ctx, nickname, s.now()); err != nil {
		// The row vanished after the cached read (deleted or swept).
		s.cache.Invalidate(nickname)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, s.storeError("touch", nickname, err)
	}

	return &ServeResult{Content: account.Content}, nil
}

func (s *AccountService) lookupForServe(ctx context.Context, nickname string) (*model.Account, error) {
	if cached, ok := s.cache.Get(nickname); ok {
		return &cached, nil
	}

	gen := s.cache.Generation(nickname)
	account, err := s.repo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, s.storeError("get", nickname, err)
	}
	s.cache.SetIfCurrent(account, gen)
	return account, nil
}

// missPolicy decides what a vfile whose token matches no account means.
type missPolicy func(cred vfile.Credential) error

// missUnknownToken treats an unmatched token as a bad credential.
func missUnknownToken(vfile.Credential) error {
	return apperror.Unauthorized(apperror.CodeUnknownToken, "Invalid vfile token")
}

// missNotFound treats an unmatched token as a missing account.
func missNotFound(vfile.Credential) error {
	return apperror.NotFound(apperror.CodeAccountNotFound, "File not found")
}

// missByShape answers "not found" only for tokens that look like something
// this service could have minted, and "invalid token" for everything else.
// The shape test is vfile.LooksLikeToken; it is a hint, not a security check.
func missByShape(cred vfile.Credential) error {
	if vfile.LooksLikeToken(cred.Token) {
		return missNotFound(cred)
	}
	return apperror.Unauthorized(apperror.CodeInvalidToken, "Invalid vfile token")
}

// authenticate runs decode → lookup → verify and returns the account the
// vfile controls.
func (s *AccountService) authenticate(ctx context.Context, op, rawVFile string, onMiss missPolicy) (*model.Account, error) {
	if strings.TrimSpace(rawVFile) == "" {
		return nil, missingVFile()
	}

	cred, err := vfile.DecodeURL(rawVFile)
	if err != nil {
		vfileChecksTotal.WithLabelValues(op, "malformed").Inc()
		return nil, apperror.Unauthorized(apperror.CodeBadVFileFormat, "Invalid vfile format")
	}

	account, err := s.repo.GetByToken(ctx, cred.Token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			vfileChecksTotal.WithLabelValues(op, "unknown_token").Inc()
			return nil, onMiss(cred)
		}
		return nil, s.storeError("get by token", "", err)
	}

	if !s.signer.Verify(cred, account.Nickname) {
		vfileChecksTotal.WithLabelValues(op, "bad_signature").Inc()
		s.logger.Warn("vfile signature mismatch",
			slog.String("operation", op),
			slog.String("nickname", account.Nickname),
		)
		return nil, apperror.Unauthorized(apperror.CodeBadSignature, "Invalid vfile signature")
	}

	vfileChecksTotal.WithLabelValues(op, "ok").Inc()
	return account, nil
}

func (s *AccountService) tooLarge() error {
	return apperror.PayloadTooLarge(fmt.Sprintf("File too large. Maximum size is %d bytes", s.maxFileSize))
}

// storeError passes apperrors through and logs/wraps everything else.
func (s *AccountService) storeError(op, nickname string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("store operation failed",
		slog.String("operation", op),
		slog.String("nickname", nickname),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func missingVFile() error {
	return apperror.ValidationFailed(apperror.CodeMissingVFile, "vfile", "vfile parameter is required")
}

func renderDefaultContent(nickname, publicURL string) (string, error) {
	var buf bytes.Buffer
	err := defaultContent.Execute(&buf, struct {
		Nickname  string
		PublicURL string
	}{nickname, publicURL})
	return buf.String(), err
}
