package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Table-driven: each case checks that errors.Is() identifies the kind.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound(CodeAccountNotFound, "File not found"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed(CodeInvalidNickname, "nick", "Nickname is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict(CodeNicknameTaken, "Nickname 'alice' is already taken"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized(CodeBadSignature, "Invalid vfile signature"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "PayloadTooLarge wraps ErrPayloadTooLarge",
			err:       PayloadTooLarge("File too large"),
			target:    ErrPayloadTooLarge,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("uploading: %w", Conflict(CodeRedirectActive, "redirect active")),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrUnauthorized",
			err:       NotFound(CodeAccountNotFound, "File not found"),
			target:    ErrUnauthorized,
			wantMatch: false,
		},
		{
			name:      "Unauthorized does NOT match ErrNotFound",
			err:       Unauthorized(CodeInvalidToken, "Invalid vfile token"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"direct", Unauthorized(CodeBadVFileFormat, "Invalid vfile format"), CodeBadVFileFormat},
		{"wrapped", fmt.Errorf("deleting: %w", NotFound(CodeAccountNotFound, "File not found")), CodeAccountNotFound},
		{"payload", PayloadTooLarge("too big"), CodePayloadTooLarge},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound(CodeEmptyContent, "File has no content")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed(CodeMissingTarget, "new-url", "new-url parameter is required")

	if err.Field != "new-url" {
		t.Errorf("Field = %q, want %q", err.Field, "new-url")
	}
	if err.Error() != "new-url parameter is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}
