package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/social-host/internal/service"
)

// bodyOverhead is the room left above MaxFileSize for the multipart framing
// and the other form fields.
const bodyOverhead = 1 << 20

// AccountHandler serves the five POST endpoints that manage an account.
//
// Every endpoint except signup authenticates with the vfile URL handed out
// at signup, sent as the "vfile" field. The handler only moves fields out of
// the request and results into the envelope; all rules live in
// service.AccountService.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// limitBody caps the request body. MaxBytesReader also tells the server to
// close the connection once the cap is hit, so a client cannot keep
// streaming.
func (h *AccountHandler) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.accounts.MaxFileSize()+bodyOverhead)
}

// HandleSignup registers a nickname.
//
// HTTP: POST /signup
// REQUEST BODY: {"nick": "alice"} or nick=alice
// RESPONSE DATA: {"vfile": "...", "public-url": "..."}
//
// The vfile URL is the only credential for the account. It is returned once
// and never again.
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	fields, err := readFields(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Signup(r.Context(), fields["nick"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]string{
		"vfile":      res.VFile,
		"public-url": res.PublicURL,
	})
}

// HandleUpload replaces the account's social.org.
//
// HTTP: POST /upload
// REQUEST BODY: multipart/form-data with a "vfile" field and a "file" part
// RESPONSE DATA: {"message": "...", "public-url": "..."}
//
// A body without a file part is passed to the service with a nil reader,
// which reports missing-file after the credential checks.
func (h *AccountHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	fields, err := readFields(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var content io.Reader
	if r.MultipartForm != nil {
		file, _, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			content = file
		case errors.Is(err, http.ErrMissingFile):
			// leave content nil
		default:
			writeError(w, bodyError(err))
			return
		}
	}

	res, err := h.accounts.Upload(r.Context(), fields["vfile"], content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]string{
		"message":    "File uploaded successfully",
		"public-url": res.PublicURL,
	})
}

// HandleDelete removes the account.
//
// HTTP: POST /delete
// REQUEST BODY: {"vfile": "..."}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	fields, err := readFields(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.Delete(r.Context(), fields["vfile"]); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "File deleted successfully"})
}

// HandleRedirect points the account's public URL somewhere else.
//
// HTTP: POST /redirect
// REQUEST BODY: {"vfile": "...", "new-url": "https://..."}
// RESPONSE DATA: {"message": "...", "redirect-url": "..."}
func (h *AccountHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	fields, err := readFields(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.SetRedirect(r.Context(), fields["vfile"], fields["new-url"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]string{
		"message":      "Redirect configured successfully",
		"redirect-url": res.RedirectURL,
	})
}

// HandleRemoveRedirect resumes hosting the account's own content.
//
// HTTP: POST /remove-redirect
// REQUEST BODY: {"vfile": "..."}
func (h *AccountHandler) HandleRemoveRedirect(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	fields, err := readFields(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ClearRedirect(r.Context(), fields["vfile"]); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Redirect removed successfully"})
}
