package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-host/internal/service"
)

// PublicHandler serves hosted files to anyone.
type PublicHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewPublicHandler(accounts *service.AccountService, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{accounts: accounts, logger: logger}
}

// HandleSocialOrg serves one account's file.
//
// HTTP: GET /{nickname}/social.org
//
//	redirected account → 301 with Location set to the stored target
//	account with content → 200 text/plain
//	unknown or empty → 404 Error envelope
func (h *PublicHandler) HandleSocialOrg(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")

	res, err := h.accounts.Serve(r.Context(), nickname)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusMovedPermanently)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(res.Content)); err != nil {
		h.logger.Warn("failed to write social.org",
			slog.String("nickname", nickname),
			slog.String("error", err.Error()),
		)
	}
}
