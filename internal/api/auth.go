package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notely/internal/identity"
)

// AuthHandler serves the unauthenticated sign-in routes.
type AuthHandler struct {
	sender identity.MagicLinkSender
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sender identity.MagicLinkSender) *AuthHandler {
	if sender == nil {
		sender = identity.Disabled{}
	}
	return &AuthHandler{sender: sender}
}

// SendToken handles POST /api/auth/send-token. Provider rejections are
// reported in the body with success=false rather than as HTTP errors.
//
//	@Summary		Email a magic sign-in link
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SendTokenRequest	true	"Recipient"
//	@Success		200		{object}	SendTokenResponse
//	@Failure		400		{object}	errResponse
//	@Router			/auth/send-token [post]
func (h *AuthHandler) SendToken(w http.ResponseWriter, r *http.Request) {
	var req SendTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Validate(req.Email, validation.Required, is.EmailFormat); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("email: "+err.Error()))
		return
	}

	err := h.sender.SendMagicLink(r.Context(), req.Email)
	var perr *identity.ProviderError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SendTokenResponse{
			Success: true,
			Message: "Authentication link has been sent to your email",
		})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusOK, SendTokenResponse{Message: perr.Message})
	case errors.Is(err, identity.ErrUnavailable):
		writeJSON(w, http.StatusOK, SendTokenResponse{Message: "Email sign-in is not configured"})
	default:
		slog.Error("send magic link failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, SendTokenResponse{Message: "Failed to send authentication email"})
	}
}
