package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
	"github.com/HammerMeetNail/tokengate/internal/services"
)

const msgInvalidLogin = "Invalid username/password"

// ProvisionHandler issues a token in exchange for a username and password.
type ProvisionHandler struct {
	userService  services.UserServiceInterface
	tokenService services.TokenServiceInterface
	passwords    services.PasswordVerifier
	logger       *logging.Logger
}

func NewProvisionHandler(userService services.UserServiceInterface, tokenService services.TokenServiceInterface, passwords services.PasswordVerifier, logger *logging.Logger) *ProvisionHandler {
	if logger == nil {
		logger = logging.Default
	}
	return &ProvisionHandler{
		userService:  userService,
		tokenService: tokenService,
		passwords:    passwords,
		logger:       logger.Named("auth.login"),
	}
}

type ProvisionRequest struct {
	Username     string     `json:"username"`
	Password     string     `json:"password"`
	Description  string     `json:"description"`
	Expires      *time.Time `json:"expires"`
	WriteEnabled *bool      `json:"write_enabled"`
}

func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		h.logger.Error("Error loading user", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, MsgInternalError)
		return
	}
	if user == nil || !h.passwords.VerifyPassword(user.PasswordHash, req.Password) {
		h.logger.Warn("Token provisioning rejected", map[string]interface{}{"username": req.Username})
		writeError(w, http.StatusForbidden, msgInvalidLogin)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "User inactive")
		return
	}

	params := models.CreateTokenParams{
		UserID:       user.ID,
		Description:  req.Description,
		Expires:      req.Expires,
		WriteEnabled: true,
	}
	if req.WriteEnabled != nil {
		params.WriteEnabled = *req.WriteEnabled
	}

	token, key, err := h.tokenService.Create(r.Context(), params)
	if err != nil {
		h.logger.Error("Error provisioning token", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, MsgInternalError)
		return
	}

	h.logger.Info("Token provisioned", map[string]interface{}{
		"username": user.Username,
		"token_id": token.ID.String(),
	})
	writeJSON(w, http.StatusCreated, CreateTokenResponse{Token: token, Key: key})
}
