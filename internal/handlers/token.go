package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/tokengate/internal/auth"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
	"github.com/HammerMeetNail/tokengate/internal/services"
)

type TokenHandler struct {
	tokenService services.TokenServiceInterface
	logger       *logging.Logger
}

func NewTokenHandler(tokenService services.TokenServiceInterface, logger *logging.Logger) *TokenHandler {
	if logger == nil {
		logger = logging.Default
	}
	return &TokenHandler{tokenService: tokenService, logger: logger.Named("api.tokens")}
}

type CreateTokenRequest struct {
	UserID       *uuid.UUID `json:"user_id"`
	Key          string     `json:"key"`
	Description  string     `json:"description"`
	Expires      *time.Time `json:"expires"`
	WriteEnabled *bool      `json:"write_enabled"`
}

// CreateTokenResponse carries the plaintext key, which is only ever returned
// on creation.
type CreateTokenResponse struct {
	*models.Token
	Key string `json:"key"`
}

type UpdateTokenRequest struct {
	Description  *string         `json:"description"`
	Expires      json.RawMessage `json:"expires"`
	WriteEnabled *bool           `json:"write_enabled"`
}

type ListTokensResponse struct {
	Count   int            `json:"count"`
	Results []models.Token `json:"results"`
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	gc := GetGateFromContext(r.Context())
	if gc == nil {
		h.internalError(w, errors.New("permission gate missing"), "listing tokens")
		return
	}

	user := gc.Request.User
	if user == nil {
		writeJSON(w, http.StatusOK, ListTokensResponse{Results: []models.Token{}})
		return
	}
	var owner *uuid.UUID
	if !user.IsSuperuser {
		owner = &user.ID
	}

	tokens, err := h.tokenService.List(r.Context(), owner)
	if err != nil {
		h.internalError(w, err, "listing tokens")
		return
	}

	visible := make([]models.Token, 0, len(tokens))
	for _, token := range tokens {
		ok, err := gc.Gate.HasObjectPermission(r.Context(), gc.Request, token.ObjectRef())
		if err != nil && !errors.Is(err, auth.ErrObjectNotFound) {
			h.internalError(w, err, "listing tokens")
			return
		}
		if ok {
			visible = append(visible, token)
		}
	}

	writeJSON(w, http.StatusOK, ListTokensResponse{Count: len(visible), Results: visible})
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		WritePermissionDenied(w, r)
		return
	}

	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	owner := user.ID
	if req.UserID != nil && *req.UserID != user.ID {
		if !user.IsSuperuser {
			writeError(w, http.StatusForbidden, "Cannot create tokens for other users")
			return
		}
		owner = *req.UserID
	}

	params := models.CreateTokenParams{
		UserID:       owner,
		Key:          req.Key,
		Description:  req.Description,
		Expires:      req.Expires,
		WriteEnabled: true,
	}
	if req.WriteEnabled != nil {
		params.WriteEnabled = *req.WriteEnabled
	}

	token, key, err := h.tokenService.Create(r.Context(), params)
	if errors.Is(err, services.ErrInvalidTokenKey) {
		writeError(w, http.StatusBadRequest, "Key must be 40 hexadecimal characters")
		return
	}
	if err != nil {
		h.internalError(w, err, "creating token")
		return
	}

	h.logger.Info("Token created", map[string]interface{}{
		"token_id":   token.ID.String(),
		"user_id":    owner.String(),
		"created_by": user.Username,
	})
	writeJSON(w, http.StatusCreated, CreateTokenResponse{Token: token, Key: key})
}

func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	token, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// Update handles both PUT and PATCH; fields left out of the body are kept.
func (h *TokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	token, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	var req UpdateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := models.UpdateTokenParams{
		Description:  req.Description,
		WriteEnabled: req.WriteEnabled,
	}
	if len(req.Expires) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.Expires), []byte("null")) {
			params.ClearExpires = true
		} else {
			var expires time.Time
			if err := json.Unmarshal(req.Expires, &expires); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid expiry timestamp")
				return
			}
			params.Expires = &expires
		}
	}

	updated, err := h.tokenService.Update(r.Context(), token.ID, params)
	if errors.Is(err, services.ErrTokenNotFound) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "updating token")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	err := h.tokenService.Delete(r.Context(), token.ID)
	if errors.Is(err, services.ErrTokenNotFound) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "deleting token")
		return
	}

	h.logger.Info("Token deleted", map[string]interface{}{"token_id": token.ID.String()})
	w.WriteHeader(http.StatusNoContent)
}

// loadAuthorized fetches the token named in the path and runs the
// object-level permission check. Tokens owned by someone else are not found
// unless the caller is a superuser. It writes the response itself on failure.
func (h *TokenHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*models.Token, bool) {
	gc := GetGateFromContext(r.Context())
	if gc == nil {
		h.internalError(w, errors.New("permission gate missing"), "loading token")
		return nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil, false
	}

	token, err := h.tokenService.GetByID(r.Context(), id)
	if errors.Is(err, services.ErrTokenNotFound) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(w, err, "loading token")
		return nil, false
	}
	if user := gc.Request.User; user == nil || (!user.IsSuperuser && token.UserID != user.ID) {
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil, false
	}

	allowed, err := gc.Gate.HasObjectPermission(r.Context(), gc.Request, token.ObjectRef())
	switch {
	case errors.Is(err, auth.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, MsgNotFound)
		return nil, false
	case err != nil:
		h.internalError(w, err, "checking token permissions")
		return nil, false
	case !allowed:
		WritePermissionDenied(w, r)
		return nil, false
	}
	return token, true
}

func (h *TokenHandler) internalError(w http.ResponseWriter, err error, action string) {
	h.logger.Error("Error "+action, map[string]interface{}{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, MsgInternalError)
}
