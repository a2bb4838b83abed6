package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"licensegate/internal/httputil"
	"licensegate/internal/model"
	"licensegate/internal/service"
)

// TokenHandler groups the token endpoints and their dependencies.
type TokenHandler struct {
	tokenService *service.TokenService
}

func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
	}
}

// Bind handles the device login.
// GET /api/token?token=...&deviceID=...
//
// A bind refused because another device holds the slot is still a 200: the
// body carries IsValid=false and the occupying DeviceId. Callers must treat
// that as a soft rejection, not a server error.
func (h *TokenHandler) Bind(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	deviceID := r.URL.Query().Get("deviceID")
	if token == "" || deviceID == "" {
		httputil.WriteBadRequest(w, "Missing token or deviceID parameter")
		return
	}

	result, err := h.tokenService.Bind(r.Context(), token, deviceID)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "Token not found")
			return
		}
		log.Error().Err(err).Str("token", token).Msg("Bind handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.NewTokenResponse(result.Record, result.Bound))
}

// Status returns the full public projection of a token.
// GET /api/token/status?token=...
func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.WriteBadRequest(w, "Missing token parameter")
		return
	}

	record, err := h.tokenService.Status(r.Context(), token)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "Token not found")
			return
		}
		log.Error().Err(err).Str("token", token).Msg("Status handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.NewTokenResponse(record, record.IsValid))
}

// Create provisions a new token.
// POST /api/token/add
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.NewToken == "" || req.ExpiryDate == "" || req.MaxUsers == nil {
		httputil.WriteBadRequest(w, "newToken, expiryDate and maxUsers are required")
		return
	}

	record, err := h.tokenService.Create(r.Context(), req.NewToken, req.ExpiryDate, *req.MaxUsers)
	if err != nil {
		if errors.Is(err, model.ErrTokenExists) {
			httputil.WriteBadRequestWithCode(w, httputil.ErrCodeConflict, "Token already exists")
			return
		}
		log.Error().Err(err).Str("token", req.NewToken).Msg("Create handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.NewTokenResponse(record, record.IsValid))
}

// UpdateMaxUsers overwrites a token's capacity hint.
// POST /api/token/updateMaxUsers
func (h *TokenHandler) UpdateMaxUsers(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateMaxUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Token == "" || req.MaxUsers == nil {
		httputil.WriteBadRequest(w, "token and maxUsers are required")
		return
	}

	if err := h.tokenService.UpdateMaxUsers(r.Context(), req.Token, *req.MaxUsers); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "Token not found")
			return
		}
		log.Error().Err(err).Str("token", req.Token).Msg("UpdateMaxUsers handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.UpdateMaxUsersResponse{
		Token:    req.Token,
		MaxUsers: *req.MaxUsers,
	})
}

// UpdateAll is the administrative overwrite of a token record. It bypasses
// the binding guard entirely; deviceId may be null to unbind.
// POST /api/token/updateAll
func (h *TokenHandler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Token == "" || req.ExpiryDate == "" || req.IsValid == nil || req.MaxUsers == nil {
		httputil.WriteBadRequest(w, "token, expiryDate, isValid and maxUsers are required")
		return
	}

	err := h.tokenService.UpdateAll(r.Context(), req.Token, req.ExpiryDate, *req.IsValid, req.DeviceID, *req.MaxUsers)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "Token not found")
			return
		}
		log.Error().Err(err).Str("token", req.Token).Msg("UpdateAll handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.UpdateAllResponse{
		Token:    req.Token,
		Expiry:   req.ExpiryDate,
		IsValid:  *req.IsValid,
		DeviceID: req.DeviceID,
		MaxUsers: *req.MaxUsers,
	})
}

// UpdateVideoInfo replaces a token's (link, fileName) sequence.
// POST /api/token/update-video-info
func (h *TokenHandler) UpdateVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateVideoInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Also covers videoInfo not being a sequence
		httputil.WriteBadRequest(w, "videoInfo must be a sequence of {link, fileName} items")
		return
	}
	if req.Token == "" || req.VideoInfo == nil {
		httputil.WriteBadRequest(w, "token and videoInfo are required")
		return
	}

	record, err := h.tokenService.UpdateVideoInfo(r.Context(), req.Token, *req.VideoInfo)
	if err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFound(w, "Token not found")
			return
		}
		log.Error().Err(err).Str("token", req.Token).Msg("UpdateVideoInfo handler")
		httputil.WriteInternalError(w, "Internal Server Error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.UpdateVideoInfoResponse{
		Message:   "Video info updated",
		Token:     record.Token,
		VideoInfo: record.VideoInfos(),
	})
}
