package handler

import (
	"errors"
	"net/http"

	"go-dine-api/common"
	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/service"
)

// IAuthService is the auth behavior the handlers depend on.
type IAuthService interface {
	ITokenParser
	Register(req model.RegisterRequest) (*model.User, error)
	Login(email, password string) (*model.TokenPair, error)
	Refresh(refreshToken string) (*model.AccessResponse, error)
	Revoke(refreshToken string) error
	RevokeAll(userID int) error
}

type AuthHandler struct {
	auth IAuthService
}

func NewAuthHandler(auth IAuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register godoc
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.RegisterRequest true "New user"
// @Success      201  {object}  model.User
// @Failure      400  {object}  common.AppError
// @Failure      409  {object}  common.AppError
// @Security     ApiKeyAuth
// @Router       /auth/register/ [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.auth.Register(req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return common.NewAppError(http.StatusConflict, err.Error(), nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not create user", err)
	}

	writeJSON(w, http.StatusCreated, user)
	return nil
}

// Login godoc
// @Summary      Obtain an access and refresh token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.LoginRequest true "Credentials"
// @Success      200  {object}  model.TokenPair
// @Failure      401  {object}  common.AppError
// @Security     ApiKeyAuth
// @Router       /auth/token/ [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	pair, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return common.NewAppError(http.StatusUnauthorized, err.Error(), nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not log in", err)
	}

	logger.Log.WithField("email", req.Email).Info("User logged in")
	writeJSON(w, http.StatusOK, pair)
	return nil
}

// Refresh godoc
// @Summary      Exchange a refresh token for a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.RefreshRequest true "Refresh token"
// @Success      200  {object}  model.AccessResponse
// @Failure      401  {object}  common.AppError
// @Security     ApiKeyAuth
// @Router       /auth/token/refresh/ [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	resp, err := h.auth.Refresh(req.Refresh)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return common.NewAppError(http.StatusUnauthorized, err.Error(), nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not refresh token", err)
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

// Revoke godoc
// @Summary      Revoke a refresh token
// @Tags         auth
// @Accept       json
// @Param        request body model.RefreshRequest true "Refresh token"
// @Success      204
// @Security     ApiKeyAuth
// @Router       /auth/token/revoke/ [post]
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	if err := h.auth.Revoke(req.Refresh); err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not revoke token", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// RevokeSessions godoc
// @Summary      Sign the current user out of every device
// @Tags         auth
// @Success      204
// @Failure      401  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /auth/user/sessions/ [delete]
func (h *AuthHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, _, appErr := identity(r)
	if appErr != nil {
		return appErr
	}

	if err := h.auth.RevokeAll(userID); err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not revoke sessions", err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
