package handler

import (
	"errors"
	"net/http"

	"go-dine-api/common"
	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/service"

	"github.com/sirupsen/logrus"
)

type IUserService interface {
	GetUser(userID int) (*model.User, error)
	UpdateUserRole(userID int, role model.Role) error
}

type UserHandler struct {
	users IUserService
}

func NewUserHandler(users IUserService) *UserHandler {
	return &UserHandler{users: users}
}

// CurrentUser godoc
// @Summary      Show the authenticated user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  model.User
// @Failure      401  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /auth/user/ [get]
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, _, appErr := identity(r)
	if appErr != nil {
		return appErr
	}

	user, err := h.users.GetUser(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return common.NewAppError(http.StatusUnauthorized, "User no longer exists", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not load user", err)
	}

	writeJSON(w, http.StatusOK, user)
	return nil
}

// UpdateUserRole godoc
// @Summary      Change a user's role
// @Tags         admin
// @Accept       json
// @Param        id      path  int                          true  "User ID"
// @Param        request body  model.UpdateUserRoleRequest  true  "New role"
// @Success      204
// @Failure      403  {object}  common.AppError
// @Failure      404  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /user/{id}/role/ [patch]
func (h *UserHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	targetID, appErr := pathID(r, "id")
	if appErr != nil {
		return appErr
	}

	var req model.UpdateUserRoleRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	err := h.users.UpdateUserRole(targetID, req.Role)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return common.NewAppError(http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidRole):
		return common.NewAppError(http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		return common.NewAppError(http.StatusInternalServerError, "Could not update role", err)
	}

	adminID, _, _ := identity(r)
	logger.Log.WithFields(logrus.Fields{
		"admin_id":  adminID,
		"target_id": targetID,
		"role":      req.Role,
	}).Info("User role updated")

	w.WriteHeader(http.StatusNoContent)
	return nil
}
