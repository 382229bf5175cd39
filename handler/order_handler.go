package handler

import (
	"context"
	"errors"
	"net/http"

	"go-dine-api/common"
	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/service"

	"github.com/sirupsen/logrus"
)

type IOrderService interface {
	CreateOrder(ctx context.Context, userID int, req model.CreateOrderRequest) (*model.Order, error)
	ListOrders(ctx context.Context, userID int, role model.Role) ([]*model.Order, error)
	GetOrder(ctx context.Context, userID int, role model.Role, orderID int) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID int, status model.OrderStatus) (*model.Order, error)
}

type OrderHandler struct {
	orders IOrderService
}

func NewOrderHandler(orders IOrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func orderError(err error, fallback string) *common.AppError {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return common.NewAppError(http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		return common.NewAppError(http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidStatusTransition):
		return common.NewAppError(http.StatusConflict, err.Error(), nil)
	}
	return common.NewAppError(http.StatusInternalServerError, fallback, err)
}

// ListOrders godoc
// @Summary      List orders
// @Description  Customers see their own orders, admins see every order.
// @Tags         orders
// @Produce      json
// @Success      200  {array}   model.Order
// @Failure      401  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /order/ [get]
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, role, appErr := identity(r)
	if appErr != nil {
		return appErr
	}

	orders, err := h.orders.ListOrders(r.Context(), userID, role)
	if err != nil {
		return orderError(err, "Could not retrieve orders")
	}

	writeJSON(w, http.StatusOK, orders)
	return nil
}

// CreateOrder godoc
// @Summary      Place an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body model.CreateOrderRequest true "Order items"
// @Success      201  {object}  model.Order
// @Failure      400  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /order/ [post]
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, _, appErr := identity(r)
	if appErr != nil {
		return appErr
	}

	var req model.CreateOrderRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"items":   len(req.Items),
	}).Info("Create order request received")

	order, err := h.orders.CreateOrder(r.Context(), userID, req)
	if err != nil {
		return orderError(err, "Could not create order")
	}

	writeJSON(w, http.StatusCreated, order)
	return nil
}

// GetOrder godoc
// @Summary      Show an order
// @Tags         orders
// @Produce      json
// @Param        id   path      int  true  "Order ID"
// @Success      200  {object}  model.Order
// @Failure      403  {object}  common.AppError
// @Failure      404  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /order/{id}/ [get]
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, role, appErr := identity(r)
	if appErr != nil {
		return appErr
	}
	orderID, appErr := pathID(r, "id")
	if appErr != nil {
		return appErr
	}

	order, err := h.orders.GetOrder(r.Context(), userID, role, orderID)
	if err != nil {
		return orderError(err, "Could not retrieve order")
	}

	writeJSON(w, http.StatusOK, order)
	return nil
}

// UpdateOrderStatus godoc
// @Summary      Move an order to a new status
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id      path  int                             true  "Order ID"
// @Param        request body  model.UpdateOrderStatusRequest  true  "New status"
// @Success      200  {object}  model.Order
// @Failure      404  {object}  common.AppError
// @Failure      409  {object}  common.AppError
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /order/{id}/status/ [patch]
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) *common.AppError {
	orderID, appErr := pathID(r, "id")
	if appErr != nil {
		return appErr
	}

	var req model.UpdateOrderStatusRequest
	if appErr := common.DecodeAndValidate(r, &req); appErr != nil {
		return appErr
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		return orderError(err, "Could not update order")
	}

	writeJSON(w, http.StatusOK, order)
	return nil
}
