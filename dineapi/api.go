// Package dineapi wraps the dine REST endpoints in typed calls over an
// authenticated apiclient.Client.
package dineapi

import (
	"context"
	"fmt"
	"net/http"

	"go-dine-api/apiclient"
	"go-dine-api/logger"
	"go-dine-api/model"
)

type API struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) *API {
	return &API{client: client}
}

// Client returns the underlying authenticated client.
func (a *API) Client() *apiclient.Client {
	return a.client
}

func (a *API) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	var user model.User
	if err := a.client.DoJSON(ctx, http.MethodPost, "/auth/register/", req, &user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &user, nil
}

// Login exchanges credentials for a token pair and stores it as the client
// session.
func (a *API) Login(ctx context.Context, email, password string) error {
	var pair model.TokenPair
	req := model.LoginRequest{Email: email, Password: password}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/auth/token/", req, &pair); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return a.client.SetSession(ctx, pair.Access, pair.Refresh)
}

func (a *API) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := a.client.DoJSON(ctx, http.MethodGet, "/auth/user/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *API) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := a.client.DoJSON(ctx, http.MethodGet, "/order/", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (a *API) CreateOrder(ctx context.Context, items []model.OrderItem) (*model.Order, error) {
	var order model.Order
	req := model.CreateOrderRequest{Items: items}
	if err := a.client.DoJSON(ctx, http.MethodPost, "/order/", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *API) GetOrder(ctx context.Context, id int) (*model.Order, error) {
	var order model.Order
	if err := a.client.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/order/%d/", id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus needs an admin session.
func (a *API) UpdateOrderStatus(ctx context.Context, id int, status model.OrderStatus) (*model.Order, error) {
	var order model.Order
	req := model.UpdateOrderStatusRequest{Status: status}
	if err := a.client.DoJSON(ctx, http.MethodPatch, fmt.Sprintf("/order/%d/status/", id), req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateUserRole needs an admin session.
func (a *API) UpdateUserRole(ctx context.Context, userID int, role model.Role) error {
	req := model.UpdateUserRoleRequest{Role: role}
	return a.client.DoJSON(ctx, http.MethodPatch, fmt.Sprintf("/user/%d/role/", userID), req, nil)
}

// LogoutEverywhere revokes every refresh token of the current user, then
// clears the local session.
func (a *API) LogoutEverywhere(ctx context.Context) error {
	if err := a.client.DoJSON(ctx, http.MethodDelete, "/auth/user/sessions/", nil, nil); err != nil {
		return err
	}
	return a.client.Logout(ctx)
}

// Logout revokes the stored refresh token and clears the local session. The
// session is cleared even when the server cannot be reached.
func (a *API) Logout(ctx context.Context) error {
	refresh, err := a.client.RefreshToken(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to read refresh token for revocation")
	}
	if refresh != "" {
		req := model.RefreshRequest{Refresh: refresh}
		if err := a.client.DoJSON(ctx, http.MethodPost, "/auth/token/revoke/", req, nil); err != nil {
			logger.Log.WithError(err).Warn("Failed to revoke refresh token")
		}
	}
	return a.client.Logout(ctx)
}
