// file: service/order_service.go

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-dine-api/logger"
	"go-dine-api/model"
	"go-dine-api/repository"

	"github.com/sirupsen/logrus"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrForbidden               = errors.New("you do not have access to this order")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

const orderCacheTTL = 10 * time.Minute

// OrderService handles order logic. A user's order list is cached in Redis
// and invalidated on every write to one of their orders.
type OrderService struct {
	db    *sql.DB
	repo  repository.IOrderRepository
	cache ICacheClient
}

func NewOrderService(db *sql.DB, repo repository.IOrderRepository, cache ICacheClient) *OrderService {
	return &OrderService{
		db:    db,
		repo:  repo,
		cache: cache,
	}
}

func ordersCacheKey(userID int) string {
	return fmt.Sprintf("orders:%d", userID)
}

// CreateOrder places a new pending order for userID.
func (s *OrderService) CreateOrder(ctx context.Context, userID int, req model.CreateOrderRequest) (*model.Order, error) {
	order := &model.Order{
		UserID: userID,
		Items:  req.Items,
		Total:  model.OrderTotal(req.Items),
		Status: model.OrderPending,
	}
	if err := s.repo.CreateOrder(order); err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return order, nil
}

// ListOrders returns the caller's orders, or every order for an admin. Only
// the per-user list is cached; admin views read the database directly.
func (s *OrderService) ListOrders(ctx context.Context, userID int, role model.Role) ([]*model.Order, error) {
	if role == model.RoleAdmin {
		return s.repo.GetAllOrders()
	}

	cacheKey := ordersCacheKey(userID)

	// 1. Try to get data from Redis.
	if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
		var orders []*model.Order
		if err := json.Unmarshal([]byte(cached), &orders); err == nil {
			return orders, nil
		}
	}

	// 2. Cache miss. Fetch from the database.
	orders, err := s.repo.GetOrdersByUserID(userID)
	if err != nil {
		return nil, err
	}

	// 3. Store the result in Redis for future requests.
	if data, err := json.Marshal(orders); err == nil {
		if err := s.cache.Set(ctx, cacheKey, data, orderCacheTTL).Err(); err != nil {
			logger.Log.WithError(err).WithField("key", cacheKey).Warn("Failed to cache orders")
		}
	}

	return orders, nil
}

// GetOrder returns an order its owner or an admin may see.
func (s *OrderService) GetOrder(ctx context.Context, userID int, role model.Role, orderID int) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if role != model.RoleAdmin && order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

// UpdateStatus moves an order to status inside a transaction that holds the
// order row lock, rejecting transitions the order lifecycle does not allow.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int, status model.OrderStatus) (*model.Order, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	})
	log.Info("Starting order status update")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.repo.GetOrderForUpdate(tx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !order.Status.CanTransition(status) {
		log.WithField("current", order.Status).Warn("Rejected order status transition")
		return nil, ErrInvalidStatusTransition
	}

	if err := s.repo.UpdateOrderStatus(tx, orderID, status); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	order.Status = status
	s.invalidate(ctx, order.UserID)

	log.Info("Order status updated")
	return order, nil
}

func (s *OrderService) invalidate(ctx context.Context, userID int) {
	key := ordersCacheKey(userID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Failed to invalidate orders cache")
	}
}
