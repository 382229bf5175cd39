package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go-dine-api/logger"
	"go-dine-api/model"

	"github.com/sirupsen/logrus"
)

// IOrderRepository defines the contract for order database operations.
type IOrderRepository interface {
	CreateOrder(order *model.Order) error
	GetOrdersByUserID(userID int) ([]*model.Order, error)
	GetAllOrders() ([]*model.Order, error)
	GetOrderByID(id int) (*model.Order, error)
	GetOrderForUpdate(tx *sql.Tx, id int) (*model.Order, error)
	UpdateOrderStatus(tx *sql.Tx, id int, status model.OrderStatus) error
}

type OrderRepository struct {
	DB *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `id, user_id, items, total, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		order model.Order
		items []byte
	)
	if err := row.Scan(&order.ID, &order.UserID, &items, &order.Total, &order.Status, &order.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decoding items of order %d: %w", order.ID, err)
	}
	return &order, nil
}

// CreateOrder inserts order and fills in its generated fields.
func (r *OrderRepository) CreateOrder(order *model.Order) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id": order.UserID,
		"items":   len(order.Items),
		"total":   order.Total,
	})
	log.Info("Executing query to create a new order")

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}

	query := `INSERT INTO orders (user_id, items, total, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err = r.DB.QueryRow(query, order.UserID, items, order.Total, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create order query")
		return err
	}
	return nil
}

// GetOrdersByUserID retrieves all orders placed by a user, newest first.
func (r *OrderRepository) GetOrdersByUserID(userID int) ([]*model.Order, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get orders by user ID")

	rows, err := r.DB.Query(`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for orders by user ID")
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows, log)
}

// GetAllOrders retrieves every order. For admin use only.
func (r *OrderRepository) GetAllOrders() ([]*model.Order, error) {
	log := logger.Log.WithField("scope", "all")
	log.Info("Executing query to get all orders")

	rows, err := r.DB.Query(`SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for all orders")
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows, log)
}

func collectOrders(rows *sql.Rows, log *logrus.Entry) ([]*model.Order, error) {
	orders := []*model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan order row")
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// GetOrderByID returns sql.ErrNoRows when the order does not exist.
func (r *OrderRepository) GetOrderByID(id int) (*model.Order, error) {
	order, err := scanOrder(r.DB.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil && err != sql.ErrNoRows {
		logger.Log.WithError(err).WithField("order_id", id).Error("Failed to execute get order query")
	}
	return order, err
}

func (r *OrderRepository) GetOrderForUpdate(tx *sql.Tx, id int) (*model.Order, error) {
	log := logger.Log.WithField("order_id", id)
	log.Info("Executing query to get order for update")

	order, err := scanOrder(tx.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			log.Info("Order not found for update")
		} else {
			log.WithError(err).Error("Failed to execute get order for update query")
		}
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) UpdateOrderStatus(tx *sql.Tx, id int, status model.OrderStatus) error {
	log := logger.Log.WithFields(logrus.Fields{
		"order_id": id,
		"status":   status,
	})
	log.Info("Executing query to update order status")

	_, err := tx.Exec(`UPDATE orders SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update order status query")
		return err
	}
	return nil
}
