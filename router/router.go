package router

import (
	"net/http"

	_ "go-dine-api/docs"
	"go-dine-api/handler"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Deps are the handlers and settings the router mounts.
type Deps struct {
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
	Orders *handler.OrderHandler
	Tokens handler.ITokenParser
	APIKey string
}

func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handler.NotFound)
	r.Use(handler.RequestLogger)

	// Public
	r.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := r.NewRoute().Subrouter()
	api.Use(handler.APIKeyMiddleware(d.APIKey))

	api.Handle("/auth/register/", handler.ErrorHandlingMiddleware(d.Auth.Register)).Methods(http.MethodPost)
	api.Handle("/auth/token/", handler.ErrorHandlingMiddleware(d.Auth.Login)).Methods(http.MethodPost)
	api.Handle("/auth/token/refresh/", handler.ErrorHandlingMiddleware(d.Auth.Refresh)).Methods(http.MethodPost)
	api.Handle("/auth/token/revoke/", handler.ErrorHandlingMiddleware(d.Auth.Revoke)).Methods(http.MethodPost)

	// Bearer token required
	authed := api.NewRoute().Subrouter()
	authed.Use(handler.AuthMiddleware(d.Tokens))

	authed.Handle("/auth/user/", handler.ErrorHandlingMiddleware(d.Users.CurrentUser)).Methods(http.MethodGet)
	authed.Handle("/auth/user/sessions/", handler.ErrorHandlingMiddleware(d.Auth.RevokeSessions)).Methods(http.MethodDelete)
	authed.Handle("/order/", handler.ErrorHandlingMiddleware(d.Orders.ListOrders)).Methods(http.MethodGet)
	authed.Handle("/order/", handler.ErrorHandlingMiddleware(d.Orders.CreateOrder)).Methods(http.MethodPost)
	authed.Handle("/order/{id:[0-9]+}/", handler.ErrorHandlingMiddleware(d.Orders.GetOrder)).Methods(http.MethodGet)

	// Admin only
	admin := authed.NewRoute().Subrouter()
	admin.Use(handler.AdminMiddleware)

	admin.Handle("/order/{id:[0-9]+}/status/", handler.ErrorHandlingMiddleware(d.Orders.UpdateOrderStatus)).Methods(http.MethodPatch)
	admin.Handle("/user/{id:[0-9]+}/role/", handler.ErrorHandlingMiddleware(d.Users.UpdateUserRole)).Methods(http.MethodPatch)

	return r
}
